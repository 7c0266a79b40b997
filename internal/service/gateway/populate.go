package gateway

import (
	"context"
	"errors"

	"modelgate/internal/domain"
	"modelgate/internal/domain/models"
	"modelgate/internal/domain/repositories"
)

// populate replaces reference ids in out with the referenced documents.
// Paths that are not reference fields are ignored; missing single
// references become null and missing array entries are dropped.
func (s *Service) populate(ctx context.Context, schema *models.Schema, out map[string]any, paths []string) error {
	for _, path := range paths {
		field, ok := schema.Field(path)
		if !ok || field.Type != models.TypeObjectID || field.Ref == "" {
			continue
		}
		v, present := out[path]
		if !present || v == nil {
			continue
		}
		target, err := s.registry.Resolve(field.Ref)
		if err != nil {
			return err
		}

		if !field.Array {
			id := idOf(v)
			if id == "" {
				continue
			}
			ref, err := target.Store.FindOne(ctx, idFilter(id), models.FindOptions{})
			switch {
			case errors.Is(err, domain.ErrNotFound):
				out[path] = nil
			case err != nil:
				return wrapStore("populate", target.Name, err)
			default:
				out[path] = ref.Map()
			}
			continue
		}

		list, _ := v.([]any)
		populated, err := populateList(ctx, target, list)
		if err != nil {
			return err
		}
		out[path] = populated
	}
	return nil
}

func populateList(ctx context.Context, target *repositories.Model, list []any) ([]any, error) {
	ids := make([]any, 0, len(list))
	for _, item := range list {
		if id := idOf(item); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []any{}, nil
	}
	docs, err := target.Store.Find(ctx, models.Filter{models.KeyID: map[string]any{"$in": ids}}, models.FindOptions{})
	if err != nil {
		return nil, wrapStore("populate", target.Name, err)
	}
	byID := make(map[string]*models.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		if d, ok := byID[id.(string)]; ok {
			out = append(out, d.Map())
		}
	}
	return out, nil
}
