package gateway

import (
	"context"

	"modelgate/internal/config"
	"modelgate/internal/domain"
	"modelgate/internal/domain/models"
	"modelgate/internal/domain/repositories"
	"modelgate/internal/domain/services"
)

var changesSort = models.Sort{{Path: models.KeyUpdatedAt}}

// CountChanges counts documents updated within the request window.
func (s *Service) CountChanges(ctx context.Context, req *services.ChangesRequest) (int64, error) {
	m, err := s.changesModel(req)
	if err != nil {
		return 0, err
	}
	n, err := m.Store.Count(ctx, changesFilter(req))
	if err != nil {
		return 0, wrapStore("changes", m.Name, err)
	}
	return n, nil
}

// ListChanges returns one page of changed documents, oldest change first.
func (s *Service) ListChanges(ctx context.Context, req *services.ChangesRequest) ([]map[string]any, error) {
	m, err := s.changesModel(req)
	if err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = config.DefaultChangesLimit
	}
	docs, err := m.Store.Find(ctx, changesFilter(req), models.FindOptions{
		Limit: limit,
		Skip:  max(req.Page, 0) * limit,
		Sort:  changesSort,
	})
	if err != nil {
		return nil, wrapStore("changes", m.Name, err)
	}
	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		out = append(out, s.projections.Apply(m.Name, req.Projection, d.Map()))
	}
	return out, nil
}

// StreamChanges walks every changed document with a store cursor.
func (s *Service) StreamChanges(ctx context.Context, req *services.ChangesRequest, emit func(map[string]any) error) error {
	m, err := s.changesModel(req)
	if err != nil {
		return err
	}
	err = m.Store.Stream(ctx, changesFilter(req), models.FindOptions{Sort: changesSort}, func(d *models.Document) error {
		return emit(s.projections.Apply(m.Name, req.Projection, d.Map()))
	})
	if err != nil {
		return wrapStore("changes", m.Name, err)
	}
	return nil
}

func (s *Service) changesModel(req *services.ChangesRequest) (*repositories.Model, error) {
	m, err := s.registry.Resolve(req.Model)
	if err != nil {
		return nil, err
	}
	if !s.projections.Allowed(req.Actor, m.Name, req.Projection) {
		return nil, domain.Denied(msgProjectionDenied)
	}
	return m, nil
}

func changesFilter(req *services.ChangesRequest) models.Filter {
	window := map[string]any{}
	if req.From != nil {
		window["$gte"] = req.From.UTC()
	}
	if req.To != nil {
		window["$lte"] = req.To.UTC()
	}
	if len(window) == 0 {
		return models.Filter{}
	}
	return models.Filter{models.KeyUpdatedAt: window}
}
