package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"modelgate/internal/domain"
	"modelgate/internal/domain/models"
	"modelgate/internal/domain/repositories"
	"modelgate/internal/domain/services"
)

// cascadeStep is one saveReferences path resolved against the schema.
type cascadeStep struct {
	path   string
	field  *models.Field
	target *repositories.Model
	items  []*cascadeItem
}

// cascadeItem is one child of a step: either a payload to save or an id
// that is kept as a plain reference.
type cascadeItem struct {
	index int // -1 for single references
	raw   map[string]any
	ref   string
	doc   *models.Document
}

func (it *cascadeItem) id() string {
	if it.doc != nil {
		return it.doc.ID
	}
	return it.ref
}

func (it *cascadeItem) prefix(path string) string {
	if it.index < 0 {
		return path
	}
	return fmt.Sprintf("%s.%d", path, it.index)
}

// cascadePaths reads the saveReferences list of a request.
func cascadePaths(v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, domain.BadRequest("saveReferences must be an Array with schema paths")
	}
	paths := make([]string, 0, len(list))
	for _, item := range list {
		p, ok := item.(string)
		if !ok || p == "" {
			return nil, domain.BadRequest("saveReferences must be an Array with schema paths")
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// plan resolves every cascade path. Paths that are not reference fields
// abort the save before any child is touched.
func (s *Service) plan(schema *models.Schema, set models.MutationSet, paths []string) ([]*cascadeStep, error) {
	steps := make([]*cascadeStep, 0, len(paths))
	for _, path := range paths {
		field, ok := schema.Field(path)
		if !ok || field.Type != models.TypeObjectID || field.Ref == "" {
			return nil, &domain.UnknownCascadePathError{Path: path}
		}
		target, err := s.registry.Resolve(field.Ref)
		if err != nil {
			return nil, err
		}

		step := &cascadeStep{path: path, field: field, target: target}
		v := set[path]
		if field.Array {
			list, _ := v.([]any)
			for i, item := range list {
				if it := newCascadeItem(i, item); it != nil {
					step.items = append(step.items, it)
				}
			}
		} else if it := newCascadeItem(-1, v); it != nil {
			step.items = append(step.items, it)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func newCascadeItem(index int, v any) *cascadeItem {
	switch t := v.(type) {
	case map[string]any:
		return &cascadeItem{index: index, raw: t}
	case nil:
		return nil
	}
	if id := idOf(v); id != "" {
		return &cascadeItem{index: index, ref: id}
	}
	return nil
}

// prepare sanitizes each child payload against the referenced model and
// loads or creates its document. Existing children must pass the save check
// of their own model. Nothing is written.
func (s *Service) prepare(ctx context.Context, steps []*cascadeStep, actor *models.Actor) error {
	for _, step := range steps {
		for _, it := range step.items {
			if it.raw == nil {
				continue
			}
			set := s.sanitizer.Sanitize(it.raw, step.target.Schema, actor, false)
			doc, err := s.loadOrCreate(ctx, step.target, set, actor)
			if err != nil {
				return err
			}
			if !doc.IsNew() && !s.authorizer.Check(ctx, actor, step.target.Name, services.ActionSave, doc, nil) {
				return domain.Denied("")
			}
			applySet(doc, step.target.Schema, set, nil)
			it.doc = doc
		}
	}
	return nil
}

// link points the parent's cascade fields at the children.
func link(parent *models.Document, steps []*cascadeStep) {
	for _, step := range steps {
		if !step.field.Array {
			if len(step.items) > 0 {
				parent.Set(step.path, step.items[0].id())
			}
			continue
		}
		ids := make([]any, 0, len(step.items))
		for _, it := range step.items {
			ids = append(ids, it.id())
		}
		parent.Set(step.path, ids)
	}
}

// validateAll checks every child, then the parent. Child failures are
// qualified with their cascade path and returned together.
func validateAll(schema *models.Schema, parent *models.Document, steps []*cascadeStep) error {
	agg := &domain.ValidationError{Fields: map[string]string{}, Child: true}
	for _, step := range steps {
		for _, it := range step.items {
			if it.doc == nil {
				continue
			}
			err := validateDocument(step.target.Schema, it.doc)
			if err == nil {
				continue
			}
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				return err
			}
			agg.Merge(ve.Qualify(it.prefix(step.path)))
		}
	}
	if len(agg.Fields) > 0 {
		return agg
	}
	return validateDocument(schema, parent)
}

// commitAll writes the children in plan order, then the parent. Each write
// is preceded by a version stamp. Children committed before a failure stay
// in place.
func (s *Service) commitAll(ctx context.Context, m *repositories.Model, parent *models.Document, steps []*cascadeStep) error {
	var committed []string
	for _, step := range steps {
		for _, it := range step.items {
			if it.doc == nil {
				continue
			}
			s.recorder.Stamp(it.doc)
			if err := step.target.Store.Save(ctx, it.doc); err != nil {
				s.logOrphans(m, parent, committed, err)
				return wrapStore("save", step.target.Name, err)
			}
			committed = append(committed, step.target.Name+"/"+it.doc.ID)
		}
	}

	s.recorder.Stamp(parent)
	if err := m.Store.Save(ctx, parent); err != nil {
		s.logOrphans(m, parent, committed, err)
		return wrapStore("save", m.Name, err)
	}
	return nil
}

func (s *Service) logOrphans(m *repositories.Model, parent *models.Document, committed []string, err error) {
	if len(committed) == 0 {
		return
	}
	s.logger.Error("cascade save failed after children were committed",
		"model", m.Name,
		"parent_id", parent.ID,
		"committed", committed,
		"error", err,
	)
}

// loadOrCreate fetches the document named by set's id or creates a new one
// with schema defaults and a fresh id. An id that matches nothing is not
// reused.
func (s *Service) loadOrCreate(ctx context.Context, m *repositories.Model, set models.MutationSet, actor *models.Actor) (*models.Document, error) {
	if id, _ := set[models.KeyID].(string); id != "" {
		doc, err := m.Store.FindOne(ctx, idFilter(id), models.FindOptions{})
		if err == nil {
			doc.UpdatedBy = actor.IDRef()
			return doc, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, wrapStore("load", m.Name, err)
		}
	}

	doc := models.NewDocument()
	doc.ID = uuid.NewString()
	doc.CreatedBy = actor.IDRef()
	for _, f := range m.Schema.Fields {
		if f.Default != nil {
			doc.Set(f.Path, models.CloneValue(f.Default))
		}
	}
	return doc, nil
}

// applySet writes set onto doc. Reference fields listed in cascaded are left
// for link; other references are stored as ids.
func applySet(doc *models.Document, schema *models.Schema, set models.MutationSet, cascaded map[string]bool) {
	for k, v := range set {
		if k == models.KeyID || k == models.KeyRevision || k == models.KeyHistory {
			continue
		}
		field, ok := schema.Field(k)
		if ok && field.Type == models.TypeObjectID && field.Ref != "" {
			if cascaded[k] {
				continue
			}
			if v = referenceValue(v, field, false); v == nil {
				continue
			}
		}
		doc.Set(k, models.CloneValue(v))
	}
}
