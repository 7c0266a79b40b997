package gateway

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"modelgate/internal/config"
	"modelgate/internal/domain"
	"modelgate/internal/domain/models"
	"modelgate/internal/domain/repositories"
	"modelgate/internal/domain/services"
)

const (
	msgNoProjection     = "No projection given or no permission to use this projection. Or the projection is missing in the config..."
	msgProjectionDenied = "No projection given or no permission to use this projection"
)

// find lets owner actions through on any filter; the projection gate then
// requires own data, a full permission or a permitted projection.
func (s *Service) find(ctx context.Context, m *repositories.Model, req *services.Request) (*services.Result, error) {
	if err := s.authorize(ctx, req, m, req.Action, ownSubject(req.Actor)); err != nil {
		return nil, err
	}
	if err := s.checkProjection(m, req, true); err != nil {
		return nil, err
	}

	limit := limitOr(req, config.DefaultFindLimit)
	page := max(req.Page, 0)
	docs, err := m.Store.Find(ctx, query(req), models.FindOptions{
		Limit: limit,
		Skip:  limit * page,
		Sort:  req.Sort,
	})
	if err != nil {
		return nil, wrapStore("find", m.Name, err)
	}

	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		r, err := s.render(ctx, m, req, d)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return &services.Result{Body: out}, nil
}

func (s *Service) findOne(ctx context.Context, m *repositories.Model, req *services.Request) (*services.Result, error) {
	if err := s.authorize(ctx, req, m, req.Action, nil); err != nil {
		return nil, err
	}
	if err := s.checkProjection(m, req, false); err != nil {
		return nil, err
	}

	doc, err := m.Store.FindOne(ctx, query(req), models.FindOptions{Sort: req.Sort})
	if errors.Is(err, domain.ErrNotFound) {
		return &services.Result{Body: nil}, nil
	}
	if err != nil {
		return nil, wrapStore("findOne", m.Name, err)
	}
	r, err := s.render(ctx, m, req, doc)
	if err != nil {
		return nil, err
	}
	return &services.Result{Body: r}, nil
}

func (s *Service) count(ctx context.Context, m *repositories.Model, req *services.Request) (*services.Result, error) {
	if err := s.authorize(ctx, req, m, req.Action, nil); err != nil {
		return nil, err
	}
	n, err := m.Store.Count(ctx, query(req))
	if err != nil {
		return nil, wrapStore("count", m.Name, err)
	}
	return &services.Result{Body: n}, nil
}

func (s *Service) pagination(ctx context.Context, m *repositories.Model, req *services.Request) (*services.Result, error) {
	if err := s.authorize(ctx, req, m, services.ActionCount, nil); err != nil {
		return nil, err
	}
	n, err := m.Store.Count(ctx, query(req))
	if err != nil {
		return nil, wrapStore("count", m.Name, err)
	}
	inView := req.PagesInView
	if inView <= 0 {
		inView = config.DefaultPagesInView
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = limitOr(req, config.DefaultPaginationLimit)
	}
	return &services.Result{Body: Paginate(n, pageSize, req.Page, inView)}, nil
}

// versions returns the history of the first matching document. With a
// selection the snapshots are returned raw, otherwise each is rehydrated and
// populated.
func (s *Service) versions(ctx context.Context, m *repositories.Model, req *services.Request) (*services.Result, error) {
	if err := s.authorize(ctx, req, m, req.Action, nil); err != nil {
		return nil, err
	}

	doc, err := m.Store.FindOne(ctx, query(req), models.FindOptions{Sort: req.Sort})
	if errors.Is(err, domain.ErrNotFound) {
		return &services.Result{Body: []map[string]any{}}, nil
	}
	if err != nil {
		return nil, wrapStore("versions", m.Name, err)
	}

	out := make([]map[string]any, len(doc.History))
	if !req.Select.IsZero() && len(req.Populate) == 0 {
		for i, snap := range doc.History {
			out[i] = models.CloneMap(snap)
		}
		return &services.Result{Body: out}, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanout)
	for i, snap := range doc.History {
		g.Go(func() error {
			w := models.DocumentFromMap(models.CloneMap(snap)).Map()
			if err := s.populate(gctx, m.Schema, w, req.Populate); err != nil {
				return err
			}
			out[i] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &services.Result{Body: out}, nil
}

func (s *Service) schema(ctx context.Context, m *repositories.Model, req *services.Request) (*services.Result, error) {
	if err := s.authorize(ctx, req, m, services.ActionSchema, nil); err != nil {
		return nil, err
	}
	return &services.Result{Body: DescribeSchema(m.Schema)}, nil
}

func (s *Service) dropdownOptions(ctx context.Context, m *repositories.Model, req *services.Request) (*services.Result, error) {
	if err := s.authorize(ctx, req, m, services.ActionFind, nil); err != nil {
		return nil, err
	}
	if req.Field == "" {
		return nil, domain.BadRequest("field is required")
	}

	filter := query(req).Clone()
	filter[req.Field] = map[string]any{"$exists": true}
	groups, err := m.Store.GroupDistinct(ctx, repositories.GroupSpec{
		Field:      req.Field,
		Filter:     filter,
		Descending: req.SortDir < 0,
	})
	if err != nil {
		return nil, wrapStore("dropdownoptions", m.Name, err)
	}

	purge := req.PurgeEmpty == nil || *req.PurgeEmpty
	out := make([]any, 0, len(groups))
	for _, g := range groups {
		if purge && !models.Truthy(g.Value) {
			continue
		}
		out = append(out, g.Value)
	}
	return &services.Result{Body: out}, nil
}

// unpublished returns the requested ids that no longer exist.
func (s *Service) unpublished(ctx context.Context, m *repositories.Model, req *services.Request) (*services.Result, error) {
	list, ok := req.IDs.([]any)
	if !ok {
		return &services.Result{Body: []string{}}, nil
	}
	ids := make([]any, 0, len(list))
	for _, v := range list {
		if id := idOf(v); id != "" {
			ids = append(ids, id)
		}
	}

	existing := make(map[string]bool, len(ids))
	if len(ids) > 0 {
		docs, err := m.Store.Find(ctx, models.Filter{models.KeyID: map[string]any{"$in": ids}}, models.FindOptions{})
		if err != nil {
			return nil, wrapStore("unpublished", m.Name, err)
		}
		for _, d := range docs {
			existing[d.ID] = true
		}
	}

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !existing[id.(string)] {
			out = append(out, id.(string))
		}
	}
	return &services.Result{Body: out}, nil
}

// checkProjection gates reads by named projection. Without one the actor
// needs full model or action permission, or must filter for its own data
// when required is set.
func (s *Service) checkProjection(m *repositories.Model, req *services.Request, required bool) error {
	if req.Projection == "" {
		if !required {
			return nil
		}
		if req.Actor.HasPermission(m.Name, m.Name+"."+req.Action) || ownData(req) {
			return nil
		}
		return domain.Denied(msgNoProjection)
	}
	if !s.projections.Allowed(req.Actor, m.Name, req.Projection) {
		return domain.Denied(msgProjectionDenied)
	}
	return nil
}

func ownData(req *services.Request) bool {
	if req.Actor == nil || req.Actor.ID == "" || req.Query == nil {
		return false
	}
	return idOf(req.Query[models.KeyCreatedBy]) == req.Actor.ID
}

// render produces the response form of doc: populated, projected, selected.
func (s *Service) render(ctx context.Context, m *repositories.Model, req *services.Request, doc *models.Document) (map[string]any, error) {
	out := doc.Map()
	if err := s.populate(ctx, m.Schema, out, req.Populate); err != nil {
		return nil, err
	}
	if req.Projection != "" {
		out = s.projections.Apply(m.Name, req.Projection, out)
	}
	return req.Select.Apply(out), nil
}
