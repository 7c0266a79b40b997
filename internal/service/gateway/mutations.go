package gateway

import (
	"context"

	"golang.org/x/sync/errgroup"

	"modelgate/internal/domain"
	"modelgate/internal/domain/models"
	"modelgate/internal/domain/repositories"
	"modelgate/internal/domain/services"
)

const msgEmptyQuery = "Empty query is not allowed"

// save creates or updates one document, cascading into the reference paths
// named by saveReferences. Nothing is written unless every child and the
// parent validate.
func (s *Service) save(ctx context.Context, m *repositories.Model, req *services.Request) (*services.Result, error) {
	if err := s.authorize(ctx, req, m, req.Action, ownSubject(req.Actor)); err != nil {
		return nil, err
	}

	set := s.sanitizer.Sanitize(req.Data, m.Schema, req.Actor, true)
	if len(set) == 0 {
		return nil, domain.ErrNoData
	}
	paths, err := cascadePaths(req.SaveReferences)
	if err != nil {
		return nil, err
	}
	cascaded := make(map[string]bool, len(paths))
	for _, p := range paths {
		cascaded[p] = true
	}

	doc, err := s.loadOrCreate(ctx, m, set, req.Actor)
	if err != nil {
		return nil, err
	}
	applySet(doc, m.Schema, set, cascaded)

	// Document-state policies (ownership) decide on the candidate
	if err := s.authorize(ctx, req, m, req.Action, doc); err != nil {
		return nil, err
	}
	s.touch(ctx, req.Actor)

	steps, err := s.plan(m.Schema, set, paths)
	if err != nil {
		return nil, err
	}
	if err := s.prepare(ctx, steps, req.Actor); err != nil {
		return nil, err
	}
	link(doc, steps)

	if err := validateAll(m.Schema, doc, steps); err != nil {
		return nil, err
	}
	if err := s.commitAll(ctx, m, doc, steps); err != nil {
		return nil, err
	}

	saved, err := m.Store.FindOne(ctx, idFilter(doc.ID), models.FindOptions{})
	if err != nil {
		return nil, wrapStore("reload", m.Name, err)
	}
	out, err := s.render(ctx, m, req, saved)
	if err != nil {
		return nil, err
	}
	return &services.Result{Body: out}, nil
}

// update applies a set-only change to every matching document. It neither
// versions nor cascades.
func (s *Service) update(ctx context.Context, m *repositories.Model, req *services.Request) (*services.Result, error) {
	if err := s.authorize(ctx, req, m, services.ActionSave, nil); err != nil {
		return nil, err
	}
	s.touch(ctx, req.Actor)

	set := s.sanitizer.Sanitize(req.Data, m.Schema, req.Actor, false)
	delete(set, models.KeyID)
	if len(set) == 0 {
		return nil, domain.ErrNoData
	}

	n, err := m.Store.UpdateMany(ctx, query(req), set)
	if err != nil {
		return nil, wrapStore("update", m.Name, err)
	}
	s.logger.Debug("documents updated", "model", m.Name, "matched", n)
	return &services.Result{Body: map[string]any{}}, nil
}

// remove deletes the matching documents one by one.
func (s *Service) remove(ctx context.Context, m *repositories.Model, req *services.Request) (*services.Result, error) {
	if err := s.authorize(ctx, req, m, req.Action, nil); err != nil {
		return nil, err
	}
	if query(req).IsEmpty() {
		return nil, domain.Denied(msgEmptyQuery)
	}
	s.touch(ctx, req.Actor)

	docs, err := m.Store.Find(ctx, query(req), models.FindOptions{})
	if err != nil {
		return nil, wrapStore("remove", m.Name, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanout)
	for _, d := range docs {
		g.Go(func() error {
			if err := m.Store.Remove(gctx, d); err != nil {
				return wrapStore("remove", m.Name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.logger.Debug("documents removed", "model", m.Name, "count", len(docs))
	return &services.Result{Empty: true}, nil
}
