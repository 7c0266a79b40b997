// Package gateway implements the action dispatcher: authorization gates,
// payload sanitizing, cascading reference saves, version history and the
// read paths served over every registered model.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"modelgate/internal/config"
	"modelgate/internal/domain"
	"modelgate/internal/domain/models"
	"modelgate/internal/domain/repositories"
	"modelgate/internal/domain/services"
)

// Service implements services.Gateway.
type Service struct {
	registry    repositories.ModelRegistry
	authorizer  services.Authorizer
	projections services.ProjectionPolicy
	activity    services.ActivityRecorder
	sanitizer   *Sanitizer
	recorder    *VersionRecorder
	logger      *slog.Logger
	fanout      int
}

var _ services.Gateway = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithActivity sets the recorder stamped by mutating actions.
func WithActivity(a services.ActivityRecorder) Option {
	return func(s *Service) { s.activity = a }
}

// WithClock replaces time.Now for version timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.recorder = NewVersionRecorder(clock) }
}

// WithFanout bounds per-document concurrency of remove and versions.
func WithFanout(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.fanout = n
		}
	}
}

// NewService creates the gateway.
func NewService(
	registry repositories.ModelRegistry,
	authorizer services.Authorizer,
	projections services.ProjectionPolicy,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		registry:    registry,
		authorizer:  authorizer,
		projections: projections,
		sanitizer:   NewSanitizer(logger),
		recorder:    NewVersionRecorder(nil),
		logger:      logger,
		fanout:      config.DefaultFanout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch resolves the model and runs one action.
func (s *Service) Dispatch(ctx context.Context, req *services.Request) (*services.Result, error) {
	m, err := s.registry.Resolve(req.Model)
	if err != nil {
		return nil, err
	}

	switch req.Action {
	case services.ActionFind:
		return s.find(ctx, m, req)
	case services.ActionFindOne:
		return s.findOne(ctx, m, req)
	case services.ActionCount:
		return s.count(ctx, m, req)
	case services.ActionSave:
		return s.save(ctx, m, req)
	case services.ActionUpdate:
		return s.update(ctx, m, req)
	case services.ActionRemove:
		return s.remove(ctx, m, req)
	case services.ActionVersions:
		return s.versions(ctx, m, req)
	case services.ActionPagination:
		return s.pagination(ctx, m, req)
	case services.ActionSchema:
		return s.schema(ctx, m, req)
	case services.ActionDropdownOptions:
		return s.dropdownOptions(ctx, m, req)
	case services.ActionUnpublished:
		return s.unpublished(ctx, m, req)
	}
	return nil, &domain.UnsupportedActionError{Action: req.Action}
}

// authorize runs the coarse gate for action.
func (s *Service) authorize(ctx context.Context, req *services.Request, m *repositories.Model, action string, doc *models.Document) error {
	if s.authorizer.Check(ctx, req.Actor, m.Name, action, doc, req.Query) {
		return nil
	}
	s.logger.Debug("action denied",
		"model", m.Name,
		"action", action,
		"actor", actorID(req.Actor),
	)
	return domain.Denied("")
}

// touch stamps the actor's activity; failures never reach the caller.
func (s *Service) touch(ctx context.Context, actor *models.Actor) {
	if s.activity == nil || actor == nil || actor.ID == "" {
		return
	}
	if err := s.activity.Touch(context.WithoutCancel(ctx), actor.ID); err != nil {
		s.logger.Debug("user activity update failed", "actor", actor.ID, "error", err)
		return
	}
	s.logger.Debug("user activity updated", "actor", actor.ID)
}

// ownSubject stands in for the document of an owner action whose real
// subject is decided by a later gate: the save re-check on the loaded
// document, or the projection gate of find.
func ownSubject(actor *models.Actor) *models.Document {
	if actor == nil {
		return nil
	}
	return &models.Document{CreatedBy: actor.IDRef()}
}

func actorID(a *models.Actor) string {
	if a == nil {
		return ""
	}
	return a.ID
}

func query(req *services.Request) models.Filter {
	if req.Query == nil {
		return models.Filter{}
	}
	return req.Query
}

func limitOr(req *services.Request, def int) int {
	if req.Limit == nil || *req.Limit <= 0 {
		return def
	}
	return *req.Limit
}

func idFilter(id string) models.Filter {
	return models.Filter{models.KeyID: id}
}

func wrapStore(op, model string, err error) error {
	return fmt.Errorf("%s %s: %w", op, model, err)
}
