package services

import (
	"context"

	"modelgate/internal/domain/models"
)

// Authorizer decides whether an actor may run an action on a model.
//
// doc is the candidate document when the decision depends on document state
// (save re-check), filter is the request filter when it does (remove, own
// data). Decisions are made fresh per call and never cached.
type Authorizer interface {
	Check(ctx context.Context, actor *models.Actor, model, action string, doc *models.Document, filter models.Filter) bool
}

// ProjectionPolicy gates and applies named projections.
type ProjectionPolicy interface {
	// Allowed reports whether the projection exists and the actor may use it.
	Allowed(actor *models.Actor, model, projection string) bool

	// Apply shapes a wire map to the projection's fields.
	Apply(model, projection string, doc map[string]any) map[string]any
}

// ActivityRecorder stamps the last activity of an actor. Failures are never
// fatal to the request that triggered them.
type ActivityRecorder interface {
	Touch(ctx context.Context, actorID string) error
}
