package auth

import (
	"modelgate/internal/domain/models"
	"modelgate/internal/domain/services"
)

// ProjectionPolicy serves the named projections declared in the catalog.
type ProjectionPolicy struct {
	schemas SchemaSource
}

var _ services.ProjectionPolicy = (*ProjectionPolicy)(nil)

// NewProjectionPolicy creates a projection policy over schemas.
func NewProjectionPolicy(schemas SchemaSource) *ProjectionPolicy {
	return &ProjectionPolicy{schemas: schemas}
}

// Allowed reports whether the projection exists and declares no permission
// or one the actor holds.
func (p *ProjectionPolicy) Allowed(actor *models.Actor, model, projection string) bool {
	proj, ok := p.lookup(model, projection)
	if !ok {
		return false
	}
	return proj.Permission == "" || actor.HasPermission(proj.Permission)
}

// Apply keeps the projection's fields and the id. Unknown projections yield
// the id only.
func (p *ProjectionPolicy) Apply(model, projection string, doc map[string]any) map[string]any {
	out := make(map[string]any)
	if id, ok := doc[models.KeyID]; ok {
		out[models.KeyID] = id
	}
	proj, ok := p.lookup(model, projection)
	if !ok {
		return out
	}
	for _, path := range proj.Fields {
		if v, ok := models.ValueAt(doc, path); ok {
			out[path] = v
		}
	}
	return out
}

func (p *ProjectionPolicy) lookup(model, projection string) (models.Projection, bool) {
	schema, ok := p.schemas.Schema(model)
	if !ok {
		return models.Projection{}, false
	}
	proj, ok := schema.Projections[projection]
	return proj, ok
}
