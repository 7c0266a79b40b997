package auth

import (
	"context"
	"slices"

	"modelgate/internal/domain/models"
	"modelgate/internal/domain/services"
)

// SchemaSource looks up model schemas. *catalog.Catalog implements it.
type SchemaSource interface {
	Schema(name string) (*models.Schema, bool)
}

// PermissionAuthorizer implements services.Authorizer with permission
// strings and the access lists declared per model.
//
// An action is allowed when one of these holds, in order:
//   - the model lists it as public
//   - the actor holds "<Model>" or "<Model>.<action>" (admins hold all)
//   - the model lists it as owner action and the actor owns the subject:
//     the candidate document was created by the actor, or the filter
//     restricts to the actor's documents. Without document or filter there
//     is no subject to own and the action is denied.
type PermissionAuthorizer struct {
	schemas SchemaSource
}

var _ services.Authorizer = (*PermissionAuthorizer)(nil)

// NewPermissionAuthorizer creates a new permission-based authorizer
func NewPermissionAuthorizer(schemas SchemaSource) *PermissionAuthorizer {
	return &PermissionAuthorizer{schemas: schemas}
}

func (a *PermissionAuthorizer) Check(ctx context.Context, actor *models.Actor, model, action string, doc *models.Document, filter models.Filter) bool {
	schema, ok := a.schemas.Schema(model)
	if !ok {
		return false
	}
	if slices.Contains(schema.Access.Public, action) {
		return true
	}
	if actor.HasPermission(model, model+"."+action) {
		return true
	}
	if actor == nil || actor.ID == "" || !slices.Contains(schema.Access.Owner, action) {
		return false
	}
	return owns(actor, doc, filter)
}

func owns(actor *models.Actor, doc *models.Document, filter models.Filter) bool {
	if doc != nil {
		return doc.CreatedBy != nil && *doc.CreatedBy == actor.ID
	}
	id, _ := filter[models.KeyCreatedBy].(string)
	return id != "" && id == actor.ID
}
