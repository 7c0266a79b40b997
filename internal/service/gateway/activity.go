package gateway

import (
	"context"
	"time"

	"modelgate/internal/domain/models"
	"modelgate/internal/domain/repositories"
	"modelgate/internal/domain/services"
)

// ActivityField is the user field stamped by StoreActivity.
const ActivityField = "lastActivity"

// StoreActivity stamps ActivityField on the actor's document of a user model.
type StoreActivity struct {
	registry repositories.ModelRegistry
	model    string
	now      func() time.Time
}

var _ services.ActivityRecorder = (*StoreActivity)(nil)

// NewStoreActivity records activity on model, usually "user".
func NewStoreActivity(registry repositories.ModelRegistry, model string) *StoreActivity {
	return &StoreActivity{registry: registry, model: model, now: time.Now}
}

func (a *StoreActivity) Touch(ctx context.Context, actorID string) error {
	m, err := a.registry.Resolve(a.model)
	if err != nil {
		return err
	}
	_, err = m.Store.UpdateMany(ctx, models.Filter{models.KeyID: actorID}, models.MutationSet{
		ActivityField: a.now().UTC(),
	})
	return err
}
