// Package redis records actor activity in Redis.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"modelgate/internal/domain/services"
)

const (
	activityKeyPrefix = "activity:"
	activityTTL       = 30 * 24 * time.Hour
)

// ActivityRecorder keeps the last activity of each actor as an RFC3339
// timestamp under "activity:<actor id>".
type ActivityRecorder struct {
	client *redis.Client
	now    func() time.Time
}

var _ services.ActivityRecorder = (*ActivityRecorder)(nil)

// Open parses url and pings the server.
func Open(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewActivityRecorder creates a recorder on client.
func NewActivityRecorder(client *redis.Client) *ActivityRecorder {
	return &ActivityRecorder{client: client, now: time.Now}
}

func (r *ActivityRecorder) Touch(ctx context.Context, actorID string) error {
	stamp := r.now().UTC().Format(time.RFC3339)
	if err := r.client.Set(ctx, activityKeyPrefix+actorID, stamp, activityTTL).Err(); err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}
