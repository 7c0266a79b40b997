package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelgate/internal/domain/models"
	"modelgate/internal/domain/services"
)

// putAt stores a document last updated at ts.
func (e *testEnv) putAt(model, id string, ts time.Time, fields map[string]any) {
	e.t.Helper()
	d := models.NewDocument()
	d.ID = id
	for k, v := range fields {
		d.Fields[k] = v
	}
	NewVersionRecorder(func() time.Time { return ts }).Stamp(d)
	require.NoError(e.t, e.store(model).Save(context.Background(), d))
}

func changesEnv(t *testing.T) *testEnv {
	env := newTestEnv(t)
	day := func(d int) time.Time { return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC) }
	env.putAt("Article", "c3", day(3), map[string]any{"title": "third", "category": "x"})
	env.putAt("Article", "c1", day(1), map[string]any{"title": "first", "category": "x"})
	env.putAt("Article", "c2", day(2), map[string]any{"title": "second", "category": "x"})
	return env
}

func TestChanges_Window(t *testing.T) {
	from := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		from, to *time.Time
		want     []string
	}{
		{name: "everything", want: []string{"first", "second", "third"}},
		{name: "from", from: &from, want: []string{"second", "third"}},
		{name: "from and to inclusive", from: &from, to: &to, want: []string{"second", "third"}},
		{name: "to", to: &from, want: []string{"first", "second"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := changesEnv(t)
			req := &services.ChangesRequest{Model: "Article", Projection: "teaser", Actor: writer, From: tt.from, To: tt.to}

			n, err := env.svc.CountChanges(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.want)), n)

			page, err := env.svc.ListChanges(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(t, page))

			var streamed []map[string]any
			err = env.svc.StreamChanges(context.Background(), req, func(doc map[string]any) error {
				streamed = append(streamed, doc)
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(t, streamed))
		})
	}
}

func TestChanges_ProjectionApplied(t *testing.T) {
	env := changesEnv(t)

	docs, err := env.svc.ListChanges(context.Background(), &services.ChangesRequest{
		Model: "Article", Projection: "teaser", Actor: writer, Limit: 1, Page: 1,
	})

	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"_id": "c2", "title": "second"}}, docs)
}

func TestChanges_Denied(t *testing.T) {
	env := changesEnv(t)
	ctx := context.Background()
	req := &services.ChangesRequest{Model: "Article", Projection: "editorial", Actor: writer}

	_, err := env.svc.CountChanges(ctx, req)
	requireDenied(t, err, msgProjectionDenied)

	_, err = env.svc.ListChanges(ctx, req)
	requireDenied(t, err, msgProjectionDenied)

	called := false
	err = env.svc.StreamChanges(ctx, req, func(map[string]any) error {
		called = true
		return nil
	})
	requireDenied(t, err, msgProjectionDenied)
	assert.False(t, called)
}

func TestChanges_StreamStopsOnEmitError(t *testing.T) {
	env := changesEnv(t)
	stop := errors.New("client gone")

	var seen int
	err := env.svc.StreamChanges(context.Background(),
		&services.ChangesRequest{Model: "Article", Projection: "teaser", Actor: writer},
		func(map[string]any) error {
			seen++
			return stop
		})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, seen)
}
