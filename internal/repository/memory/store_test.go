package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelgate/internal/domain"
	"modelgate/internal/domain/models"
	"modelgate/internal/domain/repositories"
)

func newDoc(id string, fields map[string]any) *models.Document {
	d := models.NewDocument()
	d.ID = id
	for k, v := range fields {
		d.Fields[k] = v
	}
	return d
}

func seed(t *testing.T, s *Store, docs ...*models.Document) {
	t.Helper()
	for _, d := range docs {
		require.NoError(t, s.Save(context.Background(), d))
	}
}

func TestStore_FindOrderAndPaging(t *testing.T) {
	ctx := context.Background()
	s := NewStore("Article")
	seed(t, s,
		newDoc("a", map[string]any{"n": float64(3)}),
		newDoc("b", map[string]any{"n": float64(1)}),
		newDoc("c", map[string]any{"n": float64(2)}),
	)

	docs, err := s.Find(ctx, models.Filter{}, models.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(docs), "insertion order without sort")

	docs, err = s.Find(ctx, models.Filter{}, models.FindOptions{Sort: models.Sort{{Path: "n"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, ids(docs))

	docs, err = s.Find(ctx, models.Filter{}, models.FindOptions{Sort: models.Sort{{Path: "n", Desc: true}}, Skip: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(docs))

	docs, err = s.Find(ctx, models.Filter{}, models.FindOptions{Skip: 10})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestStore_CopiesOnReadAndWrite(t *testing.T) {
	ctx := context.Background()
	s := NewStore("Article")
	d := newDoc("a", map[string]any{"title": "before"})
	seed(t, s, d)

	d.Fields["title"] = "mutated after save"
	got, err := s.FindOne(ctx, models.Filter{"_id": "a"}, models.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, "before", got.Fields["title"])

	got.Fields["title"] = "mutated after read"
	again, err := s.FindOne(ctx, models.Filter{"_id": "a"}, models.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, "before", again.Fields["title"])
}

func TestStore_FindOneNotFound(t *testing.T) {
	s := NewStore("Article")
	_, err := s.FindOne(context.Background(), models.Filter{"_id": "nope"}, models.FindOptions{})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestStore_SaveRequiresID(t *testing.T) {
	s := NewStore("Article")
	err := s.Save(context.Background(), models.NewDocument())
	assert.Error(t, err)
	assert.Equal(t, int64(0), s.Writes())
}

func TestStore_UpdateManyAndRemove(t *testing.T) {
	ctx := context.Background()
	s := NewStore("Article")
	seed(t, s,
		newDoc("a", map[string]any{"status": "draft"}),
		newDoc("b", map[string]any{"status": "draft"}),
		newDoc("c", map[string]any{"status": "published"}),
	)

	n, err := s.UpdateMany(ctx, models.Filter{"status": "draft"}, models.MutationSet{"status": "review"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err := s.Count(ctx, models.Filter{"status": "review"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, s.Remove(ctx, newDoc("a", nil)))
	require.NoError(t, s.Remove(ctx, newDoc("missing", nil)))
	assert.Equal(t, 2, s.Len())
}

func TestStore_GroupDistinct(t *testing.T) {
	ctx := context.Background()
	s := NewStore("Article")
	seed(t, s,
		newDoc("1", map[string]any{"category": "Red"}),
		newDoc("2", map[string]any{"category": "blue"}),
		newDoc("3", map[string]any{"category": "red"}),
		newDoc("4", map[string]any{"category": "Blue"}),
		newDoc("5", map[string]any{}),
	)

	tests := []struct {
		name string
		spec repositories.GroupSpec
		want []any
	}{
		{
			name: "ascending keeps first value per key",
			spec: repositories.GroupSpec{Field: "category", Filter: models.Filter{"category": map[string]any{"$exists": true}}},
			want: []any{"blue", "Red"},
		},
		{
			name: "descending",
			spec: repositories.GroupSpec{Field: "category", Filter: models.Filter{"category": map[string]any{"$exists": true}}, Descending: true},
			want: []any{"Red", "blue"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups, err := s.GroupDistinct(ctx, tt.spec)
			require.NoError(t, err)
			values := make([]any, len(groups))
			for i, g := range groups {
				values[i] = g.Value
			}
			assert.Equal(t, tt.want, values)
		})
	}
}

func TestStore_StreamStopsOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore("Article")
	seed(t, s, newDoc("a", nil), newDoc("b", nil))

	stop := errors.New("stop")
	var seen []string
	err := s.Stream(ctx, models.Filter{}, models.FindOptions{}, func(d *models.Document) error {
		seen = append(seen, d.ID)
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []string{"a"}, seen)
}

func TestFactory_SameStorePerModel(t *testing.T) {
	f := NewFactory()
	schema := models.NewSchema("Article", nil)
	a, err := f.Store(context.Background(), schema)
	require.NoError(t, err)
	assert.Same(t, f.Named("Article"), a)
}

func ids(docs []*models.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}
