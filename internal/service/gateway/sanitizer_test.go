package gateway

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelgate/internal/catalog"
	"modelgate/internal/domain/models"
)

func articleSchema(t *testing.T) *models.Schema {
	t.Helper()
	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)
	schema, ok := cat.Schema("Article")
	require.True(t, ok)
	return schema
}

func TestSanitize_PermissionRequirements(t *testing.T) {
	schema := articleSchema(t)
	s := NewSanitizer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	raw := map[string]any{
		"title":      "T",
		"featured":   "x",
		"editorNote": "internal",
	}

	tests := []struct {
		name    string
		actor   *models.Actor
		present []string
		absent  []string
	}{
		{
			name:    "no permissions drops restricted fields",
			actor:   writer,
			present: []string{"title"},
			absent:  []string{"featured", "editorNote"},
		},
		{
			name:    "anonymous",
			actor:   nil,
			present: []string{"title"},
			absent:  []string{"featured", "editorNote"},
		},
		{
			name:    "model permission grants general save only",
			actor:   &models.Actor{ID: "e", Permissions: []string{"Article"}},
			present: []string{"title", "featured"},
			absent:  []string{"editorNote"},
		},
		{
			name:    "save permission grants general save only",
			actor:   &models.Actor{ID: "e", Permissions: []string{"Article.save"}},
			present: []string{"title", "featured"},
			absent:  []string{"editorNote"},
		},
		{
			name:    "specific permission alone",
			actor:   &models.Actor{ID: "e", Permissions: []string{"Article.editorial"}},
			present: []string{"title", "editorNote"},
			absent:  []string{"featured"},
		},
		{
			name:    "admin",
			actor:   admin,
			present: []string{"title", "featured", "editorNote"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := s.Sanitize(raw, schema, tt.actor, false)
			for _, p := range tt.present {
				assert.Contains(t, set, p)
			}
			for _, p := range tt.absent {
				assert.NotContains(t, set, p)
			}
		})
	}
}

func TestSanitize_ChangeTracking(t *testing.T) {
	schema := articleSchema(t)
	s := NewSanitizer(slog.New(slog.NewTextHandler(io.Discard, nil)))

	set := s.Sanitize(map[string]any{
		"title":       "T",
		"status":      "draft",
		"views":       "0",
		"layout":      nil,
		"publishedAt": "2024-02-03T04:05:06Z",
		"undeclared":  "x",
		"_createdBy":  "someone-else",
		"_versions":   []any{"forged"},
		"__v":         float64(4),
		"_version":    float64(9),
		"_id":         "a1",
	}, schema, editor, false)

	assert.Equal(t, models.MutationSet{
		"title":       "T",
		"layout":      nil,
		"publishedAt": time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC),
		"_id":         "a1",
	}, set, "defaults, undeclared and reserved keys are dropped")
}

func TestSanitize_Coercion(t *testing.T) {
	schema := articleSchema(t)
	s := NewSanitizer(slog.New(slog.NewTextHandler(io.Discard, nil)))

	set := s.Sanitize(map[string]any{"views": "12", "title": float64(7), "status": "published"}, schema, editor, false)

	assert.Equal(t, float64(12), set["views"])
	assert.Equal(t, "7", set["title"])
	assert.Equal(t, "published", set["status"])
}

func TestSanitize_References(t *testing.T) {
	schema := articleSchema(t)
	s := NewSanitizer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	raw := map[string]any{
		"author": map[string]any{"_id": "au1", "name": "Ada"},
		"tags":   []any{map[string]any{"_id": "t1"}, nil, "t2", map[string]any{"label": "new"}},
	}

	kept := s.Sanitize(raw, schema, editor, true)
	assert.Equal(t, map[string]any{"_id": "au1", "name": "Ada"}, kept["author"])
	assert.Equal(t, []any{map[string]any{"_id": "t1"}, "t2", map[string]any{"label": "new"}}, kept["tags"])

	reduced := s.Sanitize(raw, schema, editor, false)
	assert.Equal(t, "au1", reduced["author"])
	assert.Equal(t, []any{"t1", "t2"}, reduced["tags"], "objects without id and nulls are dropped")

	kept["author"].(map[string]any)["name"] = "changed"
	assert.Equal(t, "Ada", raw["author"].(map[string]any)["name"], "payload is not aliased")
}

func TestSanitize_Empty(t *testing.T) {
	schema := articleSchema(t)
	s := NewSanitizer(slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.Nil(t, s.Sanitize(nil, schema, editor, false))
	assert.Empty(t, s.Sanitize(map[string]any{"undeclared": 1}, schema, editor, false))
}
