package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"modelgate/internal/domain/models"
)

type schemaMap map[string]*models.Schema

func (m schemaMap) Schema(name string) (*models.Schema, bool) {
	s, ok := m[name]
	return s, ok
}

func testSchemas() schemaMap {
	article := models.NewSchema("Article", []models.Field{{Path: "title", Type: models.TypeString}})
	article.Access = models.Access{Public: []string{"schema"}, Owner: []string{"find", "findOne", "save", "remove", "versions"}}
	article.Projections["teaser"] = models.Projection{Name: "teaser", Fields: []string{"title"}}
	article.Projections["editorial"] = models.Projection{Name: "editorial", Permission: "Article.editorial", Fields: []string{"title", "note"}}
	return schemaMap{"Article": article}
}

func ownedBy(id string) *models.Document {
	d := models.NewDocument()
	d.ID = "doc"
	d.CreatedBy = &id
	return d
}

func TestPermissionAuthorizer_Check(t *testing.T) {
	writer := &models.Actor{ID: "writer"}
	editor := &models.Actor{ID: "editor", Permissions: []string{"Article"}}
	finder := &models.Actor{ID: "finder", Permissions: []string{"Article.find"}}
	admin := &models.Actor{ID: "root", Admin: true}

	tests := []struct {
		name   string
		actor  *models.Actor
		model  string
		action string
		doc    *models.Document
		filter models.Filter
		want   bool
	}{
		{name: "public action for anonymous", actor: nil, model: "Article", action: "schema", want: true},
		{name: "anonymous denied", actor: nil, model: "Article", action: "find", want: false},
		{name: "model permission", actor: editor, model: "Article", action: "update", want: true},
		{name: "action permission", actor: finder, model: "Article", action: "find", want: true},
		{name: "action permission does not leak", actor: finder, model: "Article", action: "remove", filter: models.Filter{"_id": "x"}, want: false},
		{name: "admin", actor: admin, model: "Article", action: "update", want: true},
		{name: "unknown model", actor: admin, model: "Nope", action: "find", want: false},
		{name: "owner without subject", actor: writer, model: "Article", action: "save", want: false},
		{name: "owner with empty filter", actor: writer, model: "Article", action: "save", filter: models.Filter{}, want: false},
		{name: "findOne without filter", actor: writer, model: "Article", action: "findOne", want: false},
		{name: "versions without filter", actor: writer, model: "Article", action: "versions", want: false},
		{name: "own versions", actor: writer, model: "Article", action: "versions", filter: models.Filter{"_createdBy": "writer"}, want: true},
		{name: "owner of document", actor: writer, model: "Article", action: "save", doc: ownedBy("writer"), want: true},
		{name: "not owner of document", actor: writer, model: "Article", action: "save", doc: ownedBy("someone"), want: false},
		{name: "own data filter", actor: writer, model: "Article", action: "find", filter: models.Filter{"_createdBy": "writer"}, want: true},
		{name: "foreign data filter", actor: writer, model: "Article", action: "find", filter: models.Filter{"_createdBy": "other"}, want: false},
		{name: "filter without owner", actor: writer, model: "Article", action: "remove", filter: models.Filter{"_id": "x"}, want: false},
		{name: "non owner action", actor: writer, model: "Article", action: "update", want: false},
	}

	a := NewPermissionAuthorizer(testSchemas())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Check(context.Background(), tt.actor, tt.model, tt.action, tt.doc, tt.filter)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProjectionPolicy(t *testing.T) {
	p := NewProjectionPolicy(testSchemas())
	editor := &models.Actor{ID: "e", Permissions: []string{"Article.editorial"}}

	assert.True(t, p.Allowed(nil, "Article", "teaser"))
	assert.False(t, p.Allowed(nil, "Article", "editorial"))
	assert.True(t, p.Allowed(editor, "Article", "editorial"))
	assert.False(t, p.Allowed(editor, "Article", "missing"))
	assert.False(t, p.Allowed(editor, "Nope", "teaser"))

	doc := map[string]any{"_id": "1", "title": "T", "note": "secret", "_createdBy": "u"}
	assert.Equal(t, map[string]any{"_id": "1", "title": "T"}, p.Apply("Article", "teaser", doc))
	assert.Equal(t, map[string]any{"_id": "1"}, p.Apply("Article", "missing", doc))
}
