package gateway

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelgate/internal/domain"
	"modelgate/internal/domain/models"
	"modelgate/internal/domain/services"
)

func titles(t *testing.T, body any) []string {
	t.Helper()
	docs, ok := body.([]map[string]any)
	require.True(t, ok, "unexpected body %T", body)
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i], _ = d["title"].(string)
	}
	return out
}

func TestFind_DefaultLimitAndPage(t *testing.T) {
	env := newTestEnv(t)
	for i := range 12 {
		env.put("Article", fmt.Sprintf("a%02d", i), "editor", map[string]any{"title": fmt.Sprintf("p%02d", i)})
	}
	sort := models.Sort{{Path: "title"}}

	first := env.mustDo(&services.Request{Model: "Article", Action: services.ActionFind, Actor: editor, Sort: sort})
	assert.Len(t, titles(t, first.Body), 10)

	second := env.mustDo(&services.Request{Model: "Article", Action: services.ActionFind, Actor: editor, Sort: sort, Page: 1})
	assert.Equal(t, []string{"p10", "p11"}, titles(t, second.Body))

	limited := env.mustDo(&services.Request{Model: "Article", Action: services.ActionFind, Actor: editor, Sort: sort,
		Limit: intPtr(3), Page: 2})
	assert.Equal(t, []string{"p06", "p07", "p08"}, titles(t, limited.Body))
}

func TestFind_OwnDataWithoutProjection(t *testing.T) {
	env := newTestEnv(t)
	env.put("Article", "mine", "writer", map[string]any{"title": "Mine"})
	env.put("Article", "theirs", "someone", map[string]any{"title": "Theirs"})

	res := env.mustDo(&services.Request{Model: "Article", Action: services.ActionFind, Actor: writer,
		Query: models.Filter{"_createdBy": "writer"}})
	assert.Equal(t, []string{"Mine"}, titles(t, res.Body))

	_, err := env.do(&services.Request{Model: "Article", Action: services.ActionFind, Actor: writer})
	requireDenied(t, err, msgNoProjection)

	_, err = env.do(&services.Request{Model: "Article", Action: services.ActionFind, Actor: writer,
		Query: models.Filter{"_createdBy": "someone"}})
	requireDenied(t, err, msgNoProjection)
}

func TestFind_Projections(t *testing.T) {
	env := newTestEnv(t)
	env.put("Article", "a1", "someone", map[string]any{"title": "T", "editorNote": "secret", "category": "News"})

	res := env.mustDo(&services.Request{Model: "Article", Action: services.ActionFind, Actor: writer, Projection: "teaser"})
	assert.Equal(t, []map[string]any{{"_id": "a1", "title": "T"}}, res.Body)

	_, err := env.do(&services.Request{Model: "Article", Action: services.ActionFind, Actor: writer, Projection: "editorial"})
	requireDenied(t, err, msgProjectionDenied)

	_, err = env.do(&services.Request{Model: "Article", Action: services.ActionFind, Actor: editor, Projection: "missing"})
	requireDenied(t, err, msgProjectionDenied)

	res = env.mustDo(&services.Request{Model: "Article", Action: services.ActionFind, Actor: admin, Projection: "editorial"})
	assert.Equal(t, []map[string]any{{"_id": "a1", "title": "T", "editorNote": "secret"}}, res.Body)
}

func TestFind_Select(t *testing.T) {
	env := newTestEnv(t)
	env.put("Article", "a1", "editor", map[string]any{"title": "T", "category": "News"})

	res := env.mustDo(&services.Request{Model: "Article", Action: services.ActionFind, Actor: editor,
		Select: models.Select{Include: []string{"category"}}})
	assert.Equal(t, []map[string]any{{"_id": "a1", "category": "News"}}, res.Body)
}

func TestFindOne(t *testing.T) {
	env := newTestEnv(t)
	env.put("Author", "au1", "editor", map[string]any{"name": "Ada"})
	env.put("Article", "a1", "editor", map[string]any{"title": "T", "author": "au1", "tags": []any{"gone"}})

	res := env.mustDo(&services.Request{Model: "Article", Action: services.ActionFindOne, Actor: editor,
		Query: models.Filter{"_id": "a1"}, Populate: models.PathList{"author", "tags", "title"}})

	body := res.Body.(map[string]any)
	assert.Equal(t, "T", body["title"])
	require.IsType(t, map[string]any{}, body["author"])
	assert.Equal(t, "Ada", body["author"].(map[string]any)["name"])
	assert.Equal(t, []any{}, body["tags"], "missing array references are dropped")

	missing := env.mustDo(&services.Request{Model: "Article", Action: services.ActionFindOne, Actor: editor,
		Query: models.Filter{"_id": "nope"}})
	assert.Nil(t, missing.Body)
	assert.False(t, missing.Empty)
}

func TestFindOne_PublicModel(t *testing.T) {
	env := newTestEnv(t)
	env.put("Author", "au1", "editor", map[string]any{"name": "Ada"})

	res := env.mustDo(&services.Request{Model: "Author", Action: services.ActionFindOne, Query: models.Filter{"_id": "au1"}})
	assert.Equal(t, "Ada", res.Body.(map[string]any)["name"])

	_, err := env.do(&services.Request{Model: "Author", Action: services.ActionCount})
	requireDenied(t, err, "")
}

func TestCount(t *testing.T) {
	env := newTestEnv(t)
	env.put("Article", "a1", "editor", map[string]any{"title": "A", "category": "x"})
	env.put("Article", "a2", "editor", map[string]any{"title": "B", "category": "x"})
	env.put("Article", "a3", "editor", map[string]any{"title": "C"})

	res := env.mustDo(&services.Request{Model: "Article", Action: services.ActionCount, Actor: editor,
		Query: models.Filter{"category": "x"}})
	assert.Equal(t, int64(2), res.Body)

	_, err := env.do(&services.Request{Model: "Article", Action: services.ActionCount, Actor: writer})
	requireDenied(t, err, "")
}

func TestPagination(t *testing.T) {
	env := newTestEnv(t)
	for i := range 23 {
		env.put("Tag", fmt.Sprintf("t%02d", i), "editor", map[string]any{"label": "x"})
	}

	res := env.mustDo(&services.Request{Model: "Tag", Action: services.ActionPagination, Actor: editor,
		Limit: intPtr(5), Page: 2, PagesInView: 3})

	p, ok := res.Body.(Pagination)
	require.True(t, ok)
	assert.Equal(t, int64(23), p.Total)
	assert.Equal(t, 5, p.Pages)
	assert.Equal(t, []int{1, 2, 3}, p.PagesInView)

	res = env.mustDo(&services.Request{Model: "Tag", Action: services.ActionPagination, Actor: editor})
	p = res.Body.(Pagination)
	assert.Equal(t, 15, p.PageSize)
	assert.Equal(t, 2, p.Pages)
}

func TestPagination_PageSize(t *testing.T) {
	env := newTestEnv(t)
	for i := range 23 {
		env.put("Tag", fmt.Sprintf("t%02d", i), "editor", map[string]any{"label": "x"})
	}

	tests := []struct {
		name      string
		pageSize  int
		limit     *int
		wantSize  int
		wantPages int
	}{
		{name: "page size", pageSize: 4, wantSize: 4, wantPages: 6},
		{name: "page size wins over limit", pageSize: 10, limit: intPtr(5), wantSize: 10, wantPages: 3},
		{name: "limit when no page size", limit: intPtr(5), wantSize: 5, wantPages: 5},
		{name: "default", wantSize: 15, wantPages: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := env.mustDo(&services.Request{Model: "Tag", Action: services.ActionPagination, Actor: editor,
				PageSize: tt.pageSize, Limit: tt.limit})

			p := res.Body.(Pagination)
			assert.Equal(t, tt.wantSize, p.PageSize)
			assert.Equal(t, tt.wantPages, p.Pages)
		})
	}
}

func TestVersions(t *testing.T) {
	env := newTestEnv(t)
	env.put("Author", "au1", "editor", map[string]any{"name": "Ada"})
	env.put("Article", "a1", "editor", map[string]any{"title": "v0", "author": "au1"})
	env.mustDo(&services.Request{Model: "Article", Action: services.ActionSave, Actor: editor,
		Data: map[string]any{"_id": "a1", "title": "v1"}})

	res := env.mustDo(&services.Request{Model: "Article", Action: services.ActionVersions, Actor: editor,
		Query: models.Filter{"_id": "a1"}, Populate: models.PathList{"author"}})

	versions := res.Body.([]map[string]any)
	require.Len(t, versions, 2)
	for i, v := range versions {
		assert.Equal(t, i, v[models.KeyVersion])
		assert.Equal(t, "Ada", v["author"].(map[string]any)["name"])
	}
	assert.Equal(t, "v0", versions[0]["title"])
	assert.Equal(t, "v1", versions[1]["title"])

	raw := env.mustDo(&services.Request{Model: "Article", Action: services.ActionVersions, Actor: editor,
		Query: models.Filter{"_id": "a1"}, Select: models.Select{Include: []string{"title"}}})
	rawVersions := raw.Body.([]map[string]any)
	require.Len(t, rawVersions, 2)
	assert.Equal(t, "au1", rawVersions[0]["author"], "selected snapshots are not populated")

	missing := env.mustDo(&services.Request{Model: "Article", Action: services.ActionVersions, Actor: editor,
		Query: models.Filter{"_id": "nope"}})
	assert.Equal(t, []map[string]any{}, missing.Body)
}

func TestVersions_OwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	env.put("Article", "a1", "someone", map[string]any{"title": "v0"})

	_, err := env.do(&services.Request{Model: "Article", Action: services.ActionVersions, Actor: writer,
		Query: models.Filter{"_id": "a1"}})
	requireDenied(t, err, "")
}

func TestSchema(t *testing.T) {
	env := newTestEnv(t)
	req := &services.Request{Model: "Article", Action: services.ActionSchema, Actor: editor}

	res := env.mustDo(req)
	desc := res.Body.(map[string]FieldDescriptor)

	status := desc["status"]
	assert.Equal(t, "status", status.Path)
	assert.Equal(t, "String", status.Instance)
	assert.Equal(t, []any{"draft", "published"}, status.EnumValues)
	assert.Equal(t, "draft", status.DefaultValue)
	assert.Nil(t, status.RegExp)

	require.NotNil(t, desc["slug"].RegExp)
	assert.Equal(t, "^[a-z0-9-]+$", *desc["slug"].RegExp)
	assert.Equal(t, "Array", desc["tags"].Instance)
	assert.Equal(t, "ObjectID", desc["author"].Instance)
	assert.Equal(t, map[string]any{"widget": "json"}, desc["layout"].Map)
	assert.Equal(t, []any{}, desc["title"].EnumValues)

	again := env.mustDo(req)
	assert.Equal(t, res.Body, again.Body)

	_, err := env.do(&services.Request{Model: "Article", Action: services.ActionSchema, Actor: writer})
	requireDenied(t, err, "")
}

func TestDropdownOptions(t *testing.T) {
	env := newTestEnv(t)
	env.put("Article", "a1", "editor", map[string]any{"title": "A", "category": "Red"})
	env.put("Article", "a2", "editor", map[string]any{"title": "B", "category": "red"})
	env.put("Article", "a3", "editor", map[string]any{"title": "C", "category": ""})
	env.put("Article", "a4", "editor", map[string]any{"title": "D"})
	env.put("Article", "a5", "editor", map[string]any{"title": "E", "category": "Blue"})

	tests := []struct {
		name string
		req  services.Request
		want []any
	}{
		{
			name: "purged and case folded",
			req:  services.Request{Field: "category"},
			want: []any{"Blue", "Red"},
		},
		{
			name: "keep empty",
			req:  services.Request{Field: "category", PurgeEmpty: new(bool)},
			want: []any{"", "Blue", "Red"},
		},
		{
			name: "descending",
			req:  services.Request{Field: "category", SortDir: -1},
			want: []any{"Red", "Blue"},
		},
		{
			name: "filtered",
			req:  services.Request{Field: "category", Query: models.Filter{"title": map[string]any{"$in": []any{"B", "C"}}}},
			want: []any{"red"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			req.Model = "Article"
			req.Action = services.ActionDropdownOptions
			req.Actor = editor

			res := env.mustDo(&req)
			assert.Equal(t, tt.want, res.Body)

			again := env.mustDo(&req)
			assert.Equal(t, res.Body, again.Body)
		})
	}
}

func TestDropdownOptions_Errors(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.do(&services.Request{Model: "Article", Action: services.ActionDropdownOptions, Actor: editor})
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	_, err = env.do(&services.Request{Model: "Article", Action: services.ActionDropdownOptions, Actor: nil, Field: "category"})
	requireDenied(t, err, "")
}

func TestUnpublished(t *testing.T) {
	env := newTestEnv(t)
	env.put("Article", "a", "editor", map[string]any{"title": "A"})

	res := env.mustDo(&services.Request{Model: "Article", Action: services.ActionUnpublished, IDs: []any{"a", "missing", nil}})
	assert.Equal(t, []string{"missing"}, res.Body)

	res = env.mustDo(&services.Request{Model: "Article", Action: services.ActionUnpublished, IDs: "a"})
	assert.Equal(t, []string{}, res.Body)

	res = env.mustDo(&services.Request{Model: "Article", Action: services.ActionUnpublished})
	assert.Equal(t, []string{}, res.Body)
}
