package gateway

import "modelgate/internal/domain/models"

// FieldDescriptor is the client-safe description of one field.
type FieldDescriptor struct {
	EnumValues   []any   `json:"enumValues"`
	RegExp       *string `json:"regExp"`
	Path         string  `json:"path"`
	Instance     string  `json:"instance"`
	DefaultValue any     `json:"defaultValue"`
	Map          any     `json:"map"`
}

// DescribeSchema maps every declared field to its descriptor.
func DescribeSchema(schema *models.Schema) map[string]FieldDescriptor {
	out := make(map[string]FieldDescriptor, len(schema.Fields))
	for _, f := range schema.Fields {
		d := FieldDescriptor{
			EnumValues:   []any{},
			Path:         f.Path,
			Instance:     f.Instance(),
			DefaultValue: models.CloneValue(f.Default),
			Map:          f.Map,
		}
		if len(f.Enum) > 0 {
			d.EnumValues = append(d.EnumValues, f.Enum...)
		}
		if f.Match != "" {
			re := f.Match
			d.RegExp = &re
		}
		out[f.Path] = d
	}
	return out
}

// Pagination describes a page window over a result count. Page numbers are
// zero based.
type Pagination struct {
	Total       int64 `json:"total"`
	PageSize    int   `json:"pageSize"`
	Page        int   `json:"page"`
	Pages       int   `json:"pages"`
	First       int   `json:"first"`
	Last        int   `json:"last"`
	Prev        *int  `json:"prev"`
	Next        *int  `json:"next"`
	PagesInView []int `json:"pagesInView"`
}

// Paginate builds the descriptor for total results split into pages of
// pageSize, with a window of inView page numbers centred on page.
func Paginate(total int64, pageSize, page, inView int) Pagination {
	if pageSize <= 0 {
		pageSize = 1
	}
	pages := int((total + int64(pageSize) - 1) / int64(pageSize))
	last := max(pages-1, 0)
	page = min(max(page, 0), last)

	p := Pagination{
		Total:       total,
		PageSize:    pageSize,
		Page:        page,
		Pages:       pages,
		Last:        last,
		PagesInView: []int{},
	}
	if page > 0 {
		prev := page - 1
		p.Prev = &prev
	}
	if page < last {
		next := page + 1
		p.Next = &next
	}

	start := max(page-inView/2, 0)
	start = min(start, max(pages-inView, 0))
	for i := start; i < pages && i < start+inView; i++ {
		p.PagesInView = append(p.PagesInView, i)
	}
	return p
}
