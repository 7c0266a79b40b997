package models

import "regexp"

// FieldType is the declared storage type of a field.
type FieldType string

const (
	TypeString   FieldType = "String"
	TypeNumber   FieldType = "Number"
	TypeBoolean  FieldType = "Boolean"
	TypeDate     FieldType = "Date"
	TypeMixed    FieldType = "Mixed"
	TypeObjectID FieldType = "ObjectID"
)

// PermissionKind tags a field's permission requirement.
type PermissionKind int

const (
	// PermissionNone means no restriction beyond the general save check.
	PermissionNone PermissionKind = iota
	// PermissionGeneralSave requires {model} or {model}.save.
	PermissionGeneralSave
	// PermissionSpecific requires exactly Permission.
	PermissionSpecific
)

// PermissionRequirement is resolved once per field per request.
type PermissionRequirement struct {
	Kind       PermissionKind
	Permission string
}

// Field is one declared path of a schema.
type Field struct {
	Path       string
	Type       FieldType
	Array      bool
	Ref        string // target model for ObjectID fields
	Permission PermissionRequirement
	Default    any
	Enum       []any
	Match      string
	Pattern    *regexp.Regexp
	Required   bool
	Map        any // opaque client hint, passed through by the schema action
}

// IsReference reports a single reference to another model.
func (f *Field) IsReference() bool {
	return !f.Array && f.Type == TypeObjectID && f.Ref != ""
}

// IsReferenceArray reports an array of references to another model.
func (f *Field) IsReferenceArray() bool {
	return f.Array && f.Type == TypeObjectID && f.Ref != ""
}

// Instance is the storage type name reported to clients.
func (f *Field) Instance() string {
	if f.Array {
		return "Array"
	}
	return string(f.Type)
}

// Projection is a named, permission-gated field shape.
type Projection struct {
	Name       string
	Permission string
	Fields     []string
}

// Access lists the actions a model opens up beyond explicit permissions.
type Access struct {
	Public []string // allowed for everyone, including anonymous actors
	Owner  []string // allowed for the actor that created the document
}

// Schema describes one model.
type Schema struct {
	Name        string
	Fields      []Field
	Projections map[string]Projection
	Access      Access

	index map[string]int
}

// NewSchema builds a schema and its field index.
func NewSchema(name string, fields []Field) *Schema {
	s := &Schema{Name: name, Fields: fields, Projections: map[string]Projection{}}
	s.reindex()
	return s
}

func (s *Schema) reindex() {
	s.index = make(map[string]int, len(s.Fields))
	for i, f := range s.Fields {
		s.index[f.Path] = i
	}
}

// Field looks up a declared field by path.
func (s *Schema) Field(path string) (*Field, bool) {
	if s.index == nil {
		s.reindex()
	}
	i, ok := s.index[path]
	if !ok {
		return nil, false
	}
	return &s.Fields[i], true
}

// RestoreTypes converts values decoded from a text format back to their
// declared types. Only dates need it: JSON carries them as strings.
func (s *Schema) RestoreTypes(fields map[string]any) {
	for _, f := range s.Fields {
		if f.Type != TypeDate {
			continue
		}
		v, ok := ValueAt(fields, f.Path)
		if !ok || v == nil {
			continue
		}
		if list, isList := v.([]any); isList {
			for i, item := range list {
				if t, ok := ToTime(item); ok {
					list[i] = t
				}
			}
			continue
		}
		if t, ok := ToTime(v); ok {
			SetValueAt(fields, f.Path, t)
		}
	}
}
