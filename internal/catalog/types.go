package catalog

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// FieldDefinition is the YAML form of one schema field.
type FieldDefinition struct {
	Path       string        `yaml:"-"`
	Type       string        `yaml:"type"`
	Array      bool          `yaml:"array"`
	Ref        string        `yaml:"ref"`
	Permission PermissionDef `yaml:"permission"`
	Default    any           `yaml:"default"`
	Enum       []any         `yaml:"enum"`
	Match      string        `yaml:"match"`
	Required   bool          `yaml:"required"`
	Map        any           `yaml:"map"`
}

// PermissionDef keeps the raw spelling of a field permission:
// absent, false / none, or a permission string.
type PermissionDef struct {
	Set   bool
	Bool  *bool
	Value string
}

// UnmarshalYAML accepts booleans and strings.
func (p *PermissionDef) UnmarshalYAML(node *yaml.Node) error {
	p.Set = true
	if node.Tag == "!!bool" {
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		p.Bool = &b
		return nil
	}
	if node.Tag == "!!null" {
		p.Set = false
		return nil
	}
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: permission must be false, none or a permission string", node.Line)
	}
	p.Value = node.Value
	return nil
}

// ProjectionDefinition is the YAML form of a named projection.
type ProjectionDefinition struct {
	Permission string   `yaml:"permission"`
	Fields     []string `yaml:"fields"`
}

// AccessDefinition opens actions to everyone or to document owners.
type AccessDefinition struct {
	Public []string `yaml:"public"`
	Owner  []string `yaml:"owner"`
}

// ModelDefinition is the YAML form of a model.
type ModelDefinition struct {
	Name        string                          `yaml:"-"`
	Fields      []FieldDefinition               `yaml:"-"` // Ordered slice, populated by custom unmarshaler
	Projections map[string]ProjectionDefinition `yaml:"projections"`
	Access      AccessDefinition                `yaml:"access"`
}

// UnmarshalYAML preserves field order from the YAML file.
func (m *ModelDefinition) UnmarshalYAML(node *yaml.Node) error {
	type plain struct {
		Fields      map[string]FieldDefinition      `yaml:"fields"`
		Projections map[string]ProjectionDefinition `yaml:"projections"`
		Access      AccessDefinition                `yaml:"access"`
	}
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	m.Projections = p.Projections
	m.Access = p.Access

	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value != "fields" {
			continue
		}
		fieldsNode := node.Content[i+1]
		// fieldsNode.Content alternates: key, value, key, value...
		for j := 0; j+1 < len(fieldsNode.Content); j += 2 {
			path := fieldsNode.Content[j].Value
			if def, ok := p.Fields[path]; ok {
				def.Path = path
				m.Fields = append(m.Fields, def)
			}
		}
		break
	}
	return nil
}

// File is the root of a catalog document.
type File struct {
	Models []ModelDefinition `yaml:"-"`
}

// UnmarshalYAML preserves model order from the YAML file.
func (f *File) UnmarshalYAML(node *yaml.Node) error {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value != "models" {
			continue
		}
		modelsNode := node.Content[i+1]
		for j := 0; j+1 < len(modelsNode.Content); j += 2 {
			var def ModelDefinition
			if err := modelsNode.Content[j+1].Decode(&def); err != nil {
				return fmt.Errorf("model %s: %w", modelsNode.Content[j].Value, err)
			}
			def.Name = modelsNode.Content[j].Value
			f.Models = append(f.Models, def)
		}
	}
	return nil
}
