package catalog

import (
	"embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"modelgate/internal/domain/models"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Catalog holds the schemas of every declared model, in declaration order.
type Catalog struct {
	schemas map[string]*models.Schema
	order   []string
	mu      sync.RWMutex
}

// Default loads the embedded catalog.
func Default() (*Catalog, error) {
	data, err := configFiles.ReadFile("config/models.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded catalog: %w", err)
	}
	return Parse(data)
}

// Load reads a catalog file, falling back to the embedded catalog when path
// is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return c, nil
}

// Parse builds a catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog: %w", err)
	}

	c := &Catalog{schemas: make(map[string]*models.Schema, len(file.Models))}
	for _, def := range file.Models {
		schema, err := buildSchema(def)
		if err != nil {
			return nil, err
		}
		if _, dup := c.schemas[schema.Name]; dup {
			return nil, fmt.Errorf("model %s declared twice", schema.Name)
		}
		c.schemas[schema.Name] = schema
		c.order = append(c.order, schema.Name)
	}

	for _, name := range c.order {
		for _, f := range c.schemas[name].Fields {
			if f.Ref == "" {
				continue
			}
			if _, ok := c.schemas[f.Ref]; !ok {
				return nil, fmt.Errorf("model %s field %s references unknown model %s", name, f.Path, f.Ref)
			}
		}
	}
	return c, nil
}

// Schema returns the schema of a model.
func (c *Catalog) Schema(name string) (*models.Schema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.schemas[name]
	return s, ok
}

// Names returns the model names in declaration order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

func buildSchema(def ModelDefinition) (*models.Schema, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("model without name")
	}
	fields := make([]models.Field, 0, len(def.Fields))
	for _, fd := range def.Fields {
		f, err := buildField(fd)
		if err != nil {
			return nil, fmt.Errorf("model %s field %s: %w", def.Name, fd.Path, err)
		}
		fields = append(fields, f)
	}

	schema := models.NewSchema(def.Name, fields)
	for name, pd := range def.Projections {
		schema.Projections[name] = models.Projection{
			Name:       name,
			Permission: pd.Permission,
			Fields:     pd.Fields,
		}
	}
	schema.Access = models.Access{Public: def.Access.Public, Owner: def.Access.Owner}
	return schema, nil
}

func buildField(fd FieldDefinition) (models.Field, error) {
	f := models.Field{
		Path:     fd.Path,
		Array:    fd.Array,
		Ref:      fd.Ref,
		Default:  normalizeNumber(fd.Default),
		Match:    fd.Match,
		Required: fd.Required,
		Map:      fd.Map,
	}

	typ, err := parseType(fd.Type)
	if err != nil {
		return f, err
	}
	f.Type = typ
	if f.Ref != "" && f.Type != models.TypeObjectID {
		return f, fmt.Errorf("ref requires type ObjectID")
	}

	for _, e := range fd.Enum {
		f.Enum = append(f.Enum, normalizeNumber(e))
	}

	if fd.Match != "" {
		re, err := regexp.Compile(fd.Match)
		if err != nil {
			return f, fmt.Errorf("invalid match: %w", err)
		}
		f.Pattern = re
	}

	f.Permission = parsePermission(fd.Permission)
	return f, nil
}

func parseType(s string) (models.FieldType, error) {
	switch strings.ToLower(s) {
	case "", "mixed":
		return models.TypeMixed, nil
	case "string":
		return models.TypeString, nil
	case "number":
		return models.TypeNumber, nil
	case "boolean", "bool":
		return models.TypeBoolean, nil
	case "date":
		return models.TypeDate, nil
	case "objectid", "reference", "ref":
		return models.TypeObjectID, nil
	}
	return "", fmt.Errorf("unknown type %q", s)
}

// parsePermission maps the catalog spelling onto the tagged requirement:
// absent => None, false/none => GeneralSave, anything else => Specific.
func parsePermission(p PermissionDef) models.PermissionRequirement {
	switch {
	case !p.Set:
		return models.PermissionRequirement{Kind: models.PermissionNone}
	case p.Bool != nil:
		return models.PermissionRequirement{Kind: models.PermissionGeneralSave}
	case p.Value == "" || strings.EqualFold(p.Value, "none"):
		return models.PermissionRequirement{Kind: models.PermissionGeneralSave}
	}
	return models.PermissionRequirement{Kind: models.PermissionSpecific, Permission: p.Value}
}

func normalizeNumber(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	}
	return v
}
