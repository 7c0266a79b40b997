package gateway

import (
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"modelgate/internal/domain/models"
)

// Sanitizer turns an untrusted payload into a mutation set.
type Sanitizer struct {
	logger *slog.Logger
}

// NewSanitizer creates a sanitizer.
func NewSanitizer(logger *slog.Logger) *Sanitizer {
	return &Sanitizer{logger: logger}
}

// Sanitize returns the fields of raw that schema declares, that actor may
// write and that differ from their declared default. Reference fields are
// copied verbatim; with keepSubIDs false, referenced objects are reduced to
// their id. The revision counter and history are never part of the result.
// Sanitize returns nil when raw is empty.
func (s *Sanitizer) Sanitize(raw map[string]any, schema *models.Schema, actor *models.Actor, keepSubIDs bool) models.MutationSet {
	if len(raw) == 0 {
		return nil
	}

	out := models.MutationSet{}
	for i := range schema.Fields {
		field := &schema.Fields[i]
		v, present := models.ValueAt(raw, field.Path)

		if !mayWrite(field, schema.Name, actor) {
			if present {
				s.logger.Debug("ignored field for save, insufficient permissions",
					"model", schema.Name,
					"path", field.Path,
				)
			}
			continue
		}
		if !present {
			continue
		}

		if field.Type == models.TypeObjectID && field.Ref != "" {
			v = referenceValue(v, field, keepSubIDs)
			if v == nil {
				continue
			}
			out[field.Path] = v
			continue
		}

		coerced := coerceField(field, v)
		if !changedFromDefault(field, coerced) {
			continue
		}
		out[field.Path] = coerced
	}

	if id := idOf(raw[models.KeyID]); id != "" {
		out[models.KeyID] = id
	}
	return out
}

// mayWrite resolves the permission requirement of one field.
func mayWrite(field *models.Field, model string, actor *models.Actor) bool {
	switch field.Permission.Kind {
	case models.PermissionGeneralSave:
		return actor.HasPermission(model, model+".save")
	case models.PermissionSpecific:
		return actor.HasPermission(field.Permission.Permission)
	}
	return true
}

// changedFromDefault mirrors change tracking on a fresh document: a value is
// a change unless it equals the declared default.
func changedFromDefault(field *models.Field, v any) bool {
	if field.Type == models.TypeMixed || field.Default == nil {
		return true
	}
	return !valuesEqual(v, field.Default)
}

// referenceValue normalizes a reference or reference array payload. Null
// entries are dropped; objects keep their shape only when keepSubIDs is set.
func referenceValue(v any, field *models.Field, keepSubIDs bool) any {
	if v == nil {
		return nil
	}
	if !field.Array {
		return referenceItem(v, keepSubIDs)
	}
	list, ok := v.([]any)
	if !ok {
		list = []any{v}
	}
	out := make([]any, 0, len(list))
	for _, item := range list {
		if r := referenceItem(item, keepSubIDs); r != nil {
			out = append(out, r)
		}
	}
	return out
}

func referenceItem(v any, keepSubIDs bool) any {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		if keepSubIDs {
			return models.CloneMap(t)
		}
		if id := idOf(t[models.KeyID]); id != "" {
			return id
		}
		return nil
	case string:
		if t == "" {
			return nil
		}
		return t
	}
	return fmt.Sprint(v)
}

// idOf returns the identity carried by v, "" when it is falsy.
func idOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any:
		return idOf(t[models.KeyID])
	case float64:
		if t == 0 {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return ""
	}
	return fmt.Sprint(v)
}

// coerceField casts v to the declared type. Values that cannot be cast are
// returned unchanged so validation can report them.
func coerceField(field *models.Field, v any) any {
	if field.Array {
		list, ok := v.([]any)
		if !ok {
			if v == nil {
				return nil
			}
			list = []any{v}
		}
		out := make([]any, len(list))
		for i, item := range list {
			out[i] = coerceScalar(field.Type, item)
		}
		return out
	}
	return coerceScalar(field.Type, v)
}

func coerceScalar(typ models.FieldType, v any) any {
	if v == nil {
		return nil
	}
	switch typ {
	case models.TypeString:
		switch t := v.(type) {
		case string:
			return t
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(t)
		}
	case models.TypeNumber:
		switch t := v.(type) {
		case float64:
			return t
		case int:
			return float64(t)
		case int64:
			return float64(t)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil && !math.IsNaN(f) {
				return f
			}
		case bool:
			if t {
				return float64(1)
			}
			return float64(0)
		}
	case models.TypeBoolean:
		switch t := v.(type) {
		case bool:
			return t
		case float64:
			if t == 1 {
				return true
			}
			if t == 0 {
				return false
			}
		case string:
			switch strings.ToLower(t) {
			case "true", "1", "yes":
				return true
			case "false", "0", "no":
				return false
			}
		}
	case models.TypeDate:
		if t, ok := models.ToTime(v); ok {
			return t.UTC()
		}
		if ms, ok := v.(float64); ok {
			return time.UnixMilli(int64(ms)).UTC()
		}
	case models.TypeObjectID:
		if id := idOf(v); id != "" {
			return id
		}
	}
	return v
}

func valuesEqual(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := models.ToTime(b)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}
