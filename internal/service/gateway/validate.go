package gateway

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"modelgate/internal/domain"
	"modelgate/internal/domain/models"
)

var errRequired = validation.NewError("validation_required", "required")

// validateDocument checks every declared field of doc and returns a
// *domain.ValidationError keyed by field path, nil when doc is valid.
func validateDocument(schema *models.Schema, doc *models.Document) error {
	fields := map[string]string{}
	for i := range schema.Fields {
		field := &schema.Fields[i]
		v, _ := doc.Get(field.Path)
		if err := validation.Validate(v, fieldRules(field)...); err != nil {
			fields[field.Path] = err.Error()
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return &domain.ValidationError{Fields: fields}
}

func fieldRules(field *models.Field) []validation.Rule {
	var rules []validation.Rule
	if field.Required {
		rules = append(rules, validation.By(required))
	}
	rules = append(rules, validation.By(typeRule(field)))
	if len(field.Enum) > 0 {
		rules = append(rules, validation.By(enumRule(field)))
	}
	if field.Pattern != nil && field.Type == models.TypeString && !field.Array {
		rules = append(rules, validation.Match(field.Pattern).Error(fmt.Sprintf("must match %s", field.Match)))
	}
	return rules
}

func required(v any) error {
	switch t := v.(type) {
	case nil:
		return errRequired
	case string:
		if t == "" {
			return errRequired
		}
	case []any:
		if len(t) == 0 {
			return errRequired
		}
	}
	return nil
}

func typeRule(field *models.Field) validation.RuleFunc {
	return func(v any) error {
		if v == nil {
			return nil
		}
		if field.Array {
			list, ok := v.([]any)
			if !ok {
				return validation.NewError("validation_type", "must be an array")
			}
			for _, item := range list {
				if item != nil && !isType(field.Type, item) {
					return validation.NewError("validation_type", fmt.Sprintf("must contain %s values", field.Type))
				}
			}
			return nil
		}
		if !isType(field.Type, v) {
			return validation.NewError("validation_type", fmt.Sprintf("must be a %s", field.Type))
		}
		return nil
	}
}

func enumRule(field *models.Field) validation.RuleFunc {
	return func(v any) error {
		if v == nil || v == "" {
			return nil
		}
		for _, e := range field.Enum {
			if valuesEqual(v, e) {
				return nil
			}
		}
		allowed := make([]string, len(field.Enum))
		for i, e := range field.Enum {
			allowed[i] = fmt.Sprint(e)
		}
		return validation.NewError("validation_in_invalid", "must be one of "+strings.Join(allowed, ", "))
	}
}

func isType(typ models.FieldType, v any) bool {
	switch typ {
	case models.TypeString, models.TypeObjectID:
		_, ok := v.(string)
		return ok
	case models.TypeNumber:
		_, ok := v.(float64)
		return ok
	case models.TypeBoolean:
		_, ok := v.(bool)
		return ok
	case models.TypeDate:
		_, ok := v.(time.Time)
		return ok
	}
	return true
}
