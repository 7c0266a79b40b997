package memory

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"modelgate/internal/domain/models"
)

// Match reports whether doc satisfies filter.
func Match(doc *models.Document, filter models.Filter) (bool, error) {
	for key, cond := range filter {
		switch key {
		case "$and", "$or", "$nor":
			list, err := subFilters(key, cond)
			if err != nil {
				return false, err
			}
			ok, err := matchLogical(doc, key, list)
			if err != nil || !ok {
				return false, err
			}
		default:
			v, present := doc.Get(key)
			ok, err := matchCondition(v, present, cond)
			if err != nil || !ok {
				return false, err
			}
		}
	}
	return true, nil
}

func matchLogical(doc *models.Document, op string, list []models.Filter) (bool, error) {
	switch op {
	case "$and":
		for _, f := range list {
			ok, err := Match(doc, f)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case "$or":
		for _, f := range list {
			ok, err := Match(doc, f)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return len(list) == 0, nil
	default:
		for _, f := range list {
			ok, err := Match(doc, f)
			if err != nil {
				return false, err
			}
			if ok {
				return false, nil
			}
		}
		return true, nil
	}
}

func subFilters(op string, cond any) ([]models.Filter, error) {
	list, ok := cond.([]any)
	if !ok {
		return nil, fmt.Errorf("%s expects an array", op)
	}
	out := make([]models.Filter, 0, len(list))
	for _, item := range list {
		switch f := item.(type) {
		case map[string]any:
			out = append(out, models.Filter(f))
		case models.Filter:
			out = append(out, f)
		default:
			return nil, fmt.Errorf("%s expects an array of objects", op)
		}
	}
	return out, nil
}

// IsOperatorObject reports a condition like {"$in": [...]}.
func IsOperatorObject(cond any) (map[string]any, bool) {
	m, ok := cond.(map[string]any)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

func matchCondition(v any, present bool, cond any) (bool, error) {
	ops, ok := IsOperatorObject(cond)
	if !ok {
		return matchEqual(v, present, cond), nil
	}
	for op, arg := range ops {
		var ok bool
		switch op {
		case "$eq":
			ok = matchEqual(v, present, arg)
		case "$ne":
			ok = !matchEqual(v, present, arg)
		case "$in", "$nin":
			list, isList := arg.([]any)
			if !isList {
				return false, fmt.Errorf("%s expects an array", op)
			}
			for _, item := range list {
				if matchEqual(v, present, item) {
					ok = true
					break
				}
			}
			if op == "$nin" {
				ok = !ok
			}
		case "$exists":
			ok = (present && v != nil) == models.Truthy(arg)
		case "$gt", "$gte", "$lt", "$lte":
			ok = matchRange(v, op, arg)
		case "$regex":
			re, err := compileRegex(arg, ops["$options"])
			if err != nil {
				return false, err
			}
			ok = matchRegex(v, re)
		case "$options":
			ok = true
		default:
			return false, fmt.Errorf("unsupported operator %s", op)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchEqual(v any, present bool, want any) bool {
	if want == nil {
		return !present || v == nil
	}
	if list, ok := v.([]any); ok {
		if _, wantList := want.([]any); wantList {
			return Equal(v, want)
		}
		for _, item := range list {
			if Equal(item, want) {
				return true
			}
		}
		return false
	}
	if list, ok := v.([]string); ok {
		for _, item := range list {
			if Equal(item, want) {
				return true
			}
		}
		return false
	}
	return Equal(v, want)
}

func matchRange(v any, op string, arg any) bool {
	if list, ok := v.([]any); ok {
		for _, item := range list {
			if matchRange(item, op, arg) {
				return true
			}
		}
		return false
	}
	c, ok := Compare(v, arg)
	if !ok {
		return false
	}
	switch op {
	case "$gt":
		return c > 0
	case "$gte":
		return c >= 0
	case "$lt":
		return c < 0
	default:
		return c <= 0
	}
}

func compileRegex(pattern, options any) (*regexp.Regexp, error) {
	p, ok := pattern.(string)
	if !ok {
		return nil, fmt.Errorf("$regex expects a string")
	}
	if opts, ok := options.(string); ok && opts != "" {
		var flags string
		for _, o := range opts {
			if strings.ContainsRune("imsU", o) {
				flags += string(o)
			}
		}
		if flags != "" {
			p = "(?" + flags + ")" + p
		}
	}
	re, err := regexp.Compile(p)
	if err != nil {
		return nil, fmt.Errorf("$regex: %w", err)
	}
	return re, nil
}

func matchRegex(v any, re *regexp.Regexp) bool {
	switch t := v.(type) {
	case string:
		return re.MatchString(t)
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && re.MatchString(s) {
				return true
			}
		}
	}
	return false
}

// Equal compares two values with numbers and times normalized.
func Equal(a, b any) bool {
	if c, ok := Compare(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders two scalars of compatible kinds. Times compare against
// RFC3339 strings.
func Compare(a, b any) (int, bool) {
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			return cmpFloat(x, y), true
		}
		return 0, false
	}
	if x, ok := a.(time.Time); ok {
		if y, ok := models.ToTime(b); ok {
			return x.Compare(y), true
		}
		return 0, false
	}
	if y, ok := b.(time.Time); ok {
		if x, ok := models.ToTime(a); ok {
			return x.Compare(y), true
		}
		return 0, false
	}
	if x, ok := a.(string); ok {
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
		return 0, false
	}
	if x, ok := a.(bool); ok {
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			default:
				return 1, true
			}
		}
	}
	return 0, false
}

// compareForSort places missing values first, like an ascending Mongo sort.
func compareForSort(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if c, ok := Compare(a, b); ok {
		return c
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// SortKey is the case-insensitive grouping key of a value.
func SortKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.ToLower(t)
	case time.Time:
		return strings.ToLower(t.UTC().Format(time.RFC3339Nano))
	}
	return strings.ToLower(fmt.Sprint(v))
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

func cmpFloat(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}
