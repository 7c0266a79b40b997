package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Filter is a Mongo-style query document: field equality plus the operators
// $in, $nin, $ne, $exists, $gt, $gte, $lt, $lte, $regex, $and and $or.
type Filter map[string]any

// IsEmpty reports a filter that would match every document.
func (f Filter) IsEmpty() bool {
	return len(f) == 0
}

// Clone copies the filter so callers can add conditions.
func (f Filter) Clone() Filter {
	if f == nil {
		return Filter{}
	}
	return Filter(CloneMap(f))
}

// MutationSet is the sanitized field map applied on save or update.
type MutationSet map[string]any

// SortField is one key of a sort specification.
type SortField struct {
	Path string
	Desc bool
}

// Sort keeps the key order of the request.
type Sort []SortField

// UnmarshalJSON accepts {"a": 1, "b": -1}, {"a": "desc"} or "a -b".
func (s *Sort) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*s = nil
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = parseSortString(str)
		return nil
	}

	var out Sort
	err := decodeOrderedObject(data, func(key string, raw json.RawMessage) error {
		desc, err := sortDirection(raw)
		if err != nil {
			return fmt.Errorf("sort %s: %w", key, err)
		}
		out = append(out, SortField{Path: key, Desc: desc})
		return nil
	})
	if err != nil {
		return err
	}
	*s = out
	return nil
}

func parseSortString(str string) Sort {
	var out Sort
	for _, part := range strings.Fields(str) {
		if strings.HasPrefix(part, "-") {
			out = append(out, SortField{Path: part[1:], Desc: true})
		} else {
			out = append(out, SortField{Path: strings.TrimPrefix(part, "+")})
		}
	}
	return out
}

func sortDirection(raw json.RawMessage) (bool, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, err
	}
	switch t := v.(type) {
	case float64:
		return t < 0, nil
	case string:
		switch strings.ToLower(t) {
		case "desc", "descending", "-1":
			return true, nil
		case "asc", "ascending", "1":
			return false, nil
		}
	}
	return false, fmt.Errorf("invalid direction %s", string(raw))
}

// Select is a field selection: either an include list or an exclude list.
type Select struct {
	Include []string
	Exclude []string
}

// IsZero reports an empty selection.
func (s Select) IsZero() bool {
	return len(s.Include) == 0 && len(s.Exclude) == 0
}

// UnmarshalJSON accepts {"a": 1, "b": 0} or "a b -c".
func (s *Select) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*s = Select{}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		for _, part := range strings.Fields(str) {
			if strings.HasPrefix(part, "-") {
				s.Exclude = append(s.Exclude, part[1:])
			} else {
				s.Include = append(s.Include, strings.TrimPrefix(part, "+"))
			}
		}
		return nil
	}
	return decodeOrderedObject(data, func(key string, raw json.RawMessage) error {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		if truthy(v) {
			s.Include = append(s.Include, key)
		} else {
			s.Exclude = append(s.Exclude, key)
		}
		return nil
	})
}

// Apply shapes a wire map. Includes always keep _id unless it is excluded.
func (s Select) Apply(m map[string]any) map[string]any {
	if s.IsZero() {
		return m
	}
	if len(s.Include) > 0 {
		out := make(map[string]any, len(s.Include)+1)
		if v, ok := m[KeyID]; ok {
			out[KeyID] = v
		}
		for _, path := range s.Include {
			if v, ok := ValueAt(m, path); ok {
				out[path] = v
			}
		}
		for _, path := range s.Exclude {
			delete(out, path)
		}
		return out
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	for _, path := range s.Exclude {
		delete(out, path)
	}
	return out
}

// PathList is a list of field paths, accepted as array or space separated string.
type PathList []string

// UnmarshalJSON accepts ["a", "b"] or "a b".
func (p *PathList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*p = nil
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*p = strings.Fields(str)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*p = list
	return nil
}

// FindOptions are the read modifiers passed to a store.
type FindOptions struct {
	Limit int // 0 means unlimited
	Skip  int
	Sort  Sort
}

// decodeOrderedObject walks a JSON object in document order.
func decodeOrderedObject(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != "" && t != "0"
	}
	return true
}

// Truthy mirrors loose truthiness used for ids and purge of empty values.
func Truthy(v any) bool {
	switch t := v.(type) {
	case string:
		return t != ""
	case int:
		return t != 0
	case int64:
		return t != 0
	}
	return truthy(v)
}
