package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Reserved wire keys. Everything else in a document is a schema field.
const (
	KeyID        = "_id"
	KeyCreatedBy = "_createdBy"
	KeyUpdatedBy = "_updatedBy"
	KeyCreatedAt = "_createdAt"
	KeyUpdatedAt = "_updatedAt"
	KeyVersion   = "_version"
	KeyHistory   = "_versions"
	KeyRevision  = "__v"
)

// Snapshot is one immutable entry of a document's version history: the wire
// form of the document at commit time, tagged with KeyVersion = sequence.
type Snapshot map[string]any

// Seq returns the sequence number of the snapshot, -1 if it carries none.
func (s Snapshot) Seq() int {
	switch v := s[KeyVersion].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return -1
}

// Document is one record of a model.
//
// Version is the head revision marker; it is reset to nil on every save.
// History is append-only and is never part of the wire form returned by Map
// or MarshalJSON.
type Document struct {
	ID        string
	Fields    map[string]any
	CreatedBy *string
	UpdatedBy *string
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   *int
	History   []Snapshot
}

// NewDocument returns an empty, uncommitted document.
func NewDocument() *Document {
	return &Document{Fields: make(map[string]any)}
}

// IsNew reports whether the document has never been committed.
func (d *Document) IsNew() bool {
	return d.CreatedAt.IsZero()
}

// Get returns the value at path. Reserved keys address the document metadata,
// dotted paths walk nested objects.
func (d *Document) Get(path string) (any, bool) {
	switch path {
	case KeyID:
		if d.ID == "" {
			return nil, false
		}
		return d.ID, true
	case KeyCreatedBy:
		return optString(d.CreatedBy), true
	case KeyUpdatedBy:
		return optString(d.UpdatedBy), true
	case KeyCreatedAt:
		return optTime(d.CreatedAt), !d.CreatedAt.IsZero()
	case KeyUpdatedAt:
		return optTime(d.UpdatedAt), !d.UpdatedAt.IsZero()
	case KeyVersion:
		if d.Version == nil {
			return nil, true
		}
		return *d.Version, true
	}
	return ValueAt(d.Fields, path)
}

// Set writes value at path. Writes to history or the revision counter are
// ignored.
func (d *Document) Set(path string, value any) {
	switch path {
	case KeyID:
		d.ID = toString(value)
	case KeyCreatedBy:
		d.CreatedBy = toOptString(value)
	case KeyUpdatedBy:
		d.UpdatedBy = toOptString(value)
	case KeyCreatedAt:
		if t, ok := ToTime(value); ok {
			d.CreatedAt = t
		}
	case KeyUpdatedAt:
		if t, ok := ToTime(value); ok {
			d.UpdatedAt = t
		}
	case KeyVersion, KeyHistory, KeyRevision:
	default:
		if d.Fields == nil {
			d.Fields = make(map[string]any)
		}
		SetValueAt(d.Fields, path, value)
	}
}

// Map returns the wire form of the document without its history.
func (d *Document) Map() map[string]any {
	m := make(map[string]any, len(d.Fields)+6)
	for k, v := range d.Fields {
		m[k] = v
	}
	if d.ID != "" {
		m[KeyID] = d.ID
	}
	m[KeyCreatedBy] = optString(d.CreatedBy)
	m[KeyUpdatedBy] = optString(d.UpdatedBy)
	if !d.CreatedAt.IsZero() {
		m[KeyCreatedAt] = d.CreatedAt
	}
	if !d.UpdatedAt.IsZero() {
		m[KeyUpdatedAt] = d.UpdatedAt
	}
	if d.Version == nil {
		m[KeyVersion] = nil
	} else {
		m[KeyVersion] = *d.Version
	}
	return m
}

// StorageMap returns the persisted form: the wire form plus the history.
func (d *Document) StorageMap() map[string]any {
	m := d.Map()
	history := make([]any, len(d.History))
	for i, s := range d.History {
		history[i] = map[string]any(s)
	}
	m[KeyHistory] = history
	return m
}

// Snapshot captures the current state tagged with seq.
func (d *Document) Snapshot(seq int) Snapshot {
	s := Snapshot(CloneMap(d.Map()))
	s[KeyVersion] = seq
	return s
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	c := &Document{
		ID:        d.ID,
		Fields:    CloneMap(d.Fields),
		CreatedBy: cloneOptString(d.CreatedBy),
		UpdatedBy: cloneOptString(d.UpdatedBy),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if d.Version != nil {
		v := *d.Version
		c.Version = &v
	}
	if d.History != nil {
		c.History = make([]Snapshot, len(d.History))
		for i, s := range d.History {
			c.History[i] = Snapshot(CloneMap(s))
		}
	}
	return c
}

// MarshalJSON emits the wire form. History is never serialized.
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Map())
}

// DocumentFromMap rehydrates a document from its wire or storage form.
func DocumentFromMap(m map[string]any) *Document {
	d := NewDocument()
	for k, v := range m {
		switch k {
		case KeyID, KeyCreatedBy, KeyUpdatedBy, KeyCreatedAt, KeyUpdatedAt:
			d.Set(k, v)
		case KeyVersion:
			if s := (Snapshot{KeyVersion: v}).Seq(); s >= 0 {
				d.Version = &s
			}
		case KeyHistory:
			d.History = toHistory(v)
		case KeyRevision:
		default:
			d.Fields[k] = v
		}
	}
	return d
}

func toHistory(v any) []Snapshot {
	list, ok := v.([]any)
	if !ok {
		if snaps, ok := v.([]Snapshot); ok {
			return snaps
		}
		if maps, ok := v.([]map[string]any); ok {
			out := make([]Snapshot, len(maps))
			for i, m := range maps {
				out[i] = Snapshot(m)
			}
			return out
		}
		return nil
	}
	out := make([]Snapshot, 0, len(list))
	for _, item := range list {
		switch s := item.(type) {
		case map[string]any:
			out = append(out, Snapshot(s))
		case Snapshot:
			out = append(out, s)
		}
	}
	return out
}

// ValueAt resolves a dotted path inside m.
func ValueAt(m map[string]any, path string) (any, bool) {
	if v, ok := m[path]; ok {
		return v, true
	}
	parts := strings.Split(path, ".")
	if len(parts) == 1 {
		return nil, false
	}
	var cur any = m
	for _, p := range parts {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// SetValueAt writes value at a dotted path, creating intermediate objects.
func SetValueAt(m map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	cur := m
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// CloneMap deep-copies nested maps and slices.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies v if it is a map or slice.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case Snapshot:
		return Snapshot(CloneMap(t))
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = CloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	}
	return v
}

// ToTime accepts time.Time values and RFC3339 / date-only strings.
func ToTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t != nil {
			return *t, true
		}
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func optString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func optTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func toOptString(v any) *string {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}

func cloneOptString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
