package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// normalize converts decoded BSON into the plain values the gateway works
// with: maps, slices, float64 numbers and UTC times.
func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		return normalizeMap(t)
	case map[string]any:
		return normalizeMap(t)
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		return normalizeSlice(t)
	case []any:
		return normalizeSlice(t)
	case bson.DateTime:
		return t.Time().UTC()
	case time.Time:
		return t.UTC()
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case bson.ObjectID:
		return t.Hex()
	case bson.Null, bson.Undefined:
		return nil
	}
	return v
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

func normalizeSlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = normalize(v)
	}
	return out
}
