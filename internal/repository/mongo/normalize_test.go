package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestNormalize(t *testing.T) {
	when := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	oid := bson.NewObjectID()

	tests := []struct {
		name string
		in   any
		want any
	}{
		{name: "int32", in: int32(3), want: float64(3)},
		{name: "int64", in: int64(4), want: float64(4)},
		{name: "datetime", in: bson.NewDateTimeFromTime(when), want: when},
		{name: "local time", in: when.In(time.FixedZone("x", 3600)), want: when},
		{name: "object id", in: oid, want: oid.Hex()},
		{name: "null", in: bson.Null{}, want: nil},
		{name: "string", in: "s", want: "s"},
		{
			name: "nested document",
			in:   bson.D{{Key: "a", Value: bson.A{int32(1), bson.M{"b": int64(2)}}}},
			want: map[string]any{"a": []any{float64(1), map[string]any{"b": float64(2)}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalize(tt.in)
			if want, ok := tt.want.(time.Time); ok {
				gotTime, isTime := got.(time.Time)
				assert.True(t, isTime)
				assert.True(t, want.Equal(gotTime))
				assert.Equal(t, time.UTC, gotTime.Location())
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
