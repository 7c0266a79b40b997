package postgres

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"modelgate/internal/domain/models"
)

// columns maps reserved document keys onto their table columns.
var columns = map[string]string{
	models.KeyID:        "id",
	models.KeyCreatedBy: "created_by",
	models.KeyUpdatedBy: "updated_by",
	models.KeyCreatedAt: "created_at",
	models.KeyUpdatedAt: "updated_at",
}

func isTimeColumn(col string) bool {
	return col == "created_at" || col == "updated_at"
}

// queryBuilder translates Mongo-style filters into SQL over the JSONB data
// column. Arguments are collected positionally.
type queryBuilder struct {
	args []any
}

func (b *queryBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *queryBuilder) pathArg(path string) string {
	return b.arg(strings.Split(path, ".")) + "::text[]"
}

// jsonArg encodes v as a JSONB parameter.
func (b *queryBuilder) jsonArg(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode filter value: %w", err)
	}
	return b.arg(string(data)) + "::jsonb", nil
}

// where renders filter as a boolean SQL expression.
func (b *queryBuilder) where(filter models.Filter) (string, error) {
	if len(filter) == 0 {
		return "TRUE", nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	// Deterministic SQL for identical filters
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		cond := filter[key]
		var (
			sql string
			err error
		)
		switch key {
		case "$and", "$or", "$nor":
			sql, err = b.logical(key, cond)
		default:
			sql, err = b.condition(key, cond)
		}
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return strings.Join(parts, " AND "), nil
}

func (b *queryBuilder) logical(op string, cond any) (string, error) {
	list, ok := cond.([]any)
	if !ok {
		return "", fmt.Errorf("%s expects an array", op)
	}
	if len(list) == 0 {
		if op == "$or" {
			return "FALSE", nil
		}
		return "TRUE", nil
	}
	parts := make([]string, 0, len(list))
	for _, item := range list {
		sub, ok := item.(map[string]any)
		if !ok {
			return "", fmt.Errorf("%s expects an array of objects", op)
		}
		sql, err := b.where(models.Filter(sub))
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+sql+")")
	}
	switch op {
	case "$and":
		return "(" + strings.Join(parts, " AND ") + ")", nil
	case "$or":
		return "(" + strings.Join(parts, " OR ") + ")", nil
	}
	return "NOT (" + strings.Join(parts, " OR ") + ")", nil
}

func (b *queryBuilder) condition(path string, cond any) (string, error) {
	ops, ok := operatorObject(cond)
	if !ok {
		return b.equal(path, cond)
	}

	opKeys := make([]string, 0, len(ops))
	for k := range ops {
		opKeys = append(opKeys, k)
	}
	sort.Strings(opKeys)

	parts := make([]string, 0, len(ops))
	for _, op := range opKeys {
		arg := ops[op]
		var (
			sql string
			err error
		)
		switch op {
		case "$eq":
			sql, err = b.equal(path, arg)
		case "$ne":
			sql, err = b.equal(path, arg)
			sql = "NOT COALESCE(" + sql + ", FALSE)"
		case "$in", "$nin":
			sql, err = b.in(path, arg)
			if op == "$nin" {
				sql = "NOT COALESCE(" + sql + ", FALSE)"
			}
		case "$exists":
			sql = b.exists(path)
			if !models.Truthy(arg) {
				sql = "NOT (" + sql + ")"
			}
		case "$gt", "$gte", "$lt", "$lte":
			sql, err = b.compare(path, op, arg)
		case "$regex":
			sql, err = b.regex(path, arg, ops["$options"])
		case "$options":
			continue
		default:
			err = fmt.Errorf("unsupported operator %s", op)
		}
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	if len(parts) == 0 {
		return "TRUE", nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", nil
}

func (b *queryBuilder) equal(path string, v any) (string, error) {
	if col, ok := columns[path]; ok {
		if v == nil {
			return col + " IS NULL", nil
		}
		if isTimeColumn(col) {
			t, ok := models.ToTime(v)
			if !ok {
				return "FALSE", nil
			}
			return col + " = " + b.arg(t), nil
		}
		return col + " = " + b.arg(fmt.Sprint(v)), nil
	}

	p := b.pathArg(path)
	if v == nil {
		return "(data #> " + p + " IS NULL OR data #> " + p + " = 'null'::jsonb)", nil
	}
	val, err := b.jsonArg(v)
	if err != nil {
		return "", err
	}
	// Containment also matches members of array fields
	return "(data #> " + p + " @> " + val + ")", nil
}

func (b *queryBuilder) in(path string, arg any) (string, error) {
	list, ok := arg.([]any)
	if !ok {
		return "", fmt.Errorf("$in expects an array")
	}
	if len(list) == 0 {
		return "FALSE", nil
	}
	parts := make([]string, 0, len(list))
	for _, v := range list {
		sql, err := b.equal(path, v)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return "(" + strings.Join(parts, " OR ") + ")", nil
}

func (b *queryBuilder) exists(path string) string {
	if col, ok := columns[path]; ok {
		return col + " IS NOT NULL"
	}
	p := b.pathArg(path)
	return "(data #> " + p + " IS NOT NULL AND data #> " + p + " <> 'null'::jsonb)"
}

var sqlOps = map[string]string{"$gt": ">", "$gte": ">=", "$lt": "<", "$lte": "<="}

func (b *queryBuilder) compare(path, op string, arg any) (string, error) {
	sqlOp := sqlOps[op]
	if col, ok := columns[path]; ok {
		if isTimeColumn(col) {
			t, ok := models.ToTime(arg)
			if !ok {
				return "", fmt.Errorf("%s on %s expects a date", op, path)
			}
			return col + " " + sqlOp + " " + b.arg(t), nil
		}
		return col + " " + sqlOp + " " + b.arg(fmt.Sprint(arg)), nil
	}

	p := b.pathArg(path)
	switch v := arg.(type) {
	case float64, int, int64:
		return "CASE WHEN jsonb_typeof(data #> " + p + ") = 'number' THEN (data #>> " + p + ")::numeric " + sqlOp + " " + b.arg(v) + " ELSE FALSE END", nil
	case string:
		return "(data #>> " + p + ") " + sqlOp + " " + b.arg(v), nil
	case time.Time:
		return "(data #>> " + p + ") " + sqlOp + " " + b.arg(v.UTC().Format(time.RFC3339Nano)), nil
	}
	return "", fmt.Errorf("%s expects a number, string or date", op)
}

func (b *queryBuilder) regex(path string, pattern, options any) (string, error) {
	p, ok := pattern.(string)
	if !ok {
		return "", fmt.Errorf("$regex expects a string")
	}
	op := "~"
	if opts, _ := options.(string); strings.Contains(opts, "i") {
		op = "~*"
	}
	var expr string
	if col, ok := columns[path]; ok {
		expr = col + "::text"
	} else {
		expr = "(data #>> " + b.pathArg(path) + ")"
	}
	return expr + " " + op + " " + b.arg(p), nil
}

// orderBy renders a sort spec; missing values sort first ascending.
func (b *queryBuilder) orderBy(spec models.Sort) string {
	parts := make([]string, 0, len(spec)+1)
	for _, f := range spec {
		expr, ok := columns[f.Path]
		if !ok {
			expr = "data #> " + b.pathArg(f.Path)
		}
		if f.Desc {
			parts = append(parts, expr+" DESC NULLS LAST")
		} else {
			parts = append(parts, expr+" ASC NULLS FIRST")
		}
	}
	parts = append(parts, "seq ASC")
	return strings.Join(parts, ", ")
}

// valueExprs returns the JSONB and lowercased text expressions of a path.
func (b *queryBuilder) valueExprs(path string) (value, key string) {
	if col, ok := columns[path]; ok {
		return "to_jsonb(" + col + ")", "lower(COALESCE(" + col + "::text, ''))"
	}
	p := b.pathArg(path)
	return "data #> " + p, "lower(COALESCE(data #>> " + p + ", ''))"
}

func operatorObject(cond any) (map[string]any, bool) {
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
