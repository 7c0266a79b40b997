package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"modelgate/internal/domain"
	"modelgate/internal/domain/models"
	"modelgate/internal/domain/repositories"
)

const selectColumns = "id, data::text, created_by, updated_by, created_at, updated_at, versions::text"

// StoreFactory opens one table-backed store per model.
type StoreFactory struct {
	config *RepositoryConfig
}

var _ repositories.StoreFactory = (*StoreFactory)(nil)

// NewStoreFactory creates a factory over the configured pool.
func NewStoreFactory(config *RepositoryConfig) *StoreFactory {
	return &StoreFactory{config: config}
}

// Store returns the store for schema, creating its table if needed.
func (f *StoreFactory) Store(ctx context.Context, schema *models.Schema) (repositories.Store, error) {
	s := NewStore(f.config, schema)
	if err := s.EnsureTable(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Store keeps the documents of one model in a table: reserved keys as
// columns, schema fields in a JSONB data column, history in versions.
type Store struct {
	pool   *pgxpool.Pool
	schema *models.Schema
	table  string
	logger *slog.Logger
}

var _ repositories.Store = (*Store)(nil)

// NewStore creates a store for schema.
func NewStore(config *RepositoryConfig, schema *models.Schema) *Store {
	return &Store{
		pool:   config.Pool,
		schema: schema,
		table:  config.Tables.For(schema.Name),
		logger: config.Logger,
	}
}

// EnsureTable creates the model table and its indexes.
func (s *Store) EnsureTable(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				data JSONB NOT NULL DEFAULT '{}'::jsonb,
				created_by TEXT,
				updated_by TEXT,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL,
				versions JSONB NOT NULL DEFAULT '[]'::jsonb,
				seq BIGSERIAL
			)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (updated_at)`, s.index("updated_at"), s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING GIN (data jsonb_path_ops)`, s.index("data"), s.table),
	}
	exec := GetExecutor(ctx, s.pool)
	for _, stmt := range statements {
		if _, err := exec.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure table %s: %w", s.table, err)
		}
	}
	if s.logger != nil {
		s.logger.Debug("table ready", "model", s.schema.Name, "table", s.table)
	}
	return nil
}

// DropTable removes the model table. A missing table is not an error.
func (s *Store) DropTable(ctx context.Context) error {
	_, err := GetExecutor(ctx, s.pool).Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, s.table))
	if err != nil && !isPgUndefinedTableError(err) {
		return fmt.Errorf("drop table %s: %w", s.table, err)
	}
	return nil
}

func (s *Store) index(suffix string) string {
	name := strings.Trim(s.table, `"`) + "_" + suffix + "_idx"
	return pgx.Identifier{name}.Sanitize()
}

func (s *Store) Find(ctx context.Context, filter models.Filter, opts models.FindOptions) ([]*models.Document, error) {
	var docs []*models.Document
	err := s.Stream(ctx, filter, opts, func(d *models.Document) error {
		docs = append(docs, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *Store) FindOne(ctx context.Context, filter models.Filter, opts models.FindOptions) (*models.Document, error) {
	b := &queryBuilder{}
	where, err := b.where(filter)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY %s LIMIT 1`,
		selectColumns, s.table, where, b.orderBy(opts.Sort))

	doc, err := s.scan(GetExecutor(ctx, s.pool).QueryRow(ctx, query, b.args...))
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("%s: %w", s.schema.Name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("find one %s: %w", s.schema.Name, err)
	}
	return doc, nil
}

func (s *Store) Count(ctx context.Context, filter models.Filter) (int64, error) {
	b := &queryBuilder{}
	where, err := b.where(filter)
	if err != nil {
		return 0, err
	}
	var n int64
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE %s`, s.table, where)
	if err := GetExecutor(ctx, s.pool).QueryRow(ctx, query, b.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", s.schema.Name, err)
	}
	return n, nil
}

func (s *Store) Save(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("save %s: document has no id", s.schema.Name)
	}
	data, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("encode %s data: %w", s.schema.Name, err)
	}
	history := doc.History
	if history == nil {
		history = []models.Snapshot{}
	}
	versions, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode %s versions: %w", s.schema.Name, err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, data, created_by, updated_by, created_at, updated_at, versions)
		VALUES ($1, $2::jsonb, $3, $4, $5, $6, $7::jsonb)
		ON CONFLICT (id) DO UPDATE SET
			data = EXCLUDED.data,
			created_by = EXCLUDED.created_by,
			updated_by = EXCLUDED.updated_by,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			versions = EXCLUDED.versions
	`, s.table)

	_, err = GetExecutor(ctx, s.pool).Exec(ctx, query,
		doc.ID,
		string(data),
		doc.CreatedBy,
		doc.UpdatedBy,
		timeOrNow(doc.CreatedAt),
		timeOrNow(doc.UpdatedAt),
		string(versions),
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", s.schema.Name, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, doc *models.Document) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table)
	if _, err := GetExecutor(ctx, s.pool).Exec(ctx, query, doc.ID); err != nil {
		return fmt.Errorf("remove %s: %w", s.schema.Name, err)
	}
	return nil
}

func (s *Store) UpdateMany(ctx context.Context, filter models.Filter, set models.MutationSet) (int64, error) {
	if len(set) == 0 {
		return 0, nil
	}
	b := &queryBuilder{}
	assignments := []string{}
	data := "data"
	for _, key := range sortedKeys(set) {
		v := set[key]
		if col, ok := columns[key]; ok {
			if col == "id" {
				continue
			}
			if isTimeColumn(col) {
				t, ok := models.ToTime(v)
				if !ok {
					continue
				}
				v = t
			}
			assignments = append(assignments, col+" = "+b.arg(v))
			continue
		}
		val, err := b.jsonArg(v)
		if err != nil {
			return 0, err
		}
		data = "jsonb_set(" + data + ", " + b.pathArg(key) + ", " + val + ", true)"
	}
	if data != "data" {
		assignments = append(assignments, "data = "+data)
	}
	if len(assignments) == 0 {
		return 0, nil
	}

	where, err := b.where(filter)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE %s`, s.table, strings.Join(assignments, ", "), where)
	tag, err := GetExecutor(ctx, s.pool).Exec(ctx, query, b.args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", s.schema.Name, err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) GroupDistinct(ctx context.Context, spec repositories.GroupSpec) ([]repositories.GroupResult, error) {
	b := &queryBuilder{}
	value, key := b.valueExprs(spec.Field)
	where, err := b.where(spec.Filter)
	if err != nil {
		return nil, err
	}
	dir := "ASC"
	if spec.Descending {
		dir = "DESC"
	}
	query := fmt.Sprintf(`
		SELECT value::text, sort_key FROM (
			SELECT DISTINCT ON (sort_key) value, sort_key
			FROM (SELECT %s AS value, %s AS sort_key, seq FROM %s WHERE %s) matched
			ORDER BY sort_key, seq
		) grouped
		ORDER BY sort_key %s
	`, value, key, s.table, where, dir)

	rows, err := GetExecutor(ctx, s.pool).Query(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("group %s.%s: %w", s.schema.Name, spec.Field, err)
	}
	defer rows.Close()

	var out []repositories.GroupResult
	for rows.Next() {
		var (
			raw     *string
			sortKey string
		)
		if err := rows.Scan(&raw, &sortKey); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		var v any
		if raw != nil {
			if err := json.Unmarshal([]byte(*raw), &v); err != nil {
				return nil, fmt.Errorf("decode group value: %w", err)
			}
		}
		out = append(out, repositories.GroupResult{Value: v, SortKey: sortKey})
	}
	return out, rows.Err()
}

func (s *Store) Stream(ctx context.Context, filter models.Filter, opts models.FindOptions, fn func(*models.Document) error) error {
	b := &queryBuilder{}
	where, err := b.where(filter)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY %s`, selectColumns, s.table, where, b.orderBy(opts.Sort))
	if opts.Limit > 0 {
		query += " LIMIT " + b.arg(opts.Limit)
	}
	if opts.Skip > 0 {
		query += " OFFSET " + b.arg(opts.Skip)
	}

	rows, err := GetExecutor(ctx, s.pool).Query(ctx, query, b.args...)
	if err != nil {
		return fmt.Errorf("find %s: %w", s.schema.Name, err)
	}
	defer rows.Close()

	for rows.Next() {
		doc, err := s.scan(rows)
		if err != nil {
			return fmt.Errorf("scan %s: %w", s.schema.Name, err)
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) scan(row pgx.Row) (*models.Document, error) {
	var (
		doc      = models.NewDocument()
		data     string
		versions string
	)
	if err := row.Scan(&doc.ID, &data, &doc.CreatedBy, &doc.UpdatedBy, &doc.CreatedAt, &doc.UpdatedAt, &versions); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &doc.Fields); err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	if doc.Fields == nil {
		doc.Fields = make(map[string]any)
	}
	if err := json.Unmarshal([]byte(versions), &doc.History); err != nil {
		return nil, fmt.Errorf("decode versions: %w", err)
	}
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	s.schema.RestoreTypes(doc.Fields)
	return doc, nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func sortedKeys(m models.MutationSet) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
