package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"modelgate/internal/domain"
	"modelgate/internal/domain/models"
	"modelgate/internal/domain/repositories"
)

// StoreFactory opens one collection-backed store per model.
type StoreFactory struct {
	config *RepositoryConfig
}

var _ repositories.StoreFactory = (*StoreFactory)(nil)

// NewStoreFactory creates a factory over the configured database.
func NewStoreFactory(config *RepositoryConfig) *StoreFactory {
	return &StoreFactory{config: config}
}

// Store returns the store for schema and ensures its indexes.
func (f *StoreFactory) Store(ctx context.Context, schema *models.Schema) (repositories.Store, error) {
	s := NewStore(f.config, schema)
	if err := s.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Store keeps the documents of one model in a collection named after it.
type Store struct {
	coll   *mongo.Collection
	schema *models.Schema
	logger *slog.Logger
}

var _ repositories.Store = (*Store)(nil)

// NewStore creates a store for schema.
func NewStore(config *RepositoryConfig, schema *models.Schema) *Store {
	return &Store{
		coll:   config.Database.Collection(schema.Name),
		schema: schema,
		logger: config.Logger,
	}
}

// EnsureIndexes indexes the change timestamp used by the changes feed.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: models.KeyUpdatedAt, Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("ensure indexes %s: %w", s.schema.Name, err)
	}
	return nil
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
	findOpts := options.FindOne()
	if len(opts.Sort) > 0 {
		findOpts.SetSort(sortDoc(opts.Sort))
	}
	var raw bson.M
	err := s.coll.FindOne(ctx, toBSON(filter), findOpts).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s: %w", s.schema.Name, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find one %s: %w", s.schema.Name, err)
	}
	return fromBSON(raw), nil
}

func (s *Store) Count(ctx context.Context, filter models.Filter) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, toBSON(filter))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", s.schema.Name, err)
	}
	return n, nil
}

func (s *Store) Save(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("save %s: document has no id", s.schema.Name)
	}
	_, err := s.coll.ReplaceOne(ctx,
		bson.M{models.KeyID: doc.ID},
		bson.M(doc.StorageMap()),
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", s.schema.Name, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, doc *models.Document) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{models.KeyID: doc.ID}); err != nil {
		return fmt.Errorf("remove %s: %w", s.schema.Name, err)
	}
	return nil
}

func (s *Store) UpdateMany(ctx context.Context, filter models.Filter, set models.MutationSet) (int64, error) {
	if len(set) == 0 {
		return 0, nil
	}
	res, err := s.coll.UpdateMany(ctx, toBSON(filter), bson.M{"$set": bson.M(set)})
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", s.schema.Name, err)
	}
	return res.MatchedCount, nil
}

// GroupDistinct runs match, project, group and sort stages. Groups are keyed
// by the lowercased value and keep the first original value.
func (s *Store) GroupDistinct(ctx context.Context, spec repositories.GroupSpec) ([]repositories.GroupResult, error) {
	dir := 1
	if spec.Descending {
		dir = -1
	}
	ref := "$" + spec.Field
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: toBSON(spec.Filter)}},
		{{Key: "$project", Value: bson.D{
			{Key: "value", Value: ref},
			{Key: "sortKey", Value: bson.D{{Key: "$toLower", Value: ref}}},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$sortKey"},
			{Key: "value", Value: bson.D{{Key: "$first", Value: "$value"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: dir}}}},
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("group %s.%s: %w", s.schema.Name, spec.Field, err)
	}
	defer cursor.Close(ctx)

	var out []repositories.GroupResult
	for cursor.Next(ctx) {
		var row struct {
			SortKey string `bson:"_id"`
			Value   any    `bson:"value"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("decode group: %w", err)
		}
		out = append(out, repositories.GroupResult{Value: normalize(row.Value), SortKey: row.SortKey})
	}
	return out, cursor.Err()
}

func (s *Store) Stream(ctx context.Context, filter models.Filter, opts models.FindOptions, fn func(*models.Document) error) error {
	findOpts := options.Find()
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(int64(opts.Skip))
	}
	if len(opts.Sort) > 0 {
		findOpts.SetSort(sortDoc(opts.Sort))
	}

	cursor, err := s.coll.Find(ctx, toBSON(filter), findOpts)
	if err != nil {
		return fmt.Errorf("find %s: %w", s.schema.Name, err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return fmt.Errorf("decode %s: %w", s.schema.Name, err)
		}
		if err := fn(fromBSON(raw)); err != nil {
			return err
		}
	}
	return cursor.Err()
}

func toBSON(filter models.Filter) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return bson.M(filter)
}

func fromBSON(raw bson.M) *models.Document {
	return models.DocumentFromMap(normalizeMap(raw))
}

func sortDoc(spec models.Sort) bson.D {
	d := make(bson.D, 0, len(spec))
	for _, f := range spec {
		dir := 1
		if f.Desc {
			dir = -1
		}
		d = append(d, bson.E{Key: f.Path, Value: dir})
	}
	return d
}
