package repositories

import (
	"context"

	"modelgate/internal/domain/models"
)

// GroupSpec describes a grouped-distinct read over one field.
type GroupSpec struct {
	Field      string
	Filter     models.Filter
	Descending bool
}

// GroupResult is one distinct group: the first value seen for a
// case-insensitive sort key.
type GroupResult struct {
	Value   any
	SortKey string
}

// Store is the persistence collaborator behind one model.
// Implementations must be safe for concurrent use.
type Store interface {
	// Find returns the documents matching filter.
	Find(ctx context.Context, filter models.Filter, opts models.FindOptions) ([]*models.Document, error)

	// FindOne returns the first match or domain.ErrNotFound.
	FindOne(ctx context.Context, filter models.Filter, opts models.FindOptions) (*models.Document, error)

	// Count returns the number of matching documents.
	Count(ctx context.Context, filter models.Filter) (int64, error)

	// Save inserts or replaces the document by ID. The ID must be set.
	Save(ctx context.Context, doc *models.Document) error

	// Remove deletes one document.
	Remove(ctx context.Context, doc *models.Document) error

	// UpdateMany applies a set-only update to every matching document.
	UpdateMany(ctx context.Context, filter models.Filter, set models.MutationSet) (int64, error)

	// GroupDistinct groups the field's values by their lowercased form,
	// keeping the first value per group, ordered by the sort key.
	GroupDistinct(ctx context.Context, spec GroupSpec) ([]GroupResult, error)

	// Stream walks the matching documents with a cursor.
	Stream(ctx context.Context, filter models.Filter, opts models.FindOptions, fn func(*models.Document) error) error
}

// StoreFactory opens the store backing a schema.
type StoreFactory interface {
	Store(ctx context.Context, schema *models.Schema) (Store, error)
}
