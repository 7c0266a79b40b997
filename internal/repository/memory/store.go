// Package memory provides a store backend using in-memory go data-structures.
// It backs tests and STORAGE=memory development servers.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"modelgate/internal/domain"
	"modelgate/internal/domain/models"
	"modelgate/internal/domain/repositories"
)

// Factory hands out one store per model name.
type Factory struct {
	mu     sync.Mutex
	stores map[string]*Store
}

var _ repositories.StoreFactory = (*Factory)(nil)

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{stores: make(map[string]*Store)}
}

// Store returns the store for schema, creating it on first use.
func (f *Factory) Store(_ context.Context, schema *models.Schema) (repositories.Store, error) {
	return f.Named(schema.Name), nil
}

// Named returns the concrete store for a model name.
func (f *Factory) Named(name string) *Store {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stores[name]
	if !ok {
		s = NewStore(name)
		f.stores[name] = s
	}
	return s
}

// Store keeps documents of one model. Every read and write copies, so
// callers never share state with the store.
type Store struct {
	name string
	mu   sync.RWMutex
	docs map[string]*models.Document
	seq  map[string]int64
	next int64

	// Writes counts Save, Remove and UpdateMany calls that changed data.
	writes int64
}

var _ repositories.Store = (*Store)(nil)

// NewStore creates an empty store.
func NewStore(name string) *Store {
	return &Store{
		name: name,
		docs: make(map[string]*models.Document),
		seq:  make(map[string]int64),
	}
}

// Writes returns the number of committed writes.
func (s *Store) Writes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *Store) Find(ctx context.Context, filter models.Filter, opts models.FindOptions) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched, err := s.match(filter)
	if err != nil {
		return nil, err
	}
	if len(opts.Sort) > 0 {
		sortDocuments(matched, opts.Sort)
	}
	if opts.Skip > 0 {
		if opts.Skip >= len(matched) {
			matched = nil
		} else {
			matched = matched[opts.Skip:]
		}
	}
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	out := make([]*models.Document, len(matched))
	for i, d := range matched {
		out[i] = d.Clone()
	}
	return out, nil
}

func (s *Store) FindOne(ctx context.Context, filter models.Filter, opts models.FindOptions) (*models.Document, error) {
	opts.Limit = 1
	docs, err := s.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%s: %w", s.name, domain.ErrNotFound)
	}
	return docs[0], nil
}

func (s *Store) Count(ctx context.Context, filter models.Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched, err := s.match(filter)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

func (s *Store) Save(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("save %s: document has no id", s.name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; !ok {
		s.next++
		s.seq[doc.ID] = s.next
	}
	s.docs[doc.ID] = doc.Clone()
	s.writes++
	return nil
}

func (s *Store) Remove(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; !ok {
		return nil
	}
	delete(s.docs, doc.ID)
	delete(s.seq, doc.ID)
	s.writes++
	return nil
}

func (s *Store) UpdateMany(ctx context.Context, filter models.Filter, set models.MutationSet) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched, err := s.match(filter)
	if err != nil {
		return 0, err
	}
	for _, d := range matched {
		for k, v := range set {
			d.Set(k, models.CloneValue(v))
		}
	}
	if len(matched) > 0 {
		s.writes++
	}
	return int64(len(matched)), nil
}

func (s *Store) GroupDistinct(ctx context.Context, spec repositories.GroupSpec) ([]repositories.GroupResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched, err := s.match(spec.Filter)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	var groups []repositories.GroupResult
	for _, d := range matched {
		v, _ := d.Get(spec.Field)
		key := SortKey(v)
		if _, seen := index[key]; seen {
			continue
		}
		index[key] = len(groups)
		groups = append(groups, repositories.GroupResult{Value: models.CloneValue(v), SortKey: key})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if spec.Descending {
			return groups[i].SortKey > groups[j].SortKey
		}
		return groups[i].SortKey < groups[j].SortKey
	})
	return groups, nil
}

func (s *Store) Stream(ctx context.Context, filter models.Filter, opts models.FindOptions, fn func(*models.Document) error) error {
	docs, err := s.Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

// match returns the live matching documents in insertion order.
// Callers must hold the lock.
func (s *Store) match(filter models.Filter) ([]*models.Document, error) {
	out := make([]*models.Document, 0, len(s.docs))
	for _, d := range s.docs {
		ok, err := Match(d, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.seq[out[i].ID] < s.seq[out[j].ID] })
	return out, nil
}

func sortDocuments(docs []*models.Document, spec models.Sort) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, f := range spec {
			a, _ := docs[i].Get(f.Path)
			b, _ := docs[j].Get(f.Path)
			c := compareForSort(a, b)
			if c == 0 {
				continue
			}
			if f.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}
