package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"modelgate/internal/catalog"
	"modelgate/internal/domain"
	"modelgate/internal/domain/repositories"
)

// Registry resolves model names to their schema and store. It is built once
// at startup and passed to the gateway explicitly.
type Registry struct {
	models map[string]*repositories.Model
	order  []string
	mu     sync.RWMutex
}

// New opens a store for every catalog model.
func New(ctx context.Context, cat *catalog.Catalog, factory repositories.StoreFactory, logger *slog.Logger) (*Registry, error) {
	r := &Registry{models: make(map[string]*repositories.Model)}
	for _, name := range cat.Names() {
		schema, _ := cat.Schema(name)
		store, err := factory.Store(ctx, schema)
		if err != nil {
			return nil, fmt.Errorf("open store for %s: %w", name, err)
		}
		r.Register(&repositories.Model{Name: name, Schema: schema, Store: store})
		logger.Debug("model registered", "model", name, "fields", len(schema.Fields))
	}
	return r, nil
}

// Register adds or replaces a model.
func (r *Registry) Register(m *repositories.Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.models == nil {
		r.models = make(map[string]*repositories.Model)
	}
	if _, exists := r.models[m.Name]; !exists {
		r.order = append(r.order, m.Name)
	}
	r.models[m.Name] = m
}

// Resolve returns the model or *domain.UnknownModelError.
func (r *Registry) Resolve(name string) (*repositories.Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	if !ok {
		return nil, &domain.UnknownModelError{Model: name}
	}
	return m, nil
}

// Names returns the registered model names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}
