package repositories

import "modelgate/internal/domain/models"

// Model binds a schema to its store.
type Model struct {
	Name   string
	Schema *models.Schema
	Store  Store
}

// ModelRegistry resolves model names. Resolve fails with
// *domain.UnknownModelError for names it does not know.
type ModelRegistry interface {
	Resolve(name string) (*Model, error)
	Names() []string
}
