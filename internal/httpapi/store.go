package httpapi

import "github.com/3merillon/rmt-compose-poc-sub004/internal/expr/module"

// CompositionStore is the narrow persistence surface the HTTP layer
// needs. internal/store.Store satisfies it; tests substitute an
// in-memory fake so handler behavior can be exercised without a
// database.
type CompositionStore interface {
	Create(id, ownerID string, m *module.Module) error
	Load(id string) (*module.Module, error)
	Save(id string, m *module.Module) error
	Exists(id string) (bool, error)
	Delete(id string) error
}
