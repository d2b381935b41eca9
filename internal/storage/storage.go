package storage

import "github.com/dev-tams/prunekit/internal/storage/prunable"

// Store is what a prune target runs against: a named backend that can both
// list and delete. Backends implement the leaf interfaces from the prunable
// package so they never need to import this one.
type Store interface {
	Name() string
	prunable.Walker
	prunable.Remover
}
