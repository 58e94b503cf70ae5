// Package store provides persistence primitives and driver abstractions.
//
// Drivers register themselves by name and implement Driver plus the
// scheduling.Store contract. Callers obtain the domain interface with a type
// assertion after Init.
package store

import (
	"context"
	"errors"
)

// Common errors for store operations.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrClosed        = errors.New("store closed")
)

// Driver defines the interface for a persistence backend.
// Implementations must be safe for concurrent use.
type Driver interface {
	// Init initializes the driver (open connections, migrate schema).
	Init(ctx context.Context) error

	// Close releases resources held by the driver.
	Close() error

	// Name returns the driver name (memory, sqlite, mysql).
	Name() string
}
