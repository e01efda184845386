// Package backend builds the record store selected by configuration.
package backend

import (
	"context"

	"khata/internal/records"
)

// CleanupFunc releases resources held by a store.
type CleanupFunc func() error

// Result is a ready store with its health check and cleanup.
type Result struct {
	Store records.Store
	// Ping reports whether the store is reachable. Nil for in-process stores.
	Ping    func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Factory creates stores based on configuration
type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for store creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory specific: directory with optional seed_categories.txt
	SeedDir string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
