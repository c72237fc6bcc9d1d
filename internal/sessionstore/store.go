// Package sessionstore persists grid session snapshots and the field catalog
// as namespaced JSON blobs.
//
// Three implementations share one interface: Memory for tests and ephemeral
// runs, SQLite for a single-machine file-backed store, and Postgres for a
// shared deployment. The engine swallows store failures, so implementations
// return honest errors and leave the tolerance policy to the caller.
package sessionstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("session entry not found")

// Store is a flat key-value store of opaque snapshot payloads. Keys are
// caller-namespaced (one per workbook, plus reserved keys like the field
// catalog).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// Pruner is implemented by stores that can expire stale entries. Pruning is
// scoped to a key prefix so long-lived reserved keys outside the prefix (the
// field catalog) are never touched.
type Pruner interface {
	// PruneOlderThan deletes entries under prefix whose last write is
	// before cutoff and reports how many were removed.
	PruneOlderThan(ctx context.Context, prefix string, cutoff time.Time) (int64, error)
}
