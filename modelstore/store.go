// Package modelstore provides storage backends for fitted model snapshots.
//
// A Store holds immutable snapshot blobs by name. Backends exist for the
// local filesystem, process memory (testing), Amazon S3 and MinIO or any
// S3-compatible object store.
package modelstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a snapshot does not exist.
//
// Implementations must return an error that satisfies
// `errors.Is(err, ErrNotFound)`.
var ErrNotFound = errors.New("snapshot not found")

// Store is an abstraction for storing immutable model snapshots.
type Store interface {
	// Get reads the named snapshot in full.
	Get(ctx context.Context, name string) ([]byte, error)

	// Put writes a snapshot atomically, replacing previous content.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a snapshot. Deleting a missing snapshot is not an
	// error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all snapshots with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
