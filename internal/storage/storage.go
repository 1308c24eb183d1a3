// Package storage persists save blobs. The session only ever uses one slot,
// so the interface is a plain key/blob store.
package storage

import (
	"context"
)

// BlobStore stores opaque save blobs by slot key.
type BlobStore interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Put replaces the blob stored under key.
	Put(ctx context.Context, key string, blob []byte) error

	// Get returns the blob stored under key, or nil if there is none.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
