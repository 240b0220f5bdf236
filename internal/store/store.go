// ABOUTME: Blob storage interface and data types for savedsearch persistence
// ABOUTME: Defines the Blob record and the Blobs interface backed by SQLite or memory

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested blob does not exist
var ErrNotFound = errors.New("not found")

// ErrShapeMismatch is returned when a stored blob does not decode into the
// expected shape (a string list or a string-to-string map)
var ErrShapeMismatch = errors.New("stored data has unexpected shape")

// Blob is a single stored value
type Blob struct {
	Key       string
	Value     []byte
	Version   int64 // incremented on every write
	UpdatedAt time.Time
}

// Blobs is a durable key -> bytes store
type Blobs interface {
	GetBlob(ctx context.Context, key string) ([]byte, error)
	PutBlob(ctx context.Context, key string, value []byte) error
	DeleteBlob(ctx context.Context, key string) error

	// ListBlobs returns every blob whose key starts with prefix, ordered by key
	ListBlobs(ctx context.Context, prefix string) ([]Blob, error)
}
