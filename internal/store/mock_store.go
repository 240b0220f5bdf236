// ABOUTME: Mock Blobs implementation for testing
// ABOUTME: Allows tests to run without SQLite and counts writes per key

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MockStore is an in-memory Blobs implementation for testing.
type MockStore struct {
	mu     sync.RWMutex
	blobs  map[string]Blob
	writes map[string]int
	err    error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		blobs:  make(map[string]Blob),
		writes: make(map[string]int),
	}
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (m *MockStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Writes returns how many times key has been written with PutBlob.
func (m *MockStore) Writes(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes[key]
}

// GetBlob retrieves a blob value.
func (m *MockStore) GetBlob(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return nil, m.err
	}
	b, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	// Make a copy to avoid external modification
	return append([]byte(nil), b.Value...), nil
}

// PutBlob stores a blob value.
func (m *MockStore) PutBlob(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	b := m.blobs[key]
	b.Key = key
	b.Value = append([]byte(nil), value...)
	b.Version++
	b.UpdatedAt = time.Now()
	m.blobs[key] = b
	m.writes[key]++
	return nil
}

// DeleteBlob removes a blob.
func (m *MockStore) DeleteBlob(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	delete(m.blobs, key)
	return nil
}

// ListBlobs returns blobs under prefix ordered by key.
func (m *MockStore) ListBlobs(ctx context.Context, prefix string) ([]Blob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return nil, m.err
	}
	var out []Blob
	for key, b := range m.blobs {
		if strings.HasPrefix(key, prefix) {
			b.Value = append([]byte(nil), b.Value...)
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
