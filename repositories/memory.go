package repositories

import (
	"context"
	"sync"

	"github.com/kubescape/evalresolver/core/domain"
	"github.com/kubescape/evalresolver/core/ports"
	"go.opentelemetry.io/otel"
)

// MemoryStore implements DigestCache with in-memory storage (maps) to be used for tests
type MemoryStore struct {
	entries map[domain.CacheKey]domain.DigestCacheEntry
	mu      sync.RWMutex
	writes  int
}

var _ ports.DigestCache = (*MemoryStore)(nil)

// NewMemoryStorage initializes the MemoryStore struct and its map
func NewMemoryStorage() *MemoryStore {
	return &MemoryStore{
		entries: map[domain.CacheKey]domain.DigestCacheEntry{},
	}
}

// Read returns the cached content from an in-memory map if the digest matches
func (m *MemoryStore) Read(ctx context.Context, key domain.CacheKey, expectedDigest string) ([]byte, bool) {
	_, span := otel.Tracer("").Start(ctx, "MemoryStore.Read")
	defer span.End()

	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[key]
	if !ok || expectedDigest == "" || entry.ImageDigest != expectedDigest {
		return nil, false
	}
	return entry.Content, true
}

// Write stores content to an in-memory map
func (m *MemoryStore) Write(ctx context.Context, key domain.CacheKey, content []byte, digest string) error {
	_, span := otel.Tracer("").Start(ctx, "MemoryStore.Write")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	m.entries[key] = domain.DigestCacheEntry{
		ImageRef:    key.ImageRef,
		TargetPath:  key.TargetPath,
		Content:     append([]byte(nil), content...),
		ImageDigest: digest,
	}
	return nil
}

// Delete removes one entry
func (m *MemoryStore) Delete(_ context.Context, key domain.CacheKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Purge removes all entries
func (m *MemoryStore) Purge(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = map[domain.CacheKey]domain.DigestCacheEntry{}
	return nil
}

// Writes returns how many times Write was called
func (m *MemoryStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}
