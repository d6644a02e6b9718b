package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore keeps artifacts in process memory. It honours the same TTL and
// ceiling rules as the persisted backends and is meant for development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	maxSize int64
	size    int64
	now     func() time.Time

	// entries is only read with Peek so it stays in write order.
	entries *expirable.LRU[Key, *Artifact]
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an in-memory store bounded to maxSize bytes (0 means unbounded).
func NewMemoryStore(maxSize int64, opts ...Option) *MemoryStore {
	o := applyOptions(opts)
	s := &MemoryStore{
		maxSize: maxSize,
		now:     o.now,
	}
	// Expiry follows the artifact's own ExpiresAt against s.now, so the LRU
	// itself never expires entries and holds any number of them.
	s.entries = expirable.NewLRU[Key, *Artifact](0, s.onEvict, 0)
	return s
}

// onEvict runs with s.mu held, from within the LRU call that dropped the entry.
func (s *MemoryStore) onEvict(_ Key, artifact *Artifact) {
	s.size -= artifact.Size()
}

// Get retrieves an artifact by key.
func (s *MemoryStore) Get(_ context.Context, key Key) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	artifact, ok := s.entries.Peek(key)
	if !ok {
		CacheMisses.WithLabelValues(backendMemory).Inc()
		return nil, ErrCacheMiss
	}

	if artifact.IsExpiredAt(s.now()) {
		s.entries.Remove(key)
		CacheEvictions.WithLabelValues(backendMemory, "expired").Inc()
		CacheMisses.WithLabelValues(backendMemory).Inc()
		CacheSize.WithLabelValues(backendMemory).Set(float64(s.size))
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(backendMemory).Inc()
	return artifact, nil
}

// Set stores data under key and evicts least-recently-written entries past the ceiling.
func (s *MemoryStore) Set(_ context.Context, key Key, data []byte, ttl time.Duration) error {
	if err := validateSet(data, ttl, s.maxSize); err != nil {
		CacheErrors.WithLabelValues(backendMemory, "set").Inc()
		return err
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Add would update an existing entry in place without the evict callback,
	// so drop it first to keep the byte total right.
	s.entries.Remove(key)

	artifact := newArtifact(buf, s.now(), ttl)
	s.entries.Add(key, artifact)
	s.size += artifact.Size()

	for s.maxSize > 0 && s.size > s.maxSize {
		if _, _, ok := s.entries.RemoveOldest(); !ok {
			break
		}
		CacheEvictions.WithLabelValues(backendMemory, "ceiling").Inc()
	}

	CacheSize.WithLabelValues(backendMemory).Set(float64(s.size))
	return nil
}

// Delete removes an artifact.
func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entries.Remove(key) {
		CacheSize.WithLabelValues(backendMemory).Set(float64(s.size))
	}
	return nil
}

// Len returns the number of entries held, expired ones included until they are read.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Len()
}

// Size returns the total bytes currently held.
func (s *MemoryStore) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
