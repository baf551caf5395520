package cas

import (
	"context"
	"slices"
	"sync"

	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ContentStore = (*MemoryStore)(nil)

// MemoryStore implements ports.ContentStore in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[domain.Digest][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[domain.Digest][]byte)}
}

// Store implements ports.ContentStore.
func (s *MemoryStore) Store(ctx context.Context, data []byte) (domain.Digest, error) {
	if err := ctx.Err(); err != nil {
		return domain.Digest{}, err
	}

	d := domain.DigestOf(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[d]; !ok {
		s.blobs[d] = slices.Clone(data)
	}
	return d, nil
}

// Load implements ports.ContentStore.
func (s *MemoryStore) Load(ctx context.Context, d domain.Digest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.blobs[d]
	s.mu.RUnlock()
	if !ok {
		return nil, zerr.With(zerr.Wrap(domain.ErrNotFound, "failed to load blob"), "digest", d.String())
	}
	return slices.Clone(data), nil
}

// Contains implements ports.ContentStore.
func (s *MemoryStore) Contains(ctx context.Context, d domain.Digest) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[d]
	return ok, nil
}

// FindMissing implements ports.ContentStore.
func (s *MemoryStore) FindMissing(ctx context.Context, ds []domain.Digest) ([]domain.Digest, error) {
	return findMissing(ctx, s, ds)
}

// Len returns the number of stored blobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
