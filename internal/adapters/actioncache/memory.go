// Package actioncache implements ports.ActionCache on memory, local disk and Postgres.
package actioncache

import (
	"context"
	"sync"

	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports"
)

var _ ports.ActionCache = (*MemoryCache)(nil)

// MemoryCache keeps results for the lifetime of the process.
type MemoryCache struct {
	mu      sync.RWMutex
	results map[domain.Fingerprint]domain.ExecutionResult
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{results: make(map[domain.Fingerprint]domain.ExecutionResult)}
}

// Get implements ports.ActionCache.
func (c *MemoryCache) Get(ctx context.Context, fp domain.Fingerprint) (domain.ExecutionResult, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.ExecutionResult{}, false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.results[fp]
	return r, ok, nil
}

// Put implements ports.ActionCache.
func (c *MemoryCache) Put(ctx context.Context, fp domain.Fingerprint, result domain.ExecutionResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[fp] = result
	return nil
}
