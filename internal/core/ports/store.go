// Package ports defines the core interfaces for the application.
package ports

import (
	"context"

	"go.trai.ch/rex/internal/core/domain"
)

// ContentStore is content-addressed storage for blobs and serialized trees.
// Implementations must be safe for concurrent use; storing identical bytes
// concurrently converges to a single stored copy.
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type ContentStore interface {
	// Store saves data and returns its digest. Storing the same bytes twice is a no-op.
	Store(ctx context.Context, data []byte) (domain.Digest, error)

	// Load returns the bytes for d, or an error matching domain.ErrNotFound.
	// Implementations never return bytes that do not hash to d.
	Load(ctx context.Context, d domain.Digest) ([]byte, error)

	// Contains reports whether d is stored.
	Contains(ctx context.Context, d domain.Digest) (bool, error)

	// FindMissing returns the subset of ds that is not stored, in input order.
	FindMissing(ctx context.Context, ds []domain.Digest) ([]domain.Digest, error)
}
