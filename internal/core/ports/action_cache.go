package ports

import (
	"context"

	"go.trai.ch/rex/internal/core/domain"
)

// ActionCache maps request fingerprints to previously computed results.
//
//go:generate mockgen -source=action_cache.go -destination=mocks/mock_action_cache.go -package=mocks
type ActionCache interface {
	// Get returns the cached result for fp. The boolean is false on a miss.
	Get(ctx context.Context, fp domain.Fingerprint) (domain.ExecutionResult, bool, error)

	// Put records the result for fp, replacing any previous entry.
	Put(ctx context.Context, fp domain.Fingerprint, result domain.ExecutionResult) error
}
