package actioncache

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/rex/internal/adapters/config"
	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports"
	"go.trai.ch/zerr"
)

// NodeID is the unique identifier for the action cache Graft node.
const NodeID graft.ID = "adapter.action_cache"

func init() {
	graft.Register(graft.Node[ports.ActionCache]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (ports.ActionCache, error) {
			cfg, err := graft.Dep[*config.Config](ctx)
			if err != nil {
				return nil, err
			}
			return Open(ctx, cfg.ActionCache)
		},
	})
}

// Open builds the cache selected by cfg.
func Open(ctx context.Context, cfg config.ActionCacheConfig) (ports.ActionCache, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemoryCache(), nil
	case config.BackendDisk:
		return NewDiskCache(cfg.Path), nil
	case config.BackendPostgres:
		return OpenPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "unknown action cache backend"), "backend", cfg.Backend)
	}
}
