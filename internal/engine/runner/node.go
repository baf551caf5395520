package runner

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/rex/internal/adapters/actioncache"
	"go.trai.ch/rex/internal/adapters/cas"
	"go.trai.ch/rex/internal/adapters/config"
	"go.trai.ch/rex/internal/adapters/logger"
	"go.trai.ch/rex/internal/adapters/remote"
	"go.trai.ch/rex/internal/adapters/shell"
	"go.trai.ch/rex/internal/adapters/telemetry"
	"go.trai.ch/rex/internal/core/ports"
)

// NodeID is the unique identifier for the runner stacks Graft node.
const NodeID graft.ID = "engine.runner"

// Stacks holds the composed runners.
type Stacks struct {
	// Default serves the CLI: remote execution when configured, otherwise local,
	// behind the action cache.
	Default ports.CommandRunner
	// Local runs on this machine only, behind the action cache. The remote
	// execution server uses it.
	Local ports.CommandRunner
}

func init() {
	graft.Register(graft.Node[*Stacks]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			shell.NodeID,
			remote.NodeID,
			actioncache.NodeID,
			cas.NodeID,
			logger.NodeID,
			telemetry.TracerNodeID,
			config.NodeID,
		},
		Run: runStacksNode,
	})
}

func runStacksNode(ctx context.Context) (*Stacks, error) {
	local, err := graft.Dep[*shell.Runner](ctx)
	if err != nil {
		return nil, err
	}
	rr, err := graft.Dep[*remote.Runner](ctx)
	if err != nil {
		return nil, err
	}
	cache, err := graft.Dep[ports.ActionCache](ctx)
	if err != nil {
		return nil, err
	}
	store, err := graft.Dep[ports.ContentStore](ctx)
	if err != nil {
		return nil, err
	}
	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}
	tracer, err := graft.Dep[ports.Tracer](ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := graft.Dep[*config.Config](ctx)
	if err != nil {
		return nil, err
	}

	wrap := func(inner ports.CommandRunner) ports.CommandRunner {
		return NewCaching(inner, cache, store, log, tracer, WithCacheFailures(cfg.Local.CacheFailures))
	}
	return &Stacks{
		Default: wrap(Stack(local, rr, cfg.Remote.Fallback, log)),
		Local:   wrap(local),
	}, nil
}

// Stack selects the backend for the CLI: remote when configured, with local
// fallback when enabled, and local otherwise.
func Stack(local *shell.Runner, rr *remote.Runner, fallback bool, log ports.Logger) ports.CommandRunner {
	switch {
	case rr == nil:
		return local
	case fallback:
		return NewFallback(rr, local, log)
	default:
		return rr
	}
}
