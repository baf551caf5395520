package shell

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/rex/internal/adapters/cas"
	"go.trai.ch/rex/internal/adapters/config"
	"go.trai.ch/rex/internal/adapters/logger"
	"go.trai.ch/rex/internal/adapters/sandbox"
	"go.trai.ch/rex/internal/adapters/telemetry"
	"go.trai.ch/rex/internal/core/ports"
)

// NodeID is the unique identifier for the local runner Graft node.
const NodeID graft.ID = "adapter.runner.local"

func init() {
	graft.Register(graft.Node[*Runner]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			cas.NodeID,
			sandbox.NodeID,
			logger.NodeID,
			telemetry.TracerNodeID,
			config.NodeID,
		},
		Run: func(ctx context.Context) (*Runner, error) {
			store, err := graft.Dep[ports.ContentStore](ctx)
			if err != nil {
				return nil, err
			}
			materializer, err := graft.Dep[ports.Materializer](ctx)
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
			return NewRunner(store, materializer, log, tracer, cfg.Local.Concurrency), nil
		},
	})
}
