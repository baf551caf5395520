package remote

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/rex/internal/adapters/cas"
	"go.trai.ch/rex/internal/adapters/config"
	"go.trai.ch/rex/internal/adapters/logger"
	"go.trai.ch/rex/internal/adapters/telemetry"
	"go.trai.ch/rex/internal/core/ports"
)

// NodeID is the unique identifier for the remote runner Graft node. The node
// yields nil when no remote address is configured.
const NodeID graft.ID = "adapter.runner.remote"

func init() {
	graft.Register(graft.Node[*Runner]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID, cas.NodeID, logger.NodeID, telemetry.TracerNodeID},
		Run: func(ctx context.Context) (*Runner, error) {
			cfg, err := graft.Dep[*config.Config](ctx)
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

			if !cfg.Remote.Enabled() {
				return nil, nil
			}
			client, err := Dial(cfg.Remote.Address)
			if err != nil {
				return nil, err
			}
			return NewRunner(client, store, log, tracer, RunnerOptions{
				MaxInflight: cfg.Remote.MaxInflight,
				PollStep:    cfg.Remote.PollStep,
				PollMax:     cfg.Remote.PollMax,
			}), nil
		},
	})
}
