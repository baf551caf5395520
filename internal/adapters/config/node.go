package config

import (
	"context"
	"os"

	"github.com/grindlemire/graft"
	"go.trai.ch/rex/internal/adapters/logger"
	"go.trai.ch/rex/internal/core/ports"
	"go.trai.ch/zerr"
)

// NodeID is the unique identifier for the configuration Graft node.
const NodeID graft.ID = "adapter.config"

func init() {
	graft.Register(graft.Node[*Config]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (*Config, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			wd, err := os.Getwd()
			if err != nil {
				return nil, zerr.Wrap(err, "failed to determine working directory")
			}

			return NewLoader(log).Load(wd)
		},
	})
}
