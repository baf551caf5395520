package sandbox

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/rex/internal/adapters/cas"
	"go.trai.ch/rex/internal/adapters/config"
	rexfs "go.trai.ch/rex/internal/adapters/fs"
	"go.trai.ch/rex/internal/core/ports"
)

// NodeID is the unique identifier for the materializer Graft node.
const NodeID graft.ID = "adapter.sandbox"

func init() {
	graft.Register(graft.Node[ports.Materializer]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{cas.NodeID, config.NodeID, rexfs.VerifierNodeID},
		Run: func(ctx context.Context) (ports.Materializer, error) {
			store, err := graft.Dep[ports.ContentStore](ctx)
			if err != nil {
				return nil, err
			}
			cfg, err := graft.Dep[*config.Config](ctx)
			if err != nil {
				return nil, err
			}
			verifier, err := graft.Dep[*rexfs.Verifier](ctx)
			if err != nil {
				return nil, err
			}
			return NewMaterializer(store, cfg.Local.SandboxDir, verifier), nil
		},
	})
}
