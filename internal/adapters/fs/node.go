package fs

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/rex/internal/adapters/cas"
	"go.trai.ch/rex/internal/core/ports"
)

const (
	// WalkerNodeID is the unique identifier for the walker Graft node.
	WalkerNodeID graft.ID = "adapter.fs.walker"
	// HasherNodeID is the unique identifier for the hasher Graft node.
	HasherNodeID graft.ID = "adapter.fs.hasher"
	// SnapshotterNodeID is the unique identifier for the snapshotter Graft node.
	SnapshotterNodeID graft.ID = "adapter.fs.snapshotter"
	// VerifierNodeID is the unique identifier for the output verifier Graft node.
	VerifierNodeID graft.ID = "adapter.fs.verifier"
)

func init() {
	graft.Register(graft.Node[*Walker]{
		ID:        WalkerNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Walker, error) {
			return NewWalker(), nil
		},
	})

	graft.Register(graft.Node[*Verifier]{
		ID:        VerifierNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Verifier, error) {
			return NewVerifier(), nil
		},
	})

	graft.Register(graft.Node[*Hasher]{
		ID:        HasherNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{cas.NodeID},
		Run: func(ctx context.Context) (*Hasher, error) {
			store, err := graft.Dep[ports.ContentStore](ctx)
			if err != nil {
				return nil, err
			}
			return NewHasher(store), nil
		},
	})

	graft.Register(graft.Node[ports.Snapshotter]{
		ID:        SnapshotterNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{cas.NodeID, WalkerNodeID, HasherNodeID},
		Run: func(ctx context.Context) (ports.Snapshotter, error) {
			store, err := graft.Dep[ports.ContentStore](ctx)
			if err != nil {
				return nil, err
			}
			walker, err := graft.Dep[*Walker](ctx)
			if err != nil {
				return nil, err
			}
			hasher, err := graft.Dep[*Hasher](ctx)
			if err != nil {
				return nil, err
			}
			return NewSnapshotter(store, walker, hasher), nil
		},
	})
}
