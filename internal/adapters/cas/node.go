package cas

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/rex/internal/adapters/config"
	"go.trai.ch/rex/internal/core/ports"
)

// NodeID is the unique identifier for the content store Graft node.
const NodeID graft.ID = "adapter.content_store"

func init() {
	graft.Register(graft.Node[ports.ContentStore]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (ports.ContentStore, error) {
			cfg, err := graft.Dep[*config.Config](ctx)
			if err != nil {
				return nil, err
			}
			return Open(ctx, cfg)
		},
	})
}

// Open builds the content store described by cfg: the disk store, fronting
// the object store when one is configured.
func Open(ctx context.Context, cfg *config.Config) (ports.ContentStore, error) {
	compression, err := ParseCompression(cfg.Store.Compression)
	if err != nil {
		return nil, err
	}

	disk, err := NewDiskStore(cfg.Store.Path, compression)
	if err != nil {
		return nil, err
	}

	if !cfg.ObjectStore.Enabled() {
		return disk, nil
	}

	client, err := NewMinIOClient(ObjectStoreOptions{
		Endpoint:  cfg.ObjectStore.Endpoint,
		Bucket:    cfg.ObjectStore.Bucket,
		AccessKey: cfg.ObjectStore.AccessKey,
		SecretKey: cfg.ObjectStore.SecretKey,
		Region:    cfg.ObjectStore.Region,
		UseSSL:    cfg.ObjectStore.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	remote := NewObjectStore(client, cfg.ObjectStore.Bucket)
	if err := remote.EnsureBucket(ctx, cfg.ObjectStore.Region); err != nil {
		return nil, err
	}

	return NewTieredStore(disk, remote), nil
}
