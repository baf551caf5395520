// Package tree composes and traverses DirectoryTrees held in a ContentStore.
package tree

import (
	"context"

	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports"
	"go.trai.ch/zerr"
)

// Load reads and decodes the tree stored under d. The empty tree is never looked up.
func Load(ctx context.Context, store ports.ContentStore, d domain.Digest) (*domain.DirectoryTree, error) {
	if d == domain.EmptyTreeDigest {
		return domain.EmptyTree, nil
	}

	data, err := store.Load(ctx, d)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to load tree"), "digest", d.String())
	}

	t, err := domain.DecodeTree(data)
	if err != nil {
		return nil, zerr.With(err, "digest", d.String())
	}
	return t, nil
}

// Save stores the canonical encoding of t.
func Save(ctx context.Context, store ports.ContentStore, t *domain.DirectoryTree) (domain.Digest, error) {
	d, err := store.Store(ctx, t.Encode())
	if err != nil {
		return domain.Digest{}, zerr.Wrap(err, "failed to store tree")
	}
	return d, nil
}
