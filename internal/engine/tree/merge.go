package tree

import (
	"context"

	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports"
)

// Merger combines trees, loading and storing nested levels through a ContentStore.
type Merger struct {
	store ports.ContentStore
}

// NewMerger creates a Merger backed by store.
func NewMerger(store ports.ContentStore) *Merger {
	return &Merger{store: store}
}

// Merge returns the union of a and b. Entries that agree are kept once,
// directories that differ are merged recursively, and anything else is a
// *domain.MergeConflictError naming the slash-joined path from the root.
// The result depends only on the set of inputs, so Merge is commutative and
// associative, and merging a tree with itself returns it unchanged.
func (m *Merger) Merge(ctx context.Context, a, b *domain.DirectoryTree) (*domain.DirectoryTree, error) {
	return m.merge(ctx, "", a, b)
}

// MergeDigests folds Merge over the trees stored under digests and returns the
// digest of the stored result. No digests yield the empty tree.
func (m *Merger) MergeDigests(ctx context.Context, digests ...domain.Digest) (domain.Digest, error) {
	acc := domain.EmptyTree
	for _, d := range digests {
		if d == acc.Digest() {
			continue
		}
		t, err := Load(ctx, m.store, d)
		if err != nil {
			return domain.Digest{}, err
		}
		if acc, err = m.Merge(ctx, acc, t); err != nil {
			return domain.Digest{}, err
		}
	}

	if acc.Len() == 0 {
		return domain.EmptyTreeDigest, nil
	}
	return Save(ctx, m.store, acc)
}

func (m *Merger) merge(ctx context.Context, prefix string, a, b *domain.DirectoryTree) (*domain.DirectoryTree, error) {
	if a.Equal(b) || b.Len() == 0 {
		return a, nil
	}
	if a.Len() == 0 {
		return b, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := make(map[string]domain.DirectoryNode, a.Len()+b.Len())
	for _, n := range a.Entries() {
		merged[n.Name] = n
	}

	for _, nb := range b.Entries() {
		na, ok := merged[nb.Name]
		if !ok || na.SameContent(nb) {
			merged[nb.Name] = nb
			continue
		}

		path := domain.JoinPath(prefix, nb.Name)
		if !na.IsDir() || !nb.IsDir() {
			return nil, &domain.MergeConflictError{Path: path}
		}

		child, err := m.mergeChildren(ctx, path, na.Digest, nb.Digest)
		if err != nil {
			return nil, err
		}
		merged[nb.Name] = domain.DirNode(nb.Name, child)
	}

	return domain.FromEntries(merged)
}

func (m *Merger) mergeChildren(ctx context.Context, path string, a, b domain.Digest) (domain.Digest, error) {
	ta, err := Load(ctx, m.store, a)
	if err != nil {
		return domain.Digest{}, err
	}
	tb, err := Load(ctx, m.store, b)
	if err != nil {
		return domain.Digest{}, err
	}

	child, err := m.merge(ctx, path, ta, tb)
	if err != nil {
		return domain.Digest{}, err
	}
	if child.Len() == 0 {
		return domain.EmptyTreeDigest, nil
	}
	return Save(ctx, m.store, child)
}
