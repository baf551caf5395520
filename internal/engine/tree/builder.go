package tree

import (
	"context"

	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports"
	"go.trai.ch/zerr"
)

// Builder assembles a tree from slash-separated paths. Intermediate
// directories are created implicitly and every level is stored on Build.
type Builder struct {
	store ports.ContentStore
	root  *level
}

type level struct {
	leaves map[string]domain.DirectoryNode
	dirs   map[string]*level
}

func newLevel() *level {
	return &level{
		leaves: map[string]domain.DirectoryNode{},
		dirs:   map[string]*level{},
	}
}

// NewBuilder creates an empty Builder storing into store.
func NewBuilder(store ports.ContentStore) *Builder {
	return &Builder{store: store, root: newLevel()}
}

// AddFile places a file node at p.
func (b *Builder) AddFile(p string, d domain.Digest, executable bool) error {
	return b.addLeaf(p, func(name string) domain.DirectoryNode {
		return domain.FileNode(name, d, executable)
	})
}

// AddTree places an already stored tree at p.
func (b *Builder) AddTree(p string, d domain.Digest) error {
	return b.addLeaf(p, func(name string) domain.DirectoryNode {
		return domain.DirNode(name, d)
	})
}

// AddDirectory ensures a possibly empty directory exists at p.
func (b *Builder) AddDirectory(p string) error {
	cleaned, err := domain.CleanRelativePath(p)
	if err != nil {
		return err
	}
	_, err = b.descend(domain.SplitPath(cleaned), cleaned)
	return err
}

func (b *Builder) addLeaf(p string, mk func(name string) domain.DirectoryNode) error {
	cleaned, err := domain.CleanRelativePath(p)
	if err != nil {
		return err
	}

	parts := domain.SplitPath(cleaned)
	parent, err := b.descend(parts[:len(parts)-1], cleaned)
	if err != nil {
		return err
	}

	name := parts[len(parts)-1]
	node := mk(name)
	if existing, ok := parent.leaves[name]; ok && !existing.SameContent(node) {
		return &domain.MergeConflictError{Path: cleaned}
	}
	if _, ok := parent.dirs[name]; ok {
		return &domain.MergeConflictError{Path: cleaned}
	}
	parent.leaves[name] = node
	return nil
}

// descend walks to the level named by parts, creating missing levels.
func (b *Builder) descend(parts []string, full string) (*level, error) {
	cur := b.root
	for _, name := range parts {
		if err := domain.ValidateEntryName(name); err != nil {
			return nil, zerr.With(err, "path", full)
		}
		if _, ok := cur.leaves[name]; ok {
			return nil, &domain.MergeConflictError{Path: full}
		}
		next, ok := cur.dirs[name]
		if !ok {
			next = newLevel()
			cur.dirs[name] = next
		}
		cur = next
	}
	return cur, nil
}

// Build stores every level and returns the root tree.
func (b *Builder) Build(ctx context.Context) (*domain.DirectoryTree, error) {
	return b.build(ctx, b.root)
}

func (b *Builder) build(ctx context.Context, l *level) (*domain.DirectoryTree, error) {
	entries := make(map[string]domain.DirectoryNode, len(l.leaves)+len(l.dirs))
	for name, n := range l.leaves {
		entries[name] = n
	}

	for name, child := range l.dirs {
		t, err := b.build(ctx, child)
		if err != nil {
			return nil, err
		}
		d, err := Save(ctx, b.store, t)
		if err != nil {
			return nil, err
		}
		entries[name] = domain.DirNode(name, d)
	}

	return domain.FromEntries(entries)
}
