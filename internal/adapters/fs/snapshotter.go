package fs

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"

	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports"
	"go.trai.ch/rex/internal/engine/tree"
	"go.trai.ch/zerr"
)

var _ ports.Snapshotter = (*Snapshotter)(nil)

// Snapshotter implements ports.Snapshotter by walking a directory, storing
// every selected file and building the tree that contains them.
type Snapshotter struct {
	store  ports.ContentStore
	walker *Walker
	hasher *Hasher
}

// NewSnapshotter creates a Snapshotter storing into store.
func NewSnapshotter(store ports.ContentStore, walker *Walker, hasher *Hasher) *Snapshotter {
	return &Snapshotter{store: store, walker: walker, hasher: hasher}
}

// Snapshot implements ports.Snapshotter. Include patterns without wildcards
// must exist. A directory selected by a pattern contributes all of its contents.
func (s *Snapshotter) Snapshot(ctx context.Context, root string, globs domain.PathGlobs) (domain.Snapshot, error) {
	m, err := newMatcher(globs)
	if err != nil {
		return domain.Snapshot{}, err
	}

	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return domain.Snapshot{}, zerr.With(zerr.Wrap(err, "failed to resolve snapshot root"), "path", root)
	}

	for _, lit := range m.literals() {
		if _, err := os.Lstat(filepath.Join(root, filepath.FromSlash(lit))); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return domain.Snapshot{}, zerr.With(zerr.Wrap(domain.ErrNotFound, "input not found"), "path", lit)
			}
			return domain.Snapshot{}, zerr.With(zerr.Wrap(err, "failed to stat input"), "path", lit)
		}
	}

	prune := func(rel string) bool {
		return m.Excluded(rel) || (!m.Included(rel) && !m.underInclude(rel))
	}

	b := tree.NewBuilder(s.store)
	dirSet := map[string]struct{}{}
	var files []string

	for e, err := range s.walker.Walk(root, nil, prune) {
		if err != nil {
			return domain.Snapshot{}, zerr.With(zerr.Wrap(err, "failed to walk snapshot root"), "path", root)
		}
		if err := ctx.Err(); err != nil {
			return domain.Snapshot{}, err
		}
		if !m.Included(e.Path) {
			continue
		}

		if e.IsDir {
			if err := b.AddDirectory(e.Path); err != nil {
				return domain.Snapshot{}, err
			}
			addWithParents(dirSet, e.Path)
			continue
		}

		abs := filepath.Join(root, filepath.FromSlash(e.Path))
		info, ok, err := regularFile(resolvedRoot, abs, e.Path)
		if err != nil {
			return domain.Snapshot{}, err
		}
		if !ok {
			continue
		}

		d, err := s.hasher.Ingest(ctx, abs, info)
		if err != nil {
			return domain.Snapshot{}, err
		}
		if err := b.AddFile(e.Path, d, info.Mode()&0o111 != 0); err != nil {
			return domain.Snapshot{}, err
		}
		files = append(files, e.Path)
		addWithParents(dirSet, path.Dir(e.Path))
	}

	t, err := b.Build(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	d, err := tree.Save(ctx, s.store, t)
	if err != nil {
		return domain.Snapshot{}, err
	}

	dirs := make([]string, 0, len(dirSet))
	for dir := range dirSet {
		dirs = append(dirs, dir)
	}
	slices.Sort(dirs)
	slices.Sort(files)

	return domain.Snapshot{Tree: d, Files: files, Dirs: dirs}, nil
}

// regularFile stats abs, following a symlink only when it stays inside root.
// Symlinks to directories and special files are skipped.
func regularFile(root, abs, rel string) (fs.FileInfo, bool, error) {
	info, err := os.Lstat(abs)
	if err != nil {
		return nil, false, zerr.With(zerr.Wrap(err, "failed to stat file"), "path", rel)
	}

	if info.Mode()&fs.ModeSymlink != 0 {
		target, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return nil, false, zerr.With(zerr.Wrap(err, "failed to resolve symlink"), "path", rel)
		}
		if !within(root, target) {
			return nil, false, zerr.With(zerr.Wrap(domain.ErrPathOutsideRoot, "symlink escapes the snapshot root"), "path", rel)
		}
		if info, err = os.Stat(target); err != nil {
			return nil, false, zerr.With(zerr.Wrap(err, "failed to stat symlink target"), "path", rel)
		}
	}

	return info, info.Mode().IsRegular(), nil
}

func addWithParents(set map[string]struct{}, dir string) {
	for dir != "." && dir != "" {
		if _, ok := set[dir]; ok {
			return
		}
		set[dir] = struct{}{}
		dir = path.Dir(dir)
	}
}
