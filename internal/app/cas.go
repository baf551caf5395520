package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/engine/tree"
	"go.trai.ch/zerr"
)

// sweeper is implemented by stores that support garbage collection.
type sweeper interface {
	Sweep(ctx context.Context, live func(domain.Digest) bool) (int, error)
}

// Put stores files and directories and prints one "<digest>  <path>" line per
// argument. Directories are stored as trees.
func (a *App) Put(ctx context.Context, paths []string) error {
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to stat path"), "path", p)
		}

		var d domain.Digest
		if info.IsDir() {
			abs, err := filepath.Abs(p)
			if err != nil {
				return zerr.With(zerr.Wrap(err, "failed to resolve path"), "path", p)
			}
			snap, err := a.snapshotter.Snapshot(ctx, abs, domain.PathGlobs{Include: []string{"**"}})
			if err != nil {
				return err
			}
			d = snap.Tree
		} else {
			//nolint:gosec // Path is provided by the user
			data, err := os.ReadFile(p)
			if err != nil {
				return zerr.With(zerr.Wrap(err, "failed to read file"), "path", p)
			}
			if d, err = a.store.Store(ctx, data); err != nil {
				return err
			}
		}
		_, _ = fmt.Fprintf(a.stdout, "%s  %s\n", d, p)
	}
	return nil
}

// Get writes the blob identified by digest to stdout.
func (a *App) Get(ctx context.Context, digest string) error {
	d, err := domain.ParseDigest(digest)
	if err != nil {
		return err
	}
	data, err := a.store.Load(ctx, d)
	if err != nil {
		return zerr.With(err, "digest", digest)
	}
	_, err = a.stdout.Write(data)
	return err
}

// Stat prints whether each digest is present in the store.
func (a *App) Stat(ctx context.Context, digests []string) error {
	parsed := make([]domain.Digest, 0, len(digests))
	for _, s := range digests {
		d, err := domain.ParseDigest(s)
		if err != nil {
			return err
		}
		parsed = append(parsed, d)
	}

	missing, err := a.store.FindMissing(ctx, parsed)
	if err != nil {
		return err
	}
	absent := make(map[domain.Digest]bool, len(missing))
	for _, d := range missing {
		absent[d] = true
	}

	for _, d := range parsed {
		state := "present"
		if absent[d] {
			state = "missing"
		}
		_, _ = fmt.Fprintf(a.stdout, "%s  %s\n", d, state)
	}
	return nil
}

// CatTree lists every entry reachable from the tree identified by digest.
func (a *App) CatTree(ctx context.Context, digest string) error {
	d, err := domain.ParseDigest(digest)
	if err != nil {
		return err
	}
	return tree.Walk(ctx, a.store, d, func(p string, n domain.DirectoryNode) error {
		mode := "-"
		switch {
		case n.IsDir():
			mode = "d"
		case n.Executable:
			mode = "x"
		}
		_, err := fmt.Fprintf(a.stdout, "%s  %s  %s\n", mode, n.Digest, p)
		return err
	})
}

// GC removes every blob not reachable from the given tree or blob digests.
func (a *App) GC(ctx context.Context, roots []string) error {
	s, ok := a.store.(sweeper)
	if !ok {
		return zerr.Wrap(domain.ErrInvalidConfig, "the configured content store does not support garbage collection")
	}

	live := map[domain.Digest]struct{}{
		domain.EmptyTreeDigest: {},
		domain.EmptyDigest:     {},
	}
	for _, r := range roots {
		d, err := domain.ParseDigest(r)
		if err != nil {
			return err
		}
		live[d] = struct{}{}
		if _, err := tree.Load(ctx, a.store, d); err != nil {
			// Not a tree; keep the blob alone.
			continue
		}
		reachable, err := tree.Digests(ctx, a.store, d)
		if err != nil {
			return err
		}
		for _, rd := range reachable {
			live[rd] = struct{}{}
		}
	}

	removed, err := s.Sweep(ctx, func(d domain.Digest) bool {
		_, ok := live[d]
		return ok
	})
	if err != nil {
		return err
	}
	a.logger.Info(fmt.Sprintf("removed %d unreferenced blobs", removed))
	return nil
}
