// Package sandbox materializes input trees into temporary directories and
// captures declared outputs back into the content store.
package sandbox

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	rexfs "go.trai.ch/rex/internal/adapters/fs"
	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports"
	"go.trai.ch/rex/internal/engine/tree"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

var _ ports.Materializer = (*Materializer)(nil)

// Materializer implements ports.Materializer on the local filesystem.
type Materializer struct {
	store       ports.ContentStore
	base        string
	verifier    *rexfs.Verifier
	snapshotter *rexfs.Snapshotter
	parallelism int
}

// NewMaterializer creates sandboxes below base, which is created on demand.
// Output directories are captured in full, including .git, .jj and .rex, and
// their files are never memoized since every sandbox path is used once.
func NewMaterializer(store ports.ContentStore, base string, verifier *rexfs.Verifier) *Materializer {
	walker := rexfs.NewWalker(rexfs.WithStateDirs())
	hasher := rexfs.NewHasher(store, rexfs.WithoutMemo())

	return &Materializer{
		store:       store,
		base:        base,
		verifier:    verifier,
		snapshotter: rexfs.NewSnapshotter(store, walker, hasher),
		parallelism: 4 * runtime.NumCPU(),
	}
}

// Sandbox is a directory holding one materialized tree.
type Sandbox struct {
	path string
	once sync.Once
	err  error
}

// Path implements ports.Sandbox.
func (s *Sandbox) Path() string {
	return s.path
}

// Close implements ports.Sandbox. Only the first call removes the directory;
// later calls return the same result.
func (s *Sandbox) Close() error {
	s.once.Do(func() {
		s.err = removeAll(s.path)
	})
	return s.err
}

// removeAll deletes root, first restoring write permission on directories a
// process may have made read-only.
func removeAll(root string) error {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() {
			_ = os.Chmod(path, domain.DirPerm)
		}
		return nil
	})
	if err := os.RemoveAll(root); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return zerr.With(zerr.Wrap(err, "failed to remove sandbox"), "path", root)
	}
	return nil
}

// Materialize implements ports.Materializer.
func (m *Materializer) Materialize(ctx context.Context, root domain.Digest) (ports.Sandbox, error) {
	if err := os.MkdirAll(m.base, domain.DirPerm); err != nil {
		return nil, domain.Infrastructure("create sandbox", zerr.With(err, "path", m.base))
	}

	dir, err := os.MkdirTemp(m.base, domain.SandboxPattern)
	if err != nil {
		return nil, domain.Infrastructure("create sandbox", zerr.With(err, "path", m.base))
	}
	sb := &Sandbox{path: dir}

	if err := m.populate(ctx, dir, root); err != nil {
		_ = sb.Close()
		return nil, err
	}
	return sb, nil
}

// populate creates every directory first, then writes the files concurrently.
func (m *Materializer) populate(ctx context.Context, dir string, root domain.Digest) error {
	type pending struct {
		path       string
		digest     domain.Digest
		executable bool
	}
	var files []pending

	err := tree.Walk(ctx, m.store, root, func(p string, n domain.DirectoryNode) error {
		abs := filepath.Join(dir, filepath.FromSlash(p))
		if n.IsDir() {
			if err := os.Mkdir(abs, domain.DirPerm); err != nil {
				return domain.Infrastructure("materialize directory", zerr.With(err, "path", p))
			}
			return nil
		}
		files = append(files, pending{path: abs, digest: n.Digest, executable: n.Executable})
		return nil
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.parallelism)
	for _, f := range files {
		g.Go(func() error {
			data, err := m.store.Load(gctx, f.digest)
			if err != nil {
				return err
			}
			perm := os.FileMode(domain.FilePerm)
			if f.executable {
				perm = domain.ExecFilePerm
			}
			if err := os.WriteFile(f.path, data, perm); err != nil {
				return domain.Infrastructure("materialize file", zerr.With(err, "path", f.path))
			}
			// WriteFile honours the umask; the executable bit must survive it.
			if err := os.Chmod(f.path, perm); err != nil {
				return domain.Infrastructure("materialize file", zerr.With(err, "path", f.path))
			}
			return nil
		})
	}
	return g.Wait()
}

// Capture implements ports.Materializer.
func (m *Materializer) Capture(ctx context.Context, sb ports.Sandbox, workDir string, files, dirs []string) (domain.Digest, error) {
	if err := m.verifier.VerifyOutputs(sb.Path(), workDir, files, dirs); err != nil {
		return domain.Digest{}, err
	}
	root := filepath.Join(sb.Path(), filepath.FromSlash(workDir))

	b := tree.NewBuilder(m.store)

	for _, f := range files {
		abs := filepath.Join(root, filepath.FromSlash(f))
		info, err := os.Stat(abs)
		if err != nil {
			return domain.Digest{}, domain.Infrastructure("capture output", zerr.With(zerr.Wrap(err, "failed to stat output"), "path", f))
		}
		//nolint:gosec // Declared outputs are verified to stay inside the sandbox
		data, err := os.ReadFile(abs)
		if err != nil {
			return domain.Digest{}, domain.Infrastructure("capture output", zerr.With(zerr.Wrap(err, "failed to read output"), "path", f))
		}
		d, err := m.store.Store(ctx, data)
		if err != nil {
			return domain.Digest{}, err
		}
		if err := b.AddFile(f, d, info.Mode()&0o111 != 0); err != nil {
			return domain.Digest{}, err
		}
	}

	for _, dir := range dirs {
		snap, err := m.snapshotter.Snapshot(ctx, filepath.Join(root, filepath.FromSlash(dir)), domain.PathGlobs{Include: []string{"**"}})
		if err != nil {
			return domain.Digest{}, zerr.With(err, "output", dir)
		}
		if err := b.AddTree(dir, snap.Tree); err != nil {
			return domain.Digest{}, err
		}
	}

	t, err := b.Build(ctx)
	if err != nil {
		return domain.Digest{}, err
	}
	return tree.Save(ctx, m.store, t)
}
