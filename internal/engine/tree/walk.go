package tree

import (
	"context"
	"errors"

	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports"
	"go.trai.ch/zerr"
)

// WalkFunc is called for every entry below the root with its slash-joined path.
type WalkFunc func(path string, node domain.DirectoryNode) error

// Walk visits the tree under root depth-first in name order. Directories are
// visited before their contents.
func Walk(ctx context.Context, store ports.ContentStore, root domain.Digest, fn WalkFunc) error {
	return walk(ctx, store, "", root, fn)
}

func walk(ctx context.Context, store ports.ContentStore, prefix string, d domain.Digest, fn WalkFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t, err := Load(ctx, store, d)
	if err != nil {
		return err
	}

	for _, n := range t.Entries() {
		p := domain.JoinPath(prefix, n.Name)
		if err := fn(p, n); err != nil {
			return err
		}
		if n.IsDir() {
			if err := walk(ctx, store, p, n.Digest, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// FilesContent reads every file of the tree under root.
func FilesContent(ctx context.Context, store ports.ContentStore, root domain.Digest) ([]domain.FileContent, error) {
	var files []domain.FileContent
	err := Walk(ctx, store, root, func(p string, n domain.DirectoryNode) error {
		if n.IsDir() {
			return nil
		}
		data, err := store.Load(ctx, n.Digest)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to read file"), "path", p)
		}
		files = append(files, domain.FileContent{Path: p, Content: data, Executable: n.Executable})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Digests returns the digests of every blob and nested tree reachable from
// root, including root itself. The empty tree is omitted.
func Digests(ctx context.Context, store ports.ContentStore, root domain.Digest) ([]domain.Digest, error) {
	var out []domain.Digest
	if root != domain.EmptyTreeDigest {
		out = append(out, root)
	}
	err := Walk(ctx, store, root, func(_ string, n domain.DirectoryNode) error {
		if n.Digest != domain.EmptyTreeDigest || !n.IsDir() {
			out = append(out, n.Digest)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Missing returns the digests reachable from root that store does not hold.
// Subtrees below a missing tree cannot be inspected, so only the missing tree
// itself is reported for them.
func Missing(ctx context.Context, store ports.ContentStore, root domain.Digest) ([]domain.Digest, error) {
	var (
		missing []domain.Digest
		files   []domain.Digest
	)

	queue := []domain.Digest{root}
	seen := map[domain.Digest]struct{}{}
	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]
		if _, ok := seen[d]; ok || d == domain.EmptyTreeDigest {
			continue
		}
		seen[d] = struct{}{}

		t, err := Load(ctx, store, d)
		if errors.Is(err, domain.ErrNotFound) {
			missing = append(missing, d)
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, n := range t.Entries() {
			if n.IsDir() {
				queue = append(queue, n.Digest)
			} else {
				files = append(files, n.Digest)
			}
		}
	}

	absent, err := store.FindMissing(ctx, files)
	if err != nil {
		return nil, err
	}
	return append(missing, absent...), nil
}
