// Package cas implements content-addressed blob storage.
package cas

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ContentStore = (*DiskStore)(nil)

// DiskStore implements ports.ContentStore as a sharded directory of files
// named by digest. Writes go to a temporary file in the shard and are renamed
// into place, so readers never observe partial blobs and concurrent writers of
// the same content converge on one file.
type DiskStore struct {
	root        string
	compression Compression
}

// NewDiskStore creates a store rooted at the given directory.
func NewDiskStore(root string, compression Compression) (*DiskStore, error) {
	if err := os.MkdirAll(root, domain.DirPerm); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create store directory"), "path", root)
	}
	return &DiskStore{root: root, compression: compression}, nil
}

// Root returns the store directory.
func (s *DiskStore) Root() string {
	return s.root
}

// Store implements ports.ContentStore.
func (s *DiskStore) Store(ctx context.Context, data []byte) (domain.Digest, error) {
	if err := ctx.Err(); err != nil {
		return domain.Digest{}, err
	}

	d := domain.DigestOf(data)
	filename := s.filename(d)

	if _, err := os.Stat(filename); err == nil {
		return d, nil
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return domain.Digest{}, domain.Infrastructure("store blob", zerr.Wrap(err, "failed to create shard"))
	}

	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return domain.Digest{}, domain.Infrastructure("store blob", zerr.Wrap(err, "failed to create temp file"))
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(encode(data, s.compression)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return domain.Digest{}, domain.Infrastructure("store blob", zerr.Wrap(err, "failed to write blob"))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return domain.Digest{}, domain.Infrastructure("store blob", zerr.Wrap(err, "failed to close blob"))
	}

	if err := os.Rename(tmpName, filename); err != nil {
		_ = os.Remove(tmpName)
		return domain.Digest{}, domain.Infrastructure("store blob", zerr.Wrap(err, "failed to commit blob"))
	}

	return d, nil
}

// Load implements ports.ContentStore. The content is verified against d on every read.
func (s *DiskStore) Load(ctx context.Context, d domain.Digest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	//nolint:gosec // Path is constructed from the store root and a digest
	stored, err := os.ReadFile(s.filename(d))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, zerr.With(zerr.Wrap(domain.ErrNotFound, "failed to load blob"), "digest", d.String())
		}
		return nil, domain.Infrastructure("load blob", zerr.Wrap(err, "failed to read blob"))
	}

	data, err := decode(stored, d.Size)
	if err != nil {
		return nil, domain.Infrastructure("load blob", zerr.With(err, "digest", d.String()))
	}

	if !d.Matches(data) {
		return nil, domain.Infrastructure("load blob",
			zerr.With(zerr.Wrap(domain.ErrCorruptBlob, "failed to verify blob"), "digest", d.String()))
	}

	return data, nil
}

// Contains implements ports.ContentStore.
func (s *DiskStore) Contains(ctx context.Context, d domain.Digest) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(s.filename(d))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, domain.Infrastructure("stat blob", err)
	}
}

// FindMissing implements ports.ContentStore.
func (s *DiskStore) FindMissing(ctx context.Context, ds []domain.Digest) ([]domain.Digest, error) {
	return findMissing(ctx, s, ds)
}

func (s *DiskStore) filename(d domain.Digest) string {
	hexHash := d.Hex()
	return filepath.Join(s.root, hexHash[:2], hexHash+"-"+strconv.FormatInt(d.Size, 10))
}

// findMissing checks each digest with Contains and keeps input order.
func findMissing(ctx context.Context, s ports.ContentStore, ds []domain.Digest) ([]domain.Digest, error) {
	var missing []domain.Digest
	seen := make(map[domain.Digest]struct{}, len(ds))
	for _, d := range ds {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}

		ok, err := s.Contains(ctx, d)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, d)
		}
	}
	return missing, nil
}
