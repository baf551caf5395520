package cas

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/zerr"
)

const (
	tmpPrefix = ".tmp-"

	// staleTempAge is how old an abandoned temp file must be before Sweep removes it.
	staleTempAge = time.Hour
)

// Walk calls fn for every blob in the store. Files that do not look like
// blobs are skipped.
func (s *DiskStore) Walk(ctx context.Context, fn func(domain.Digest) error) error {
	return filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}

		digest, ok := parseFilename(d.Name())
		if !ok {
			return nil
		}
		return fn(digest)
	})
}

// Sweep removes every blob for which live returns false, together with temp
// files abandoned by crashed writers. Marking is the caller's job: it decides
// which digests are still referenced.
func (s *DiskStore) Sweep(ctx context.Context, live func(domain.Digest) bool) (int, error) {
	removed := 0
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}

		if strings.HasPrefix(d.Name(), tmpPrefix) {
			info, err := d.Info()
			if err == nil && time.Since(info.ModTime()) > staleTempAge {
				if err := os.Remove(path); err == nil {
					removed++
				}
			}
			return nil
		}

		digest, ok := parseFilename(d.Name())
		if !ok || live(digest) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return zerr.With(zerr.Wrap(err, "failed to remove blob"), "digest", digest.String())
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, zerr.Wrap(err, "failed to sweep store")
	}
	return removed, nil
}

func parseFilename(name string) (domain.Digest, bool) {
	hexHash, size, ok := strings.Cut(name, "-")
	if !ok {
		return domain.Digest{}, false
	}
	d, err := domain.ParseDigest(hexHash + "/" + size)
	if err != nil {
		return domain.Digest{}, false
	}
	return d, true
}
