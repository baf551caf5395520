package actioncache

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ActionCache = (*DiskCache)(nil)

// entry is the on-disk form of a cached result. It is JSON so entries can be
// inspected with ordinary tools.
type entry struct {
	Fingerprint string                 `json:"fingerprint"`
	Result      domain.ExecutionResult `json:"result"`
	CreatedAt   time.Time              `json:"created_at"`
}

// DiskCache stores one JSON file per fingerprint.
type DiskCache struct {
	root string
}

// NewDiskCache creates a cache rooted at dir. The directory is created on first write.
func NewDiskCache(dir string) *DiskCache {
	return &DiskCache{root: dir}
}

// Get implements ports.ActionCache.
func (c *DiskCache) Get(ctx context.Context, fp domain.Fingerprint) (domain.ExecutionResult, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.ExecutionResult{}, false, err
	}

	filename := c.filename(fp)
	//nolint:gosec // Path is constructed from the cache root and a hex fingerprint
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ExecutionResult{}, false, nil
		}
		return domain.ExecutionResult{}, false, zerr.With(zerr.Wrap(err, domain.ErrActionCacheReadFailed.Error()), "path", filename)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil || e.Fingerprint != fp.String() {
		// A torn or foreign entry is a miss; the next Put replaces it.
		return domain.ExecutionResult{}, false, nil
	}
	return e.Result, true, nil
}

// Put implements ports.ActionCache.
func (c *DiskCache) Put(ctx context.Context, fp domain.Fingerprint, result domain.ExecutionResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(entry{
		Fingerprint: fp.String(),
		Result:      result,
		CreatedAt:   time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return zerr.Wrap(err, domain.ErrActionCacheWriteFailed.Error())
	}

	filename := c.filename(fp)
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrActionCacheWriteFailed.Error()), "path", dir)
	}

	tmp, err := os.CreateTemp(dir, ".entry-*")
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrActionCacheWriteFailed.Error()), "path", dir)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return zerr.With(zerr.Wrap(err, domain.ErrActionCacheWriteFailed.Error()), "path", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrActionCacheWriteFailed.Error()), "path", tmpName)
	}
	if err := os.Rename(tmpName, filename); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrActionCacheWriteFailed.Error()), "path", filename)
	}
	return nil
}

func (c *DiskCache) filename(fp domain.Fingerprint) string {
	hexHash := fp.String()
	return filepath.Join(c.root, hexHash[:2], hexHash+".json")
}
