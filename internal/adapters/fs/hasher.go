package fs

import (
	"context"
	"encoding/binary"
	"io/fs"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports"
	"go.trai.ch/zerr"
)

// Hasher stores file contents and remembers the resulting digests keyed by
// the file's stat identity, so unchanged files are not read again.
type Hasher struct {
	store ports.ContentStore

	mu   sync.Mutex
	memo map[uint64]domain.Digest
}

// HasherOption configures a Hasher.
type HasherOption func(*Hasher)

// WithoutMemo makes the Hasher read every file. Use it for directories that
// are never ingested twice, such as sandboxes.
func WithoutMemo() HasherOption {
	return func(h *Hasher) {
		h.memo = nil
	}
}

// NewHasher creates a Hasher storing into store.
func NewHasher(store ports.ContentStore, opts ...HasherOption) *Hasher {
	h := &Hasher{store: store, memo: make(map[uint64]domain.Digest)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Ingest stores the file at path and returns its digest. A memoized digest is
// reused only while the store still holds the content.
func (h *Hasher) Ingest(ctx context.Context, path string, info fs.FileInfo) (domain.Digest, error) {
	if h.memo == nil {
		return h.ingest(ctx, path)
	}

	key := statKey(path, info)

	h.mu.Lock()
	d, ok := h.memo[key]
	h.mu.Unlock()

	if ok {
		present, err := h.store.Contains(ctx, d)
		if err != nil {
			return domain.Digest{}, err
		}
		if present {
			return d, nil
		}
	}

	d, err := h.ingest(ctx, path)
	if err != nil {
		return domain.Digest{}, err
	}

	h.mu.Lock()
	h.memo[key] = d
	h.mu.Unlock()

	return d, nil
}

func (h *Hasher) ingest(ctx context.Context, path string) (domain.Digest, error) {
	//nolint:gosec // Path is produced by walking the snapshot root
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Digest{}, domain.Infrastructure("read file", zerr.With(zerr.Wrap(err, "failed to read file"), "path", path))
	}

	d, err := h.store.Store(ctx, data)
	if err != nil {
		return domain.Digest{}, zerr.With(err, "path", path)
	}
	return d, nil
}

// statKey hashes the attributes that change whenever file content is rewritten.
func statKey(path string, info fs.FileInfo) uint64 {
	hasher := xxhash.New()
	_, _ = hasher.WriteString(path)
	_, _ = hasher.Write([]byte{0})

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(info.Size())) //nolint:gosec // Size is never negative
	_, _ = hasher.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(info.ModTime().UnixNano())) //nolint:gosec // Sign is irrelevant for hashing
	_, _ = hasher.Write(buf[:])
	binary.LittleEndian.PutUint32(buf[:4], uint32(info.Mode()))
	_, _ = hasher.Write(buf[:4])

	return hasher.Sum64()
}
