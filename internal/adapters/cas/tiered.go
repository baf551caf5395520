package cas

import (
	"context"
	"errors"

	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports"
	"golang.org/x/sync/singleflight"
)

var _ ports.ContentStore = (*TieredStore)(nil)

// TieredStore serves reads from a local store and falls back to a shared
// remote store, copying fetched blobs into the local tier. Writes go to both.
type TieredStore struct {
	local  ports.ContentStore
	remote ports.ContentStore
	group  singleflight.Group
}

// NewTieredStore layers local in front of remote.
func NewTieredStore(local, remote ports.ContentStore) *TieredStore {
	return &TieredStore{local: local, remote: remote}
}

// Store implements ports.ContentStore.
func (s *TieredStore) Store(ctx context.Context, data []byte) (domain.Digest, error) {
	d, err := s.local.Store(ctx, data)
	if err != nil {
		return domain.Digest{}, err
	}
	if _, err := s.remote.Store(ctx, data); err != nil {
		return domain.Digest{}, err
	}
	return d, nil
}

// Load implements ports.ContentStore. Concurrent misses for the same digest
// share one remote fetch. The fetch is not tied to any single caller, so a
// caller that gives up only abandons its own wait.
func (s *TieredStore) Load(ctx context.Context, d domain.Digest) ([]byte, error) {
	data, err := s.local.Load(ctx, d)
	if err == nil || !errors.Is(err, domain.ErrNotFound) {
		return data, err
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(d.String(), func() (any, error) {
		data, err := s.remote.Load(fetchCtx, d)
		if err != nil {
			return nil, err
		}
		if _, err := s.local.Store(fetchCtx, data); err != nil {
			return nil, err
		}
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// Contains implements ports.ContentStore.
func (s *TieredStore) Contains(ctx context.Context, d domain.Digest) (bool, error) {
	ok, err := s.local.Contains(ctx, d)
	if err != nil || ok {
		return ok, err
	}
	return s.remote.Contains(ctx, d)
}

// FindMissing implements ports.ContentStore.
func (s *TieredStore) FindMissing(ctx context.Context, ds []domain.Digest) ([]domain.Digest, error) {
	missing, err := s.local.FindMissing(ctx, ds)
	if err != nil || len(missing) == 0 {
		return missing, err
	}
	return s.remote.FindMissing(ctx, missing)
}
