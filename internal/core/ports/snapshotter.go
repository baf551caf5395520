package ports

import (
	"context"

	"go.trai.ch/rex/internal/core/domain"
)

// Snapshotter ingests local files into the content store.
//
//go:generate mockgen -source=snapshotter.go -destination=mocks/mock_snapshotter.go -package=mocks
type Snapshotter interface {
	// Snapshot stores every file under root matched by globs and returns the resulting tree.
	Snapshot(ctx context.Context, root string, globs domain.PathGlobs) (domain.Snapshot, error)
}
