package ports

import (
	"context"

	"go.trai.ch/rex/internal/core/domain"
)

// Sandbox is a materialized input tree on the local filesystem.
type Sandbox interface {
	// Path returns the absolute root of the sandbox.
	Path() string

	// Close removes the sandbox. It is safe to call more than once.
	Close() error
}

// Materializer realizes trees on disk and captures outputs back into the store.
//
//go:generate mockgen -source=sandbox.go -destination=mocks/mock_sandbox.go -package=mocks
type Materializer interface {
	// Materialize writes the tree identified by root into a fresh sandbox.
	// On error nothing is left behind.
	Materialize(ctx context.Context, root domain.Digest) (Sandbox, error)

	// Capture stores the declared outputs of sb and returns the digest of a tree
	// holding each of them at its declared path. Declared paths are relative to
	// workDir, a sandbox-relative directory where "" is the sandbox root. A
	// declared path that does not exist yields a *domain.MissingOutputError.
	Capture(ctx context.Context, sb Sandbox, workDir string, files, dirs []string) (domain.Digest, error)
}
