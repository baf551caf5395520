package ports

import (
	"context"

	"go.trai.ch/rex/internal/core/domain"
)

// Operation is the server-side state of a remote execution.
type Operation struct {
	Name string `cbor:"1,keyasint"`
	Done bool   `cbor:"2,keyasint"`

	// Result is set when Done and Error is empty.
	Result domain.ExecutionResult `cbor:"3,keyasint"`

	// StdoutRaw and StderrRaw carry small outputs inline so the client can
	// store them without a second round trip.
	StdoutRaw []byte `cbor:"4,keyasint,omitempty"`
	StderrRaw []byte `cbor:"5,keyasint,omitempty"`

	// MissingDigests lists inputs the server could not find. The client
	// uploads them and executes again.
	MissingDigests []domain.Digest `cbor:"6,keyasint,omitempty"`

	// Error describes a failure of the execution machinery on the server.
	Error string `cbor:"7,keyasint,omitempty"`

	// TimedOut is set when the action exceeded its timeout on the server.
	TimedOut bool `cbor:"8,keyasint,omitempty"`

	// MissingOutput names a declared output the action did not produce.
	MissingOutput string `cbor:"9,keyasint,omitempty"`

	// MergeConflict names the path at which output capture found diverging content.
	MergeConflict string `cbor:"10,keyasint,omitempty"`
}

// ExecutionService is the transport to a remote execution backend.
//
//go:generate mockgen -source=remote.go -destination=mocks/mock_remote.go -package=mocks
type ExecutionService interface {
	// FindMissing returns the digests the remote store does not hold.
	FindMissing(ctx context.Context, ds []domain.Digest) ([]domain.Digest, error)

	// Upload sends blobs to the remote store.
	Upload(ctx context.Context, blobs []domain.Blob) error

	// Fetch downloads blobs from the remote store.
	Fetch(ctx context.Context, ds []domain.Digest) ([]domain.Blob, error)

	// Execute starts the action described by the encoded request.
	Execute(ctx context.Context, encodedRequest []byte) (Operation, error)

	// GetOperation returns the current state of an operation.
	GetOperation(ctx context.Context, name string) (Operation, error)

	// CancelOperation asks the server to abandon an operation.
	CancelOperation(ctx context.Context, name string) error
}
