package remote

import (
	"context"
	"errors"

	"go.trai.ch/rex/internal/codec"
	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports"
	"go.trai.ch/zerr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

var _ ports.ExecutionService = (*Client)(nil)

// Client implements ports.ExecutionService over a gRPC connection.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a remote execution server.
// grpc.NewClient returns immediately; the connection is established on the first call.
func Dial(address string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)

	conn, err := grpc.NewClient(address, append(opts, defaultCallOptions())...)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "remote client creation failed"), "address", address)
	}
	return &Client{conn: conn}, nil
}

func defaultCallOptions() grpc.DialOption {
	return grpc.WithDefaultCallOptions(
		grpc.CallContentSubtype(codec.Name),
		grpc.MaxCallRecvMsgSize(MaxMessageSize),
		grpc.MaxCallSendMsgSize(MaxMessageSize),
	)
}

// FindMissing implements ports.ExecutionService.
func (c *Client) FindMissing(ctx context.Context, ds []domain.Digest) ([]domain.Digest, error) {
	var out DigestList
	if err := c.conn.Invoke(ctx, methodFindMissing, &DigestList{Digests: ds}, &out); err != nil {
		return nil, fromStatus(err)
	}
	return out.Digests, nil
}

// Upload implements ports.ExecutionService.
func (c *Client) Upload(ctx context.Context, blobs []domain.Blob) error {
	if err := c.conn.Invoke(ctx, methodUpload, &BlobList{Blobs: blobs}, &Empty{}); err != nil {
		return fromStatus(err)
	}
	return nil
}

// Fetch implements ports.ExecutionService.
func (c *Client) Fetch(ctx context.Context, ds []domain.Digest) ([]domain.Blob, error) {
	var out BlobList
	if err := c.conn.Invoke(ctx, methodFetch, &DigestList{Digests: ds}, &out); err != nil {
		return nil, fromStatus(err)
	}
	return out.Blobs, nil
}

// Execute implements ports.ExecutionService.
func (c *Client) Execute(ctx context.Context, encodedRequest []byte) (ports.Operation, error) {
	var op ports.Operation
	if err := c.conn.Invoke(ctx, methodExecute, &ExecuteRequest{Request: encodedRequest}, &op); err != nil {
		return ports.Operation{}, fromStatus(err)
	}
	return op, nil
}

// GetOperation implements ports.ExecutionService.
func (c *Client) GetOperation(ctx context.Context, name string) (ports.Operation, error) {
	var op ports.Operation
	if err := c.conn.Invoke(ctx, methodGetOperation, &OperationRef{Name: name}, &op); err != nil {
		return ports.Operation{}, fromStatus(err)
	}
	return op, nil
}

// CancelOperation implements ports.ExecutionService.
func (c *Client) CancelOperation(ctx context.Context, name string) error {
	if err := c.conn.Invoke(ctx, methodCancelOperation, &OperationRef{Name: name}, &Empty{}); err != nil {
		return fromStatus(err)
	}
	return nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// fromStatus maps well-known status codes back to domain sentinels. Caller
// cancellation is returned as the context error.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	case codes.NotFound:
		return zerr.Wrap(domain.ErrNotFound, st.Message())
	case codes.InvalidArgument:
		return zerr.Wrap(domain.ErrInvalidRequest, st.Message())
	default:
		return zerr.With(zerr.Wrap(err, "remote call failed"), "code", st.Code().String())
	}
}

// toStatus maps domain errors to gRPC status errors.
func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrOperationNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrCorruptBlob), errors.Is(err, domain.ErrInvalidDigest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
