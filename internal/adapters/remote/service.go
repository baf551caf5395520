// Package remote executes requests on another machine over gRPC. Messages are
// plain Go structs encoded with the CBOR codec; the service descriptor is
// written by hand instead of generated from protobuf.
package remote

import (
	"context"

	"go.trai.ch/rex/internal/codec"
	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "rex.remote.v1.Execution"

const (
	methodFindMissing     = "/" + ServiceName + "/FindMissing"
	methodUpload          = "/" + ServiceName + "/Upload"
	methodFetch           = "/" + ServiceName + "/Fetch"
	methodExecute         = "/" + ServiceName + "/Execute"
	methodGetOperation    = "/" + ServiceName + "/GetOperation"
	methodCancelOperation = "/" + ServiceName + "/CancelOperation"
)

// MaxMessageSize bounds a single request or response on both sides.
const MaxMessageSize = 64 << 20

func init() {
	encoding.RegisterCodec(codec.GRPC{})
}

// DigestList carries FindMissing and Fetch arguments and the FindMissing reply.
type DigestList struct {
	Digests []domain.Digest `cbor:"1,keyasint"`
}

// BlobList carries Upload arguments and the Fetch reply.
type BlobList struct {
	Blobs []domain.Blob `cbor:"1,keyasint"`
}

// ExecuteRequest carries an encoded domain.ExecutionRequest.
type ExecuteRequest struct {
	Request []byte `cbor:"1,keyasint"`
}

// OperationRef names an operation.
type OperationRef struct {
	Name string `cbor:"1,keyasint"`
}

// Empty is the reply of calls that return nothing.
type Empty struct{}

// ExecutionServer is the server API for the Execution service.
type ExecutionServer interface {
	FindMissing(context.Context, *DigestList) (*DigestList, error)
	Upload(context.Context, *BlobList) (*Empty, error)
	Fetch(context.Context, *DigestList) (*BlobList, error)
	Execute(context.Context, *ExecuteRequest) (*ports.Operation, error)
	GetOperation(context.Context, *OperationRef) (*ports.Operation, error)
	CancelOperation(context.Context, *OperationRef) (*Empty, error)
}

// RegisterExecutionServer registers srv on s.
func RegisterExecutionServer(s grpc.ServiceRegistrar, srv ExecutionServer) {
	s.RegisterService(&executionServiceDesc, srv)
}

func unary[Req, Resp any](
	fullMethod string,
	call func(ExecutionServer, context.Context, *Req) (*Resp, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ExecutionServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ExecutionServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var executionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ExecutionServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "FindMissing",
			Handler:    unary(methodFindMissing, ExecutionServer.FindMissing),
		},
		{
			MethodName: "Upload",
			Handler:    unary(methodUpload, ExecutionServer.Upload),
		},
		{
			MethodName: "Fetch",
			Handler:    unary(methodFetch, ExecutionServer.Fetch),
		},
		{
			MethodName: "Execute",
			Handler:    unary(methodExecute, ExecutionServer.Execute),
		},
		{
			MethodName: "GetOperation",
			Handler:    unary(methodGetOperation, ExecutionServer.GetOperation),
		},
		{
			MethodName: "CancelOperation",
			Handler:    unary(methodCancelOperation, ExecutionServer.CancelOperation),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rex/remote/v1/execution",
}
