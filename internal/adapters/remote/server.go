package remote

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports"
	"go.trai.ch/rex/internal/engine/tree"
	"go.trai.ch/zerr"
	"golang.org/x/sync/semaphore"
	"google.golang.org/grpc"
)

const (
	// operationTTL is how long a finished operation stays queryable.
	operationTTL = 10 * time.Minute

	// inlineLimit is the largest stdout or stderr returned inside an operation.
	inlineLimit = 1 << 20
)

var _ ExecutionServer = (*Server)(nil)

// ServerOptions configures a Server.
type ServerOptions struct {
	Concurrency int
	MaxStreams  uint32
}

type operation struct {
	cancel context.CancelFunc

	mu    sync.Mutex
	state ports.Operation
}

func (o *operation) snapshot() ports.Operation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Server hosts a CommandRunner behind the Execution service.
type Server struct {
	store  ports.ContentStore
	runner ports.CommandRunner
	logger ports.Logger
	sem    *semaphore.Weighted
	opts   ServerOptions

	baseCtx    context.Context
	stopOps    context.CancelFunc
	grpcServer *grpc.Server

	mu  sync.Mutex
	ops map[string]*operation
	wg  sync.WaitGroup
}

// NewServer creates a server that runs actions on runner against store.
func NewServer(store ports.ContentStore, runner ports.CommandRunner, logger ports.Logger, opts ServerOptions) *Server {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	baseCtx, stop := context.WithCancel(context.Background())
	s := &Server{
		store:   store,
		runner:  runner,
		logger:  logger,
		sem:     semaphore.NewWeighted(int64(opts.Concurrency)),
		opts:    opts,
		baseCtx: baseCtx,
		stopOps: stop,
		ops:     make(map[string]*operation),
	}

	serverOpts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(MaxMessageSize),
		grpc.MaxSendMsgSize(MaxMessageSize),
	}
	if opts.MaxStreams > 0 {
		serverOpts = append(serverOpts, grpc.MaxConcurrentStreams(opts.MaxStreams))
	}
	s.grpcServer = grpc.NewServer(serverOpts...)
	RegisterExecutionServer(s.grpcServer, s)
	return s
}

// Serve accepts connections on lis until ctx is done. Running operations are
// cancelled on shutdown.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.grpcServer.Serve(lis)
	}()

	defer func() {
		s.stopOps()
		s.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		s.grpcServer.GracefulStop()
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return zerr.Wrap(err, "remote server failed")
	}
}

// Stop terminates the server and every running operation.
func (s *Server) Stop() {
	s.grpcServer.Stop()
	s.stopOps()
	s.wg.Wait()
}

// FindMissing implements ExecutionServer.
func (s *Server) FindMissing(ctx context.Context, in *DigestList) (*DigestList, error) {
	missing, err := s.store.FindMissing(ctx, in.Digests)
	if err != nil {
		return nil, toStatus(err)
	}
	return &DigestList{Digests: missing}, nil
}

// Upload implements ExecutionServer. Blobs whose bytes do not match their digest are rejected.
func (s *Server) Upload(ctx context.Context, in *BlobList) (*Empty, error) {
	for _, b := range in.Blobs {
		if !b.Digest.Matches(b.Data) {
			return nil, toStatus(zerr.With(zerr.Wrap(domain.ErrCorruptBlob, "upload rejected"), "digest", b.Digest.String()))
		}
		if _, err := s.store.Store(ctx, b.Data); err != nil {
			return nil, toStatus(err)
		}
	}
	return &Empty{}, nil
}

// Fetch implements ExecutionServer.
func (s *Server) Fetch(ctx context.Context, in *DigestList) (*BlobList, error) {
	out := &BlobList{Blobs: make([]domain.Blob, 0, len(in.Digests))}
	for _, d := range in.Digests {
		data, err := s.store.Load(ctx, d)
		if err != nil {
			return nil, toStatus(err)
		}
		out.Blobs = append(out.Blobs, domain.Blob{Digest: d, Data: data})
	}
	return out, nil
}

// Execute implements ExecutionServer. When inputs are missing the returned
// operation is already done and lists them; nothing runs.
func (s *Server) Execute(ctx context.Context, in *ExecuteRequest) (*ports.Operation, error) {
	req, err := domain.DecodeExecutionRequest(in.Request)
	if err != nil {
		return nil, toStatus(err)
	}

	missing, err := tree.Missing(ctx, s.store, req.InputRoot())
	if err != nil {
		return nil, toStatus(err)
	}
	if len(missing) > 0 {
		return &ports.Operation{Name: uuid.NewString(), Done: true, MissingDigests: missing}, nil
	}

	opCtx, cancel := context.WithCancel(s.baseCtx)
	op := &operation{cancel: cancel, state: ports.Operation{Name: uuid.NewString()}}

	s.mu.Lock()
	s.ops[op.state.Name] = op
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(opCtx, op, req)

	state := op.snapshot()
	return &state, nil
}

func (s *Server) run(ctx context.Context, op *operation, req *domain.ExecutionRequest) {
	defer s.wg.Done()
	defer op.cancel()

	state := s.execute(ctx, req)

	op.mu.Lock()
	state.Name = op.state.Name
	op.state = state
	op.mu.Unlock()

	time.AfterFunc(operationTTL, func() {
		s.mu.Lock()
		delete(s.ops, state.Name)
		s.mu.Unlock()
	})
}

func (s *Server) execute(ctx context.Context, req *domain.ExecutionRequest) ports.Operation {
	state := ports.Operation{Done: true}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		state.Error = err.Error()
		return state
	}
	defer s.sem.Release(1)

	result, err := s.runner.Execute(ctx, req)
	var (
		missing  *domain.MissingOutputError
		conflict *domain.MergeConflictError
	)
	switch {
	case err == nil:
		state.Result = result
		state.StdoutRaw = s.inline(ctx, result.Stdout)
		state.StderrRaw = s.inline(ctx, result.Stderr)
	case errors.Is(err, domain.ErrTimeout):
		state.TimedOut = true
	case errors.As(err, &missing):
		state.MissingOutput = missing.Path
	case errors.As(err, &conflict):
		state.MergeConflict = conflict.Path
	case ctx.Err() != nil:
		state.Error = "operation cancelled"
	default:
		s.logger.Error(zerr.With(zerr.Wrap(err, "remote execution failed"), "action", req.Name()))
		state.Error = err.Error()
	}
	return state
}

func (s *Server) inline(ctx context.Context, d domain.Digest) []byte {
	if d.Size == 0 || d.Size > inlineLimit {
		return nil
	}
	data, err := s.store.Load(ctx, d)
	if err != nil {
		return nil
	}
	return data
}

// GetOperation implements ExecutionServer.
func (s *Server) GetOperation(_ context.Context, in *OperationRef) (*ports.Operation, error) {
	op, err := s.lookup(in.Name)
	if err != nil {
		return nil, toStatus(err)
	}
	state := op.snapshot()
	return &state, nil
}

// CancelOperation implements ExecutionServer. Cancelling a finished or unknown operation is not an error.
func (s *Server) CancelOperation(_ context.Context, in *OperationRef) (*Empty, error) {
	if op, err := s.lookup(in.Name); err == nil {
		op.cancel()
	}
	return &Empty{}, nil
}

func (s *Server) lookup(name string) (*operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.ops[name]
	if !ok {
		return nil, zerr.With(zerr.Wrap(domain.ErrOperationNotFound, "unknown operation"), "operation", name)
	}
	return op, nil
}
