package remote

import (
	"context"
	"errors"
	"time"

	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports"
	"go.trai.ch/rex/internal/engine/tree"
	"go.trai.ch/zerr"
	"golang.org/x/sync/semaphore"
)

const (
	// maxUploadBatch bounds the payload of one Upload or Fetch call.
	maxUploadBatch = 16 << 20

	// maxMissingRetries bounds how often the server may report missing inputs
	// for one execution before the runner gives up.
	maxMissingRetries = 3

	// cancelTimeout bounds the best-effort CancelOperation call.
	cancelTimeout = 2 * time.Second
)

var _ ports.CommandRunner = (*Runner)(nil)

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	MaxInflight int
	PollStep    time.Duration
	PollMax     time.Duration
}

// Runner implements ports.CommandRunner against a remote ExecutionService.
type Runner struct {
	service ports.ExecutionService
	store   ports.ContentStore
	logger  ports.Logger
	tracer  ports.Tracer
	sem     *semaphore.Weighted
	opts    RunnerOptions
}

// NewRunner creates a remote runner. Inputs are read from and outputs written to store.
func NewRunner(
	service ports.ExecutionService,
	store ports.ContentStore,
	logger ports.Logger,
	tracer ports.Tracer,
	opts RunnerOptions,
) *Runner {
	if opts.MaxInflight < 1 {
		opts.MaxInflight = 1
	}
	if opts.PollStep <= 0 {
		opts.PollStep = domain.DefaultPollStep
	}
	if opts.PollMax < opts.PollStep {
		opts.PollMax = opts.PollStep
	}
	return &Runner{
		service: service,
		store:   store,
		logger:  logger,
		tracer:  tracer,
		sem:     semaphore.NewWeighted(int64(opts.MaxInflight)),
		opts:    opts,
	}
}

// Execute uploads the inputs the server lacks, runs the request remotely and
// downloads the result so every digest it names is loadable from the local store.
func (r *Runner) Execute(ctx context.Context, req *domain.ExecutionRequest) (result domain.ExecutionResult, err error) {
	ctx, span := r.tracer.Start(ctx, "runner.remote",
		ports.WithAttribute("fingerprint", req.Fingerprint().String()),
		ports.WithAttribute("name", req.Name()),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
		} else {
			span.SetAttribute("exit_code", result.ExitCode)
		}
		span.End()
	}()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return domain.ExecutionResult{}, err
	}
	defer r.sem.Release(1)

	inputs, err := tree.Digests(ctx, r.store, req.InputRoot())
	if err != nil {
		return domain.ExecutionResult{}, zerr.Wrap(err, "failed to read input tree")
	}
	missing, err := r.service.FindMissing(ctx, inputs)
	if err != nil {
		return domain.ExecutionResult{}, r.transportError(ctx, "find missing inputs", err)
	}
	if err := r.upload(ctx, missing); err != nil {
		return domain.ExecutionResult{}, err
	}

	op, err := r.await(ctx, req)
	if err != nil {
		return domain.ExecutionResult{}, err
	}

	switch {
	case op.TimedOut:
		return domain.ExecutionResult{}, &domain.TimeoutError{Timeout: req.Timeout()}
	case op.MissingOutput != "":
		return domain.ExecutionResult{}, &domain.MissingOutputError{Path: op.MissingOutput}
	case op.MergeConflict != "":
		return domain.ExecutionResult{}, &domain.MergeConflictError{Path: op.MergeConflict}
	case op.Error != "":
		return domain.ExecutionResult{}, domain.Infrastructure("remote execution",
			zerr.With(zerr.New(op.Error), "operation", op.Name))
	}

	if err := r.download(ctx, op); err != nil {
		return domain.ExecutionResult{}, err
	}
	return op.Result, nil
}

// await executes req and polls until the operation is done. Missing inputs
// reported by the server are uploaded and the request is executed again.
func (r *Runner) await(ctx context.Context, req *domain.ExecutionRequest) (ports.Operation, error) {
	var deadline <-chan time.Time

	for retries := 0; ; retries++ {
		op, err := r.service.Execute(ctx, req.Encode())
		if err != nil {
			return ports.Operation{}, r.transportError(ctx, "execute", err)
		}

		if deadline == nil && req.Timeout() > 0 {
			timer := time.NewTimer(req.Timeout())
			defer timer.Stop()
			deadline = timer.C
		}

		op, err = r.poll(ctx, op, deadline, req.Timeout())
		if err != nil {
			return ports.Operation{}, err
		}

		if len(op.MissingDigests) == 0 {
			return op, nil
		}
		if retries >= maxMissingRetries {
			return ports.Operation{}, domain.Infrastructure("remote execution",
				zerr.With(zerr.New("server keeps reporting missing inputs"), "missing", len(op.MissingDigests)))
		}
		r.logger.Debug("uploading inputs missing on the remote server for " + req.Name())
		if err := r.upload(ctx, op.MissingDigests); err != nil {
			return ports.Operation{}, err
		}
	}
}

// poll waits for op with a linear backoff capped at PollMax.
func (r *Runner) poll(
	ctx context.Context,
	op ports.Operation,
	deadline <-chan time.Time,
	timeout time.Duration,
) (ports.Operation, error) {
	for attempt := 1; !op.Done; attempt++ {
		delay := min(r.opts.PollStep*time.Duration(attempt), r.opts.PollMax)
		timer := time.NewTimer(delay)

		select {
		case <-ctx.Done():
			timer.Stop()
			r.cancel(ctx, op.Name)
			return ports.Operation{}, ctx.Err()
		case <-deadline:
			timer.Stop()
			r.cancel(ctx, op.Name)
			return ports.Operation{}, &domain.TimeoutError{Timeout: timeout}
		case <-timer.C:
		}

		next, err := r.service.GetOperation(ctx, op.Name)
		if err != nil {
			return ports.Operation{}, r.transportError(ctx, "get operation", err)
		}
		op = next
	}
	return op, nil
}

func (r *Runner) cancel(ctx context.Context, name string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()
	if err := r.service.CancelOperation(cctx, name); err != nil {
		r.logger.Debug("failed to cancel remote operation " + name + ": " + err.Error())
	}
}

// upload sends the listed blobs from the local store in bounded batches.
func (r *Runner) upload(ctx context.Context, ds []domain.Digest) error {
	var (
		batch []domain.Blob
		size  int64
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := r.service.Upload(ctx, batch); err != nil {
			return r.transportError(ctx, "upload", err)
		}
		batch, size = nil, 0
		return nil
	}

	for _, d := range ds {
		data, err := r.store.Load(ctx, d)
		if err != nil {
			return domain.Infrastructure("upload",
				zerr.With(zerr.Wrap(err, "input is not in the local store"), "digest", d.String()))
		}
		if size+d.Size > maxUploadBatch {
			if err := flush(); err != nil {
				return err
			}
		}
		batch = append(batch, domain.Blob{Digest: d, Data: data})
		size += d.Size
	}
	return flush()
}

// download stores the inline output streams and fetches every output blob the
// local store lacks.
func (r *Runner) download(ctx context.Context, op ports.Operation) error {
	for _, raw := range [][]byte{op.StdoutRaw, op.StderrRaw} {
		if raw == nil {
			continue
		}
		if _, err := r.store.Store(ctx, raw); err != nil {
			return domain.Infrastructure("store output", err)
		}
	}

	streams, err := r.store.FindMissing(ctx, []domain.Digest{op.Result.Stdout, op.Result.Stderr})
	if err != nil {
		return domain.Infrastructure("store output", err)
	}
	if err := r.fetch(ctx, streams); err != nil {
		return err
	}

	// Trees are fetched level by level since child digests are only known once
	// the parent has been decoded.
	level := []domain.Digest{op.Result.OutputRoot}
	for len(level) > 0 {
		var trees []domain.Digest
		for _, d := range level {
			if d != domain.EmptyTreeDigest {
				trees = append(trees, d)
			}
		}
		absent, err := r.store.FindMissing(ctx, trees)
		if err != nil {
			return domain.Infrastructure("store output", err)
		}
		if err := r.fetch(ctx, absent); err != nil {
			return err
		}

		var next, files []domain.Digest
		for _, d := range trees {
			t, err := tree.Load(ctx, r.store, d)
			if err != nil {
				return domain.Infrastructure("download outputs", err)
			}
			for _, n := range t.Entries() {
				if n.IsDir() {
					next = append(next, n.Digest)
				} else {
					files = append(files, n.Digest)
				}
			}
		}

		absent, err = r.store.FindMissing(ctx, files)
		if err != nil {
			return domain.Infrastructure("store output", err)
		}
		if err := r.fetch(ctx, absent); err != nil {
			return err
		}
		level = next
	}
	return nil
}

func (r *Runner) fetch(ctx context.Context, ds []domain.Digest) error {
	for start := 0; start < len(ds); {
		end, size := start, int64(0)
		for end < len(ds) && (end == start || size+ds[end].Size <= maxUploadBatch) {
			size += ds[end].Size
			end++
		}

		blobs, err := r.service.Fetch(ctx, ds[start:end])
		if err != nil {
			return r.transportError(ctx, "fetch", err)
		}
		for _, b := range blobs {
			if !b.Digest.Matches(b.Data) {
				return domain.Infrastructure("fetch",
					zerr.With(zerr.Wrap(domain.ErrCorruptBlob, "remote returned corrupt content"), "digest", b.Digest.String()))
			}
			if _, err := r.store.Store(ctx, b.Data); err != nil {
				return domain.Infrastructure("fetch", err)
			}
		}
		start = end
	}
	return nil
}

// transportError returns the caller's context error when it caused the failure
// and wraps anything else as an infrastructure error.
func (r *Runner) transportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.Infrastructure(op, zerr.Wrap(err, "remote call aborted"))
	}
	return domain.Infrastructure(op, err)
}

// Close closes the service connection when it has one.
func (r *Runner) Close() error {
	if c, ok := r.service.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
