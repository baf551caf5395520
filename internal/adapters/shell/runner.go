// Package shell runs execution requests as local processes inside a sandbox.
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sys/unix"
)

// waitDelay bounds how long Wait keeps copying output after the process group was killed.
const waitDelay = 2 * time.Second

var _ ports.CommandRunner = (*Runner)(nil)

// Runner implements ports.CommandRunner by spawning processes on this machine.
type Runner struct {
	store        ports.ContentStore
	materializer ports.Materializer
	logger       ports.Logger
	tracer       ports.Tracer
	sem          *semaphore.Weighted
	environ      func() []string
}

// NewRunner creates a local runner that runs at most concurrency processes at once.
func NewRunner(
	store ports.ContentStore,
	materializer ports.Materializer,
	logger ports.Logger,
	tracer ports.Tracer,
	concurrency int,
) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		store:        store,
		materializer: materializer,
		logger:       logger,
		tracer:       tracer,
		sem:          semaphore.NewWeighted(int64(concurrency)),
		environ:      os.Environ,
	}
}

// WithEnviron replaces the host environment the allow-list is applied to.
func (r *Runner) WithEnviron(environ func() []string) *Runner {
	r.environ = environ
	return r
}

// Execute materializes the input root, runs argv in it and captures the declared outputs.
func (r *Runner) Execute(ctx context.Context, req *domain.ExecutionRequest) (result domain.ExecutionResult, err error) {
	ctx, span := r.tracer.Start(ctx, "runner.local",
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

	sb, err := r.materializer.Materialize(ctx, req.InputRoot())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.ExecutionResult{}, ctxErr
		}
		return domain.ExecutionResult{}, err
	}
	defer func() {
		if cerr := sb.Close(); cerr != nil {
			r.logger.Warn("failed to remove sandbox " + sb.Path() + ": " + cerr.Error())
		}
	}()

	exitCode, stdout, stderr, elapsed, err := r.run(ctx, req, sb.Path())
	if err != nil {
		return domain.ExecutionResult{}, err
	}

	files, dirs := req.OutputFiles(), req.OutputDirectories()
	if exitCode != 0 {
		workDir := filepath.Join(sb.Path(), filepath.FromSlash(req.WorkingDirectory()))
		files, dirs = existing(workDir, files, false), existing(workDir, dirs, true)
	}
	outputRoot, err := r.materializer.Capture(ctx, sb, req.WorkingDirectory(), files, dirs)
	if err != nil {
		return domain.ExecutionResult{}, err
	}

	stdoutDigest, err := r.store.Store(ctx, stdout)
	if err != nil {
		return domain.ExecutionResult{}, domain.Infrastructure("store stdout", err)
	}
	stderrDigest, err := r.store.Store(ctx, stderr)
	if err != nil {
		return domain.ExecutionResult{}, domain.Infrastructure("store stderr", err)
	}

	return domain.ExecutionResult{
		ExitCode:   exitCode,
		Stdout:     stdoutDigest,
		Stderr:     stderrDigest,
		OutputRoot: outputRoot,
		Elapsed:    elapsed,
	}, nil
}

func (r *Runner) run(
	ctx context.Context,
	req *domain.ExecutionRequest,
	root string,
) (exitCode int, stdout, stderr []byte, elapsed time.Duration, err error) {
	runCtx := ctx
	if req.Timeout() > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout())
		defer cancel()
	}

	dir := root
	if wd := req.WorkingDirectory(); wd != "" {
		dir = filepath.Join(root, filepath.FromSlash(wd))
		if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
			return 0, nil, nil, 0, domain.Infrastructure("create working directory",
				zerr.With(zerr.Wrap(err, "failed to create working directory"), "dir", wd))
		}
	}

	argv := req.Argv()
	env := resolveEnvironment(r.environ(), req.Env())

	executable := argv[0]
	if filepath.Base(executable) == executable {
		if lp, lerr := lookPath(executable, env); lerr == nil {
			executable = lp
		}
	}

	cmd := exec.CommandContext(runCtx, executable, argv[1:]...) //nolint:gosec // argv is the request
	cmd.Args[0] = argv[0]
	cmd.Dir = dir
	cmd.Env = env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = waitDelay

	var outBuf, errBuf bytes.Buffer
	outLog := &logWriter{logger: r.logger, prefix: req.Name() + " | "}
	errLog := &logWriter{logger: r.logger, prefix: req.Name() + " ! "}
	cmd.Stdout = io.MultiWriter(&outBuf, outLog)
	cmd.Stderr = io.MultiWriter(&errBuf, errLog)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return 0, nil, nil, 0, domain.Infrastructure("spawn",
			zerr.With(zerr.Wrap(err, "failed to start process"), "argv0", argv[0]))
	}
	waitErr := cmd.Wait()
	elapsed = time.Since(start)
	_ = outLog.Close()
	_ = errLog.Close()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, nil, nil, elapsed, ctxErr
	}
	if runCtx.Err() != nil && waitErr != nil {
		return 0, nil, nil, elapsed, &domain.TimeoutError{Timeout: req.Timeout()}
	}

	code, err := exitStatus(waitErr)
	if err != nil {
		return 0, nil, nil, elapsed, domain.Infrastructure("wait", zerr.Wrap(err, "failed to wait for process"))
	}
	return code, outBuf.Bytes(), errBuf.Bytes(), elapsed, nil
}

// exitStatus maps a Wait error to a shell-style exit code. A process killed by
// a signal reports 128 plus the signal number.
func exitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 0, err
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal()), nil
	}
	return exitErr.ExitCode(), nil
}

// existing filters declared outputs down to those present with the declared kind.
func existing(root string, paths []string, dirs bool) []string {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(p)))
		if err == nil && info.IsDir() == dirs {
			out = append(out, p)
		}
	}
	return out
}
