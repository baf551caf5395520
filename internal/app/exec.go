package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/engine/tree"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// ExecSpec describes one action as given on the command line or in a batch file.
type ExecSpec struct {
	Argv              []string          `yaml:"argv"`
	Env               map[string]string `yaml:"env"`
	Inputs            []string          `yaml:"inputs"`
	Exclude           []string          `yaml:"exclude"`
	InputRoot         string            `yaml:"input_root"`
	OutputFiles       []string          `yaml:"output_files"`
	OutputDirectories []string          `yaml:"output_directories"`
	WorkingDirectory  string            `yaml:"working_directory"`
	Timeout           time.Duration     `yaml:"timeout"`
	Description       string            `yaml:"description"`
	NoCache           bool              `yaml:"no_cache"`
}

type batchFile struct {
	Actions []ExecSpec `yaml:"actions"`
}

// LoadBatch reads a YAML file holding a list of actions.
func LoadBatch(path string) ([]ExecSpec, error) {
	//nolint:gosec // Batch path is provided by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read batch file"), "path", path)
	}
	var batch batchFile
	if err := yaml.Unmarshal(data, &batch); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse batch file"), "path", path)
	}
	if len(batch.Actions) == 0 {
		return nil, zerr.With(zerr.Wrap(domain.ErrInvalidRequest, "batch file declares no actions"), "path", path)
	}
	return batch.Actions, nil
}

// ExecOptions controls how Exec reports and where it puts outputs.
type ExecOptions struct {
	// Jobs bounds the number of actions submitted at once. Zero uses local.concurrency.
	Jobs int
	// JSON prints one report line per action instead of replaying its output.
	JSON bool
	// Export writes the outputs of successful actions back into the project root.
	Export bool
}

// ExitError reports the exit code rex should terminate with after an action failed.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return "action exited with status " + strconv.Itoa(e.Code)
}

// Is matches domain.ErrExecutionFailed.
func (e *ExitError) Is(target error) bool {
	return target == domain.ErrExecutionFailed
}

// Report is the outcome of one action.
type Report struct {
	Name        string                  `json:"name"`
	Fingerprint string                  `json:"fingerprint,omitempty"`
	Result      *domain.ExecutionResult `json:"result,omitempty"`
	Error       string                  `json:"error,omitempty"`

	err error
}

// Exec runs every action through the configured runner stack and reports the
// outcomes in the order given.
func (a *App) Exec(ctx context.Context, specs []ExecSpec, opts ExecOptions) error {
	jobs := opts.Jobs
	if jobs < 1 {
		jobs = a.cfg.Local.Concurrency
	}

	reports := make([]Report, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, spec := range specs {
		g.Go(func() error {
			reports[i] = a.execOne(gctx, spec, opts)
			// Only cancellation stops the batch; action failures are reported.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return a.report(ctx, reports, opts)
}

func (a *App) execOne(ctx context.Context, spec ExecSpec, opts ExecOptions) Report {
	req, err := a.Request(ctx, spec)
	if err != nil {
		return Report{Name: specName(spec), Error: err.Error(), err: err}
	}

	r := Report{Name: req.Name(), Fingerprint: req.Fingerprint().String()}
	res, err := a.runner.Execute(ctx, req)
	if err != nil {
		r.Error, r.err = err.Error(), zerr.With(zerr.Wrap(err, "action failed"), "action", req.Name())
		return r
	}
	r.Result = &res

	if opts.Export && res.Succeeded() {
		if err := a.export(ctx, req.WorkingDirectory(), res.OutputRoot); err != nil {
			r.Error, r.err = err.Error(), zerr.With(zerr.Wrap(err, "action failed"), "action", req.Name())
		}
	}
	return r
}

func specName(spec ExecSpec) string {
	if spec.Description != "" {
		return spec.Description
	}
	if len(spec.Argv) > 0 {
		return spec.Argv[0]
	}
	return "<empty>"
}

// Request builds the execution request for spec, snapshotting its inputs
// below the project root and merging them with an explicit input root.
func (a *App) Request(ctx context.Context, spec ExecSpec) (*domain.ExecutionRequest, error) {
	var roots []domain.Digest

	if spec.InputRoot != "" {
		d, err := domain.ParseDigest(spec.InputRoot)
		if err != nil {
			return nil, err
		}
		roots = append(roots, d)
	}

	if len(spec.Inputs) > 0 {
		snap, err := a.snapshotter.Snapshot(ctx, a.cfg.Root, domain.PathGlobs{Include: spec.Inputs, Exclude: spec.Exclude})
		if err != nil {
			return nil, zerr.Wrap(err, "failed to snapshot inputs")
		}
		roots = append(roots, snap.Tree)
	}

	root, err := a.merger.MergeDigests(ctx, roots...)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to assemble input tree")
	}

	opts := []domain.RequestOption{
		domain.WithEnv(spec.Env),
		domain.WithInputRoot(root),
		domain.WithOutputFiles(spec.OutputFiles...),
		domain.WithOutputDirectories(spec.OutputDirectories...),
		domain.WithWorkingDirectory(spec.WorkingDirectory),
		domain.WithTimeout(spec.Timeout),
		domain.WithDescription(spec.Description),
	}
	if spec.NoCache {
		opts = append(opts, domain.WithNoCache())
	}
	return domain.NewExecutionRequest(spec.Argv, opts...)
}

// export writes every file of the output tree below the working directory of
// the action, relative to the project root.
func (a *App) export(ctx context.Context, workDir string, root domain.Digest) error {
	files, err := tree.FilesContent(ctx, a.store, root)
	if err != nil {
		return err
	}
	base := filepath.Join(a.cfg.Root, filepath.FromSlash(workDir))
	for _, f := range files {
		dst := filepath.Join(base, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(dst), domain.DirPerm); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to export output"), "path", f.Path)
		}
		perm := os.FileMode(domain.FilePerm)
		if f.Executable {
			perm = domain.ExecFilePerm
		}
		if err := os.WriteFile(dst, f.Content, perm); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to export output"), "path", f.Path)
		}
		if err := os.Chmod(dst, perm); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to export output"), "path", f.Path)
		}
	}
	return nil
}

func (a *App) report(ctx context.Context, reports []Report, opts ExecOptions) error {
	var (
		failed   int
		exitCode int
	)
	enc := json.NewEncoder(a.stdout)

	for _, r := range reports {
		switch {
		case r.err != nil:
			failed++
			exitCode = 1
		case !r.Result.Succeeded():
			failed++
			exitCode = r.Result.ExitCode
		}

		if opts.JSON {
			if err := enc.Encode(r); err != nil {
				return zerr.Wrap(err, "failed to write report")
			}
			continue
		}

		if r.err != nil {
			a.logger.Error(r.err)
			continue
		}
		if err := a.replay(ctx, r.Result); err != nil {
			return err
		}
		if !r.Result.Succeeded() {
			a.logger.Warn(fmt.Sprintf("%s exited with status %d", r.Name, r.Result.ExitCode))
		}
	}

	switch {
	case failed == 0:
		return nil
	case len(reports) == 1:
		return &ExitError{Code: exitCode}
	default:
		a.logger.Warn(fmt.Sprintf("%d of %d actions failed", failed, len(reports)))
		return &ExitError{Code: 1}
	}
}

// replay copies the captured streams of res to the App's writers.
func (a *App) replay(ctx context.Context, res *domain.ExecutionResult) error {
	out, err := a.store.Load(ctx, res.Stdout)
	if err != nil {
		return zerr.Wrap(err, "failed to load stdout")
	}
	errOut, err := a.store.Load(ctx, res.Stderr)
	if err != nil {
		return zerr.Wrap(err, "failed to load stderr")
	}
	_, werr := a.stdout.Write(out)
	_, werr2 := a.stderr.Write(errOut)
	return errors.Join(werr, werr2)
}
