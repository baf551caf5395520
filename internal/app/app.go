// Package app implements the application layer for rex.
package app

import (
	"errors"
	"io"
	"os"

	"go.trai.ch/rex/internal/adapters/config"
	"go.trai.ch/rex/internal/core/ports"
	"go.trai.ch/rex/internal/engine/tree"
)

// App represents the main application logic.
type App struct {
	runner      ports.CommandRunner
	local       ports.CommandRunner
	store       ports.ContentStore
	snapshotter ports.Snapshotter
	merger      *tree.Merger
	logger      ports.Logger
	cfg         *config.Config

	stdout  io.Writer
	stderr  io.Writer
	closers []io.Closer
}

// New creates a new App instance. runner serves the CLI; local is the
// local-only stack handed to the remote execution server.
func New(
	runner ports.CommandRunner,
	local ports.CommandRunner,
	store ports.ContentStore,
	snapshotter ports.Snapshotter,
	log ports.Logger,
	cfg *config.Config,
) *App {
	return &App{
		runner:      runner,
		local:       local,
		store:       store,
		snapshotter: snapshotter,
		merger:      tree.NewMerger(store),
		logger:      log,
		cfg:         cfg,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
	}
}

// WithOutput redirects what the App prints. Used by the CLI and in tests.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	return a
}

// WithClosers registers resources released by Close.
func (a *App) WithClosers(closers ...io.Closer) *App {
	a.closers = append(a.closers, closers...)
	return a
}

// Close releases connections held by the configured backends.
func (a *App) Close() error {
	var errs error
	for _, c := range a.closers {
		errs = errors.Join(errs, c.Close())
	}
	a.closers = nil
	return errs
}
