package app

import (
	"context"
	"errors"
	"net"

	"go.trai.ch/rex/internal/adapters/remote"
	"go.trai.ch/zerr"
)

// Serve runs the remote execution server on the configured address until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", a.cfg.Server.Listen)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to listen"), "address", a.cfg.Server.Listen)
	}
	return a.ServeOn(ctx, lis)
}

// ServeOn runs the remote execution server on lis. Actions run on the local
// runner stack, sharing its action cache.
func (a *App) ServeOn(ctx context.Context, lis net.Listener) error {
	srv := remote.NewServer(a.store, a.local, a.logger, remote.ServerOptions{
		Concurrency: a.cfg.Server.Concurrency,
		MaxStreams:  a.cfg.Server.MaxStreams,
	})

	a.logger.Info("serving remote execution on " + lis.Addr().String())
	err := srv.Serve(ctx, lis)
	if errors.Is(err, context.Canceled) {
		a.logger.Info("remote execution server stopped")
		return nil
	}
	return err
}
