package runner

import (
	"context"

	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports"
)

var _ ports.CommandRunner = (*Fallback)(nil)

// Fallback runs requests on primary and retries them on secondary when primary
// fails with an infrastructure error. Exit codes, timeouts, missing outputs and
// merge conflicts are the action's own outcome and are returned unchanged.
type Fallback struct {
	primary   ports.CommandRunner
	secondary ports.CommandRunner
	logger    ports.Logger
}

// NewFallback creates a Fallback runner.
func NewFallback(primary, secondary ports.CommandRunner, logger ports.Logger) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, logger: logger}
}

// Execute implements ports.CommandRunner.
func (f *Fallback) Execute(ctx context.Context, req *domain.ExecutionRequest) (domain.ExecutionResult, error) {
	res, err := f.primary.Execute(ctx, req)
	if err == nil || !domain.IsInfrastructure(err) || ctx.Err() != nil {
		return res, err
	}

	f.logger.Warn("remote execution of " + req.Name() + " failed, running locally: " + err.Error())
	return f.secondary.Execute(ctx, req)
}
