package ports

import (
	"context"

	"go.trai.ch/rex/internal/core/domain"
)

// CommandRunner executes a request and returns its result.
//
//go:generate mockgen -source=runner.go -destination=mocks/mock_runner.go -package=mocks
type CommandRunner interface {
	// Execute runs req to completion.
	//
	// A process that exits non-zero is reported through ExecutionResult.ExitCode
	// with a nil error. Errors are reserved for executions that could not run
	// to completion: domain.ErrTimeout, domain.ErrInfrastructure,
	// domain.ErrMergeConflict, domain.ErrMissingOutput or a context error.
	Execute(ctx context.Context, req *domain.ExecutionRequest) (domain.ExecutionResult, error)
}
