package runner_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/rex/internal/adapters/cas"
	"go.trai.ch/rex/internal/adapters/remote"
	"go.trai.ch/rex/internal/adapters/shell"
	"go.trai.ch/rex/internal/adapters/telemetry"
	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports/mocks"
	"go.trai.ch/rex/internal/engine/runner"
	"go.uber.org/mock/gomock"
)

func TestFallback_Policy(t *testing.T) {
	local := domain.ExecutionResult{ExitCode: 0, Stdout: domain.DigestOf([]byte("local"))}

	tests := []struct {
		name         string
		primaryRes   domain.ExecutionResult
		primaryErr   error
		wantFallback bool
		wantErr      error
	}{
		{name: "success", primaryRes: domain.ExecutionResult{ExitCode: 0}},
		{name: "non-zero exit", primaryRes: domain.ExecutionResult{ExitCode: 2}},
		{name: "timeout", primaryErr: &domain.TimeoutError{Timeout: time.Second}, wantErr: domain.ErrTimeout},
		{name: "merge conflict", primaryErr: &domain.MergeConflictError{Path: "a.txt"}, wantErr: domain.ErrMergeConflict},
		{name: "missing output", primaryErr: &domain.MissingOutputError{Path: "out"}, wantErr: domain.ErrMissingOutput},
		{name: "cancelled", primaryErr: context.Canceled, wantErr: context.Canceled},
		{name: "infrastructure", primaryErr: domain.Infrastructure("dial", errors.New("connection refused")), wantFallback: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			primary := mocks.NewMockCommandRunner(ctrl)
			secondary := mocks.NewMockCommandRunner(ctrl)
			log := mocks.NewMockLogger(ctrl)

			req := request(t, []string{"true"})
			primary.EXPECT().Execute(gomock.Any(), req).Return(tt.primaryRes, tt.primaryErr)
			if tt.wantFallback {
				log.EXPECT().Warn(gomock.Any())
				secondary.EXPECT().Execute(gomock.Any(), req).Return(local, nil)
			}

			res, err := runner.NewFallback(primary, secondary, log).Execute(t.Context(), req)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.wantFallback {
				assert.Equal(t, local, res)
			} else {
				assert.Equal(t, tt.primaryRes, res)
			}
		})
	}
}

func TestFallback_NoRetryAfterCancellation(t *testing.T) {
	ctrl := gomock.NewController(t)
	primary := mocks.NewMockCommandRunner(ctrl)
	secondary := mocks.NewMockCommandRunner(ctrl)
	log := mocks.NewMockLogger(ctrl)

	ctx, cancel := context.WithCancel(t.Context())
	req := request(t, []string{"true"})
	primary.EXPECT().Execute(gomock.Any(), req).
		DoAndReturn(func(context.Context, *domain.ExecutionRequest) (domain.ExecutionResult, error) {
			cancel()
			return domain.ExecutionResult{}, domain.Infrastructure("poll", errors.New("stream reset"))
		})

	_, err := runner.NewFallback(primary, secondary, log).Execute(ctx, req)
	require.True(t, domain.IsInfrastructure(err))
}

func TestStack(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	store := cas.NewMemoryStore()
	tracer := telemetry.NewNoOpTracer()

	local := shell.NewRunner(store, mocks.NewMockMaterializer(ctrl), log, tracer, 1)
	rr := remote.NewRunner(mocks.NewMockExecutionService(ctrl), store, log, tracer, remote.RunnerOptions{})

	assert.Same(t, local, runner.Stack(local, nil, true, log))
	assert.Same(t, rr, runner.Stack(local, rr, false, log))
	assert.IsType(t, &runner.Fallback{}, runner.Stack(local, rr, true, log))
}
