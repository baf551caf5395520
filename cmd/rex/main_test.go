package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/rex/internal/adapters/cas"
	"go.trai.ch/rex/internal/adapters/config"
	"go.trai.ch/rex/internal/app"
	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

type harness struct {
	runner *mocks.MockCommandRunner
	logger *mocks.MockLogger
	store  *cas.MemoryStore
	closed bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)
	return &harness{
		runner: mocks.NewMockCommandRunner(ctrl),
		logger: mocks.NewMockLogger(ctrl),
		store:  cas.NewMemoryStore(),
	}
}

func (h *harness) provider(t *testing.T) ComponentProvider {
	return func(context.Context) (*app.Components, func(), error) {
		cfg := config.Default(t.TempDir())
		a := app.New(h.runner, h.runner, h.store, mocks.NewMockSnapshotter(gomock.NewController(t)), h.logger, cfg)
		return &app.Components{App: a, Logger: h.logger}, func() { h.closed = true }, nil
	}
}

// TestRun_Success verifies that the run function returns 0 when the command succeeds.
func TestRun_Success(t *testing.T) {
	h := newHarness(t)
	stdout := new(bytes.Buffer)

	exitCode := run(context.Background(), []string{"version"}, stdout, io.Discard, h.provider(t))
	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "rex version")
	assert.True(t, h.closed)
}

// TestRun_InitializationError verifies that run returns 1 when component initialization fails.
func TestRun_InitializationError(t *testing.T) {
	provider := func(context.Context) (*app.Components, func(), error) {
		return nil, nil, errors.New("init failed")
	}

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"version"}, io.Discard, stderr, provider)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "Error: init failed")
}

// TestRun_PropagatesExitCode verifies that a single action's exit status becomes rex's.
func TestRun_PropagatesExitCode(t *testing.T) {
	h := newHarness(t)
	empty, err := h.store.Store(context.Background(), nil)
	require.NoError(t, err)

	h.runner.EXPECT().Execute(gomock.Any(), gomock.Any()).
		Return(domain.ExecutionResult{ExitCode: 7, Stdout: empty, Stderr: empty, OutputRoot: domain.EmptyTreeDigest}, nil)
	h.logger.EXPECT().Warn(gomock.Any())

	exitCode := run(context.Background(), []string{"exec", "--", "sh", "-c", "exit 7"}, io.Discard, io.Discard, h.provider(t))
	assert.Equal(t, 7, exitCode)
}

// TestRun_ExecutionError verifies that run returns 1 when an action cannot run.
func TestRun_ExecutionError(t *testing.T) {
	h := newHarness(t)
	h.runner.EXPECT().Execute(gomock.Any(), gomock.Any()).
		Return(domain.ExecutionResult{}, domain.Infrastructure("spawn", errors.New("no such file")))
	h.logger.EXPECT().Error(gomock.Any()).Times(1)

	exitCode := run(context.Background(), []string{"exec", "--", "missing-tool"}, io.Discard, io.Discard, h.provider(t))
	assert.Equal(t, 1, exitCode)
}

// TestRun_Signal verifies that the context is canceled on signal.
func TestRun_Signal(t *testing.T) {
	h := newHarness(t)
	started := make(chan struct{})
	h.runner.EXPECT().Execute(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ *domain.ExecutionRequest) (domain.ExecutionResult, error) {
			close(started)
			<-ctx.Done()
			return domain.ExecutionResult{}, ctx.Err()
		})
	h.logger.EXPECT().Error(gomock.Any()).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan int, 1)
	go func() {
		errCh <- run(ctx, []string{"exec", "--", "sleep", "100"}, io.Discard, io.Discard, h.provider(t))
	}()

	<-started
	cancel()

	select {
	case ret := <-errCh:
		assert.NotEqual(t, 0, ret)
	case <-time.After(2 * time.Second):
		t.Fatal("TestRun_Signal timed out waiting for run() to return")
	}
}
