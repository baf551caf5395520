package commands_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/rex/cmd/rex/commands"
	"go.trai.ch/rex/internal/app"
	"go.trai.ch/rex/internal/build"
	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

type mockApp struct {
	execFunc func(ctx context.Context, specs []app.ExecSpec, opts app.ExecOptions) error
	calls    []string
	args     [][]string
}

func (m *mockApp) Exec(ctx context.Context, specs []app.ExecSpec, opts app.ExecOptions) error {
	if m.execFunc != nil {
		return m.execFunc(ctx, specs, opts)
	}
	return nil
}

func (m *mockApp) record(name string, args ...string) error {
	m.calls = append(m.calls, name)
	m.args = append(m.args, args)
	return nil
}

func (m *mockApp) Serve(context.Context) error { return m.record("serve") }

func (m *mockApp) Put(_ context.Context, paths []string) error { return m.record("put", paths...) }

func (m *mockApp) Get(_ context.Context, digest string) error { return m.record("get", digest) }

func (m *mockApp) Stat(_ context.Context, digests []string) error { return m.record("stat", digests...) }

func (m *mockApp) CatTree(_ context.Context, digest string) error { return m.record("cat-tree", digest) }

func (m *mockApp) GC(_ context.Context, roots []string) error { return m.record("gc", roots...) }

func newCLI(t *testing.T, a commands.Application) (*commands.CLI, *bytes.Buffer) {
	t.Helper()
	ctrl := gomock.NewController(t)
	cli := commands.New(a, mocks.NewMockLogger(ctrl))
	buf := new(bytes.Buffer)
	cli.SetOutput(buf, buf)
	return cli, buf
}

func TestCommands_Exec(t *testing.T) {
	t.Run("wires flags correctly", func(t *testing.T) {
		var (
			captured []app.ExecSpec
			opts     app.ExecOptions
		)
		mock := &mockApp{
			execFunc: func(_ context.Context, specs []app.ExecSpec, o app.ExecOptions) error {
				captured, opts = specs, o
				return nil
			},
		}

		cli, _ := newCLI(t, mock)
		cli.SetArgs([]string{
			"exec", "-i", "src/**", "--exclude", "**/*.tmp", "-o", "out.txt", "--output-dir", "dist",
			"-w", "src", "-t", "5s", "-e", "A=1", "-e", "B=x=y", "-d", "build", "-n", "-j", "3", "--export",
			"--", "make", "-C", "src",
		})
		require.NoError(t, cli.Execute(context.Background()))

		require.Len(t, captured, 1)
		spec := captured[0]
		assert.Equal(t, []string{"make", "-C", "src"}, spec.Argv)
		assert.Equal(t, []string{"src/**"}, spec.Inputs)
		assert.Equal(t, []string{"**/*.tmp"}, spec.Exclude)
		assert.Equal(t, []string{"out.txt"}, spec.OutputFiles)
		assert.Equal(t, []string{"dist"}, spec.OutputDirectories)
		assert.Equal(t, "src", spec.WorkingDirectory)
		assert.Equal(t, 5*time.Second, spec.Timeout)
		assert.Equal(t, map[string]string{"A": "1", "B": "x=y"}, spec.Env)
		assert.Equal(t, "build", spec.Description)
		assert.True(t, spec.NoCache)
		assert.Equal(t, app.ExecOptions{Jobs: 3, Export: true}, opts)
	})

	t.Run("combines batch file and command line", func(t *testing.T) {
		batch := filepath.Join(t.TempDir(), "batch.yaml")
		require.NoError(t, os.WriteFile(batch, []byte("actions:\n  - argv: [\"true\"]\n"), 0o600))

		var captured []app.ExecSpec
		mock := &mockApp{
			execFunc: func(_ context.Context, specs []app.ExecSpec, _ app.ExecOptions) error {
				captured = specs
				return nil
			},
		}
		cli, _ := newCLI(t, mock)
		cli.SetArgs([]string{"exec", "--batch", batch, "--", "echo", "hi"})
		require.NoError(t, cli.Execute(context.Background()))

		require.Len(t, captured, 2)
		assert.Equal(t, []string{"true"}, captured[0].Argv)
		assert.Equal(t, []string{"echo", "hi"}, captured[1].Argv)
	})

	t.Run("rejects malformed environment", func(t *testing.T) {
		cli, _ := newCLI(t, &mockApp{})
		cli.SetArgs([]string{"exec", "-e", "NOVALUE", "--", "true"})
		require.ErrorIs(t, cli.Execute(context.Background()), domain.ErrInvalidRequest)
	})

	t.Run("returns error on exec failure", func(t *testing.T) {
		mock := &mockApp{
			execFunc: func(context.Context, []app.ExecSpec, app.ExecOptions) error {
				return errors.New("simulated error")
			},
		}
		cli, _ := newCLI(t, mock)
		cli.SetArgs([]string{"exec", "--", "true"})
		err := cli.Execute(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "simulated error")
	})

	t.Run("shows usage when no command provided", func(t *testing.T) {
		mock := &mockApp{
			execFunc: func(context.Context, []app.ExecSpec, app.ExecOptions) error {
				panic("should not be called")
			},
		}
		cli, buf := newCLI(t, mock)
		cli.SetArgs([]string{"exec"})
		require.NoError(t, cli.Execute(context.Background()))
		assert.Contains(t, buf.String(), "Usage:")
	})
}

func TestCommands_CAS(t *testing.T) {
	tests := []struct {
		args     []string
		wantCall string
		wantArgs []string
	}{
		{args: []string{"cas", "put", "a", "b"}, wantCall: "put", wantArgs: []string{"a", "b"}},
		{args: []string{"cas", "get", "d"}, wantCall: "get", wantArgs: []string{"d"}},
		{args: []string{"cas", "stat", "d1", "d2"}, wantCall: "stat", wantArgs: []string{"d1", "d2"}},
		{args: []string{"cas", "cat-tree", "d"}, wantCall: "cat-tree", wantArgs: []string{"d"}},
		{args: []string{"cas", "gc", "root"}, wantCall: "gc", wantArgs: []string{"root"}},
		{args: []string{"cas", "gc", "--all"}, wantCall: "gc", wantArgs: nil},
		{args: []string{"serve"}, wantCall: "serve", wantArgs: nil},
	}

	for _, tt := range tests {
		t.Run(tt.wantCall, func(t *testing.T) {
			mock := &mockApp{}
			cli, _ := newCLI(t, mock)
			cli.SetArgs(tt.args)
			require.NoError(t, cli.Execute(context.Background()))
			require.Equal(t, []string{tt.wantCall}, mock.calls)
			if len(tt.wantArgs) == 0 {
				assert.Empty(t, mock.args[0])
				return
			}
			assert.Equal(t, tt.wantArgs, mock.args[0])
		})
	}
}

func TestCommands_GCRefusesToEmptyStore(t *testing.T) {
	mock := &mockApp{}
	cli, _ := newCLI(t, mock)
	cli.SetArgs([]string{"cas", "gc"})
	require.ErrorIs(t, cli.Execute(context.Background()), domain.ErrInvalidRequest)
	assert.Empty(t, mock.calls)
}

func TestCommands_Version(t *testing.T) {
	cli, buf := newCLI(t, &mockApp{})
	cli.SetArgs([]string{"version"})

	require.NoError(t, cli.Execute(context.Background()))
	assert.Contains(t, buf.String(), build.Version)
}

type recordingLogger struct {
	*mocks.MockLogger
	json, verbose bool
}

func (r *recordingLogger) SetJSON(enable bool)    { r.json = enable }
func (r *recordingLogger) SetVerbose(enable bool) { r.verbose = enable }

func TestCommands_OutputFlags(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := &recordingLogger{MockLogger: mocks.NewMockLogger(ctrl)}

	cli := commands.New(&mockApp{}, log)
	cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))
	cli.SetArgs([]string{"--json", "-v", "version"})
	require.NoError(t, cli.Execute(context.Background()))

	assert.True(t, log.json)
	assert.True(t, log.verbose)
}

func TestCommands_VersionFlagLeavesShorthandToVerbose(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := &recordingLogger{MockLogger: mocks.NewMockLogger(ctrl)}

	cli := commands.New(&mockApp{}, log)
	stdout := new(bytes.Buffer)
	cli.SetOutput(stdout, new(bytes.Buffer))
	cli.SetArgs([]string{"--version"})
	require.NoError(t, cli.Execute(context.Background()))
	assert.Contains(t, stdout.String(), "rex version")
	assert.False(t, log.verbose)

	cli = commands.New(&mockApp{}, log)
	cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))
	cli.SetArgs([]string{"exec", "-v", "--", "true"})
	require.NoError(t, cli.Execute(context.Background()))
	assert.True(t, log.verbose)
}
