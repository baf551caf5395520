package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/rex/internal/core/domain"
)

func TestNewExecutionRequest_Defaults(t *testing.T) {
	t.Parallel()

	req, err := domain.NewExecutionRequest([]string{"echo", "hi"})
	require.NoError(t, err)

	assert.Equal(t, []string{"echo", "hi"}, req.Argv())
	assert.Equal(t, domain.EmptyTreeDigest, req.InputRoot())
	assert.Empty(t, req.Env())
	assert.Empty(t, req.OutputFiles())
	assert.Equal(t, time.Duration(0), req.Timeout())
	assert.Equal(t, "echo", req.Name())
}

func TestNewExecutionRequest_Immutable(t *testing.T) {
	t.Parallel()

	argv := []string{"echo", "hi"}
	env := map[string]string{"A": "1"}
	req, err := domain.NewExecutionRequest(argv, domain.WithEnv(env))
	require.NoError(t, err)

	argv[1] = "bye"
	env["A"] = "2"
	got := req.Argv()
	got[0] = "rm"

	assert.Equal(t, []string{"echo", "hi"}, req.Argv())
	assert.Equal(t, "1", req.Env()["A"])
}

func TestFingerprint_Equality(t *testing.T) {
	t.Parallel()

	a, err := domain.NewExecutionRequest(
		[]string{"cc", "-c", "main.c"},
		domain.WithEnv(map[string]string{"B": "2", "A": "1"}),
		domain.WithOutputFiles("b.o", "a.o", "./a.o"),
		domain.WithTimeout(5*time.Second),
		domain.WithDescription("compile"),
	)
	require.NoError(t, err)

	b, err := domain.NewExecutionRequest(
		[]string{"cc", "-c", "main.c"},
		domain.WithEnv(map[string]string{"A": "1", "B": "2"}),
		domain.WithOutputFiles("a.o", "b.o"),
		domain.WithTimeout(5*time.Second),
		domain.WithDescription("something else"),
		domain.WithNoCache(),
	)
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Equal(t, []string{"a.o", "b.o"}, a.OutputFiles())
}

func TestFingerprint_Differs(t *testing.T) {
	t.Parallel()

	base, err := domain.NewExecutionRequest([]string{"true"})
	require.NoError(t, err)

	variants := map[string][]domain.RequestOption{
		"env":        {domain.WithEnv(map[string]string{"X": "1"})},
		"input root": {domain.WithInputRoot(domain.DigestOf([]byte("x")))},
		"output":     {domain.WithOutputFiles("out")},
		"output dir": {domain.WithOutputDirectories("out")},
		"timeout":    {domain.WithTimeout(time.Second)},
		"workdir":    {domain.WithWorkingDirectory("sub")},
	}

	for name, opts := range variants {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			other, err := domain.NewExecutionRequest([]string{"true"}, opts...)
			require.NoError(t, err)
			assert.NotEqual(t, base.Fingerprint(), other.Fingerprint())
		})
	}
}

func TestNewExecutionRequest_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		argv    []string
		opts    []domain.RequestOption
		wantErr error
	}{
		{name: "empty argv", argv: nil, wantErr: domain.ErrEmptyCommand},
		{name: "empty program", argv: []string{""}, wantErr: domain.ErrEmptyCommand},
		{
			name:    "absolute output",
			argv:    []string{"true"},
			opts:    []domain.RequestOption{domain.WithOutputFiles("/etc/passwd")},
			wantErr: domain.ErrPathOutsideRoot,
		},
		{
			name:    "escaping output",
			argv:    []string{"true"},
			opts:    []domain.RequestOption{domain.WithOutputDirectories("../up")},
			wantErr: domain.ErrPathOutsideRoot,
		},
		{
			name:    "bad env name",
			argv:    []string{"true"},
			opts:    []domain.RequestOption{domain.WithEnv(map[string]string{"A=B": "x"})},
			wantErr: domain.ErrInvalidRequest,
		},
		{
			name:    "negative timeout",
			argv:    []string{"true"},
			opts:    []domain.RequestOption{domain.WithTimeout(-time.Second)},
			wantErr: domain.ErrInvalidRequest,
		},
		{
			name: "file and dir output",
			argv: []string{"true"},
			opts: []domain.RequestOption{
				domain.WithOutputFiles("out"),
				domain.WithOutputDirectories("out"),
			},
			wantErr: domain.ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := domain.NewExecutionRequest(tt.argv, tt.opts...)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecodeExecutionRequest_RoundTrip(t *testing.T) {
	t.Parallel()

	req, err := domain.NewExecutionRequest(
		[]string{"sh", "-c", "echo hi > out.txt"},
		domain.WithEnv(map[string]string{"LANG": "C"}),
		domain.WithInputRoot(domain.DigestOf([]byte("tree"))),
		domain.WithOutputFiles("out.txt"),
		domain.WithOutputDirectories("dist"),
		domain.WithWorkingDirectory("src"),
		domain.WithTimeout(3*time.Second),
		domain.WithDescription("say hi"),
		domain.WithNoCache(),
	)
	require.NoError(t, err)

	decoded, err := domain.DecodeExecutionRequest(req.Encode())
	require.NoError(t, err)

	assert.Equal(t, req.Fingerprint(), decoded.Fingerprint())
	assert.Equal(t, req.Encode(), decoded.Encode())
	assert.Equal(t, "say hi", decoded.Description())
	assert.True(t, decoded.NoCache())
	assert.Equal(t, "src", decoded.WorkingDirectory())
}
