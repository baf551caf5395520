package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/rex/internal/adapters/config"
	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func noEnv(string) (string, bool) { return "", false }

func envOf(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func newLoader(t *testing.T) *config.Loader {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Warn(gomock.Any()).AnyTimes()
	return config.NewLoader(log).WithEnv(noEnv)
}

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, domain.ConfigFileName), []byte(content), domain.PrivateFilePerm))
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := newLoader(t).Load(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Root)
	assert.Equal(t, filepath.Join(dir, ".rex", "store"), cfg.Store.Path)
	assert.Equal(t, "zstd", cfg.Store.Compression)
	assert.Equal(t, config.BackendDisk, cfg.ActionCache.Backend)
	assert.Equal(t, runtime.NumCPU(), cfg.Local.Concurrency)
	assert.False(t, cfg.Remote.Enabled())
	assert.False(t, cfg.ObjectStore.Enabled())
	assert.Equal(t, 500*time.Millisecond, cfg.Remote.PollStep)
	assert.Equal(t, 5*time.Second, cfg.Remote.PollMax)
}

func TestLoad_FileOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
store:
  path: cache/blobs
  compression: lz4
local:
  concurrency: 2
remote:
  address: build.internal:7433
  poll_step: 250ms
  poll_max: 2s
  fallback: false
`)

	cfg, err := newLoader(t).Load(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "cache", "blobs"), cfg.Store.Path)
	assert.Equal(t, "lz4", cfg.Store.Compression)
	assert.Equal(t, 2, cfg.Local.Concurrency)
	assert.Equal(t, "build.internal:7433", cfg.Remote.Address)
	assert.Equal(t, 250*time.Millisecond, cfg.Remote.PollStep)
	assert.Equal(t, 2*time.Second, cfg.Remote.PollMax)
	assert.False(t, cfg.Remote.Fallback)
	// Untouched sections keep their defaults.
	assert.Equal(t, config.BackendDisk, cfg.ActionCache.Backend)
	assert.Equal(t, 64, cfg.Remote.MaxInflight)
}

func TestLoad_DiscoversParentDirectory(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "local:\n  concurrency: 3\n")

	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, domain.DirPerm))

	cfg, err := newLoader(t).Load(nested)
	require.NoError(t, err)

	assert.Equal(t, root, cfg.Root)
	assert.Equal(t, 3, cfg.Local.Concurrency)
	assert.Equal(t, filepath.Join(root, ".rex", "store"), cfg.Store.Path)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "local:\n  concurrency: 3\n")

	cfg, err := newLoader(t).WithEnv(envOf(map[string]string{
		"REX_LOCAL_CONCURRENCY": "5",
		"REX_ACTION_CACHE":      config.BackendPostgres,
		"REX_DATABASE_URL":      "postgres://localhost/rex",
		"REX_STORE_PATH":        "/var/cache/rex",
		"REX_REMOTE_FALLBACK":   "false",
	})).Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Local.Concurrency)
	assert.Equal(t, config.BackendPostgres, cfg.ActionCache.Backend)
	assert.Equal(t, "postgres://localhost/rex", cfg.ActionCache.DatabaseURL)
	assert.Equal(t, "/var/cache/rex", cfg.Store.Path)
	assert.False(t, cfg.Remote.Fallback)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{name: "zero concurrency", content: "local:\n  concurrency: 0\n"},
		{name: "unknown compression", content: "store:\n  compression: brotli\n"},
		{name: "unknown backend", content: "action_cache:\n  backend: redis\n"},
		{name: "postgres without url", content: "action_cache:\n  backend: postgres\n"},
		{name: "poll max below step", content: "remote:\n  poll_step: 2s\n  poll_max: 1s\n"},
		{name: "object store without bucket", content: "object_store:\n  endpoint: localhost:9000\n"},
		{name: "non-integer env", content: "", env: map[string]string{"REX_LOCAL_CONCURRENCY": "many"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.content)

			_, err := newLoader(t).WithEnv(envOf(tt.env)).Load(dir)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidConfig)
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "local: [unterminated\n")

	_, err := newLoader(t).Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.ErrConfigParseFailed.Error())
}

func TestLoad_WarnsOnExcessiveConcurrency(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "local:\n  concurrency: 100000\n")

	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Warn(gomock.Any()).Times(1)

	cfg, err := config.NewLoader(log).WithEnv(noEnv).Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 100000, cfg.Local.Concurrency)
}
