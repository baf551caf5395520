package actioncache_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/rex/internal/adapters/actioncache"
	"go.trai.ch/rex/internal/adapters/config"
	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports"
)

func fingerprint(t *testing.T, argv ...string) domain.Fingerprint {
	t.Helper()
	req, err := domain.NewExecutionRequest(argv)
	require.NoError(t, err)
	return req.Fingerprint()
}

func sampleResult(code int) domain.ExecutionResult {
	return domain.ExecutionResult{
		ExitCode:   code,
		Stdout:     domain.DigestOf([]byte("hi\n")),
		Stderr:     domain.EmptyDigest,
		OutputRoot: domain.EmptyTreeDigest,
		Elapsed:    1500 * time.Millisecond,
	}
}

type cacheFactory func(t *testing.T) ports.ActionCache

func factories() map[string]cacheFactory {
	f := map[string]cacheFactory{
		"memory": func(*testing.T) ports.ActionCache { return actioncache.NewMemoryCache() },
		"disk": func(t *testing.T) ports.ActionCache {
			return actioncache.NewDiskCache(filepath.Join(t.TempDir(), "actions"))
		},
	}
	if url := os.Getenv("REX_TEST_DATABASE_URL"); url != "" {
		f["postgres"] = func(t *testing.T) ports.ActionCache {
			c, err := actioncache.OpenPostgres(t.Context(), url)
			require.NoError(t, err)
			t.Cleanup(func() { _ = c.Close() })
			return c
		}
	}
	return f
}

func TestActionCache_Contract(t *testing.T) {
	for name, newCache := range factories() {
		t.Run(name, func(t *testing.T) {
			c := newCache(t)
			ctx := t.Context()
			fp := fingerprint(t, "echo", name, time.Now().String())

			_, ok, err := c.Get(ctx, fp)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, c.Put(ctx, fp, sampleResult(0)))
			got, ok, err := c.Get(ctx, fp)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, sampleResult(0), got)

			require.NoError(t, c.Put(ctx, fp, sampleResult(2)))
			got, ok, err = c.Get(ctx, fp)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, 2, got.ExitCode)

			other := fingerprint(t, "echo", name, "other", time.Now().String())
			_, ok, err = c.Get(ctx, other)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestActionCache_ConcurrentPuts(t *testing.T) {
	for name, newCache := range factories() {
		t.Run(name, func(t *testing.T) {
			c := newCache(t)
			fp := fingerprint(t, "concurrent", name, time.Now().String())

			var wg sync.WaitGroup
			for range 16 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, c.Put(context.Background(), fp, sampleResult(0)))
				}()
			}
			wg.Wait()

			got, ok, err := c.Get(t.Context(), fp)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, sampleResult(0), got)
		})
	}
}

func TestDiskCache_CorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	c := actioncache.NewDiskCache(dir)
	fp := fingerprint(t, "echo", "corrupt")

	require.NoError(t, c.Put(t.Context(), fp, sampleResult(0)))

	hexFP := fp.String()
	path := filepath.Join(dir, hexFP[:2], hexFP+".json")
	require.FileExists(t, path)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), domain.FilePerm))

	_, ok, err := c.Get(t.Context(), fp)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_CancelledContext(t *testing.T) {
	c := actioncache.NewMemoryCache()
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, _, err := c.Get(ctx, fingerprint(t, "x"))
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, c.Put(ctx, fingerprint(t, "x"), sampleResult(0)), context.Canceled)
}

func TestOpen_SelectsBackend(t *testing.T) {
	c, err := actioncache.Open(t.Context(), config.ActionCacheConfig{Backend: config.BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &actioncache.MemoryCache{}, c)

	c, err = actioncache.Open(t.Context(), config.ActionCacheConfig{Backend: config.BackendDisk, Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &actioncache.DiskCache{}, c)

	_, err = actioncache.Open(t.Context(), config.ActionCacheConfig{Backend: "redis"})
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}
