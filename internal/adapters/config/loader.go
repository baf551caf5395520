// Package config loads rex.yaml and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/rex/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Loader discovers and parses the configuration file.
type Loader struct {
	Logger    ports.Logger
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger, lookupEnv: os.LookupEnv}
}

// WithEnv replaces the environment lookup. Used by tests.
func (l *Loader) WithEnv(lookup func(string) (string, bool)) *Loader {
	l.lookupEnv = lookup
	return l
}

// Load searches cwd and its parents for rex.yaml. Without one, defaults rooted at cwd are used.
func (l *Loader) Load(cwd string) (*Config, error) {
	abs, err := filepath.Abs(cwd)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to resolve working directory"), "cwd", cwd)
	}

	configPath, found := findConfiguration(abs)

	root := abs
	if found {
		root = filepath.Dir(configPath)
	}
	cfg := Default(root)

	if found {
		if err := readAndUnmarshalYAML(configPath, cfg); err != nil {
			return nil, zerr.With(err, "path", configPath)
		}
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}

	cfg.Store.Path = resolvePath(root, cfg.Store.Path)
	cfg.ActionCache.Path = resolvePath(root, cfg.ActionCache.Path)
	cfg.Local.SandboxDir = resolvePath(root, cfg.Local.SandboxDir)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if limit := runtime.NumCPU() * 4; cfg.Local.Concurrency > limit {
		l.Logger.Warn(fmt.Sprintf("local.concurrency %d is far above the %d available CPUs", cfg.Local.Concurrency, runtime.NumCPU()))
	}

	return cfg, nil
}

func findConfiguration(dir string) (string, bool) {
	current := dir
	for {
		candidate := filepath.Join(current, domain.ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", false
		}
		current = parent
	}
}

func (l *Loader) applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"REX_STORE_PATH":              &cfg.Store.Path,
		"REX_STORE_COMPRESSION":       &cfg.Store.Compression,
		"REX_ACTION_CACHE":            &cfg.ActionCache.Backend,
		"REX_DATABASE_URL":            &cfg.ActionCache.DatabaseURL,
		"REX_SANDBOX_DIR":             &cfg.Local.SandboxDir,
		"REX_REMOTE_ADDRESS":          &cfg.Remote.Address,
		"REX_SERVER_LISTEN":           &cfg.Server.Listen,
		"REX_OBJECT_STORE_ENDPOINT":   &cfg.ObjectStore.Endpoint,
		"REX_OBJECT_STORE_BUCKET":     &cfg.ObjectStore.Bucket,
		"REX_OBJECT_STORE_ACCESS_KEY": &cfg.ObjectStore.AccessKey,
		"REX_OBJECT_STORE_SECRET_KEY": &cfg.ObjectStore.SecretKey,
	}
	for key, target := range strs {
		if v, ok := l.lookupEnv(key); ok {
			*target = v
		}
	}

	ints := map[string]*int{
		"REX_LOCAL_CONCURRENCY":   &cfg.Local.Concurrency,
		"REX_SERVER_CONCURRENCY":  &cfg.Server.Concurrency,
		"REX_REMOTE_MAX_INFLIGHT": &cfg.Remote.MaxInflight,
	}
	for key, target := range ints {
		v, ok := l.lookupEnv(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "environment override is not an integer"), "variable", key)
		}
		*target = n
	}

	if v, ok := l.lookupEnv("REX_REMOTE_FALLBACK"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "environment override is not a boolean"), "variable", "REX_REMOTE_FALLBACK")
		}
		cfg.Remote.Fallback = b
	}

	return nil
}

func validate(cfg *Config) error {
	invalid := func(key string, value any) error {
		return zerr.With(zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "invalid configuration value"), "key", key), "value", value)
	}

	switch cfg.Store.Compression {
	case "", "none", "lz4", "zstd":
	default:
		return invalid("store.compression", cfg.Store.Compression)
	}

	switch cfg.ActionCache.Backend {
	case BackendMemory, BackendDisk:
	case BackendPostgres:
		if cfg.ActionCache.DatabaseURL == "" {
			return invalid("action_cache.database_url", "")
		}
	default:
		return invalid("action_cache.backend", cfg.ActionCache.Backend)
	}

	if cfg.ObjectStore.Enabled() && cfg.ObjectStore.Bucket == "" {
		return invalid("object_store.bucket", "")
	}

	switch {
	case cfg.Local.Concurrency < 1:
		return invalid("local.concurrency", cfg.Local.Concurrency)
	case cfg.Remote.MaxInflight < 1:
		return invalid("remote.max_inflight", cfg.Remote.MaxInflight)
	case cfg.Remote.PollStep <= 0:
		return invalid("remote.poll_step", cfg.Remote.PollStep)
	case cfg.Remote.PollMax < cfg.Remote.PollStep:
		return invalid("remote.poll_max", cfg.Remote.PollMax)
	case cfg.Server.Concurrency < 1:
		return invalid("server.concurrency", cfg.Server.Concurrency)
	}

	return nil
}

func resolvePath(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

func readAndUnmarshalYAML[T any](configPath string, target *T) error {
	// #nosec G304 -- configPath is discovered by findConfiguration
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return zerr.Wrap(domain.ErrConfigReadFailed, err.Error())
		}
		return zerr.Wrap(err, domain.ErrConfigReadFailed.Error())
	}

	if parseErr := yaml.Unmarshal(configFile, target); parseErr != nil {
		return zerr.Wrap(parseErr, domain.ErrConfigParseFailed.Error())
	}

	return nil
}
