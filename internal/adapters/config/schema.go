package config

import (
	"path/filepath"
	"runtime"
	"time"

	"go.trai.ch/rex/internal/core/domain"
)

// Action cache backends.
const (
	BackendMemory   = "memory"
	BackendDisk     = "disk"
	BackendPostgres = "postgres"
)

// Config is the resolved configuration. Paths are absolute after loading.
type Config struct {
	// Root is the directory holding rex.yaml, or the working directory when none exists.
	Root string `yaml:"-"`

	Store       StoreConfig       `yaml:"store"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
	ActionCache ActionCacheConfig `yaml:"action_cache"`
	Local       LocalConfig       `yaml:"local"`
	Remote      RemoteConfig      `yaml:"remote"`
	Server      ServerConfig      `yaml:"server"`
}

// StoreConfig configures the local content store.
type StoreConfig struct {
	Path        string `yaml:"path"`
	Compression string `yaml:"compression"`
}

// ObjectStoreConfig configures the optional shared S3-compatible tier.
type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled reports whether an object store is configured.
func (c ObjectStoreConfig) Enabled() bool {
	return c.Endpoint != ""
}

// ActionCacheConfig selects where execution results are memoized.
type ActionCacheConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	DatabaseURL string `yaml:"database_url"`
}

// LocalConfig configures the local runner.
type LocalConfig struct {
	Concurrency   int    `yaml:"concurrency"`
	SandboxDir    string `yaml:"sandbox_dir"`
	CacheFailures bool   `yaml:"cache_failures"`
}

// RemoteConfig configures the remote runner.
type RemoteConfig struct {
	Address     string        `yaml:"address"`
	MaxInflight int           `yaml:"max_inflight"`
	PollStep    time.Duration `yaml:"poll_step"`
	PollMax     time.Duration `yaml:"poll_max"`
	Fallback    bool          `yaml:"fallback"`
}

// Enabled reports whether a remote execution endpoint is configured.
func (c RemoteConfig) Enabled() bool {
	return c.Address != ""
}

// ServerConfig configures the remote execution server.
type ServerConfig struct {
	Listen      string `yaml:"listen"`
	Concurrency int    `yaml:"concurrency"`
	MaxStreams  uint32 `yaml:"max_streams"`
}

// Default returns the configuration used when no rex.yaml exists.
func Default(root string) *Config {
	return &Config{
		Root: root,
		Store: StoreConfig{
			Path:        filepath.Join(root, domain.DefaultStorePath()),
			Compression: "zstd",
		},
		ActionCache: ActionCacheConfig{
			Backend: BackendDisk,
			Path:    filepath.Join(root, domain.DefaultActionCachePath()),
		},
		Local: LocalConfig{
			Concurrency: runtime.NumCPU(),
			SandboxDir:  filepath.Join(root, domain.DefaultSandboxPath()),
		},
		Remote: RemoteConfig{
			MaxInflight: 64,
			PollStep:    domain.DefaultPollStep,
			PollMax:     domain.DefaultPollMax,
			Fallback:    true,
		},
		Server: ServerConfig{
			Listen:      domain.DefaultServerAddress,
			Concurrency: runtime.NumCPU(),
			MaxStreams:  256,
		},
	}
}
