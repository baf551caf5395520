package domain

import (
	"path/filepath"
	"time"
)

const (
	// RexDirName is the name of the internal workspace directory.
	RexDirName = ".rex"

	// StoreDirName is the name of the content addressable store directory.
	StoreDirName = "store"

	// ActionCacheDirName is the name of the action cache directory.
	ActionCacheDirName = "actions"

	// SandboxDirName is the name of the directory sandboxes are created in.
	SandboxDirName = "sandbox"

	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "rex.yaml"

	// SandboxPattern is the os.MkdirTemp pattern for sandbox directories.
	SandboxPattern = "rex-sandbox-*"

	// DefaultServerAddress is the address the remote execution server listens on.
	DefaultServerAddress = "127.0.0.1:7433"

	// DefaultPollStep is the linear backoff increment between remote status polls.
	DefaultPollStep = 500 * time.Millisecond

	// DefaultPollMax caps the delay between remote status polls.
	DefaultPollMax = 5 * time.Second

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// ExecFilePerm is the permission for executable files (rwxr-xr-x).
	ExecFilePerm = 0o755

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600
)

// DefaultRexPath returns the default root directory for rex metadata.
func DefaultRexPath() string {
	return RexDirName
}

// DefaultStorePath returns the default path for the content addressable store.
// It joins .rex and store.
func DefaultStorePath() string {
	return filepath.Join(RexDirName, StoreDirName)
}

// DefaultActionCachePath returns the default path for the disk action cache.
// It joins .rex and actions.
func DefaultActionCachePath() string {
	return filepath.Join(RexDirName, ActionCacheDirName)
}

// DefaultSandboxPath returns the default parent directory for sandboxes.
// It joins .rex and sandbox.
func DefaultSandboxPath() string {
	return filepath.Join(RexDirName, SandboxDirName)
}
