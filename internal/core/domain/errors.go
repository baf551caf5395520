package domain

import (
	"errors"
	"time"

	"go.trai.ch/zerr"
)

var (
	// ErrNotFound is returned when a digest is not present in a content store or cache.
	ErrNotFound = zerr.New("not found")

	// ErrMergeConflict is returned when two trees hold divergent content at the same path.
	ErrMergeConflict = zerr.New("merge conflict")

	// ErrMissingOutput is returned when a declared output does not exist after execution.
	ErrMissingOutput = zerr.New("missing output")

	// ErrTimeout is returned when an execution exceeds its declared timeout.
	ErrTimeout = zerr.New("execution timed out")

	// ErrInfrastructure marks failures of the execution machinery rather than the action itself.
	ErrInfrastructure = zerr.New("infrastructure failure")

	// ErrCorruptBlob is returned when stored bytes do not match their digest.
	ErrCorruptBlob = zerr.New("stored content does not match its digest")

	// ErrInvalidDigest is returned when a digest string cannot be parsed.
	ErrInvalidDigest = zerr.New("invalid digest")

	// ErrInvalidTree is returned when a directory tree is malformed.
	ErrInvalidTree = zerr.New("invalid directory tree")

	// ErrInvalidEntryName is returned when a tree entry name is not a single path component.
	ErrInvalidEntryName = zerr.New("invalid tree entry name")

	// ErrDuplicateEntry is returned when a tree declares the same name twice.
	ErrDuplicateEntry = zerr.New("duplicate tree entry")

	// ErrInvalidRequest is returned when an execution request fails validation.
	ErrInvalidRequest = zerr.New("invalid execution request")

	// ErrEmptyCommand is returned when an execution request has no argv.
	ErrEmptyCommand = zerr.New("command must not be empty")

	// ErrPathOutsideRoot is returned when a path escapes the sandbox root.
	ErrPathOutsideRoot = zerr.New("path is outside the sandbox root")

	// ErrUnknownCompression is returned when a blob carries an unknown compression tag.
	ErrUnknownCompression = zerr.New("unknown compression")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrInvalidConfig is returned when a config value is out of range.
	ErrInvalidConfig = zerr.New("invalid configuration")

	// ErrActionCacheReadFailed is returned when an action cache entry cannot be read.
	ErrActionCacheReadFailed = zerr.New("failed to read action cache entry")

	// ErrActionCacheWriteFailed is returned when an action cache entry cannot be written.
	ErrActionCacheWriteFailed = zerr.New("failed to write action cache entry")

	// ErrRemoteUnavailable is returned when no remote execution endpoint is configured.
	ErrRemoteUnavailable = zerr.New("remote execution is not configured")

	// ErrOperationNotFound is returned when a remote operation name is unknown.
	ErrOperationNotFound = zerr.New("operation not found")

	// ErrExecutionFailed is returned by the CLI when a command exits non-zero.
	ErrExecutionFailed = zerr.New("execution failed")
)

// MergeConflictError names the path at which two trees diverge.
type MergeConflictError struct {
	Path string
}

func (e *MergeConflictError) Error() string {
	return "merge conflict at " + e.Path
}

// Is matches ErrMergeConflict.
func (e *MergeConflictError) Is(target error) bool {
	return target == ErrMergeConflict
}

// MissingOutputError names a declared output that was not produced.
type MissingOutputError struct {
	Path string
}

func (e *MissingOutputError) Error() string {
	return "missing output " + e.Path
}

// Is matches ErrMissingOutput.
func (e *MissingOutputError) Is(target error) bool {
	return target == ErrMissingOutput
}

// TimeoutError reports the timeout an execution exceeded.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return "execution timed out after " + e.Timeout.String()
}

// Is matches ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// InfrastructureError wraps a failure of the execution machinery: spawning a
// process, talking to a remote service or reading and writing a store.
type InfrastructureError struct {
	Op  string
	Err error
}

// Infrastructure wraps err as an InfrastructureError for the named operation.
// It returns nil for a nil err and leaves errors that already are infrastructure errors untouched.
func Infrastructure(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInfrastructure) {
		return err
	}
	return &InfrastructureError{Op: op, Err: err}
}

func (e *InfrastructureError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

// Is matches ErrInfrastructure.
func (e *InfrastructureError) Is(target error) bool {
	return target == ErrInfrastructure
}

// IsInfrastructure reports whether err is an infrastructure failure that a
// different backend may recover from.
func IsInfrastructure(err error) bool {
	return errors.Is(err, ErrInfrastructure)
}
