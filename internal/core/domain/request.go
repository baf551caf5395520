package domain

import (
	"encoding/hex"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"go.trai.ch/rex/internal/codec"
	"go.trai.ch/zerr"
)

// Fingerprint is the cache key derived from an ExecutionRequest.
type Fingerprint [HashSize]byte

// String returns the hex form of the fingerprint.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// ExecutionRequest describes one process invocation: what to run, against which
// input tree, and which outputs to collect. It is immutable once constructed;
// accessors return copies.
type ExecutionRequest struct {
	argv        []string
	env         map[string]string
	inputRoot   Digest
	outputFiles []string
	outputDirs  []string
	workingDir  string
	timeout     time.Duration
	description string
	noCache     bool

	encoded     []byte
	fingerprint Fingerprint
}

// RequestOption configures an ExecutionRequest under construction.
type RequestOption func(*ExecutionRequest)

// WithEnv sets the process environment overrides.
func WithEnv(env map[string]string) RequestOption {
	return func(r *ExecutionRequest) {
		r.env = maps.Clone(env)
	}
}

// WithInputRoot sets the digest of the input DirectoryTree.
func WithInputRoot(d Digest) RequestOption {
	return func(r *ExecutionRequest) {
		r.inputRoot = d
	}
}

// WithOutputFiles declares output files relative to the sandbox root.
func WithOutputFiles(paths ...string) RequestOption {
	return func(r *ExecutionRequest) {
		r.outputFiles = append(r.outputFiles, paths...)
	}
}

// WithOutputDirectories declares output directories relative to the sandbox root.
func WithOutputDirectories(paths ...string) RequestOption {
	return func(r *ExecutionRequest) {
		r.outputDirs = append(r.outputDirs, paths...)
	}
}

// WithWorkingDirectory runs the process in a subdirectory of the sandbox.
func WithWorkingDirectory(dir string) RequestOption {
	return func(r *ExecutionRequest) {
		r.workingDir = dir
	}
}

// WithTimeout bounds the wall-clock duration of the execution. Zero means no timeout.
func WithTimeout(d time.Duration) RequestOption {
	return func(r *ExecutionRequest) {
		r.timeout = d
	}
}

// WithDescription attaches a human readable description. It does not affect the fingerprint.
func WithDescription(desc string) RequestOption {
	return func(r *ExecutionRequest) {
		r.description = desc
	}
}

// WithNoCache opts the request out of action cache lookups and writes.
func WithNoCache() RequestOption {
	return func(r *ExecutionRequest) {
		r.noCache = true
	}
}

// NewExecutionRequest validates and builds a request.
func NewExecutionRequest(argv []string, opts ...RequestOption) (*ExecutionRequest, error) {
	r := &ExecutionRequest{
		argv: slices.Clone(argv),
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.normalize(); err != nil {
		return nil, err
	}
	if err := r.seal(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *ExecutionRequest) normalize() error {
	if len(r.argv) == 0 || r.argv[0] == "" {
		return zerr.Wrap(ErrEmptyCommand, ErrInvalidRequest.Error())
	}

	for k := range r.env {
		if k == "" || strings.ContainsAny(k, "=\x00") {
			return zerr.With(zerr.Wrap(ErrInvalidRequest, "invalid environment variable name"), "name", k)
		}
	}
	if r.env == nil {
		r.env = map[string]string{}
	}

	if r.inputRoot.IsZero() {
		r.inputRoot = EmptyTreeDigest
	}

	if r.timeout < 0 {
		return zerr.With(zerr.Wrap(ErrInvalidRequest, "timeout must not be negative"), "timeout", r.timeout)
	}

	if r.workingDir != "" && r.workingDir != "." {
		dir, err := CleanRelativePath(r.workingDir)
		if err != nil {
			return zerr.Wrap(err, "invalid working directory")
		}
		r.workingDir = dir
	} else {
		r.workingDir = ""
	}

	var err error
	if r.outputFiles, err = cleanOutputs(r.outputFiles); err != nil {
		return err
	}
	if r.outputDirs, err = cleanOutputs(r.outputDirs); err != nil {
		return err
	}

	for _, f := range r.outputFiles {
		if _, found := slices.BinarySearch(r.outputDirs, f); found {
			return zerr.With(zerr.Wrap(ErrInvalidRequest, "path declared as both file and directory output"), "path", f)
		}
	}

	return nil
}

func cleanOutputs(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		cleaned, err := CleanRelativePath(p)
		if err != nil {
			return nil, zerr.Wrap(err, "invalid output path")
		}
		out = append(out, cleaned)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// fingerprintWire holds the fields that define what an execution computes.
type fingerprintWire struct {
	Argv        []string          `cbor:"1,keyasint"`
	Env         map[string]string `cbor:"2,keyasint"`
	InputRoot   Digest            `cbor:"3,keyasint"`
	OutputFiles []string          `cbor:"4,keyasint"`
	OutputDirs  []string          `cbor:"5,keyasint"`
	WorkingDir  string            `cbor:"6,keyasint"`
	Timeout     int64             `cbor:"7,keyasint"`
}

type requestWire struct {
	fingerprintWire
	Description string `cbor:"8,keyasint,omitempty"`
	NoCache     bool   `cbor:"9,keyasint,omitempty"`
}

func (r *ExecutionRequest) fingerprintFields() fingerprintWire {
	return fingerprintWire{
		Argv:        r.argv,
		Env:         r.env,
		InputRoot:   r.inputRoot,
		OutputFiles: r.outputFiles,
		OutputDirs:  r.outputDirs,
		WorkingDir:  r.workingDir,
		Timeout:     int64(r.timeout),
	}
}

func (r *ExecutionRequest) seal() error {
	fp, err := codec.Marshal(r.fingerprintFields())
	if err != nil {
		return zerr.Wrap(err, "failed to encode request fingerprint")
	}
	r.fingerprint = blake3.Sum256(fp)

	r.encoded, err = codec.Marshal(requestWire{
		fingerprintWire: r.fingerprintFields(),
		Description:     r.description,
		NoCache:         r.noCache,
	})
	if err != nil {
		return zerr.Wrap(err, "failed to encode request")
	}
	return nil
}

// DecodeExecutionRequest parses the canonical serialization produced by Encode.
func DecodeExecutionRequest(data []byte) (*ExecutionRequest, error) {
	var wire requestWire
	if err := codec.Unmarshal(data, &wire); err != nil {
		return nil, zerr.Wrap(ErrInvalidRequest, "failed to decode request: "+err.Error())
	}

	opts := []RequestOption{
		WithEnv(wire.Env),
		WithInputRoot(wire.InputRoot),
		WithOutputFiles(wire.OutputFiles...),
		WithOutputDirectories(wire.OutputDirs...),
		WithWorkingDirectory(wire.WorkingDir),
		WithTimeout(time.Duration(wire.Timeout)),
		WithDescription(wire.Description),
	}
	if wire.NoCache {
		opts = append(opts, WithNoCache())
	}
	return NewExecutionRequest(wire.Argv, opts...)
}

// Argv returns the argument vector.
func (r *ExecutionRequest) Argv() []string { return slices.Clone(r.argv) }

// Env returns the environment overrides.
func (r *ExecutionRequest) Env() map[string]string { return maps.Clone(r.env) }

// InputRoot returns the input tree digest.
func (r *ExecutionRequest) InputRoot() Digest { return r.inputRoot }

// OutputFiles returns the sorted declared output files.
func (r *ExecutionRequest) OutputFiles() []string { return slices.Clone(r.outputFiles) }

// OutputDirectories returns the sorted declared output directories.
func (r *ExecutionRequest) OutputDirectories() []string { return slices.Clone(r.outputDirs) }

// WorkingDirectory returns the sandbox-relative working directory, or "" for the root.
func (r *ExecutionRequest) WorkingDirectory() string { return r.workingDir }

// Timeout returns the declared timeout. Zero means none.
func (r *ExecutionRequest) Timeout() time.Duration { return r.timeout }

// Description returns the human readable description.
func (r *ExecutionRequest) Description() string { return r.description }

// NoCache reports whether the request opted out of caching.
func (r *ExecutionRequest) NoCache() bool { return r.noCache }

// Fingerprint returns the cache key of the request.
func (r *ExecutionRequest) Fingerprint() Fingerprint { return r.fingerprint }

// Encode returns the canonical serialization, including description and cache opt-out.
func (r *ExecutionRequest) Encode() []byte { return slices.Clone(r.encoded) }

// Name returns the description, falling back to the program name.
func (r *ExecutionRequest) Name() string {
	if r.description != "" {
		return r.description
	}
	return r.argv[0]
}
