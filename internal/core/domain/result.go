package domain

import (
	"time"

	"go.trai.ch/rex/internal/codec"
	"go.trai.ch/zerr"
)

// ExecutionResult is the outcome of a completed execution. A non-zero exit
// code is a valid result, not an error.
type ExecutionResult struct {
	ExitCode   int           `cbor:"1,keyasint" json:"exit_code"`
	Stdout     Digest        `cbor:"2,keyasint" json:"stdout"`
	Stderr     Digest        `cbor:"3,keyasint" json:"stderr"`
	OutputRoot Digest        `cbor:"4,keyasint" json:"output_root"`
	Elapsed    time.Duration `cbor:"5,keyasint" json:"elapsed"`
}

// Succeeded reports whether the process exited with status zero.
func (r ExecutionResult) Succeeded() bool {
	return r.ExitCode == 0
}

// Digests returns every digest the result references.
func (r ExecutionResult) Digests() []Digest {
	return []Digest{r.Stdout, r.Stderr, r.OutputRoot}
}

// EncodeResult serializes a result canonically.
func EncodeResult(r ExecutionResult) ([]byte, error) {
	data, err := codec.Marshal(r)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to encode execution result")
	}
	return data, nil
}

// DecodeResult parses a result produced by EncodeResult.
func DecodeResult(data []byte) (ExecutionResult, error) {
	var r ExecutionResult
	if err := codec.Unmarshal(data, &r); err != nil {
		return ExecutionResult{}, zerr.Wrap(err, "failed to decode execution result")
	}
	return r, nil
}
