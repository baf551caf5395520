// Package codec provides the canonical binary encoding used for trees,
// requests, cache entries and the remote execution wire format.
package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// Name is the content-subtype the codec is registered under for gRPC.
const Name = "cbor"

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2). The same logical
// value always produces identical bytes, which makes encoded values safe to hash.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// GRPC adapts the package to the grpc encoding.Codec interface.
type GRPC struct{}

// Marshal implements encoding.Codec.
func (GRPC) Marshal(v any) ([]byte, error) {
	return Marshal(v)
}

// Unmarshal implements encoding.Codec.
func (GRPC) Unmarshal(data []byte, v any) error {
	return Unmarshal(data, v)
}

// Name implements encoding.Codec.
func (GRPC) Name() string {
	return Name
}
