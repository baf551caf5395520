package domain

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
	"go.trai.ch/zerr"
)

// HashSize is the length in bytes of a content hash.
const HashSize = 32

// Digest identifies a blob by the BLAKE3 hash of its bytes and its length.
type Digest struct {
	Hash [HashSize]byte `cbor:"1,keyasint"`
	Size int64          `cbor:"2,keyasint"`
}

// EmptyDigest is the digest of zero bytes.
var EmptyDigest = DigestOf(nil)

// DigestOf computes the digest of data.
func DigestOf(data []byte) Digest {
	return Digest{
		Hash: blake3.Sum256(data),
		Size: int64(len(data)),
	}
}

// Matches reports whether data hashes to d.
func (d Digest) Matches(data []byte) bool {
	return int64(len(data)) == d.Size && blake3.Sum256(data) == d.Hash
}

// Hex returns the hex-encoded hash.
func (d Digest) Hex() string {
	return hex.EncodeToString(d.Hash[:])
}

// String returns the canonical textual form "<hex>/<size>".
func (d Digest) String() string {
	return d.Hex() + "/" + strconv.FormatInt(d.Size, 10)
}

// IsZero reports whether d is the zero value, which never identifies stored content.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDigest parses the "<hex>/<size>" form produced by Digest.String.
func ParseDigest(s string) (Digest, error) {
	hexPart, sizePart, ok := strings.Cut(s, "/")
	if !ok {
		return Digest{}, zerr.With(zerr.Wrap(ErrInvalidDigest, "failed to parse digest"), "digest", s)
	}

	raw, err := hex.DecodeString(hexPart)
	if err != nil || len(raw) != HashSize {
		return Digest{}, zerr.With(zerr.Wrap(ErrInvalidDigest, "failed to parse digest"), "digest", s)
	}

	size, err := strconv.ParseInt(sizePart, 10, 64)
	if err != nil || size < 0 {
		return Digest{}, zerr.With(zerr.Wrap(ErrInvalidDigest, "failed to parse digest"), "digest", s)
	}

	var d Digest
	copy(d.Hash[:], raw)
	d.Size = size
	return d, nil
}

// Blob pairs bytes with their digest.
type Blob struct {
	Digest Digest `cbor:"1,keyasint"`
	Data   []byte `cbor:"2,keyasint"`
}

// NewBlob computes the digest of data and returns the pair.
func NewBlob(data []byte) Blob {
	return Blob{Digest: DigestOf(data), Data: data}
}
