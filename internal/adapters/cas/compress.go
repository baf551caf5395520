package cas

import (
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"go.trai.ch/rex/internal/core/domain"
	"go.trai.ch/zerr"
)

// Compression identifies how a blob is encoded on disk. The value is the
// first byte of every stored file.
type Compression uint8

const (
	// CompressionNone stores the bytes as they are.
	CompressionNone Compression = 0
	// CompressionLZ4 stores an LZ4 block.
	CompressionLZ4 Compression = 1
	// CompressionZstd stores a zstd frame.
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// ParseCompression parses the names accepted in configuration.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, zerr.With(zerr.Wrap(domain.ErrUnknownCompression, "failed to parse compression"), "compression", name)
	}
}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("cas: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("cas: zstd decoder initialization failed: " + err.Error())
	}
}

// encode returns the on-disk form of data. Data that does not shrink is stored uncompressed.
func encode(data []byte, c Compression) []byte {
	var payload []byte
	switch c {
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, dst, nil)
		if err == nil && n > 0 && n < len(data) {
			payload = dst[:n]
		}
	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) < len(data) {
			payload = compressed
		}
	}

	if payload == nil {
		c = CompressionNone
		payload = data
	}

	out := make([]byte, 0, len(payload)+1)
	out = append(out, byte(c))
	return append(out, payload...)
}

// decode reverses encode. size is the uncompressed length recorded in the digest.
func decode(stored []byte, size int64) ([]byte, error) {
	if len(stored) == 0 {
		return nil, zerr.Wrap(domain.ErrCorruptBlob, "stored blob is missing its header")
	}

	payload := stored[1:]
	switch Compression(stored[0]) {
	case CompressionNone:
		return payload, nil
	case CompressionLZ4:
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, dst)
		if err != nil {
			return nil, zerr.Wrap(err, "lz4 decompress")
		}
		return dst[:n], nil
	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return nil, zerr.Wrap(err, "zstd decompress")
		}
		return out, nil
	default:
		return nil, zerr.With(zerr.Wrap(domain.ErrUnknownCompression, "failed to decode blob"), "tag", stored[0])
	}
}
