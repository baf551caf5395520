package cas_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/rex/internal/adapters/cas"
	"go.trai.ch/rex/internal/core/domain"
)

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in   string
		want cas.Compression
	}{
		{in: "", want: cas.CompressionNone},
		{in: "none", want: cas.CompressionNone},
		{in: "lz4", want: cas.CompressionLZ4},
		{in: "zstd", want: cas.CompressionZstd},
	}
	for _, tt := range tests {
		got, err := cas.ParseCompression(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := cas.ParseCompression("brotli")
	assert.ErrorIs(t, err, domain.ErrUnknownCompression)
}

func TestEncode_ShrinksCompressibleData(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefgh"), 1024)

	for _, c := range []cas.Compression{cas.CompressionLZ4, cas.CompressionZstd} {
		t.Run(c.String(), func(t *testing.T) {
			stored := cas.Encode(data, c)
			assert.Equal(t, byte(c), stored[0])
			assert.Less(t, len(stored), len(data))

			out, err := cas.Decode(stored, int64(len(data)))
			require.NoError(t, err)
			assert.Equal(t, data, out)
		})
	}
}

func TestEncode_FallsBackToNoneForIncompressible(t *testing.T) {
	data := []byte{0x01}

	for _, c := range []cas.Compression{cas.CompressionLZ4, cas.CompressionZstd} {
		stored := cas.Encode(data, c)
		assert.Equal(t, byte(cas.CompressionNone), stored[0], c.String())
		assert.Equal(t, data, stored[1:])
	}
}

func TestDecode_EmptyIsCorrupt(t *testing.T) {
	_, err := cas.Decode(nil, 0)
	assert.ErrorIs(t, err, domain.ErrCorruptBlob)
}
