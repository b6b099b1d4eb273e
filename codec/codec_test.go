package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressorsRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("thickidx-page-"), 256)

	for _, c := range []Compressor{None{}, LZ4{}, Zstd{}} {
		t.Run(c.Name(), func(t *testing.T) {
			out, err := c.Compress(payload)
			require.NoError(t, err)
			if c.ID() != IDNone {
				assert.Less(t, len(out), len(payload))
			}

			got, err := c.Decompress(out, len(payload))
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestIncompressible(t *testing.T) {
	tiny := []byte{0x01, 0x02, 0x03}

	_, err := LZ4{}.Compress(tiny)
	assert.ErrorIs(t, err, ErrIncompressible)

	_, err = Zstd{}.Compress(tiny)
	assert.ErrorIs(t, err, ErrIncompressible)
}

func TestDecompressLengthMismatch(t *testing.T) {
	payload := bytes.Repeat([]byte{7}, 1024)

	out, err := Zstd{}.Compress(payload)
	require.NoError(t, err)
	_, err = Zstd{}.Decompress(out, 10)
	assert.Error(t, err)

	_, err = None{}.Decompress(payload, 10)
	assert.Error(t, err)
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"none", "lz4", "zstd"} {
		c, ok := ByName(name)
		require.True(t, ok, name)
		assert.Equal(t, name, c.Name())

		byID, err := ByID(c.ID())
		require.NoError(t, err)
		assert.Equal(t, c.Name(), byID.Name())
	}

	_, ok := ByName("snappy")
	assert.False(t, ok)

	_, err := ByID(42)
	assert.ErrorIs(t, err, ErrUnknownCompressor)
}
