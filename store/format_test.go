package store

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/hupe1980/thickidx/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageRoundTrip(t *testing.T) {
	compressible := bytes.Repeat([]byte("thickidx "), 512)

	random := make([]byte, 4096)
	rng := rand.New(rand.NewSource(1))
	_, _ = rng.Read(random)

	tests := []struct {
		name      string
		raw       []byte
		codec     codec.Compressor
		wantCodec codec.ID
	}{
		{"zstd compressible", compressible, codec.Zstd{}, codec.IDZstd},
		{"lz4 compressible", compressible, codec.LZ4{}, codec.IDLZ4},
		{"zstd random falls back", random, codec.Zstd{}, codec.IDNone},
		{"none", compressible, codec.None{}, codec.IDNone},
		{"nil codec", compressible, nil, codec.IDNone},
		{"empty", nil, codec.Zstd{}, codec.IDNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := encodePage(KindRecord, tt.raw, tt.codec)
			require.NoError(t, err)
			assert.Equal(t, byte(tt.wantCodec), page[5])

			kind, raw, err := decodePage(page)
			require.NoError(t, err)
			assert.Equal(t, KindRecord, kind)
			assert.Equal(t, len(tt.raw), len(raw))
			assert.True(t, bytes.Equal(tt.raw, raw))
		})
	}
}

func TestDecodePageRejectsCorruption(t *testing.T) {
	page, err := encodePage(KindSmallList, bytes.Repeat([]byte{7}, 300), codec.Zstd{})
	require.NoError(t, err)

	mutate := func(f func(p []byte) []byte) []byte {
		return f(append([]byte(nil), page...))
	}

	cases := map[string][]byte{
		"short":    page[:pageHeaderSize-1],
		"magic":    mutate(func(p []byte) []byte { p[0] ^= 1; return p }),
		"version":  mutate(func(p []byte) []byte { p[4] = 9; return p }),
		"kind":     mutate(func(p []byte) []byte { p[6] ^= 1; return p }),
		"payload":  mutate(func(p []byte) []byte { p[len(p)-1] ^= 0x80; return p }),
		"truncate": page[:len(page)-1],
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := decodePage(p)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}
