package codec

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Zstd compresses pages with Zstandard. Better ratio than LZ4, the default.
type Zstd struct{}

// ID returns IDZstd.
func (Zstd) ID() ID { return IDZstd }

// Name returns "zstd".
func (Zstd) Name() string { return "zstd" }

// Compress encodes src as a single zstd frame.
func (Zstd) Compress(src []byte) ([]byte, error) {
	enc := getZstdEncoder()
	defer zstdEncoderPool.Put(enc)

	out := enc.EncodeAll(src, make([]byte, 0, len(src)/2+16))
	if len(out) >= len(src) {
		return nil, ErrIncompressible
	}
	return out, nil
}

// Decompress decodes a zstd frame and checks the decoded length.
func (Zstd) Decompress(src []byte, rawLen int) ([]byte, error) {
	dec := getZstdDecoder()
	defer zstdDecoderPool.Put(dec)

	out, err := dec.DecodeAll(src, make([]byte, 0, rawLen))
	if err != nil {
		return nil, fmt.Errorf("codec zstd: %w", err)
	}
	if len(out) != rawLen {
		return nil, fmt.Errorf("codec zstd: length mismatch: expected %d, got %d", rawLen, len(out))
	}
	return out, nil
}
