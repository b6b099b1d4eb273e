package codec

import (
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// LZ4 compresses pages with LZ4 block compression. Fast, moderate ratio.
type LZ4 struct{}

// ID returns IDLZ4.
func (LZ4) ID() ID { return IDLZ4 }

// Name returns "lz4".
func (LZ4) Name() string { return "lz4" }

// Compress encodes src as one LZ4 block.
func (LZ4) Compress(src []byte) ([]byte, error) {
	out := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, out, nil)
	if err != nil {
		return nil, fmt.Errorf("codec lz4: %w", err)
	}
	// n == 0 means the block did not compress.
	if n == 0 || n >= len(src) {
		return nil, ErrIncompressible
	}
	return out[:n], nil
}

// Decompress decodes one LZ4 block of rawLen bytes.
func (LZ4) Decompress(src []byte, rawLen int) ([]byte, error) {
	out := make([]byte, rawLen)
	n, err := lz4.UncompressBlock(src, out)
	if err != nil {
		return nil, fmt.Errorf("codec lz4: %w", err)
	}
	if n != rawLen {
		return nil, fmt.Errorf("codec lz4: length mismatch: expected %d, got %d", rawLen, n)
	}
	return out, nil
}
