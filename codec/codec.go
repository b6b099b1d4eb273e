// Package codec centralizes page compression for persisted objects.
//
// Every persisted object page records the ID of the compressor that produced
// it, so pages written with one compressor stay readable after the store
// default changes. Changing the numeric ID of a compressor is a breaking
// change of the on-disk format.
package codec

import (
	"errors"
	"fmt"
)

// ErrIncompressible is returned by Compress when the input did not shrink.
// Callers are expected to store such pages uncompressed.
var ErrIncompressible = errors.New("incompressible data")

// ErrUnknownCompressor is returned when a compressor ID or name is not registered.
var ErrUnknownCompressor = errors.New("unknown compressor")

// ID is the stable on-disk identifier of a compressor.
type ID uint8

const (
	IDNone ID = 0
	IDLZ4  ID = 1
	IDZstd ID = 2
)

// Compressor compresses and decompresses object pages.
// Implementations must be safe for concurrent use.
type Compressor interface {
	ID() ID
	Name() string
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte, rawLen int) ([]byte, error)
}

// ByName returns a built-in compressor by its stable name.
func ByName(name string) (Compressor, bool) {
	switch name {
	case "none", "":
		return None{}, true
	case "lz4":
		return LZ4{}, true
	case "zstd":
		return Zstd{}, true
	default:
		return nil, false
	}
}

// ByID returns a built-in compressor by its on-disk ID.
func ByID(id ID) (Compressor, error) {
	switch id {
	case IDNone:
		return None{}, nil
	case IDLZ4:
		return LZ4{}, nil
	case IDZstd:
		return Zstd{}, nil
	default:
		return nil, fmt.Errorf("%w: id %d", ErrUnknownCompressor, id)
	}
}

// Default is the compressor used for newly written pages.
var Default Compressor = Zstd{}

// None stores pages as is.
type None struct{}

// ID returns IDNone.
func (None) ID() ID { return IDNone }

// Name returns "none".
func (None) Name() string { return "none" }

// Compress returns a copy of src.
func (None) Compress(src []byte) ([]byte, error) {
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}

// Decompress returns a copy of src after checking its length.
func (None) Decompress(src []byte, rawLen int) ([]byte, error) {
	if len(src) != rawLen {
		return nil, fmt.Errorf("codec none: length mismatch: expected %d, got %d", rawLen, len(src))
	}
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}
