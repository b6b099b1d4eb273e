package store

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/thickidx/codec"
	"github.com/hupe1980/thickidx/internal/hash"
)

// Page layout (little endian):
//
//	Magic    (4 bytes) - 0x50484b54 ("TKHP")
//	Version  (1 byte)
//	Codec    (1 byte)  - codec.ID of the payload
//	Kind     (2 bytes)
//	RawLen   (4 bytes) - payload length before compression
//	Checksum (4 bytes) - CRC32-C of bytes 0..12 and the payload
//	Payload
const (
	pageMagic      = 0x50484b54
	pageVersion    = 1
	pageHeaderSize = 16
)

// encodePage frames the marshaled object data. Data that does not shrink
// under c is stored uncompressed.
func encodePage(kind Kind, raw []byte, c codec.Compressor) ([]byte, error) {
	payload := raw
	id := codec.IDNone

	if c != nil && c.ID() != codec.IDNone && len(raw) > 0 {
		compressed, err := c.Compress(raw)
		switch {
		case errors.Is(err, codec.ErrIncompressible):
			// stored raw
		case err != nil:
			return nil, err
		case len(compressed) < len(raw):
			payload = compressed
			id = c.ID()
		}
	}

	page := make([]byte, pageHeaderSize, pageHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(page[0:4], pageMagic)
	page[4] = pageVersion
	page[5] = byte(id)
	binary.LittleEndian.PutUint16(page[6:8], uint16(kind))
	binary.LittleEndian.PutUint32(page[8:12], uint32(len(raw)))
	page = append(page, payload...)

	sum := hash.UpdateCRC32C(hash.CRC32C(page[0:12]), page[pageHeaderSize:])
	binary.LittleEndian.PutUint32(page[12:16], sum)
	return page, nil
}

// decodePage validates a page and returns its kind and uncompressed payload.
func decodePage(page []byte) (Kind, []byte, error) {
	if len(page) < pageHeaderSize {
		return KindInvalid, nil, fmt.Errorf("%w: short page (%d bytes)", ErrCorrupt, len(page))
	}
	if magic := binary.LittleEndian.Uint32(page[0:4]); magic != pageMagic {
		return KindInvalid, nil, fmt.Errorf("%w: bad magic %08x", ErrCorrupt, magic)
	}
	if page[4] != pageVersion {
		return KindInvalid, nil, fmt.Errorf("%w: unsupported page version %d", ErrCorrupt, page[4])
	}

	sum := hash.UpdateCRC32C(hash.CRC32C(page[0:12]), page[pageHeaderSize:])
	if want := binary.LittleEndian.Uint32(page[12:16]); sum != want {
		return KindInvalid, nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	c, err := codec.ByID(codec.ID(page[5]))
	if err != nil {
		return KindInvalid, nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	kind := Kind(binary.LittleEndian.Uint16(page[6:8]))
	rawLen := int(binary.LittleEndian.Uint32(page[8:12]))

	raw, err := c.Decompress(page[pageHeaderSize:], rawLen)
	if err != nil {
		return KindInvalid, nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return kind, raw, nil
}
