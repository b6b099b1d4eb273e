package manifest

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/thickidx/core"
	"github.com/hupe1980/thickidx/internal/hash"
)

const (
	binaryMagic   = 0x54484b4d // "THKM"
	binaryVersion = 1
	headerSize    = 16
	objectSize    = 4 + 2 + 8 + 4
)

// WriteBinary encodes the manifest. See the package documentation for the layout.
func (m *Manifest) WriteBinary() ([]byte, error) {
	pb := newPayloadBuffer(make([]byte, headerSize, headerSize+32+len(m.Objects)*objectSize))

	pb.writeUint64(m.ID)
	pb.writeUint64(uint64(m.CreatedAt.UnixNano()))
	pb.writeUint32(uint32(m.NextOID))
	pb.writeUint32(uint32(m.Root))
	pb.writeUint32(uint32(len(m.Objects)))

	for _, o := range m.Objects {
		pb.writeUint32(uint32(o.OID))
		pb.writeUint16(o.Kind)
		pb.writeUint64(o.Gen)
		pb.writeUint32(o.Size)
	}

	if pb.err != nil {
		return nil, pb.err
	}

	buf := pb.buf
	payload := buf[headerSize:]
	binary.LittleEndian.PutUint32(buf[0:4], binaryMagic)
	binary.LittleEndian.PutUint32(buf[4:8], binaryVersion)
	binary.LittleEndian.PutUint32(buf[8:12], hash.CRC32C(payload))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(payload)))
	return buf, nil
}

// ReadBinary decodes a manifest written by WriteBinary.
func ReadBinary(data []byte) (*Manifest, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: short header", ErrCorrupt)
	}

	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != binaryMagic {
		return nil, fmt.Errorf("%w: invalid magic: %x", ErrCorrupt, magic)
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version != binaryVersion {
		return nil, fmt.Errorf("%w: %d", ErrIncompatibleVersion, version)
	}
	checksum := binary.LittleEndian.Uint32(data[8:12])
	length := binary.LittleEndian.Uint32(data[12:16])

	payload := data[headerSize:]
	if uint32(len(payload)) != length {
		return nil, fmt.Errorf("%w: payload length %d, want %d", ErrCorrupt, len(payload), length)
	}
	if hash.CRC32C(payload) != checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	pb := newPayloadBuffer(payload)
	m := &Manifest{Version: int(version)}

	m.ID = pb.readUint64()
	m.CreatedAt = time.Unix(0, int64(pb.readUint64()))
	m.NextOID = core.OID(pb.readUint32())
	m.Root = core.OID(pb.readUint32())

	numObjects := pb.readUint32()
	if pb.err == nil && uint64(numObjects)*objectSize > uint64(len(payload)) {
		return nil, fmt.Errorf("%w: object count %d", ErrCorrupt, numObjects)
	}
	m.Objects = make([]ObjectInfo, numObjects)
	for i := range m.Objects {
		m.Objects[i].OID = core.OID(pb.readUint32())
		m.Objects[i].Kind = pb.readUint16()
		m.Objects[i].Gen = pb.readUint64()
		m.Objects[i].Size = pb.readUint32()
	}

	if pb.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, pb.err)
	}

	return m, nil
}

type payloadBuffer struct {
	buf []byte
	pos int
	err error
}

func newPayloadBuffer(b []byte) *payloadBuffer {
	return &payloadBuffer{buf: b}
}

func (p *payloadBuffer) writeUint64(v uint64) {
	p.buf = binary.LittleEndian.AppendUint64(p.buf, v)
}

func (p *payloadBuffer) writeUint32(v uint32) {
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
}

func (p *payloadBuffer) writeUint16(v uint16) {
	p.buf = binary.LittleEndian.AppendUint16(p.buf, v)
}

func (p *payloadBuffer) readUint64() uint64 {
	if p.err != nil {
		return 0
	}
	if p.pos+8 > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return 0
	}
	v := binary.LittleEndian.Uint64(p.buf[p.pos:])
	p.pos += 8
	return v
}

func (p *payloadBuffer) readUint32() uint32 {
	if p.err != nil {
		return 0
	}
	if p.pos+4 > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return 0
	}
	v := binary.LittleEndian.Uint32(p.buf[p.pos:])
	p.pos += 4
	return v
}

func (p *payloadBuffer) readUint16() uint16 {
	if p.err != nil {
		return 0
	}
	if p.pos+2 > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return 0
	}
	v := binary.LittleEndian.Uint16(p.buf[p.pos:])
	p.pos += 2
	return v
}
