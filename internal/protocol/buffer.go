package protocol

import (
	"encoding/binary"
	"math"
)

// Packet is a single protocol message: a packet id plus a payload with a
// read cursor. Reads fail closed: when a read would run past the end of the
// payload, the cursor is pinned one byte past the end and the zero value is
// returned, so every later read on the same packet also yields a zero value.
// A truncated packet therefore decodes into "remaining fields are zero"
// instead of an error at every call site.
type Packet struct {
	ID uint16

	// Extra carries a typed side payload for request/response correlation
	// (for example, which score a downloaded replay belongs to). It is set
	// by the sender of the packet and consumed exactly once by the handler.
	Extra any

	data []byte
	pos  int
}

// NewPacket wraps a payload for decoding.
func NewPacket(id uint16, payload []byte) *Packet {
	return &Packet{ID: id, data: payload}
}

// Truncated reports whether a read has run past the end of the payload.
func (p *Packet) Truncated() bool {
	return p.pos > len(p.data)
}

// Remaining returns the number of unread payload bytes.
func (p *Packet) Remaining() int {
	if p.Truncated() {
		return 0
	}
	return len(p.data) - p.pos
}

// take returns the next n payload bytes and advances the cursor, or nil
// after pinning the cursor past the end when fewer than n bytes remain.
func (p *Packet) take(n int) []byte {
	if p.pos+n > len(p.data) {
		p.pos = len(p.data) + 1
		return nil
	}
	b := p.data[p.pos : p.pos+n]
	p.pos += n
	return b
}

// rewind moves the cursor back n bytes. Only used by the room decoder to
// re-read the password presence byte as part of a full string field.
func (p *Packet) rewind(n int) {
	if p.pos >= n {
		p.pos -= n
	}
}

// ReadU8 reads one byte.
func (p *Packet) ReadU8() uint8 {
	b := p.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// ReadU16 reads a little-endian uint16.
func (p *Packet) ReadU16() uint16 {
	b := p.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// ReadU32 reads a little-endian uint32.
func (p *Packet) ReadU32() uint32 {
	b := p.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// ReadU64 reads a little-endian uint64.
func (p *Packet) ReadU64() uint64 {
	b := p.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// ReadI16 reads a little-endian int16.
func (p *Packet) ReadI16() int16 { return int16(p.ReadU16()) }

// ReadI32 reads a little-endian int32.
func (p *Packet) ReadI32() int32 { return int32(p.ReadU32()) }

// ReadI64 reads a little-endian int64.
func (p *Packet) ReadI64() int64 { return int64(p.ReadU64()) }

// ReadF32 reads a little-endian float32.
func (p *Packet) ReadF32() float32 {
	return math.Float32frombits(p.ReadU32())
}

// ReadF64 reads a little-endian float64.
func (p *Packet) ReadF64() float64 {
	return math.Float64frombits(p.ReadU64())
}

// ReadULEB128 reads an unsigned little-endian base-128 variable-length
// integer: 7 payload bits per byte, high bit set on all but the last byte.
func (p *Packet) ReadULEB128() uint32 {
	var out uint32
	var shift uint
	for {
		b := p.take(1)
		if b == nil {
			return 0
		}
		out |= uint32(b[0]&0x7f) << shift
		if b[0]&0x80 == 0 {
			return out
		}
		shift += 7
	}
}

// ReadString reads a length-prefixed UTF-8 string: one presence byte
// (0 means absent), then a ULEB128 byte count, then the raw bytes.
func (p *Packet) ReadString() string {
	if p.ReadU8() == 0 {
		return ""
	}
	n := int(p.ReadULEB128())
	b := p.take(n)
	if b == nil {
		return ""
	}
	return string(b)
}

// ReadHashHex reads a hex-form hash with the same framing as ReadString,
// clamping the declared length to 32 bytes so a hostile length prefix can
// never copy more than one hash.
func (p *Packet) ReadHashHex() string {
	return p.readHash(32)
}

// ReadHashDigest reads a 16-byte binary digest with string framing, with
// the declared length clamped to 16.
func (p *Packet) ReadHashDigest() []byte {
	h := p.readHash(16)
	if h == "" {
		return nil
	}
	return []byte(h)
}

func (p *Packet) readHash(max int) string {
	if p.ReadU8() == 0 {
		return ""
	}
	n := int(p.ReadULEB128())
	if n > max {
		n = max
	}
	b := p.take(n)
	if b == nil {
		return ""
	}
	return string(b)
}
