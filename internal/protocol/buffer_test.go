package protocol

import (
	"strings"
	"testing"
)

func TestULEB128RoundTrip(t *testing.T) {
	values := []uint32{0, 1, 0x7f, 0x80, 0x81, 300, 16384, 1<<21 - 1, 1 << 21, 123456789, 1<<32 - 1}
	for _, v := range values {
		b := NewBuilder().WriteULEB128(v)
		p := NewPacket(0, b.Build())
		if got := p.ReadULEB128(); got != v {
			t.Fatalf("round trip %d: got %d", v, got)
		}
		if p.Remaining() != 0 {
			t.Fatalf("value %d: %d bytes left over", v, p.Remaining())
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	values := []string{"", "a", "hello world", "日本語のテキスト", strings.Repeat("x", 200)}
	for _, s := range values {
		b := NewBuilder().WriteString(s)
		p := NewPacket(0, b.Build())
		if got := p.ReadString(); got != s {
			t.Fatalf("round trip %q: got %q", s, got)
		}
	}
}

func TestEmptyStringWritesSingleZeroByte(t *testing.T) {
	b := NewBuilder().WriteString("")
	if got := b.Build(); len(got) != 1 || got[0] != 0 {
		t.Fatalf("empty string encoded as %x", got)
	}
}

func TestPresenceSentinel(t *testing.T) {
	b := NewBuilder().WriteString("hi")
	if got := b.Build()[0]; got != 0x0b {
		t.Fatalf("presence byte = %#x, want 0x0b", got)
	}
}

func TestReadFailsClosedOnUnderrun(t *testing.T) {
	// A full valid payload, then every truncation of it.
	full := NewBuilder().
		WriteI32(42).
		WriteString("name").
		WriteU16(7).
		WriteF32(1.5).
		Build()

	for k := 0; k < len(full); k++ {
		p := NewPacket(0, full[:k])
		// Drain more fields than the truncated payload can hold. None of
		// these may panic; once a read runs short, everything after it
		// must be the zero value.
		p.ReadI32()
		p.ReadString()
		p.ReadU16()
		p.ReadF32()
		if !p.Truncated() {
			t.Fatalf("k=%d: packet not marked truncated", k)
		}
		if got := p.ReadU32(); got != 0 {
			t.Fatalf("k=%d: read after underrun returned %d", k, got)
		}
		if got := p.ReadString(); got != "" {
			t.Fatalf("k=%d: string after underrun returned %q", k, got)
		}
	}
}

func TestFullPacketIsNotTruncated(t *testing.T) {
	p := NewPacket(0, NewBuilder().WriteI32(1).Build())
	if p.ReadI32() != 1 {
		t.Fatal("bad value")
	}
	if p.Truncated() {
		t.Fatal("exact-length read marked truncated")
	}
}

func TestHashReadClampsLength(t *testing.T) {
	// A declared length far larger than a hash can be. Only 32 bytes may
	// be copied out; the rest of the payload is deliberately shorter than
	// the declared length, which must not panic.
	b := NewBuilder()
	b.WriteU8(0x0b)
	b.WriteULEB128(1000)
	b.WriteBytes([]byte(strings.Repeat("a", 40)))

	p := NewPacket(0, b.Build())
	h := p.ReadHashHex()
	if len(h) != 32 {
		t.Fatalf("hash length = %d, want 32", len(h))
	}
	if h != strings.Repeat("a", 32) {
		t.Fatalf("hash = %q", h)
	}
}

func TestHashDigestClampsTo16(t *testing.T) {
	b := NewBuilder()
	b.WriteU8(0x0b)
	b.WriteULEB128(64)
	b.WriteBytes([]byte(strings.Repeat("d", 64)))

	p := NewPacket(0, b.Build())
	if got := p.ReadHashDigest(); len(got) != 16 {
		t.Fatalf("digest length = %d, want 16", len(got))
	}
}

func TestScalarRoundTrip(t *testing.T) {
	b := NewBuilder().
		WriteU8(200).
		WriteU16(60000).
		WriteU32(4000000000).
		WriteI32(-5).
		WriteI64(-1 << 40).
		WriteF32(3.25)

	p := NewPacket(0, b.Build())
	if got := p.ReadU8(); got != 200 {
		t.Fatalf("u8 = %d", got)
	}
	if got := p.ReadU16(); got != 60000 {
		t.Fatalf("u16 = %d", got)
	}
	if got := p.ReadU32(); got != 4000000000 {
		t.Fatalf("u32 = %d", got)
	}
	if got := p.ReadI32(); got != -5 {
		t.Fatalf("i32 = %d", got)
	}
	if got := p.ReadI64(); got != -1<<40 {
		t.Fatalf("i64 = %d", got)
	}
	if got := p.ReadF32(); got != 3.25 {
		t.Fatalf("f32 = %v", got)
	}
}
