package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Builder constructs outgoing packet payloads.
type Builder struct {
	buf bytes.Buffer
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Reset clears the builder for reuse.
func (b *Builder) Reset() {
	b.buf.Reset()
}

// WriteU8 writes a single byte.
func (b *Builder) WriteU8(v uint8) *Builder {
	b.buf.WriteByte(v)
	return b
}

// WriteBool writes a boolean as one byte.
func (b *Builder) WriteBool(v bool) *Builder {
	if v {
		return b.WriteU8(1)
	}
	return b.WriteU8(0)
}

// WriteU16 writes a uint16 in little-endian order.
func (b *Builder) WriteU16(v uint16) *Builder {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	b.buf.Write(tmp[:])
	return b
}

// WriteU32 writes a uint32 in little-endian order.
func (b *Builder) WriteU32(v uint32) *Builder {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf.Write(tmp[:])
	return b
}

// WriteU64 writes a uint64 in little-endian order.
func (b *Builder) WriteU64(v uint64) *Builder {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	b.buf.Write(tmp[:])
	return b
}

// WriteI32 writes an int32 in little-endian order.
func (b *Builder) WriteI32(v int32) *Builder {
	return b.WriteU32(uint32(v))
}

// WriteI64 writes an int64 in little-endian order.
func (b *Builder) WriteI64(v int64) *Builder {
	return b.WriteU64(uint64(v))
}

// WriteF32 writes a float32 in little-endian order.
func (b *Builder) WriteF32(v float32) *Builder {
	return b.WriteU32(math.Float32bits(v))
}

// WriteULEB128 writes an unsigned little-endian base-128 integer.
func (b *Builder) WriteULEB128(v uint32) *Builder {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b.buf.WriteByte(c)
		if v == 0 {
			return b
		}
	}
}

// WriteString writes a length-prefixed string: a zero byte for the empty
// string, otherwise the 0x0b presence sentinel, a ULEB128 byte count, and
// the raw bytes.
func (b *Builder) WriteString(s string) *Builder {
	if s == "" {
		return b.WriteU8(0)
	}
	b.WriteU8(0x0b)
	b.WriteULEB128(uint32(len(s)))
	b.buf.WriteString(s)
	return b
}

// WriteBytes writes raw bytes.
func (b *Builder) WriteBytes(data []byte) *Builder {
	b.buf.Write(data)
	return b
}

// Build returns the payload bytes built so far.
func (b *Builder) Build() []byte {
	return b.buf.Bytes()
}

// Finish returns the payload framed for the wire: id, the compression
// flag byte (always zero, the protocol no longer compresses), and the
// payload length.
func (b *Builder) Finish(id uint16) []byte {
	payload := b.buf.Bytes()
	out := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint16(out[0:2], id)
	out[2] = 0
	binary.LittleEndian.PutUint32(out[3:7], uint32(len(payload)))
	copy(out[HeaderSize:], payload)
	return out
}

// Len returns the current payload size.
func (b *Builder) Len() int {
	return b.buf.Len()
}

// String returns a hex dump of the current payload for debugging.
func (b *Builder) String() string {
	data := b.buf.Bytes()
	return fmt.Sprintf("Builder[%d bytes]: %x", len(data), data)
}

// ---- Pre-built packet constructors ----

// BuildPing creates a keep-alive probe.
func BuildPing() []byte {
	return NewBuilder().Finish(PktOutPing)
}

// BuildLogout creates a logout notice.
func BuildLogout() []byte {
	return NewBuilder().WriteI32(0).Finish(PktOutLogout)
}

// BuildChangeAction announces the local player's current activity.
func BuildChangeAction(stats UserStats) []byte {
	b := NewBuilder()
	b.WriteU8(uint8(stats.Action))
	b.WriteString(stats.InfoText)
	b.WriteString(stats.MapMD5)
	b.WriteU32(uint32(stats.Mods))
	b.WriteU8(uint8(stats.Mode))
	b.WriteI32(stats.MapID)
	return b.Finish(PktOutChangeAction)
}

// BuildStartSpectating requests the live input stream of a player.
func BuildStartSpectating(userID int32) []byte {
	return NewBuilder().WriteI32(userID).Finish(PktOutStartSpectating)
}

// BuildStopSpectating ends the current spectating session.
func BuildStopSpectating() []byte {
	return NewBuilder().Finish(PktOutStopSpectating)
}

// BuildJoinLobby subscribes to multiplayer lobby listings.
func BuildJoinLobby() []byte {
	return NewBuilder().Finish(PktOutJoinLobby)
}

// BuildPartLobby unsubscribes from multiplayer lobby listings.
func BuildPartLobby() []byte {
	return NewBuilder().Finish(PktOutPartLobby)
}

// BuildCreateRoom asks the server to open a new room.
func BuildCreateRoom(r *Room) []byte {
	b := NewBuilder()
	r.Encode(b)
	return b.Finish(PktOutCreateRoom)
}

// BuildJoinRoom asks to join a room by id.
func BuildJoinRoom(roomID uint16, password string) []byte {
	b := NewBuilder()
	b.WriteI32(int32(roomID))
	b.WriteString(password)
	return b.Finish(PktOutJoinRoom)
}

// BuildExitRoom leaves the current room.
func BuildExitRoom() []byte {
	return NewBuilder().Finish(PktOutExitRoom)
}

// BuildPublicMessage creates a channel chat message.
func BuildPublicMessage(m Message) []byte {
	b := NewBuilder()
	m.Encode(b)
	return b.Finish(PktOutPublicMessage)
}

// BuildPrivateMessage creates a direct chat message.
func BuildPrivateMessage(m Message) []byte {
	b := NewBuilder()
	m.Encode(b)
	return b.Finish(PktOutPrivateMessage)
}

// BuildChannelJoin asks to join a chat channel.
func BuildChannelJoin(channel string) []byte {
	return NewBuilder().WriteString(channel).Finish(PktOutChannelJoin)
}

// BuildChannelPart leaves a chat channel.
func BuildChannelPart(channel string) []byte {
	return NewBuilder().WriteString(channel).Finish(PktOutChannelPart)
}

// BuildFriendAdd adds a user to the friends list.
func BuildFriendAdd(userID int32) []byte {
	return NewBuilder().WriteI32(userID).Finish(PktOutFriendAdd)
}

// BuildFriendRemove removes a user from the friends list.
func BuildFriendRemove(userID int32) []byte {
	return NewBuilder().WriteI32(userID).Finish(PktOutFriendRemove)
}

// BuildPresenceRequest batches presence lookups for the given ids.
// Format: [count:u16][id:i32]*count.
func BuildPresenceRequest(ids []int32) []byte {
	b := NewBuilder()
	b.WriteU16(uint16(len(ids)))
	for _, id := range ids {
		b.WriteI32(id)
	}
	return b.Finish(PktOutPresenceRequest)
}

// BuildStatsRequest batches stats lookups for the given ids.
func BuildStatsRequest(ids []int32) []byte {
	b := NewBuilder()
	b.WriteU16(uint16(len(ids)))
	for _, id := range ids {
		b.WriteI32(id)
	}
	return b.Finish(PktOutUserStatsRequest)
}
