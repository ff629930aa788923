package protocol

// MaxSlots is the fixed slot count of every multiplayer room.
const MaxSlots = 16

// Room is a replicated multiplayer lobby snapshot. Password is write-only:
// it is always transmitted on encode, and on decode the field is consumed
// to keep the cursor aligned but its value is discarded. NbOpenSlots and
// NbPlayers are derived while decoding and mirror the predicates over the
// slot array.
type Room struct {
	ID         uint16
	InProgress bool
	MatchType  uint8
	Mods       Mods
	Name       string
	Password   string
	MapName    string
	MapID      int32
	MapMD5     string

	Slots [MaxSlots]Slot

	HostID       int32
	Mode         GameMode
	WinCondition WinCondition
	TeamType     TeamType
	FreeMods     bool
	Seed         uint32

	NbOpenSlots int
	NbPlayers   int
}

// DecodeRoom reads a room snapshot off the wire.
//
// The slot arrays are decoded in three passes: every status, then every
// team, then a player id for each slot whose status says it is occupied.
// That pass ordering is part of the wire format. Per-slot mods only exist
// on the wire when the room-level free-mod flag is set.
func DecodeRoom(p *Packet) Room {
	var r Room

	r.ID = p.ReadU16()
	r.InProgress = p.ReadU8() != 0
	r.MatchType = p.ReadU8()
	r.Mods = Mods(p.ReadU32())
	r.Name = p.ReadString()

	// The password field is framed as a string, but the value never
	// survives decoding. A nonzero presence byte is pushed back so the
	// whole field can be consumed with the normal string reader.
	if p.ReadU8() > 0 {
		p.rewind(1)
		p.ReadString()
	}

	r.MapName = p.ReadString()
	r.MapID = p.ReadI32()
	r.MapMD5 = p.ReadHashHex()

	for i := range r.Slots {
		r.Slots[i].Status = p.ReadU8()
	}
	for i := range r.Slots {
		r.Slots[i].Team = p.ReadU8()
	}
	for i := range r.Slots {
		if !r.Slots[i].HasPlayer() {
			continue
		}
		r.Slots[i].PlayerID = p.ReadI32()
	}

	r.HostID = p.ReadI32()
	r.Mode = GameMode(p.ReadU8())
	r.WinCondition = WinCondition(p.ReadU8())
	r.TeamType = TeamType(p.ReadU8())
	r.FreeMods = p.ReadU8() != 0

	if r.FreeMods {
		for i := range r.Slots {
			r.Slots[i].Mods = Mods(p.ReadU32())
		}
	}

	r.Seed = p.ReadU32()

	for i := range r.Slots {
		if !r.Slots[i].IsLocked() {
			r.NbOpenSlots++
		}
		if r.Slots[i].HasPlayer() {
			r.NbPlayers++
		}
	}

	return r
}

// Encode writes the room in the exact field order DecodeRoom reads.
func (r *Room) Encode(b *Builder) {
	b.WriteU16(r.ID)
	b.WriteBool(r.InProgress)
	b.WriteU8(r.MatchType)
	b.WriteU32(uint32(r.Mods))
	b.WriteString(r.Name)
	b.WriteString(r.Password)
	b.WriteString(r.MapName)
	b.WriteI32(r.MapID)
	b.WriteString(r.MapMD5)

	for i := range r.Slots {
		b.WriteU8(r.Slots[i].Status)
	}
	for i := range r.Slots {
		b.WriteU8(r.Slots[i].Team)
	}
	for i := range r.Slots {
		if !r.Slots[i].HasPlayer() {
			continue
		}
		b.WriteI32(r.Slots[i].PlayerID)
	}

	b.WriteI32(r.HostID)
	b.WriteU8(uint8(r.Mode))
	b.WriteU8(uint8(r.WinCondition))
	b.WriteU8(uint8(r.TeamType))
	b.WriteBool(r.FreeMods)

	if r.FreeMods {
		for i := range r.Slots {
			b.WriteU32(uint32(r.Slots[i].Mods))
		}
	}

	b.WriteU32(r.Seed)
}

// IsHost reports whether the given user id owns the room.
func (r *Room) IsHost(userID int32) bool {
	return r.HostID == userID
}

// NbReady counts occupied slots whose player is ready.
func (r *Room) NbReady() int {
	n := 0
	for i := range r.Slots {
		if r.Slots[i].HasPlayer() && r.Slots[i].IsReady() {
			n++
		}
	}
	return n
}

// AllPlayersReady reports whether every occupied slot is ready.
func (r *Room) AllPlayersReady() bool {
	for i := range r.Slots {
		if r.Slots[i].HasPlayer() && !r.Slots[i].IsReady() {
			return false
		}
	}
	return true
}

// SlotByPlayer returns the slot occupied by the given player, or nil.
func (r *Room) SlotByPlayer(userID int32) *Slot {
	for i := range r.Slots {
		if r.Slots[i].HasPlayer() && r.Slots[i].PlayerID == userID {
			return &r.Slots[i]
		}
	}
	return nil
}
