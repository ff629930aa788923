package protocol

import (
	"bytes"
	"testing"
)

func newTestRoom() Room {
	r := Room{
		ID:           7,
		InProgress:   true,
		MatchType:    0,
		Mods:         ModHidden | ModHardRock,
		Name:         "weekend lobby",
		Password:     "hunter2",
		MapName:      "artist - title [diff]",
		MapID:        1234567,
		MapMD5:       "0a0b0c0d0e0f101112131415161718ff",
		HostID:       12345,
		Mode:         ModeStandard,
		WinCondition: WinScoreV2,
		TeamType:     TeamVersus,
		FreeMods:     true,
		Seed:         99,
	}
	r.Slots[0].Status = SlotStatusReady | SlotStatusNotReady
	r.Slots[0].Team = 1
	r.Slots[0].PlayerID = 12345
	r.Slots[0].Mods = ModHidden
	r.Slots[1].Status = SlotStatusPlaying
	r.Slots[1].Team = 2
	r.Slots[1].PlayerID = 67890
	r.Slots[2].Status = SlotStatusLocked
	return r
}

func decodeTestRoom(t *testing.T, r *Room) Room {
	t.Helper()
	b := NewBuilder()
	r.Encode(b)
	p := NewPacket(PktRoomUpdated, b.Build())
	got := DecodeRoom(p)
	if p.Truncated() {
		t.Fatal("room decode ran past payload end")
	}
	return got
}

func TestRoomRoundTrip(t *testing.T) {
	r := newTestRoom()
	got := decodeTestRoom(t, &r)

	// The password is write-only: transmitted but discarded on decode.
	if got.Password != "" {
		t.Fatalf("password survived decode: %q", got.Password)
	}
	got.Password = r.Password

	// Derived counts are filled by the decoder, not the encoder.
	if got.NbPlayers != 2 {
		t.Fatalf("NbPlayers = %d, want 2", got.NbPlayers)
	}
	if got.NbOpenSlots != MaxSlots-1 {
		t.Fatalf("NbOpenSlots = %d, want %d", got.NbOpenSlots, MaxSlots-1)
	}
	got.NbPlayers = 0
	got.NbOpenSlots = 0

	if got != r {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, r)
	}
}

func TestRoomRoundTripEmptyPassword(t *testing.T) {
	r := newTestRoom()
	r.Password = ""
	got := decodeTestRoom(t, &r)
	if got.Name != r.Name || got.MapMD5 != r.MapMD5 {
		t.Fatal("fields after the password field are misaligned")
	}
}

func TestRoomFreeModsGateSlotMods(t *testing.T) {
	r := newTestRoom()
	r.FreeMods = false

	b := NewBuilder()
	r.Encode(b)
	withoutMods := b.Build()

	r.FreeMods = true
	b.Reset()
	r.Encode(b)
	withMods := b.Build()

	// The freemods flag byte itself differs; everything before the mods
	// block is otherwise identical, and the freemods=0 form must be the
	// freemods=1 form with the 16 mod words cut out.
	if len(withMods)-len(withoutMods) != MaxSlots*4 {
		t.Fatalf("mods block size = %d, want %d", len(withMods)-len(withoutMods), MaxSlots*4)
	}

	got := DecodeRoom(NewPacket(PktRoomUpdated, withoutMods))
	for i := range got.Slots {
		if got.Slots[i].Mods != 0 {
			t.Fatalf("slot %d decoded mods %v with freemods off", i, got.Slots[i].Mods)
		}
	}
	if got.Seed != r.Seed {
		t.Fatalf("seed = %d, want %d: decoder consumed bytes it should not have", got.Seed, r.Seed)
	}
}

func TestRoomPlayerIDsOnlyForOccupiedSlots(t *testing.T) {
	r := newTestRoom()
	got := decodeTestRoom(t, &r)
	if got.Slots[0].PlayerID != 12345 || got.Slots[1].PlayerID != 67890 {
		t.Fatal("occupied slot ids lost")
	}
	for i := 2; i < MaxSlots; i++ {
		if got.Slots[i].PlayerID != 0 {
			t.Fatalf("unoccupied slot %d decoded player id %d", i, got.Slots[i].PlayerID)
		}
	}
}

func TestRoomPredicates(t *testing.T) {
	r := newTestRoom()
	if !r.IsHost(12345) {
		t.Fatal("host id not recognized")
	}
	if r.IsHost(1) {
		t.Fatal("non-host recognized as host")
	}
	if got := r.NbReady(); got != 1 {
		t.Fatalf("NbReady = %d, want 1", got)
	}
	if r.AllPlayersReady() {
		t.Fatal("AllPlayersReady true with an unready player")
	}
	r.Slots[1].Status |= SlotStatusReady
	if !r.AllPlayersReady() {
		t.Fatal("AllPlayersReady false with every player ready")
	}
	if s := r.SlotByPlayer(67890); s == nil || s.Team != 2 {
		t.Fatal("SlotByPlayer lookup failed")
	}
	if r.SlotByPlayer(555) != nil {
		t.Fatal("SlotByPlayer matched an absent player")
	}
}

func TestScoreFrameRoundTrip(t *testing.T) {
	f := ScoreFrame{
		Time:         1500,
		SlotID:       3,
		Num300:       120,
		Num100:       5,
		Num50:        1,
		NumGeki:      30,
		NumKatu:      2,
		NumMiss:      1,
		TotalScore:   734021,
		MaxCombo:     182,
		CurrentCombo: 44,
		IsPerfect:    false,
		CurrentHP:    160,
		Tag:          0,
		IsScoreV2:    true,
	}
	b := NewBuilder()
	f.Encode(b)
	got := DecodeScoreFrame(NewPacket(PktMatchScoreUpdated, b.Build()))
	if got != f {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, f)
	}
}

func TestDecodeFramesSplitsStream(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(NewBuilder().WriteI32(12345).Finish(PktUserID))
	stream.Write(NewBuilder().WriteString("hello").Finish(PktNotification))

	packets, rest, err := DecodeFrames(stream.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("unexpected %d leftover bytes", len(rest))
	}
	if len(packets) != 2 {
		t.Fatalf("got %d packets, want 2", len(packets))
	}
	if packets[0].ID != PktUserID || packets[0].ReadI32() != 12345 {
		t.Fatal("first packet mangled")
	}
	if packets[1].ID != PktNotification || packets[1].ReadString() != "hello" {
		t.Fatal("second packet mangled")
	}
}

func TestDecodeFramesKeepsPartialTail(t *testing.T) {
	full := NewBuilder().WriteString("partial").Finish(PktNotification)
	cut := full[:len(full)-3]

	packets, rest, err := DecodeFrames(cut)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(packets) != 0 {
		t.Fatalf("decoded %d packets from a partial frame", len(packets))
	}
	if !bytes.Equal(rest, cut) {
		t.Fatal("partial frame not preserved for the next read")
	}
}

func TestDecodeFramesRejectsOversizedPayload(t *testing.T) {
	frame := make([]byte, HeaderSize)
	frame[3] = 0xff
	frame[4] = 0xff
	frame[5] = 0xff
	frame[6] = 0x7f

	if _, _, err := DecodeFrames(frame); err == nil {
		t.Fatal("oversized payload accepted")
	}
}
