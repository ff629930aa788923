package protocol

import "testing"

func buildBundlePayload(times []int32, action LiveReplayAction, seq uint16) []byte {
	b := NewBuilder()
	b.WriteI32(0)
	b.WriteU16(uint16(len(times)))
	for i, tm := range times {
		b.WriteU8(uint8(i + 1)) // key flags
		b.WriteU8(0)            // padding
		b.WriteF32(float32(i) * 10)
		b.WriteF32(float32(i) * 20)
		b.WriteI32(tm)
	}
	b.WriteU8(uint8(action))
	score := ScoreFrame{Time: 900, SlotID: 1, Num300: 50, TotalScore: 12000, CurrentHP: 200}
	score.Encode(b)
	b.WriteU16(seq)
	return b.Build()
}

func TestDecodeLiveReplayBundle(t *testing.T) {
	payload := buildBundlePayload([]int32{300, 100, 200}, ReplayActionSkip, 41)
	bundle := DecodeLiveReplayBundle(NewPacket(PktSpectateFrames, payload))

	if len(bundle.Frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(bundle.Frames))
	}
	// Frames come out in wire order; reordering is the stream consumer's
	// job, not the codec's.
	for i, want := range []int32{300, 100, 200} {
		if bundle.Frames[i].Time != want {
			t.Fatalf("frame %d time = %d, want %d", i, bundle.Frames[i].Time, want)
		}
	}
	if bundle.Frames[1].KeyFlags != 2 {
		t.Fatalf("frame key flags = %d, want 2", bundle.Frames[1].KeyFlags)
	}
	if bundle.Action != ReplayActionSkip {
		t.Fatalf("action = %d, want skip", bundle.Action)
	}
	if bundle.Score.TotalScore != 12000 {
		t.Fatalf("score snapshot mangled: %+v", bundle.Score)
	}
	if bundle.Sequence != 41 {
		t.Fatalf("sequence = %d, want 41", bundle.Sequence)
	}
}

func TestDecodeLiveReplayBundleTruncated(t *testing.T) {
	payload := buildBundlePayload([]int32{300, 100, 200}, ReplayActionNone, 0)
	for k := 0; k < len(payload); k++ {
		// Must never panic, whatever the cut point.
		DecodeLiveReplayBundle(NewPacket(PktSpectateFrames, payload[:k]))
	}
}

func TestDecodeLiveReplayBundleHugeCountDoesNotAllocate(t *testing.T) {
	b := NewBuilder()
	b.WriteI32(0)
	b.WriteU16(65535)
	bundle := DecodeLiveReplayBundle(NewPacket(PktSpectateFrames, b.Build()))
	if len(bundle.Frames) != 0 {
		t.Fatalf("got %d frames from an empty payload", len(bundle.Frames))
	}
}

func TestActionNames(t *testing.T) {
	if ActionIdle.String() != "is idle" {
		t.Fatalf("idle name = %q", ActionIdle.String())
	}
	if Action(200).String() != ActionUnknown.String() {
		t.Fatal("out-of-range action did not fall back to unknown")
	}
}

func TestDecodeMessage(t *testing.T) {
	m := Message{Sender: "peppy", Text: "hi", Recipient: "#osu", SenderID: 2}
	b := NewBuilder()
	m.Encode(b)
	if got := DecodeMessage(NewPacket(PktMessage, b.Build())); got != m {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestDecodeUserStats(t *testing.T) {
	b := NewBuilder()
	b.WriteI32(4171)
	b.WriteU8(uint8(ActionPlaying))
	b.WriteString("map info")
	b.WriteString("ffffffffffffffffffffffffffffffff")
	b.WriteU32(uint32(ModHidden))
	b.WriteU8(uint8(ModeStandard))
	b.WriteI32(999)
	b.WriteI64(123456789012)
	b.WriteF32(0.9812)
	b.WriteI32(4000)
	b.WriteI64(223456789012)
	b.WriteI32(151)
	b.WriteU16(7432)

	got := DecodeUserStats(NewPacket(PktUserStats, b.Build()))
	if got.UserID != 4171 || got.Action != ActionPlaying || got.MapID != 999 {
		t.Fatalf("stats mangled: %+v", got)
	}
	if got.RankedScore != 123456789012 || got.PP != 7432 {
		t.Fatalf("stats mangled: %+v", got)
	}
}
