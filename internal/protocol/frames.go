package protocol

// LiveReplayAction tells a spectator what the player just did outside of
// raw input, so playback can follow along.
type LiveReplayAction uint8

const (
	ReplayActionNone LiveReplayAction = iota
	ReplayActionNewSong
	ReplayActionSkip
	ReplayActionCompletion
	ReplayActionFail
	ReplayActionPause
	ReplayActionUnpause
	ReplayActionSongSelect
	ReplayActionWatchingOther
)

// LiveReplayFrame is a single input sample from the spectated player.
// TimeDelta is not on the wire; it is recomputed from the sorted frame
// list after every bundle.
type LiveReplayFrame struct {
	KeyFlags  uint8
	X         float32
	Y         float32
	Time      int32
	TimeDelta int32
}

// ScoreFrame is a live scoreboard snapshot, used both inside spectator
// bundles and for per-slot match score updates.
type ScoreFrame struct {
	Time         int32
	SlotID       uint8
	Num300       uint16
	Num100       uint16
	Num50        uint16
	NumGeki      uint16
	NumKatu      uint16
	NumMiss      uint16
	TotalScore   int32
	MaxCombo     uint16
	CurrentCombo uint16
	IsPerfect    bool
	CurrentHP    uint8
	Tag          uint8
	IsScoreV2    bool
}

// LiveReplayBundle is the payload of a spectator frame packet. Sequence is
// carried through for wire compatibility; its semantics are not relied on.
type LiveReplayBundle struct {
	Action   LiveReplayAction
	Frames   []LiveReplayFrame
	Score    ScoreFrame
	Sequence uint16
}

// DecodeScoreFrame reads one scoreboard snapshot.
func DecodeScoreFrame(p *Packet) ScoreFrame {
	return ScoreFrame{
		Time:         p.ReadI32(),
		SlotID:       p.ReadU8(),
		Num300:       p.ReadU16(),
		Num100:       p.ReadU16(),
		Num50:        p.ReadU16(),
		NumGeki:      p.ReadU16(),
		NumKatu:      p.ReadU16(),
		NumMiss:      p.ReadU16(),
		TotalScore:   p.ReadI32(),
		MaxCombo:     p.ReadU16(),
		CurrentCombo: p.ReadU16(),
		IsPerfect:    p.ReadU8() != 0,
		CurrentHP:    p.ReadU8(),
		Tag:          p.ReadU8(),
		IsScoreV2:    p.ReadU8() != 0,
	}
}

// Encode writes the snapshot in DecodeScoreFrame's field order.
func (f *ScoreFrame) Encode(b *Builder) {
	b.WriteI32(f.Time)
	b.WriteU8(f.SlotID)
	b.WriteU16(f.Num300)
	b.WriteU16(f.Num100)
	b.WriteU16(f.Num50)
	b.WriteU16(f.NumGeki)
	b.WriteU16(f.NumKatu)
	b.WriteU16(f.NumMiss)
	b.WriteI32(f.TotalScore)
	b.WriteU16(f.MaxCombo)
	b.WriteU16(f.CurrentCombo)
	b.WriteBool(f.IsPerfect)
	b.WriteU8(f.CurrentHP)
	b.WriteU8(f.Tag)
	b.WriteBool(f.IsScoreV2)
}

// DecodeLiveReplayBundle reads a spectator frame bundle: a leading i32
// whose meaning the server never documented (skipped), the frame list, the
// replay action, a score snapshot, and the trailing sequence number.
func DecodeLiveReplayBundle(p *Packet) LiveReplayBundle {
	var bundle LiveReplayBundle

	p.ReadI32()

	n := int(p.ReadU16())
	if n > 0 && n <= p.Remaining() {
		bundle.Frames = make([]LiveReplayFrame, 0, n)
	}
	for i := 0; i < n; i++ {
		f := LiveReplayFrame{
			KeyFlags: p.ReadU8(),
		}
		p.ReadU8() // padding
		f.X = p.ReadF32()
		f.Y = p.ReadF32()
		f.Time = p.ReadI32()
		if p.Truncated() {
			break
		}
		bundle.Frames = append(bundle.Frames, f)
	}

	bundle.Action = LiveReplayAction(p.ReadU8())
	bundle.Score = DecodeScoreFrame(p)
	bundle.Sequence = p.ReadU16()

	return bundle
}
