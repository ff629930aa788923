package protocol

// UserPresence is a user's public profile record.
type UserPresence struct {
	UserID     int32
	Name       string
	UTCOffset  uint8
	CountryID  uint8
	Privileges Privileges
	Longitude  float32
	Latitude   float32
	GlobalRank int32
}

// DecodeUserPresence reads a presence record. The privileges byte packs
// the permission bits in its low nibble and the play mode above them;
// only the permission bits are retained here.
func DecodeUserPresence(p *Packet) UserPresence {
	u := UserPresence{
		UserID:    p.ReadI32(),
		Name:      p.ReadString(),
		UTCOffset: p.ReadU8(),
		CountryID: p.ReadU8(),
	}
	u.Privileges = Privileges(p.ReadU8() & 0x1f)
	u.Longitude = p.ReadF32()
	u.Latitude = p.ReadF32()
	u.GlobalRank = p.ReadI32()
	return u
}

// UserStats is a user's live score/activity record.
type UserStats struct {
	UserID      int32
	Action      Action
	InfoText    string
	MapMD5      string
	Mods        Mods
	Mode        GameMode
	MapID       int32
	RankedScore int64
	Accuracy    float32
	Plays       int32
	TotalScore  int64
	GlobalRank  int32
	PP          uint16
}

// DecodeUserStats reads the stats record carried by a stats packet.
func DecodeUserStats(p *Packet) UserStats {
	return UserStats{
		UserID:      p.ReadI32(),
		Action:      Action(p.ReadU8()),
		InfoText:    p.ReadString(),
		MapMD5:      p.ReadHashHex(),
		Mods:        Mods(p.ReadU32()),
		Mode:        GameMode(p.ReadU8()),
		MapID:       p.ReadI32(),
		RankedScore: p.ReadI64(),
		Accuracy:    p.ReadF32(),
		Plays:       p.ReadI32(),
		TotalScore:  p.ReadI64(),
		GlobalRank:  p.ReadI32(),
		PP:          p.ReadU16(),
	}
}
