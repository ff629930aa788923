package protocol

// Action is a user's current activity, carried in stats packets.
type Action uint8

const (
	ActionIdle Action = iota
	ActionAFK
	ActionPlaying
	ActionEditing
	ActionModding
	ActionMultiplayer
	ActionWatching
	ActionUnknown
	ActionTesting
	ActionSubmitting
	ActionPaused
	ActionLobby
	ActionMultiplaying
	ActionOsuDirect

	actionCount
)

// actionNames maps each Action to its user-facing activity string. The
// const checks below force the table and the enum to stay the same length.
var actionNames = [...]string{
	"is idle",
	"is afk",
	"is playing",
	"is editing a map",
	"is modding a map",
	"is playing multiplayer",
	"is watching a replay",
	"is doing something unknown",
	"is testing a map",
	"is submitting a score",
	"has paused",
	"is in a multiplayer lobby",
	"is playing multiplayer",
	"is browsing online maps",
}

const (
	_ = uint(len(actionNames) - int(actionCount))
	_ = uint(int(actionCount) - len(actionNames))
)

// String returns the activity string for toast notifications.
func (a Action) String() string {
	if int(a) >= len(actionNames) {
		return actionNames[ActionUnknown]
	}
	return actionNames[a]
}

// Privileges is the server-granted permission bitfield.
type Privileges uint32

const (
	PrivilegePlayer     Privileges = 1 << 0
	PrivilegeModerator  Privileges = 1 << 1
	PrivilegeSupporter  Privileges = 1 << 2
	PrivilegeOwner      Privileges = 1 << 3
	PrivilegeDeveloper  Privileges = 1 << 4
	PrivilegeTournament Privileges = 1 << 5
)

// GameMode selects the ruleset a map is played under.
type GameMode uint8

const (
	ModeStandard GameMode = iota
	ModeTaiko
	ModeCatch
	ModeMania
)

// WinCondition decides how a multiplayer match is scored.
type WinCondition uint8

const (
	WinScore WinCondition = iota
	WinAccuracy
	WinCombo
	WinScoreV2
)

// TeamType is the multiplayer team arrangement.
type TeamType uint8

const (
	TeamHeadToHead TeamType = iota
	TeamTagCoop
	TeamVersus
	TeamTagTeamVersus
)

// Mods is the legacy mod bitfield carried on the wire.
type Mods uint32

const (
	ModNoFail      Mods = 1 << 0
	ModEasy        Mods = 1 << 1
	ModTouch       Mods = 1 << 2
	ModHidden      Mods = 1 << 3
	ModHardRock    Mods = 1 << 4
	ModSuddenDeath Mods = 1 << 5
	ModDoubleTime  Mods = 1 << 6
	ModRelax       Mods = 1 << 7
	ModHalfTime    Mods = 1 << 8
	ModNightcore   Mods = 1 << 9
	ModFlashlight  Mods = 1 << 10
	ModAutoplay    Mods = 1 << 11
	ModSpunOut     Mods = 1 << 12
	ModAutopilot   Mods = 1 << 13
	ModPerfect     Mods = 1 << 14
	ModScoreV2     Mods = 1 << 29
)

// Slot status bits as carried on the wire.
const (
	SlotStatusOpen     uint8 = 0b00000001
	SlotStatusLocked   uint8 = 0b00000010
	SlotStatusNotReady uint8 = 0b00000100
	SlotStatusReady    uint8 = 0b00001000
	SlotStatusNoMap    uint8 = 0b00010000
	SlotStatusPlaying  uint8 = 0b00100000
	SlotStatusComplete uint8 = 0b01000000
	SlotStatusQuit     uint8 = 0b10000000

	// Any of these bits means the slot is occupied.
	slotHasPlayer uint8 = 0b01111100
)

// Slot is one of the 16 fixed player positions in a multiplayer room.
// PlayerID is only meaningful while HasPlayer reports true; Mods is only
// meaningful while the room has free mods enabled. LastScore holds the most
// recent in-match score snapshot for the slot and is patched independently
// of room replication.
type Slot struct {
	Status    uint8
	Team      uint8
	Mods      Mods
	PlayerID  int32
	LastScore *ScoreFrame
}

// IsLocked reports whether the slot refuses joins.
func (s *Slot) IsLocked() bool { return s.Status&SlotStatusLocked != 0 }

// HasPlayer reports whether the slot is occupied.
func (s *Slot) HasPlayer() bool { return s.Status&slotHasPlayer != 0 }

// IsReady reports whether the occupying player is ready.
func (s *Slot) IsReady() bool { return s.Status&SlotStatusReady != 0 }

// NoMap reports whether the occupying player is missing the map.
func (s *Slot) NoMap() bool { return s.Status&SlotStatusNoMap != 0 }

// IsPlaying reports whether the occupying player is mid-match.
func (s *Slot) IsPlaying() bool { return s.Status&SlotStatusPlaying != 0 }

// IsComplete reports whether the occupying player finished the match.
func (s *Slot) IsComplete() bool { return s.Status&SlotStatusComplete != 0 }

// HasQuit reports whether the occupying player quit the match.
func (s *Slot) HasQuit() bool { return s.Status&SlotStatusQuit != 0 }
