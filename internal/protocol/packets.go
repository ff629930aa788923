// Package protocol implements the Bancho binary wire codec: the packet
// buffer with its fail-closed read cursor, the typed field readers and
// writers (ULEB128 lengths, length-prefixed strings, clamped hashes), the
// multiplayer room and spectator frame formats, and the outgoing packet
// builder. All packets use little-endian byte order and are framed as
// {id: u16, compression flag: u8, length: u32, payload}.
package protocol

// Packet ids sent by the server.
const (
	PktUserID                uint16 = 5
	PktMessage               uint16 = 7
	PktPong                  uint16 = 8
	PktUserStats             uint16 = 11
	PktUserLogout            uint16 = 12
	PktSpectatorJoined       uint16 = 13
	PktSpectatorLeft         uint16 = 14
	PktSpectateFrames        uint16 = 15
	PktNotification          uint16 = 24
	PktRoomUpdated           uint16 = 26
	PktRoomCreated           uint16 = 27
	PktRoomClosed            uint16 = 28
	PktRoomJoinSuccess       uint16 = 36
	PktRoomJoinFail          uint16 = 37
	PktFellowSpectatorJoined uint16 = 42
	PktFellowSpectatorLeft   uint16 = 43
	PktMatchStarted          uint16 = 46
	PktMatchScoreUpdated     uint16 = 48
	PktHostChanged           uint16 = 50
	PktMatchAllPlayersLoaded uint16 = 53
	PktMatchPlayerFailed     uint16 = 57
	PktMatchFinished         uint16 = 58
	PktMatchSkip             uint16 = 61
	PktChannelJoinSuccess    uint16 = 64
	PktChannelInfo           uint16 = 65
	PktChannelKicked         uint16 = 66
	PktChannelAutoJoin       uint16 = 67
	PktPrivileges            uint16 = 71
	PktFriendsList           uint16 = 72
	PktProtocolVersion       uint16 = 75
	PktMainMenuIcon          uint16 = 76
	PktMatchPlayerSkipped    uint16 = 81
	PktUserPresence          uint16 = 83
	PktRestart               uint16 = 86
	PktChannelInfoEnd        uint16 = 89
	PktRoomPasswordChanged   uint16 = 91
	PktSilenceEnd            uint16 = 92
	PktUserPresenceSingle    uint16 = 95
	PktUserPresenceBundle    uint16 = 96
	PktVersionUpdateForced   uint16 = 102
	PktAccountRestricted     uint16 = 104
	PktMatchAbort            uint16 = 106
)

// Extended-protocol packet ids, valid only after the server negotiates
// ProtocolVersionExtended.
const (
	PktProtectVariables   uint16 = 128
	PktUnprotectVariables uint16 = 129
	PktForceVariables     uint16 = 130
	PktResetVariables     uint16 = 131
	PktRequestMapUpload   uint16 = 132
)

// Packet ids sent by the client.
const (
	PktOutChangeAction     uint16 = 0
	PktOutPublicMessage    uint16 = 1
	PktOutLogout           uint16 = 2
	PktOutRequestStatus    uint16 = 3
	PktOutPing             uint16 = 4
	PktOutStartSpectating  uint16 = 16
	PktOutStopSpectating   uint16 = 17
	PktOutSpectateFrames   uint16 = 18
	PktOutCantSpectate     uint16 = 21
	PktOutPrivateMessage   uint16 = 25
	PktOutPartLobby        uint16 = 29
	PktOutJoinLobby        uint16 = 30
	PktOutCreateRoom       uint16 = 31
	PktOutJoinRoom         uint16 = 32
	PktOutExitRoom         uint16 = 33
	PktOutChannelJoin      uint16 = 63
	PktOutFriendAdd        uint16 = 73
	PktOutFriendRemove     uint16 = 74
	PktOutChannelPart      uint16 = 78
	PktOutUserStatsRequest uint16 = 85
	PktOutPresenceRequest  uint16 = 97
)

// Protocol version values carried by PktProtocolVersion.
const (
	ProtocolVersionVanilla  int32 = 19
	ProtocolVersionExtended int32 = 128
)

// HeaderSize is the size of the wire frame header: id (2), compression
// flag (1), payload length (4).
const HeaderSize = 7

// MaxPayloadSize caps a single packet payload. Anything larger is treated
// as a corrupt stream.
const MaxPayloadSize = 10 * 1024 * 1024

// PacketName returns a debug name for a server packet id.
func PacketName(id uint16) string {
	switch id {
	case PktUserID:
		return "USER_ID"
	case PktMessage:
		return "MESSAGE"
	case PktPong:
		return "PONG"
	case PktUserStats:
		return "USER_STATS"
	case PktUserLogout:
		return "USER_LOGOUT"
	case PktSpectatorJoined:
		return "SPECTATOR_JOINED"
	case PktSpectatorLeft:
		return "SPECTATOR_LEFT"
	case PktSpectateFrames:
		return "SPECTATE_FRAMES"
	case PktNotification:
		return "NOTIFICATION"
	case PktRoomUpdated:
		return "ROOM_UPDATED"
	case PktRoomCreated:
		return "ROOM_CREATED"
	case PktRoomClosed:
		return "ROOM_CLOSED"
	case PktRoomJoinSuccess:
		return "ROOM_JOIN_SUCCESS"
	case PktRoomJoinFail:
		return "ROOM_JOIN_FAIL"
	case PktFellowSpectatorJoined:
		return "FELLOW_SPECTATOR_JOINED"
	case PktFellowSpectatorLeft:
		return "FELLOW_SPECTATOR_LEFT"
	case PktMatchStarted:
		return "MATCH_STARTED"
	case PktMatchScoreUpdated:
		return "MATCH_SCORE_UPDATED"
	case PktHostChanged:
		return "HOST_CHANGED"
	case PktMatchAllPlayersLoaded:
		return "MATCH_ALL_PLAYERS_LOADED"
	case PktMatchPlayerFailed:
		return "MATCH_PLAYER_FAILED"
	case PktMatchFinished:
		return "MATCH_FINISHED"
	case PktMatchSkip:
		return "MATCH_SKIP"
	case PktChannelJoinSuccess:
		return "CHANNEL_JOIN_SUCCESS"
	case PktChannelInfo:
		return "CHANNEL_INFO"
	case PktChannelKicked:
		return "CHANNEL_KICKED"
	case PktChannelAutoJoin:
		return "CHANNEL_AUTO_JOIN"
	case PktPrivileges:
		return "PRIVILEGES"
	case PktFriendsList:
		return "FRIENDS_LIST"
	case PktProtocolVersion:
		return "PROTOCOL_VERSION"
	case PktMainMenuIcon:
		return "MAIN_MENU_ICON"
	case PktMatchPlayerSkipped:
		return "MATCH_PLAYER_SKIPPED"
	case PktUserPresence:
		return "USER_PRESENCE"
	case PktRestart:
		return "RESTART"
	case PktChannelInfoEnd:
		return "CHANNEL_INFO_END"
	case PktRoomPasswordChanged:
		return "ROOM_PASSWORD_CHANGED"
	case PktSilenceEnd:
		return "SILENCE_END"
	case PktUserPresenceSingle:
		return "USER_PRESENCE_SINGLE"
	case PktUserPresenceBundle:
		return "USER_PRESENCE_BUNDLE"
	case PktVersionUpdateForced:
		return "VERSION_UPDATE_FORCED"
	case PktAccountRestricted:
		return "ACCOUNT_RESTRICTED"
	case PktMatchAbort:
		return "MATCH_ABORT"
	case PktProtectVariables:
		return "PROTECT_VARIABLES"
	case PktUnprotectVariables:
		return "UNPROTECT_VARIABLES"
	case PktForceVariables:
		return "FORCE_VARIABLES"
	case PktResetVariables:
		return "RESET_VARIABLES"
	case PktRequestMapUpload:
		return "REQUEST_MAP_UPLOAD"
	default:
		return "UNKNOWN"
	}
}
