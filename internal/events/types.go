// Package events defines event types and enumerations for the Overture
// event system.
package events

import "github.com/overture-project/overture/internal/protocol"

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Session lifecycle events
	EventStatusChanged  EventType = "session_status_changed"
	EventSessionRefresh EventType = "session_refresh"
	EventLoginFailed    EventType = "login_failed"
	EventReconnect      EventType = "cmd_reconnect"
	EventServerRestart  EventType = "server_restart"

	// Chat and social events
	EventChatMessage     EventType = "chat_message"
	EventChannelsChanged EventType = "channels_changed"
	EventFriendsChanged  EventType = "friends_changed"
	EventUserListChanged EventType = "user_list_changed"

	// Multiplayer events
	EventRoomUpdated   EventType = "room_updated"
	EventRoomCreated   EventType = "room_created"
	EventRoomClosed    EventType = "room_closed"
	EventRoomJoined    EventType = "room_joined"
	EventRoomJoinFail  EventType = "room_join_fail"
	EventMatchStarted  EventType = "match_started"
	EventMatchFinished EventType = "match_finished"
	EventMatchAborted  EventType = "match_aborted"

	// Spectator events
	EventSpectatingChanged EventType = "spectating_changed"
	EventGameplayControl   EventType = "gameplay_control"

	// Notification events
	EventToast      EventType = "toast"
	EventNotifyMQTT EventType = "notify_mqtt"

	// System events
	EventConfigChanged EventType = "config_changed"
	EventShutdown      EventType = "shutdown"
)

// OnlineStatus represents the client's authentication phase.
type OnlineStatus int

const (
	StatusLoggedOut OnlineStatus = iota
	StatusPolling
	StatusLoginInProgress
	StatusLoggedIn
)

// onlineStatusStrings maps OnlineStatus values to their lowercase JSON
// string representation.
var onlineStatusStrings = map[OnlineStatus]string{
	StatusLoggedOut:       "logged_out",
	StatusPolling:         "polling",
	StatusLoginInProgress: "login_in_progress",
	StatusLoggedIn:        "logged_in",
}

// String returns the string representation of OnlineStatus.
func (s OnlineStatus) String() string {
	if str, ok := onlineStatusStrings[s]; ok {
		return str
	}
	return "logged_out"
}

// MarshalJSON serializes OnlineStatus as a JSON string (e.g. "logged_in").
func (s OnlineStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// GameplayAction is a control request for the gameplay collaborator,
// driven by spectated replay actions and match packets.
type GameplayAction int

const (
	GameplayStop GameplayAction = iota
	GameplayRestart
	GameplaySkip
	GameplayFail
	GameplayPause
	GameplayUnpause
	GameplaySongSelect
)

// String returns the string representation of GameplayAction.
func (a GameplayAction) String() string {
	switch a {
	case GameplayStop:
		return "stop"
	case GameplayRestart:
		return "restart"
	case GameplaySkip:
		return "skip"
	case GameplayFail:
		return "fail"
	case GameplayPause:
		return "pause"
	case GameplayUnpause:
		return "unpause"
	case GameplaySongSelect:
		return "song_select"
	default:
		return "stop"
	}
}

// Event represents a single event in the system.
type Event struct {
	Type    EventType
	Source  string
	Payload interface{}
}

// StatusChangedPayload carries an online-status transition.
type StatusChangedPayload struct {
	Previous OnlineStatus
	Current  OnlineStatus
	UserID   int32
}

// LoginFailedPayload carries a classified login failure.
type LoginFailedPayload struct {
	Code    int32
	Message string
}

// ToastPayload is a user-facing notification.
type ToastPayload struct {
	Message string
	Level   string // "info", "warning", "error"
}

// RoomPayload carries a multiplayer room snapshot.
type RoomPayload struct {
	Room protocol.Room
}

// ChatMessagePayload carries one incoming or outgoing chat line.
type ChatMessagePayload struct {
	Message  protocol.Message
	Outgoing bool
}

// SpectatingPayload describes the current spectating target.
type SpectatingPayload struct {
	UserID     int32
	Spectating bool
}

// GameplayControlPayload is a request to the gameplay collaborator.
type GameplayControlPayload struct {
	Action GameplayAction
}

// ServerRestartPayload carries the delay the server asked the client to
// wait before reconnecting.
type ServerRestartPayload struct {
	DelayMS int32
}

// ConfigChangedPayload is emitted when configuration changes occur.
type ConfigChangedPayload struct {
	Key   string
	Value interface{}
}
