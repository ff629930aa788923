// Package session implements the connection/session state machine: login,
// online-status transitions, protocol capability negotiation, and logout.
// A Session is an explicit value owned by the top-level client and handed
// to the dispatcher and collaborators; nothing here is a global.
package session

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/overture-project/overture/internal/config"
	"github.com/overture-project/overture/internal/events"
	"github.com/overture-project/overture/internal/protocol"
	"github.com/overture-project/overture/internal/util"
)

// UserID is the one field of the session that is shared across goroutines:
// the OAuth polling path reads it while the login completion path writes
// it. Everything else in Session is owned by the dispatch goroutine and
// guarded only for snapshot readers. The dedicated type makes that
// distinction visible instead of leaving it to a comment.
type UserID struct {
	v atomic.Int32
}

// Load returns the current user id.
func (u *UserID) Load() int32 { return u.v.Load() }

// Store sets the current user id.
func (u *UserID) Store(id int32) { u.v.Store(id) }

// IsOnline reports whether a user id value encodes a live session. The
// server uses small negative values as login failure codes; ids at or
// below -10001 are reserved online ranges.
func IsOnline(id int32) bool {
	return id > 0 || id <= -10001
}

// Outcome classifies the result of the user-id transition point.
type Outcome int

const (
	// OutcomeLoggedIn means the session is now online.
	OutcomeLoggedIn Outcome = iota
	// OutcomeFailed means the login was rejected; the session is logged out.
	OutcomeFailed
	// OutcomeFatal means an online id arrived with no session token; the
	// caller must disconnect immediately, no packet can legally follow.
	OutcomeFatal
	// OutcomeDeferredLogout means a logout was requested while the login
	// was in flight; the login has now resolved and the caller must
	// perform the deferred disconnect.
	OutcomeDeferredLogout
	// OutcomeIgnored means the packet arrived outside the login flow and
	// was dropped without a transition.
	OutcomeIgnored
)

// Session holds the connection state for one server endpoint.
type Session struct {
	mu  sync.RWMutex
	log zerolog.Logger

	cfg      *config.Config
	eventBus *events.EventBus

	userID UserID

	status      events.OnlineStatus
	choToken    string
	endpoint    string
	username    string
	passwordMD5 string
	oauthToken  string

	protocolVersion  int32
	extendedProtocol bool
	vars             *Variables

	privileges   protocol.Privileges
	friends      map[int32]struct{}
	channels     map[string]protocol.Channel
	silenceEndMS int64

	room       protocol.Room
	roomJoined bool
	lobbyOpen  bool

	spectatedID int32

	mainMenuIcon string

	// asyncLogoutPending records a logout requested while a login was in
	// flight. Login cannot be cancelled once started, so the disconnect
	// is deferred until the login resolves.
	asyncLogoutPending bool
}

// New creates a session bound to the configured endpoint.
func New(cfg *config.Config, eventBus *events.EventBus) *Session {
	srv := cfg.GetServerData()
	return &Session{
		log:         util.ComponentLogger("session"),
		cfg:         cfg,
		eventBus:    eventBus,
		endpoint:    srv.Endpoint,
		username:    srv.Username,
		passwordMD5: srv.PasswordMD5,
		status:      events.StatusLoggedOut,
		vars:        NewVariables(),
		friends:     make(map[int32]struct{}),
		channels:    make(map[string]protocol.Channel),
	}
}

// Status returns the current online status.
func (s *Session) Status() events.OnlineStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// UserID returns the shared atomic user-id handle.
func (s *Session) UserID() *UserID {
	return &s.userID
}

// IsOnline reports whether the session's user id encodes a live session.
func (s *Session) IsOnline() bool {
	return IsOnline(s.userID.Load())
}

// Endpoint returns the server domain this session talks to.
func (s *Session) Endpoint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endpoint
}

// Token returns the session token received during login.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.choToken
}

// SetToken stores the session token from the login response headers.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.choToken = token
}

// Username returns the configured account name.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// SetOAuthToken installs a token obtained by the polling login flow.
func (s *Session) SetOAuthToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oauthToken = token
}

// setStatus transitions the online status and notifies collaborators.
// Callers hold s.mu.
func (s *Session) setStatus(next events.OnlineStatus) {
	prev := s.status
	if prev == next {
		return
	}
	s.status = next
	s.log.Info().
		Str("from", prev.String()).
		Str("to", next.String()).
		Msg("online status changed")
	s.eventBus.Emit(context.Background(), events.Event{
		Type:   events.EventStatusChanged,
		Source: "session",
		Payload: events.StatusChangedPayload{
			Previous: prev,
			Current:  next,
			UserID:   s.userID.Load(),
		},
	})
}

// BeginLogin moves the session into LoginInProgress and returns the login
// request body to send. Any stale token is cleared first.
func (s *Session) BeginLogin() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == events.StatusLoggedIn || s.status == events.StatusLoginInProgress {
		return "", fmt.Errorf("login already in progress or complete")
	}

	if EndpointBlocked(s.endpoint) {
		return "", fmt.Errorf("%w: %s", ErrEndpointBlocked, s.endpoint)
	}

	s.choToken = ""
	body := s.buildLoginBody()
	if body == "" {
		return "", ErrNoCredentials
	}

	s.setStatus(events.StatusLoginInProgress)
	return body, nil
}

// BeginPolling marks the session as waiting for an OAuth token.
func (s *Session) BeginPolling() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == events.StatusLoggedOut {
		s.setStatus(events.StatusPolling)
	}
}

// HandleUserID is the single transition point out of LoginInProgress. The
// value is the signed user id from the server; token is the session token
// known at this point (set from the login response headers).
func (s *Session) HandleUserID(value int32) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	// LoggedIn is only reachable through LoginInProgress. A user-id
	// packet delivered in any other state is dropped.
	if s.status != events.StatusLoginInProgress {
		s.log.Warn().Int32("value", value).Str("status", s.status.String()).
			Msg("user id packet outside login flow, ignoring")
		return OutcomeIgnored
	}

	if IsOnline(value) {
		if s.choToken == "" {
			// No further packet can legally be sent without a token.
			s.log.Error().Int32("user_id", value).Msg("online user id with empty session token")
			s.userID.Store(0)
			s.setStatus(events.StatusLoggedOut)
			return OutcomeFatal
		}

		s.userID.Store(value)
		s.setStatus(events.StatusLoggedIn)
		s.ensureCacheDirs()
		s.eventBus.Emit(context.Background(), events.Event{
			Type:   events.EventSessionRefresh,
			Source: "session",
		})

		if s.asyncLogoutPending {
			s.asyncLogoutPending = false
			return OutcomeDeferredLogout
		}
		return OutcomeLoggedIn
	}

	s.userID.Store(0)
	s.asyncLogoutPending = false
	s.setStatus(events.StatusLoggedOut)

	reason := FailureReason(value)
	s.log.Warn().Int32("code", value).Str("reason", reason).Msg("login rejected")
	s.eventBus.Emit(context.Background(), events.Event{
		Type:    events.EventLoginFailed,
		Source:  "session",
		Payload: events.LoginFailedPayload{Code: value, Message: reason},
	})
	s.eventBus.Emit(context.Background(), events.Event{
		Type:    events.EventToast,
		Source:  "session",
		Payload: events.ToastPayload{Message: reason, Level: "error"},
	})
	return OutcomeFailed
}

// RequestLogout asks for a disconnect. If a login is in flight it cannot
// be cancelled; the request is recorded and honored when the login
// resolves. Returns true when the caller may disconnect right away.
func (s *Session) RequestLogout() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == events.StatusLoginInProgress {
		s.asyncLogoutPending = true
		s.log.Debug().Msg("logout deferred until in-flight login resolves")
		return false
	}
	return true
}

// Reset clears all connection-scoped state and lands in LoggedOut. The
// caller (the dispatcher's disconnect sequence) resets the other
// components.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.userID.Store(0)
	s.choToken = ""
	s.oauthToken = ""
	s.privileges = 0
	s.protocolVersion = 0
	s.extendedProtocol = false
	s.silenceEndMS = 0
	s.friends = make(map[int32]struct{})
	s.channels = make(map[string]protocol.Channel)
	s.room = protocol.Room{}
	s.roomJoined = false
	s.lobbyOpen = false
	s.spectatedID = 0
	s.mainMenuIcon = ""
	s.asyncLogoutPending = false
	s.vars.ResetSession()
	s.setStatus(events.StatusLoggedOut)
}

// SetProtocolVersion records the negotiated protocol version. The
// extended version flips the capability flag and bulk-applies the
// default variable overrides; this happens before any packet relying on
// extended semantics is processed, because packets are dispatched in
// arrival order on one goroutine.
func (s *Session) SetProtocolVersion(v int32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.protocolVersion = v
	switch v {
	case protocol.ProtocolVersionExtended:
		s.extendedProtocol = true
		s.vars.ApplyExtendedDefaults()
		s.log.Info().Msg("extended protocol negotiated")
	case protocol.ProtocolVersionVanilla:
		s.extendedProtocol = false
	default:
		s.log.Warn().Int32("version", v).Msg("unexpected protocol version")
		s.eventBus.Emit(context.Background(), events.Event{
			Type:   events.EventToast,
			Source: "session",
			Payload: events.ToastPayload{
				Message: fmt.Sprintf("Server speaks unexpected protocol version %d; some features may misbehave.", v),
				Level:   "warning",
			},
		})
	}
}

// ExtendedProtocol reports whether the extended capability was negotiated.
func (s *Session) ExtendedProtocol() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.extendedProtocol
}

// Variables returns the server-override layer for the tuning variables.
func (s *Session) Variables() *Variables {
	return s.vars
}

// SetPrivileges stores the server-granted privilege bits.
func (s *Session) SetPrivileges(p protocol.Privileges) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.privileges = p
}

// Privileges returns the server-granted privilege bits.
func (s *Session) Privileges() protocol.Privileges {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.privileges
}

// SetFriends replaces the friend-id set.
func (s *Session) SetFriends(ids []int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.friends = make(map[int32]struct{}, len(ids))
	for _, id := range ids {
		s.friends[id] = struct{}{}
	}
}

// IsFriend reports whether the given user is on the friends list.
func (s *Session) IsFriend(id int32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.friends[id]
	return ok
}

// SetSilenceEnd records when a server-imposed silence expires.
func (s *Session) SetSilenceEnd(unixMS int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silenceEndMS = unixMS
}

// UpsertChannel adds or updates a chat channel in the directory.
func (s *Session) UpsertChannel(ch protocol.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[ch.Name] = ch
}

// RemoveChannel drops a channel from the directory.
func (s *Session) RemoveChannel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, name)
}

// Channels returns a copy of the channel directory.
func (s *Session) Channels() []protocol.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]protocol.Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		out = append(out, ch)
	}
	return out
}

// SetRoom installs a fresh room snapshot, replacing (never patching) the
// previous value.
func (s *Session) SetRoom(r protocol.Room, joined bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room = r
	s.roomJoined = joined
}

// ClearRoom replaces the room with an empty value.
func (s *Session) ClearRoom() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room = protocol.Room{}
	s.roomJoined = false
}

// Room returns a copy of the current room snapshot and whether the local
// player is joined to it.
func (s *Session) Room() (protocol.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room, s.roomJoined
}

// PatchSlotScore updates only the addressed slot's live score, leaving
// the rest of the snapshot alone.
func (s *Session) PatchSlotScore(frame protocol.ScoreFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(frame.SlotID) >= protocol.MaxSlots {
		return
	}
	f := frame
	s.room.Slots[frame.SlotID].LastScore = &f
}

// IsHost reports whether the local player owns the current room.
func (s *Session) IsHost() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomJoined && s.room.IsHost(s.userID.Load())
}

// SetLobbyOpen tracks whether the multiplayer lobby list is open; the
// ping cadence tightens while it is.
func (s *Session) SetLobbyOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lobbyOpen = open
}

// LobbyOpen reports whether the lobby list is open.
func (s *Session) LobbyOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lobbyOpen
}

// SetSpectating records the spectated user id (0 = not spectating).
func (s *Session) SetSpectating(id int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spectatedID = id
}

// SpectatedID returns the spectated user id, or 0.
func (s *Session) SpectatedID() int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spectatedID
}

// SetMainMenuIcon stores the seasonal menu icon, an "image|click-url"
// pair the server pushes after login.
func (s *Session) SetMainMenuIcon(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mainMenuIcon = v
}

// MainMenuIcon returns the seasonal menu icon pair, or "".
func (s *Session) MainMenuIcon() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mainMenuIcon
}

// InRoom reports whether the local player is joined to a room.
func (s *Session) InRoom() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomJoined
}

// ensureCacheDirs creates the on-disk cache directories keyed by server
// endpoint. Callers hold s.mu.
func (s *Session) ensureCacheDirs() {
	base := filepath.Join(s.cfg.GetServerData().DataDirectory, s.endpoint)
	for _, sub := range []string{"avatars", "maps", "replays"} {
		if err := util.EnsureDir(filepath.Join(base, sub)); err != nil {
			s.log.Warn().Err(err).Str("dir", sub).Msg("failed to create cache directory")
		}
	}
}
