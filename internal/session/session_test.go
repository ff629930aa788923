package session

import (
	"testing"

	"github.com/overture-project/overture/internal/config"
	"github.com/overture-project/overture/internal/events"
	"github.com/overture-project/overture/internal/protocol"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.ServerData.Username = "testuser"
	cfg.ServerData.PasswordMD5 = "0123456789abcdef0123456789abcdef"
	cfg.ServerData.DataDirectory = t.TempDir()
	bus := events.NewEventBus()
	t.Cleanup(bus.Stop)
	return New(cfg, bus)
}

func TestIsOnline(t *testing.T) {
	cases := []struct {
		id   int32
		want bool
	}{
		{1, true},
		{12345, true},
		{0, false},
		{-1, false},
		{-8, false},
		{-10000, false},
		{-10001, true},
		{-999999, true},
	}
	for _, c := range cases {
		if got := IsOnline(c.id); got != c.want {
			t.Fatalf("IsOnline(%d) = %v, want %v", c.id, got, c.want)
		}
	}
}

func TestBeginLoginTransitions(t *testing.T) {
	s := newTestSession(t)
	if s.Status() != events.StatusLoggedOut {
		t.Fatalf("fresh session status = %v", s.Status())
	}

	body, err := s.BeginLogin()
	if err != nil {
		t.Fatalf("BeginLogin: %v", err)
	}
	if body == "" {
		t.Fatal("empty login body")
	}
	if s.Status() != events.StatusLoginInProgress {
		t.Fatalf("status after BeginLogin = %v", s.Status())
	}

	// A second login attempt while one is in flight is refused.
	if _, err := s.BeginLogin(); err == nil {
		t.Fatal("concurrent BeginLogin accepted")
	}
}

func TestLoginSuccessRequiresToken(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.BeginLogin(); err != nil {
		t.Fatalf("BeginLogin: %v", err)
	}

	// An online id with no session token is a fatal handshake failure.
	if got := s.HandleUserID(5000); got != OutcomeFatal {
		t.Fatalf("outcome = %v, want OutcomeFatal", got)
	}
	if s.Status() != events.StatusLoggedOut {
		t.Fatalf("status after fatal = %v", s.Status())
	}
}

func TestLoginSuccess(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.BeginLogin(); err != nil {
		t.Fatalf("BeginLogin: %v", err)
	}
	s.SetToken("abcdef-token")

	if got := s.HandleUserID(5000); got != OutcomeLoggedIn {
		t.Fatalf("outcome = %v, want OutcomeLoggedIn", got)
	}
	if s.Status() != events.StatusLoggedIn {
		t.Fatalf("status = %v, want LoggedIn", s.Status())
	}
	if got := s.UserID().Load(); got != 5000 {
		t.Fatalf("user id = %d, want 5000", got)
	}
	if !s.IsOnline() {
		t.Fatal("session not online after login")
	}
}

func TestLoginFailureIncorrectCredentials(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.BeginLogin(); err != nil {
		t.Fatalf("BeginLogin: %v", err)
	}

	if got := s.HandleUserID(-1); got != OutcomeFailed {
		t.Fatalf("outcome = %v, want OutcomeFailed", got)
	}
	if s.Status() != events.StatusLoggedOut {
		t.Fatalf("status = %v, want LoggedOut", s.Status())
	}
	if got := FailureReason(-1); got != "incorrect credentials" {
		t.Fatalf("reason = %q", got)
	}
}

func TestFailureReasons(t *testing.T) {
	for code := int32(-8); code <= -1; code-- {
		if FailureReason(code) == "" {
			t.Fatalf("no reason for code %d", code)
		}
	}
	if got := FailureReason(-99); got == "" {
		t.Fatal("unknown code produced empty reason")
	}
}

func TestUserIDPacketIgnoredOutsideLoginFlow(t *testing.T) {
	s := newTestSession(t)
	s.SetToken("tok")

	// LoggedIn must not be reachable by packet delivery alone.
	if got := s.HandleUserID(5000); got != OutcomeIgnored {
		t.Fatalf("outcome = %v, want OutcomeIgnored", got)
	}
	if s.Status() != events.StatusLoggedOut {
		t.Fatalf("status = %v, want LoggedOut", s.Status())
	}
}

func TestDeferredLogoutDuringLogin(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.BeginLogin(); err != nil {
		t.Fatalf("BeginLogin: %v", err)
	}

	// Logout during an in-flight login cannot be honored immediately.
	if s.RequestLogout() {
		t.Fatal("logout during login was not deferred")
	}

	s.SetToken("tok")
	if got := s.HandleUserID(42); got != OutcomeDeferredLogout {
		t.Fatalf("outcome = %v, want OutcomeDeferredLogout", got)
	}
}

func TestLogoutImmediateWhenNotLoggingIn(t *testing.T) {
	s := newTestSession(t)
	if !s.RequestLogout() {
		t.Fatal("logout deferred with no login in flight")
	}
}

func TestResetClearsConnectionState(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.BeginLogin(); err != nil {
		t.Fatalf("BeginLogin: %v", err)
	}
	s.SetToken("tok")
	s.HandleUserID(777)
	s.SetFriends([]int32{1, 2})
	s.SetRoom(protocol.Room{ID: 3, HostID: 777}, true)
	s.SetSpectating(42)

	s.Reset()

	if s.Status() != events.StatusLoggedOut {
		t.Fatalf("status after reset = %v", s.Status())
	}
	if s.UserID().Load() != 0 || s.Token() != "" {
		t.Fatal("identity survived reset")
	}
	if s.IsFriend(1) {
		t.Fatal("friends survived reset")
	}
	if _, joined := s.Room(); joined {
		t.Fatal("room survived reset")
	}
	if s.SpectatedID() != 0 {
		t.Fatal("spectating state survived reset")
	}
}

func TestRoomReplaceAndHost(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.BeginLogin(); err != nil {
		t.Fatalf("BeginLogin: %v", err)
	}
	s.SetToken("tok")
	s.HandleUserID(12345)

	s.SetRoom(protocol.Room{ID: 7, HostID: 12345}, true)
	if !s.IsHost() {
		t.Fatal("host not recognized")
	}

	// A fresh snapshot replaces, never patches.
	s.SetRoom(protocol.Room{ID: 7, HostID: 99}, true)
	if s.IsHost() {
		t.Fatal("stale host survived snapshot replace")
	}

	s.ClearRoom()
	if r, joined := s.Room(); joined || r.ID != 0 {
		t.Fatal("room not reset on leave")
	}
}

func TestPatchSlotScore(t *testing.T) {
	s := newTestSession(t)
	s.SetRoom(protocol.Room{ID: 1}, true)

	s.PatchSlotScore(protocol.ScoreFrame{SlotID: 2, TotalScore: 5555})
	r, _ := s.Room()
	if r.Slots[2].LastScore == nil || r.Slots[2].LastScore.TotalScore != 5555 {
		t.Fatal("slot score not patched")
	}
	if r.Slots[3].LastScore != nil {
		t.Fatal("patch leaked into other slots")
	}

	// Out-of-range slot ids are dropped, not a panic.
	s.PatchSlotScore(protocol.ScoreFrame{SlotID: 200})
}

func TestProtocolVersionNegotiation(t *testing.T) {
	s := newTestSession(t)

	s.SetProtocolVersion(protocol.ProtocolVersionVanilla)
	if s.ExtendedProtocol() {
		t.Fatal("vanilla version enabled extended protocol")
	}

	s.SetProtocolVersion(protocol.ProtocolVersionExtended)
	if !s.ExtendedProtocol() {
		t.Fatal("extended version not negotiated")
	}
}

func TestTokenFailureReason(t *testing.T) {
	if got := TokenFailureReason("user-already-logged-in"); got == "" {
		t.Fatal("known failure token produced no reason")
	}
	if got := TokenFailureReason("a-perfectly-fine-token"); got != "" {
		t.Fatalf("ordinary token classified as failure: %q", got)
	}
}

func TestLoginBodyShape(t *testing.T) {
	s := newTestSession(t)
	body, err := s.BeginLogin()
	if err != nil {
		t.Fatalf("BeginLogin: %v", err)
	}

	// username, password hash, version line, trailing newline
	if body[len(body)-1] != '\n' {
		t.Fatal("login body missing trailing newline")
	}
	lines := []byte(body)
	nl := 0
	for _, c := range lines {
		if c == '\n' {
			nl++
		}
	}
	if nl != 3 {
		t.Fatalf("login body has %d lines, want 3", nl)
	}
}
