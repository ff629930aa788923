package session

import (
	"errors"
	"testing"

	"github.com/overture-project/overture/internal/config"
	"github.com/overture-project/overture/internal/events"
)

func TestEndpointBlocked(t *testing.T) {
	if !EndpointBlocked("ppy.sh") {
		t.Fatal("ppy.sh not blocked")
	}
	if EndpointBlocked("example.com") {
		t.Fatal("ordinary endpoint blocked")
	}
}

func TestBeginLoginRefusesBlockedEndpoint(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ServerData.Endpoint = "ppy.sh"
	cfg.ServerData.Username = "testuser"
	cfg.ServerData.PasswordMD5 = "0123456789abcdef0123456789abcdef"
	bus := events.NewEventBus()
	t.Cleanup(bus.Stop)
	s := New(cfg, bus)

	_, err := s.BeginLogin()
	if !errors.Is(err, ErrEndpointBlocked) {
		t.Fatalf("err = %v, want ErrEndpointBlocked", err)
	}
	if s.Status() != events.StatusLoggedOut {
		t.Fatalf("status = %v, want LoggedOut", s.Status())
	}
}

func TestBeginLoginRequiresCredentials(t *testing.T) {
	cfg := config.DefaultConfig()
	bus := events.NewEventBus()
	t.Cleanup(bus.Stop)
	s := New(cfg, bus)

	_, err := s.BeginLogin()
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("err = %v, want ErrNoCredentials", err)
	}
}

func TestSubmissionPolicy(t *testing.T) {
	if !SubmissionDisabled("ripple.moe") {
		t.Fatal("ripple.moe should refuse submissions")
	}
	if SubmissionDisabled("example.com") {
		t.Fatal("ordinary endpoint refuses submissions")
	}

	s := newTestSession(t)
	if !s.SubmissionAllowed() {
		t.Fatal("default test endpoint refuses submissions")
	}
}
