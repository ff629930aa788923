package client

import (
	"testing"

	"github.com/overture-project/overture/internal/config"
	"github.com/overture-project/overture/internal/events"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	bus := events.NewEventBus()
	t.Cleanup(bus.Stop)
	return New(config.DefaultConfig(), bus, nil)
}

func TestCommandsRefuseWhenOffline(t *testing.T) {
	c := newTestClient(t)

	if err := c.SendMessage("#osu", "hi"); err == nil {
		t.Fatal("SendMessage succeeded while offline")
	}
	if err := c.StartSpectating(42); err == nil {
		t.Fatal("StartSpectating succeeded while offline")
	}
	if err := c.CreateRoom("room", ""); err == nil {
		t.Fatal("CreateRoom succeeded while offline")
	}
	if err := c.OpenLobby(); err == nil {
		t.Fatal("OpenLobby succeeded while offline")
	}
}

func TestSendWithoutTransportDrops(t *testing.T) {
	c := newTestClient(t)

	// No transport attached: must not panic.
	c.Send([]byte{0, 0, 0, 0, 0, 0, 0})
}

func TestLoginRequestsCoalesce(t *testing.T) {
	c := newTestClient(t)

	c.Login()
	c.Login()
	c.Login()

	select {
	case <-c.loginRequested:
	default:
		t.Fatal("no pending login request")
	}
	select {
	case <-c.loginRequested:
		t.Fatal("login requests were not coalesced")
	default:
	}
}

func TestLogoutWhileOfflineIsNoop(t *testing.T) {
	c := newTestClient(t)

	// Nothing to log out of; must not panic or send.
	c.Logout()
}
