// Package transport moves raw packet bytes between the client and the
// server. Two transports exist: the classic HTTP poll pump, where
// outgoing packets accumulate between exchanges and every response body
// carries the queued server packets, and a websocket connection where
// both directions flow as they happen.
package transport

import (
	"time"

	"github.com/overture-project/overture/internal/protocol"
)

const (
	// minPingInterval is the exchange cadence right after activity.
	minPingInterval = 1 * time.Second
	// roomPingInterval caps the cadence while in a multiplayer room.
	roomPingInterval = 3 * time.Second
	// maxPingInterval caps the idle backoff, and is the fixed keepalive
	// cadence on websocket connections.
	maxPingInterval = 30 * time.Second
)

// PacketSink consumes decoded inbound packets. In production this is the
// dispatcher's queue.
type PacketSink func(*protocol.Packet)

// Transport is the byte-level connection to the server.
type Transport interface {
	// Send queues or transmits one framed outgoing packet.
	Send(data []byte)
	// Close tears the connection down. Safe to call more than once.
	Close()
}

// Cadence captures the client activities that tighten the exchange
// schedule.
type Cadence struct {
	// LobbyOrSpectating pins the cadence to the minimum: lobby listings
	// and spectator frames go stale in seconds.
	LobbyOrSpectating bool
	// InRoom caps the cadence at the room interval.
	InRoom bool
}

// nextPingInterval advances the idle backoff by one step and applies the
// cadence caps. The schedule starts at the minimum after any activity and
// grows a second per idle exchange.
func nextPingInterval(cur time.Duration, c Cadence) time.Duration {
	if c.LobbyOrSpectating {
		return minPingInterval
	}
	next := cur + time.Second
	if c.InRoom && next > roomPingInterval {
		return roomPingInterval
	}
	if next > maxPingInterval {
		next = maxPingInterval
	}
	return next
}
