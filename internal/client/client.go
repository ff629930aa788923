// Package client wires the protocol core together: it owns the session,
// the user directory, the spectating stream, the dispatcher and the
// active transport, supervises the connection with reconnect backoff,
// and exposes the command surface the CLI and REST API drive.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/overture-project/overture/internal/config"
	"github.com/overture-project/overture/internal/db"
	"github.com/overture-project/overture/internal/dispatch"
	"github.com/overture-project/overture/internal/events"
	"github.com/overture-project/overture/internal/protocol"
	"github.com/overture-project/overture/internal/session"
	"github.com/overture-project/overture/internal/spectate"
	"github.com/overture-project/overture/internal/transport"
	"github.com/overture-project/overture/internal/users"
	"github.com/overture-project/overture/internal/util"
	"github.com/overture-project/overture/internal/webapi"
)

// conn is what both transports provide.
type conn interface {
	Connect(ctx context.Context) error
	Run(ctx context.Context) error
	Send(data []byte)
	Close()
}

// Client is the top-level protocol client.
type Client struct {
	log zerolog.Logger

	cfg      *config.Config
	eventBus *events.EventBus
	beatmaps *db.BeatmapDatabase

	Session    *session.Session
	Users      *users.Directory
	Stream     *spectate.Stream
	Dispatcher *dispatch.Dispatcher
	Web        *webapi.Client

	mu     sync.Mutex
	active conn

	// loginRequested wakes the supervisor when a login command arrives
	// while it is sitting idle.
	loginRequested chan struct{}
}

// New assembles a client from the configuration. The database may be
// nil; persistence is then skipped. Nothing connects until Run observes
// a login request.
func New(cfg *config.Config, eventBus *events.EventBus, beatmaps *db.BeatmapDatabase) *Client {
	c := &Client{
		log:            util.ComponentLogger("client"),
		cfg:            cfg,
		eventBus:       eventBus,
		beatmaps:       beatmaps,
		loginRequested: make(chan struct{}, 1),
	}

	c.Session = session.New(cfg, eventBus)
	c.Users = users.NewDirectory(eventBus)
	c.Stream = spectate.NewStream(eventBus)
	c.Dispatcher = dispatch.New(eventBus, c.Session, c.Users, c.Stream, c.Send, c.closeTransport)
	c.Web = webapi.NewClient(cfg, c.Session, eventBus, beatmaps, c.Dispatcher.Enqueue)

	c.registerSideChannels()
	c.Dispatcher.SetMapUploadHook(c.uploadRequestedMap)

	eventBus.Subscribe(events.EventReconnect, "client.reconnect", func(ctx context.Context, e events.Event) error {
		c.Login()
		return nil
	})
	eventBus.Subscribe(events.EventServerRestart, "client.restart", func(ctx context.Context, e events.Event) error {
		delay := time.Duration(0)
		if p, ok := e.Payload.(events.ServerRestartPayload); ok && p.DelayMS > 0 {
			delay = time.Duration(p.DelayMS) * time.Millisecond
		}
		c.log.Info().Dur("delay", delay).Msg("Reconnecting after server restart")
		time.AfterFunc(delay, c.Login)
		return nil
	})

	return c
}

// registerSideChannels binds the web request completions the client acts
// on itself; everything else just becomes an event for the surfaces.
func (c *Client) registerSideChannels() {
	c.Dispatcher.RegisterSideChannel(webapi.ReqLeaderboard, func(p *protocol.Packet) {
		result, ok := p.Extra.(*webapi.LeaderboardResult)
		if !ok {
			return
		}
		if result.Err != nil {
			c.log.Warn().Err(result.Err).Str("md5", result.MapMD5).Msg("Leaderboard request failed")
			return
		}
		if c.beatmaps != nil && result.Leaderboard != nil {
			lb := result.Leaderboard
			err := c.beatmaps.UpsertBeatmap(db.CachedBeatmap{
				MD5:          result.MapMD5,
				MapID:        lb.OnlineID,
				SetID:        lb.SetID,
				Status:       lb.Status,
				OnlineOffset: lb.OnlineOffset,
			})
			if err != nil {
				c.log.Warn().Err(err).Msg("Failed to cache beatmap record")
			}
		}
	})
	c.Dispatcher.RegisterSideChannel(webapi.ReqReplayDownload, func(p *protocol.Packet) {
		if result, ok := p.Extra.(*webapi.ReplayResult); ok && result.Err == nil {
			c.log.Info().Str("path", result.Path).Msg("Replay downloaded")
		}
	})
	c.Dispatcher.RegisterSideChannel(webapi.ReqScoreSubmit, func(p *protocol.Packet) {
		result, ok := p.Extra.(*webapi.SubmitResult)
		if !ok || result.Err != nil || c.beatmaps == nil {
			return
		}
		if err := c.beatmaps.RecordSubmission(result.MapMD5, result.TotalScore, result.Passed); err != nil {
			c.log.Warn().Err(err).Msg("Failed to journal submission")
		}
	})
	c.Dispatcher.RegisterSideChannel(webapi.ReqBeatmapInfo, func(p *protocol.Packet) {
		if result, ok := p.Extra.(*webapi.BeatmapInfoResult); ok && result.Err != nil {
			c.log.Warn().Err(result.Err).Int32("set_id", result.SetID).Msg("Beatmapset lookup failed")
		}
	})
	c.Dispatcher.RegisterSideChannel(webapi.ReqMarkAsRead, func(p *protocol.Packet) {
		result, ok := p.Extra.(*webapi.MarkAsReadResult)
		if !ok || result.Err != nil || c.beatmaps == nil {
			return
		}
		if err := c.beatmaps.MarkChannelRead(result.Channel); err != nil {
			c.log.Warn().Err(err).Msg("Failed to journal channel read")
		}
	})
	c.Dispatcher.RegisterSideChannel(webapi.ReqMapUpload, func(p *protocol.Packet) {
		if result, ok := p.Extra.(*webapi.MapUploadResult); ok && result.Err == nil {
			c.log.Info().Str("md5", result.MD5).Msg("Map uploaded to the server")
		}
	})
	c.Dispatcher.RegisterSideChannel(webapi.ReqUpdateCheck, func(p *protocol.Packet) {
		if result, ok := p.Extra.(*webapi.UpdateCheckResult); ok && result.Available() {
			c.eventBus.Emit(context.Background(), events.Event{
				Type:    events.EventToast,
				Source:  "client",
				Payload: events.ToastPayload{Message: "A client update is available.", Level: "info"},
			})
		}
	})
	c.Dispatcher.RegisterSideChannel(webapi.ReqOAuthPoll, func(p *protocol.Packet) {
		if result, ok := p.Extra.(*webapi.OAuthPollResult); ok && result.Err == nil {
			c.log.Info().Msg("OAuth token obtained, logging in")
			c.Login()
		}
	})
}

// uploadRequestedMap serves an extended server's request for a map file
// it is missing. Failures abandon the request; the server asks again if
// it still wants the map.
func (c *Client) uploadRequestedMap(md5 string) {
	if err := c.Web.UploadMap(context.Background(), md5); err != nil {
		c.log.Warn().Err(err).Str("md5", md5).Msg("Map upload abandoned")
	}
}

// Login asks the supervisor to establish a connection. Safe to call from
// any goroutine; a pending request is collapsed into one.
func (c *Client) Login() {
	select {
	case c.loginRequested <- struct{}{}:
	default:
	}
}

// Logout sends the logout notice and tears the connection down, unless a
// login is mid-flight, in which case the disconnect is deferred to the
// dispatcher.
func (c *Client) Logout() {
	if !c.Session.RequestLogout() {
		return
	}
	if c.Session.IsOnline() {
		c.Send(protocol.BuildLogout())
	}
	c.closeTransport()
	c.Session.Reset()
	c.Users.LogoutAll()
	c.Stream.Stop()
}

// Send transmits one framed packet on the active transport. Dropped with
// a log line when nothing is connected.
func (c *Client) Send(data []byte) {
	c.mu.Lock()
	active := c.active
	c.mu.Unlock()
	if active == nil {
		c.log.Debug().Msg("Dropping outgoing packet, no active transport")
		return
	}
	active.Send(data)
}

func (c *Client) closeTransport() {
	c.mu.Lock()
	active := c.active
	c.active = nil
	c.mu.Unlock()
	if active != nil {
		active.Close()
	}
}

// Run supervises the connection until the context ends: it waits for a
// login request, connects, drives the transport, and reconnects with
// exponential backoff while the session should be online.
func (c *Client) Run(ctx context.Context) error {
	go c.Dispatcher.Run(ctx)
	go c.flushLoop(ctx)
	go c.heartbeatLoop(ctx)

	timers := c.cfg.GetApplicationData().Timers
	baseDelay := time.Duration(max(timers.ReconnectBaseDelay, 1)) * time.Second
	maxDelay := time.Duration(max(timers.ReconnectMaxDelay, 1)) * time.Second
	delay := baseDelay

	for {
		select {
		case <-ctx.Done():
			c.closeTransport()
			return nil
		case <-c.loginRequested:
		}

		for {
			err := c.connectOnce(ctx)
			if ctx.Err() != nil {
				c.closeTransport()
				return nil
			}
			if err == nil {
				// Clean stop: logout or explicit close.
				delay = baseDelay
				break
			}

			if errors.Is(err, session.ErrEndpointBlocked) || errors.Is(err, session.ErrNoCredentials) {
				// Retrying cannot change either condition; wait for the
				// next explicit login request.
				c.log.Error().Err(err).Msg("Login refused")
				c.eventBus.Emit(ctx, events.Event{
					Type:    events.EventToast,
					Source:  "client",
					Payload: events.ToastPayload{Message: "Login refused: " + err.Error() + ".", Level: "error"},
				})
				delay = baseDelay
				break
			}

			c.log.Warn().Err(err).Dur("retry_in", delay).Msg("Connection lost")
			c.eventBus.Emit(ctx, events.Event{
				Type:    events.EventToast,
				Source:  "client",
				Payload: events.ToastPayload{Message: "Connection lost, retrying.", Level: "warning"},
			})

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
		}
	}
}

// connectOnce dials, logs in and drives the transport until it stops. A
// nil return means a deliberate stop; an error asks for a reconnect.
func (c *Client) connectOnce(ctx context.Context) error {
	t := c.newTransport()

	c.mu.Lock()
	c.active = t
	c.mu.Unlock()

	if err := t.Connect(ctx); err != nil {
		c.closeTransport()
		return fmt.Errorf("connect failed: %w", err)
	}

	err := t.Run(ctx)
	c.closeTransport()

	if err != nil {
		c.Session.Reset()
		c.Users.LogoutAll()
		c.Stream.Stop()
		return err
	}
	return nil
}

// newTransport picks the configured transport and wires the pong hook.
func (c *Client) newTransport() conn {
	if c.cfg.GetServerData().PreferWebsockets {
		ws := transport.NewWSTransport(c.Session, c.Dispatcher.Enqueue)
		c.Dispatcher.SetPongHook(nil)
		return ws
	}
	pump := transport.NewHTTPPump(c.cfg, c.Session, c.Dispatcher.Enqueue)
	c.Dispatcher.SetPongHook(pump.Pong)
	return pump
}

// flushLoop drains the presence/stats request queues into batched
// packets on the configured cadence.
func (c *Client) flushLoop(ctx context.Context) {
	ms := c.cfg.GetApplicationData().Timers.BatchFlushInterval
	if ms <= 0 {
		ms = 250
	}
	ticker := time.NewTicker(time.Duration(ms) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.Session.Status() != events.StatusLoggedIn {
				continue
			}
			if data := c.Users.FlushPresenceBatch(); data != nil {
				c.Send(data)
			}
			if data := c.Users.FlushStatsBatch(); data != nil {
				c.Send(data)
			}
		}
	}
}

// heartbeatLoop publishes a periodic session summary for telemetry.
func (c *Client) heartbeatLoop(ctx context.Context) {
	sec := c.cfg.GetApplicationData().Timers.StatsPollingInterval
	if sec <= 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(sec) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cached, online := c.Users.Count()
			c.eventBus.Emit(ctx, events.Event{
				Type:   events.EventNotifyMQTT,
				Source: "heartbeat",
				Payload: map[string]interface{}{
					"type":         "heartbeat",
					"status":       c.Session.Status().String(),
					"user_id":      c.Session.UserID().Load(),
					"cached_users": cached,
					"online_users": online,
					"in_room":      c.Session.InRoom(),
					"timestamp":    time.Now().Unix(),
				},
			})
		}
	}
}
