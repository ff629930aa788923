package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/overture-project/overture/internal/config"
	"github.com/overture-project/overture/internal/protocol"
	"github.com/overture-project/overture/internal/session"
	"github.com/overture-project/overture/internal/util"
)

const (
	httpRequestTimeout  = 30 * time.Second
	tokenHeader         = "osu-token"
	responseTokenHeader = "cho-token"
)

// HTTPPump is the classic poll transport. Outgoing packets accumulate in
// a buffer; every tick the buffer is posted to the server and the
// response body, which carries all server packets queued since the last
// exchange, is decoded into the sink. An empty buffer turns the exchange
// into a keep-alive ping, and the tick interval backs off while idle.
type HTTPPump struct {
	mu  sync.Mutex
	log zerolog.Logger

	cfg  *config.Config
	sess *session.Session
	sink PacketSink

	client  *http.Client
	baseURL string

	out  []byte
	rest []byte

	interval     time.Duration
	pongDeadline time.Time

	closed    chan struct{}
	closeOnce sync.Once
}

// NewHTTPPump creates a pump for the session's endpoint. Nothing is sent
// until Connect.
func NewHTTPPump(cfg *config.Config, sess *session.Session, sink PacketSink) *HTTPPump {
	return &HTTPPump{
		log:      util.ComponentLogger("transport"),
		cfg:      cfg,
		sess:     sess,
		sink:     sink,
		client:   &http.Client{Timeout: httpRequestTimeout},
		baseURL:  fmt.Sprintf("https://c.%s/", sess.Endpoint()),
		interval: minPingInterval,
		closed:   make(chan struct{}),
	}
}

// Connect performs the login exchange: the plaintext login body goes up
// without a token, the session token comes back in the response headers,
// and the response body carries the login packet burst.
func (p *HTTPPump) Connect(ctx context.Context) error {
	body, err := p.sess.BeginLogin()
	if err != nil {
		return err
	}

	p.log.Info().Str("url", p.baseURL).Msg("Logging in")
	resp, err := p.post(ctx, "", []byte(body))
	if err != nil {
		p.sess.Reset()
		return fmt.Errorf("login request failed: %w", err)
	}

	token := resp.Header.Get(responseTokenHeader)
	if reason := session.TokenFailureReason(token); reason != "" {
		p.log.Warn().Str("reason", reason).Msg("Login refused by token header")
	} else if token != "" {
		p.sess.SetToken(token)
	}

	p.feed(resp.Body)
	return nil
}

// Send queues one framed packet for the next exchange.
func (p *HTTPPump) Send(data []byte) {
	p.mu.Lock()
	p.out = append(p.out, data...)
	p.mu.Unlock()
}

// Close stops the pump. The in-flight exchange, if any, finishes.
func (p *HTTPPump) Close() {
	p.closeOnce.Do(func() { close(p.closed) })
}

// Pong marks the outstanding keep-alive as answered. Wired to the
// dispatcher's pong hook.
func (p *HTTPPump) Pong() {
	p.mu.Lock()
	p.pongDeadline = time.Time{}
	p.mu.Unlock()
}

// Run drives the exchange loop until the context is cancelled, the pump
// is closed, or the connection dies. A nil return means a clean stop.
func (p *HTTPPump) Run(ctx context.Context) error {
	for {
		p.mu.Lock()
		wait := p.interval
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil
		case <-p.closed:
			return nil
		case <-time.After(wait):
		}

		if err := p.Exchange(ctx); err != nil {
			return err
		}

		p.mu.Lock()
		deadline := p.pongDeadline
		p.mu.Unlock()
		if !deadline.IsZero() && time.Now().After(deadline) {
			return fmt.Errorf("server stopped answering keep-alives")
		}
	}
}

// Exchange performs one poll: drain the outgoing buffer (or ping when it
// is empty), post it, and decode the response.
func (p *HTTPPump) Exchange(ctx context.Context) error {
	token := p.sess.Token()
	if token == "" {
		return fmt.Errorf("no session token, cannot exchange")
	}

	cadence := Cadence{
		LobbyOrSpectating: p.sess.LobbyOpen() || p.sess.SpectatedID() != 0,
		InRoom:            p.sess.InRoom(),
	}

	p.mu.Lock()
	out := p.out
	p.out = nil
	if len(out) == 0 {
		out = protocol.BuildPing()
		if p.pongDeadline.IsZero() {
			p.pongDeadline = time.Now().Add(p.pongTimeout())
		}
		p.interval = nextPingInterval(p.interval, cadence)
	} else {
		p.interval = minPingInterval
	}
	p.mu.Unlock()

	resp, err := p.post(ctx, token, out)
	if err != nil {
		return fmt.Errorf("exchange failed: %w", err)
	}
	p.feed(resp.Body)
	return nil
}

func (p *HTTPPump) post(ctx context.Context, token string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "osu!")
	if token != "" {
		req.Header.Set(tokenHeader, token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return resp, nil
}

// feed decodes the response body into packets and hands them to the sink.
// A partial frame at the end of one response is completed by the next.
func (p *HTTPPump) feed(body io.ReadCloser) {
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		p.log.Warn().Err(err).Msg("Failed to read response body")
		return
	}

	p.mu.Lock()
	buf := append(p.rest, data...)
	pkts, rest, err := protocol.DecodeFrames(buf)
	p.rest = rest
	p.mu.Unlock()

	if err != nil {
		p.log.Error().Err(err).Msg("Corrupt packet stream")
		return
	}
	for _, pkt := range pkts {
		p.sink(pkt)
	}
}

func (p *HTTPPump) pongTimeout() time.Duration {
	sec := p.cfg.GetApplicationData().Timers.PongTimeout
	if sec <= 0 {
		sec = 10
	}
	return time.Duration(sec) * time.Second
}
