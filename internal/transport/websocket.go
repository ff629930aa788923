package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/overture-project/overture/internal/protocol"
	"github.com/overture-project/overture/internal/session"
	"github.com/overture-project/overture/internal/util"
)

// WSTransport is the websocket transport. Unlike the HTTP pump there is
// no batching: outgoing packets are written as they are queued and server
// packets arrive as binary messages. Keep-alives run on the fixed
// websocket cadence since the connection itself carries liveness.
type WSTransport struct {
	mu  sync.Mutex
	log zerolog.Logger

	sess *session.Session
	sink PacketSink

	url  string
	conn *websocket.Conn
	rest []byte

	closed    chan struct{}
	closeOnce sync.Once
}

// NewWSTransport creates a websocket transport for the session's
// endpoint. Nothing is sent until Connect.
func NewWSTransport(sess *session.Session, sink PacketSink) *WSTransport {
	return &WSTransport{
		log:    util.ComponentLogger("transport"),
		sess:   sess,
		sink:   sink,
		url:    fmt.Sprintf("wss://c.%s/ws", sess.Endpoint()),
		closed: make(chan struct{}),
	}
}

// Connect dials the websocket and performs the login exchange over it:
// the login body goes up as the first message, the token comes back in a
// header-bearing first frame handled server-side the same way as HTTP.
func (w *WSTransport) Connect(ctx context.Context) error {
	body, err := w.sess.BeginLogin()
	if err != nil {
		return err
	}

	w.log.Info().Str("url", w.url).Msg("Dialing websocket")
	conn, resp, err := websocket.Dial(ctx, w.url, &websocket.DialOptions{
		HTTPHeader: http.Header{"User-Agent": []string{"osu!"}},
	})
	if err != nil {
		w.sess.Reset()
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	conn.SetReadLimit(int64(protocol.MaxPayloadSize) + protocol.HeaderSize)

	if resp != nil {
		token := resp.Header.Get(responseTokenHeader)
		if reason := session.TokenFailureReason(token); reason != "" {
			w.log.Warn().Str("reason", reason).Msg("Login refused by token header")
		} else if token != "" {
			w.sess.SetToken(token)
		}
	}

	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()

	if err := conn.Write(ctx, websocket.MessageText, []byte(body)); err != nil {
		w.Close()
		w.sess.Reset()
		return fmt.Errorf("failed to send login body: %w", err)
	}
	return nil
}

// Send writes one framed packet immediately.
func (w *WSTransport) Send(data []byte) {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageBinary, data); err != nil {
		w.log.Warn().Err(err).Msg("Websocket write failed")
	}
}

// Close tears the connection down.
func (w *WSTransport) Close() {
	w.closeOnce.Do(func() {
		close(w.closed)
		w.mu.Lock()
		conn := w.conn
		w.conn = nil
		w.mu.Unlock()
		if conn != nil {
			conn.Close(websocket.StatusNormalClosure, "client shutdown")
		}
	})
}

// Run reads server messages until the context is cancelled or the
// connection dies, pinging on the fixed websocket cadence from a side
// goroutine. A nil return means a clean stop.
func (w *WSTransport) Run(ctx context.Context) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go w.keepAlive(pingCtx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.closed:
			return nil
		default:
		}

		typ, data, err := conn.Read(ctx)
		if err != nil {
			select {
			case <-w.closed:
				return nil
			case <-ctx.Done():
				return nil
			default:
			}
			return fmt.Errorf("websocket read failed: %w", err)
		}
		if typ != websocket.MessageBinary {
			continue
		}
		w.feed(data)
	}
}

func (w *WSTransport) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(maxPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.closed:
			return
		case <-ticker.C:
			w.Send(protocol.BuildPing())
		}
	}
}

func (w *WSTransport) feed(data []byte) {
	w.mu.Lock()
	buf := append(w.rest, data...)
	pkts, rest, err := protocol.DecodeFrames(buf)
	w.rest = rest
	w.mu.Unlock()

	if err != nil {
		w.log.Error().Err(err).Msg("Corrupt packet stream")
		return
	}
	for _, pkt := range pkts {
		w.sink(pkt)
	}
}
