// Package webapi implements the HTTP side-channel next to the packet
// stream: leaderboards, replay downloads, score submission and the OAuth
// device-code poll. Requests run on their own goroutines; every
// completion is wrapped as a packet whose ID is the request kind and
// whose Extra carries the typed result, then fed into the same dispatch
// queue as server packets so state mutation stays single-threaded.
package webapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/overture-project/overture/internal/config"
	"github.com/overture-project/overture/internal/db"
	"github.com/overture-project/overture/internal/events"
	"github.com/overture-project/overture/internal/protocol"
	"github.com/overture-project/overture/internal/session"
	"github.com/overture-project/overture/internal/util"
)

// Request kinds double as completion packet ids. They live far above the
// server packet id range so the dispatcher can tell them apart.
const (
	ReqLeaderboard uint16 = 0x4000 + iota
	ReqReplayDownload
	ReqScoreSubmit
	ReqBeatmapInfo
	ReqMarkAsRead
	ReqOAuthPoll
	ReqUpdateCheck
	ReqMapUpload
)

const requestTimeout = 30 * time.Second

// Client issues side-channel web requests for one session.
type Client struct {
	log zerolog.Logger

	cfg      *config.Config
	sess     *session.Session
	eventBus *events.EventBus

	// beatmaps is the local map cache; nil disables the requests that
	// need it (server-requested map uploads).
	beatmaps *db.BeatmapDatabase

	// enqueue feeds a completion into the dispatch queue.
	enqueue func(*protocol.Packet)

	client *http.Client
	// uploader moves whole map files and gets a longer deadline than the
	// api calls.
	uploader *http.Client
	baseURL  string
}

// NewClient creates a web client bound to the session's endpoint. The
// beatmap database may be nil.
func NewClient(cfg *config.Config, sess *session.Session, eventBus *events.EventBus, beatmaps *db.BeatmapDatabase, enqueue func(*protocol.Packet)) *Client {
	return &Client{
		log:      util.ComponentLogger("webapi"),
		cfg:      cfg,
		sess:     sess,
		eventBus: eventBus,
		beatmaps: beatmaps,
		enqueue:  enqueue,
		client:   &http.Client{Timeout: requestTimeout},
		uploader: &http.Client{Timeout: mapUploadTimeout},
		baseURL:  fmt.Sprintf("https://osu.%s", sess.Endpoint()),
	}
}

// authParams adds the account credentials every authenticated endpoint
// expects. Password-based accounts send the name/hash pair; OAuth
// sessions send the bearer token instead.
func (c *Client) authParams(q url.Values) {
	srv := c.cfg.GetServerData()
	if srv.UseOAuth {
		q.Set("token", c.sess.Token())
		return
	}
	q.Set("us", srv.Username)
	q.Set("ha", srv.PasswordMD5)
}

// requireOnline refuses side-channel traffic for sessions that are not
// logged in; the endpoints would reject the credentials anyway and some
// respond with garbage rather than an error.
func (c *Client) requireOnline() error {
	if c.sess.Status() != events.StatusLoggedIn {
		return fmt.Errorf("not logged in")
	}
	return nil
}

// complete wraps a finished request as a packet on the dispatch queue.
func (c *Client) complete(kind uint16, extra any) {
	p := protocol.NewPacket(kind, nil)
	p.Extra = extra
	c.enqueue(p)
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	u := fmt.Sprintf("%s%s?%s", c.baseURL, path, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "osu!")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// toast emits a user-facing notification for a failed request.
func (c *Client) toast(message string) {
	c.eventBus.Emit(context.Background(), events.Event{
		Type:    events.EventToast,
		Source:  "webapi",
		Payload: events.ToastPayload{Message: message, Level: "error"},
	})
}
