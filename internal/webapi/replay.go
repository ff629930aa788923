package webapi

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/overture-project/overture/internal/protocol"
)

// ReplayResult is the completion payload of a replay download.
type ReplayResult struct {
	ScoreID int64
	Path    string
	Data    []byte
	Err     error
}

// RequestReplay downloads the raw replay stream of an online score in the
// background and writes it into the replay cache. A failed download
// surfaces as a toast; the completion carries the error for callers that
// need it.
func (c *Client) RequestReplay(ctx context.Context, scoreID int64, mode protocol.GameMode) error {
	if err := c.requireOnline(); err != nil {
		return err
	}

	go func() {
		q := url.Values{}
		q.Set("c", strconv.FormatInt(scoreID, 10))
		q.Set("m", strconv.Itoa(int(mode)))
		c.authParams(q)

		result := &ReplayResult{ScoreID: scoreID}
		data, err := c.get(ctx, "/web/osu-getreplay.php", q)
		switch {
		case err != nil:
			result.Err = fmt.Errorf("replay download failed: %w", err)
		case len(data) == 0:
			result.Err = fmt.Errorf("replay %d not available", scoreID)
		default:
			result.Data = data
			result.Path = c.replayPath(scoreID)
			if err := os.WriteFile(result.Path, data, 0o644); err != nil {
				result.Err = fmt.Errorf("failed to store replay: %w", err)
			}
		}

		if result.Err != nil {
			c.log.Warn().Err(result.Err).Int64("score_id", scoreID).Msg("Replay download failed")
			c.toast("Replay download failed.")
		}
		c.complete(ReqReplayDownload, result)
	}()
	return nil
}

func (c *Client) replayPath(scoreID int64) string {
	srv := c.cfg.GetServerData()
	dir := filepath.Join(srv.DataDirectory, c.sess.Endpoint(), "replays")
	return filepath.Join(dir, fmt.Sprintf("%d.osr", scoreID))
}

// MarkAsReadResult is the completion payload of a mark-as-read call.
type MarkAsReadResult struct {
	Channel string
	Err     error
}

// MarkAsRead clears the unread flag for a chat channel on the server.
func (c *Client) MarkAsRead(ctx context.Context, channel string) error {
	if err := c.requireOnline(); err != nil {
		return err
	}

	go func() {
		q := url.Values{}
		q.Set("channel", channel)
		c.authParams(q)

		result := &MarkAsReadResult{Channel: channel}
		if _, err := c.get(ctx, "/web/osu-markasread.php", q); err != nil {
			result.Err = err
		}
		c.complete(ReqMarkAsRead, result)
	}()
	return nil
}

// BeatmapInfoResult is the completion payload of a beatmapset lookup.
type BeatmapInfoResult struct {
	SetID int32
	Raw   []byte
	Err   error
}

// RequestBeatmapInfo fetches the beatmapset metadata document.
func (c *Client) RequestBeatmapInfo(ctx context.Context, setID int32) error {
	if err := c.requireOnline(); err != nil {
		return err
	}

	go func() {
		q := url.Values{}
		q.Set("s", strconv.Itoa(int(setID)))
		c.authParams(q)

		result := &BeatmapInfoResult{SetID: setID}
		result.Raw, result.Err = c.get(ctx, "/web/osu-search-set.php", q)
		c.complete(ReqBeatmapInfo, result)
	}()
	return nil
}
