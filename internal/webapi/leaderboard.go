package webapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/overture-project/overture/internal/protocol"
)

// Ranked status values from the leaderboard header.
const (
	MapStatusNotSubmitted = -1
	MapStatusPending      = 0
	MapStatusRanked       = 2
	MapStatusApproved     = 3
	MapStatusQualified    = 4
	MapStatusLoved        = 5
)

// LeaderboardScore is one row of the map leaderboard.
type LeaderboardScore struct {
	OnlineID   int64
	Username   string
	TotalScore int64
	MaxCombo   int
	Count50    int
	Count100   int
	Count300   int
	CountMiss  int
	CountKatu  int
	CountGeki  int
	Perfect    bool
	Mods       protocol.Mods
	UserID     int32
	Rank       int
	Timestamp  int64
	HasReplay  bool
}

// Leaderboard is the parsed response of a map score lookup.
type Leaderboard struct {
	Status       int
	OnlineID     int32
	SetID        int32
	TotalScores  int
	OnlineOffset int
	DisplayTitle string
	Rating       float64
	PersonalBest *LeaderboardScore
	Scores       []LeaderboardScore
}

// LeaderboardResult is the completion payload of a leaderboard request.
type LeaderboardResult struct {
	MapMD5      string
	Leaderboard *Leaderboard
	Err         error
}

// RequestLeaderboard fetches the map leaderboard in the background. The
// completion lands on the dispatch queue as a ReqLeaderboard packet with
// a *LeaderboardResult in Extra.
func (c *Client) RequestLeaderboard(ctx context.Context, mapMD5, mapFile string, mode protocol.GameMode, mods protocol.Mods) error {
	if err := c.requireOnline(); err != nil {
		return err
	}

	go func() {
		q := url.Values{}
		q.Set("s", "0")
		q.Set("vv", "4")
		q.Set("v", "1")
		q.Set("c", mapMD5)
		q.Set("f", mapFile)
		q.Set("m", strconv.Itoa(int(mode)))
		q.Set("mods", strconv.FormatUint(uint64(mods), 10))
		c.authParams(q)

		result := &LeaderboardResult{MapMD5: mapMD5}
		body, err := c.get(ctx, "/web/osu-osz2-getscores.php", q)
		if err != nil {
			result.Err = fmt.Errorf("leaderboard request failed: %w", err)
		} else {
			result.Leaderboard, result.Err = ParseLeaderboard(string(body))
		}
		c.complete(ReqLeaderboard, result)
	}()
	return nil
}

// ParseLeaderboard decodes the pipe-and-newline leaderboard text. The
// layout is one header line, the online offset, the display title, the
// map rating, the requesting user's personal best (possibly empty), and
// one line per score. Malformed score rows are skipped individually so a
// single bad row cannot take the whole board down.
func ParseLeaderboard(text string) (*Leaderboard, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) < 1 || strings.TrimSpace(lines[0]) == "" {
		return nil, fmt.Errorf("empty leaderboard response")
	}

	header := strings.Split(lines[0], "|")
	if len(header) < 5 {
		return nil, fmt.Errorf("malformed leaderboard header %q", lines[0])
	}

	lb := &Leaderboard{}
	lb.Status, _ = strconv.Atoi(header[0])
	id, _ := strconv.Atoi(header[2])
	lb.OnlineID = int32(id)
	setID, _ := strconv.Atoi(header[3])
	lb.SetID = int32(setID)
	lb.TotalScores, _ = strconv.Atoi(header[4])

	if lb.Status <= MapStatusPending {
		// Unranked maps carry no further sections.
		return lb, nil
	}
	if len(lines) < 5 {
		return nil, fmt.Errorf("truncated leaderboard response (%d lines)", len(lines))
	}

	lb.OnlineOffset, _ = strconv.Atoi(strings.TrimSpace(lines[1]))
	lb.DisplayTitle = strings.TrimSpace(lines[2])
	lb.Rating, _ = strconv.ParseFloat(strings.TrimSpace(lines[3]), 64)

	if row := strings.TrimSpace(lines[4]); row != "" {
		if score, ok := parseScoreRow(row); ok {
			lb.PersonalBest = &score
		}
	}

	for _, line := range lines[5:] {
		row := strings.TrimSpace(line)
		if row == "" {
			continue
		}
		score, ok := parseScoreRow(row)
		if !ok {
			continue
		}
		lb.Scores = append(lb.Scores, score)
	}
	return lb, nil
}

// parseScoreRow decodes one score line:
//
//	id|name|score|combo|50s|100s|300s|misses|katus|gekis|perfect|mods|userid|rank|time|has_replay
func parseScoreRow(row string) (LeaderboardScore, bool) {
	f := strings.Split(row, "|")
	if len(f) < 16 {
		return LeaderboardScore{}, false
	}

	var s LeaderboardScore
	var err error
	if s.OnlineID, err = strconv.ParseInt(f[0], 10, 64); err != nil {
		return LeaderboardScore{}, false
	}
	s.Username = f[1]
	if s.TotalScore, err = strconv.ParseInt(f[2], 10, 64); err != nil {
		return LeaderboardScore{}, false
	}
	s.MaxCombo, _ = strconv.Atoi(f[3])
	s.Count50, _ = strconv.Atoi(f[4])
	s.Count100, _ = strconv.Atoi(f[5])
	s.Count300, _ = strconv.Atoi(f[6])
	s.CountMiss, _ = strconv.Atoi(f[7])
	s.CountKatu, _ = strconv.Atoi(f[8])
	s.CountGeki, _ = strconv.Atoi(f[9])
	s.Perfect = f[10] == "1" || strings.EqualFold(f[10], "true")

	mods, err := strconv.ParseUint(f[11], 10, 32)
	if err != nil {
		return LeaderboardScore{}, false
	}
	s.Mods = protocol.Mods(mods)

	uid, err := strconv.ParseInt(f[12], 10, 32)
	if err != nil {
		return LeaderboardScore{}, false
	}
	s.UserID = int32(uid)
	s.Rank, _ = strconv.Atoi(f[13])
	s.Timestamp, _ = strconv.ParseInt(f[14], 10, 64)
	s.HasReplay = f[15] == "1"
	return s, true
}
