package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// BeatmapDatabase stores what the client has learned about maps from the
// web side-channel, plus the chat read-state journal and the submission
// log, so restarts don't refetch or resubmit.
type BeatmapDatabase struct {
	db *Database
}

// CachedBeatmap is one beatmap record keyed by file hash.
type CachedBeatmap struct {
	MD5          string    `json:"md5"`
	MapID        int32     `json:"map_id"`
	SetID        int32     `json:"set_id"`
	Status       int       `json:"status"`
	OnlineOffset int       `json:"online_offset"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SubmissionRecord is one logged score submission.
type SubmissionRecord struct {
	ID         int64     `json:"id"`
	MapMD5     string    `json:"map_md5"`
	TotalScore int64     `json:"total_score"`
	Passed     bool      `json:"passed"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewBeatmapDatabase opens and migrates the beatmap database.
func NewBeatmapDatabase(dbPath string) (*BeatmapDatabase, error) {
	database, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}

	bdb := &BeatmapDatabase{db: database}
	if err := bdb.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate beatmap database: %w", err)
	}
	return bdb, nil
}

// Close closes the underlying database.
func (bdb *BeatmapDatabase) Close() error {
	return bdb.db.Close()
}

// migrate creates the database schema.
func (bdb *BeatmapDatabase) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS beatmaps (
			md5 TEXT PRIMARY KEY,
			map_id INTEGER NOT NULL DEFAULT 0,
			set_id INTEGER NOT NULL DEFAULT 0,
			status INTEGER NOT NULL DEFAULT 0,
			online_offset INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS channel_reads (
			channel TEXT PRIMARY KEY,
			read_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS submissions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			map_md5 TEXT NOT NULL,
			total_score INTEGER NOT NULL,
			passed INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_beatmaps_map_id ON beatmaps(map_id);
		CREATE INDEX IF NOT EXISTS idx_submissions_map_md5 ON submissions(map_md5);
	`

	if _, err := bdb.db.Exec(schema); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	log.Debug().Msg("beatmap database schema migrated")
	return nil
}

// UpsertBeatmap inserts or refreshes one beatmap record.
func (bdb *BeatmapDatabase) UpsertBeatmap(m CachedBeatmap) error {
	_, err := bdb.db.Exec(`
		INSERT INTO beatmaps (md5, map_id, set_id, status, online_offset, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(md5) DO UPDATE SET
			map_id = excluded.map_id,
			set_id = excluded.set_id,
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP`,
		m.MD5, m.MapID, m.SetID, m.Status, m.OnlineOffset)
	if err != nil {
		return fmt.Errorf("failed to upsert beatmap %s: %w", m.MD5, err)
	}
	return nil
}

// LookupByMD5 returns the cached record for a map hash.
func (bdb *BeatmapDatabase) LookupByMD5(md5 string) (CachedBeatmap, bool, error) {
	var m CachedBeatmap
	err := bdb.db.QueryRow(`
		SELECT md5, map_id, set_id, status, online_offset, updated_at
		FROM beatmaps WHERE md5 = ?`, md5).
		Scan(&m.MD5, &m.MapID, &m.SetID, &m.Status, &m.OnlineOffset, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return CachedBeatmap{}, false, nil
	}
	if err != nil {
		return CachedBeatmap{}, false, fmt.Errorf("failed to look up beatmap %s: %w", md5, err)
	}
	return m, true, nil
}

// SetOnlineOffset stores a user-tuned audio offset for one map. The
// record is created if the map was never cached.
func (bdb *BeatmapDatabase) SetOnlineOffset(md5 string, offset int) error {
	_, err := bdb.db.Exec(`
		INSERT INTO beatmaps (md5, online_offset) VALUES (?, ?)
		ON CONFLICT(md5) DO UPDATE SET online_offset = excluded.online_offset`,
		md5, offset)
	if err != nil {
		return fmt.Errorf("failed to set offset for %s: %w", md5, err)
	}
	return nil
}

// MarkChannelRead records that the channel's backlog was read now.
func (bdb *BeatmapDatabase) MarkChannelRead(channel string) error {
	_, err := bdb.db.Exec(`
		INSERT INTO channel_reads (channel, read_at) VALUES (?, CURRENT_TIMESTAMP)
		ON CONFLICT(channel) DO UPDATE SET read_at = CURRENT_TIMESTAMP`,
		channel)
	if err != nil {
		return fmt.Errorf("failed to mark %s read: %w", channel, err)
	}
	return nil
}

// LastRead returns when the channel's backlog was last read.
func (bdb *BeatmapDatabase) LastRead(channel string) (time.Time, bool, error) {
	var t time.Time
	err := bdb.db.QueryRow(`SELECT read_at FROM channel_reads WHERE channel = ?`, channel).Scan(&t)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// RecordSubmission appends one score submission to the journal.
func (bdb *BeatmapDatabase) RecordSubmission(mapMD5 string, totalScore int64, passed bool) error {
	_, err := bdb.db.Exec(`
		INSERT INTO submissions (map_md5, total_score, passed) VALUES (?, ?, ?)`,
		mapMD5, totalScore, passed)
	if err != nil {
		return fmt.Errorf("failed to record submission: %w", err)
	}
	return nil
}

// RecentSubmissions returns the newest entries of the submission journal.
func (bdb *BeatmapDatabase) RecentSubmissions(limit int) ([]SubmissionRecord, error) {
	rows, err := bdb.db.Query(`
		SELECT id, map_md5, total_score, passed, created_at
		FROM submissions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var out []SubmissionRecord
	for rows.Next() {
		var r SubmissionRecord
		if err := rows.Scan(&r.ID, &r.MapMD5, &r.TotalScore, &r.Passed, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
