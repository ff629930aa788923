// Package users implements the user directory: a lazily populated cache
// of per-user presence/stats records plus two deduplicated request queues
// that coalesce redundant lookups into batched outgoing packets.
package users

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/overture-project/overture/internal/events"
	"github.com/overture-project/overture/internal/protocol"
	"github.com/overture-project/overture/internal/util"
)

// statsRefreshWindow is the anti-spam throttle: a stats request for a
// user whose stats arrived within this window is dropped.
const statsRefreshWindow = 5 * time.Second

// UserInfo is one cache entry. Presence fields are only valid once
// HasPresence is set; stats fields once StatsReceived is non-zero.
type UserInfo struct {
	ID   int32
	Name string

	HasPresence bool
	CountryID   uint8
	UTCOffset   uint8
	Privileges  protocol.Privileges
	Longitude   float32
	Latitude    float32
	GlobalRank  int32

	Stats         protocol.UserStats
	StatsReceived time.Time

	// lastActivityToast throttles friend activity notifications.
	lastActivityToast time.Time
}

// Directory is the user cache plus the request batching queues. Entries
// are created lazily and retained for the process lifetime; only a global
// reset (logout) clears them.
type Directory struct {
	mu  sync.RWMutex
	log zerolog.Logger

	eventBus *events.EventBus

	all    map[int32]*UserInfo
	online map[int32]struct{}

	presenceQueue map[int32]struct{}
	statsQueue    map[int32]struct{}

	now func() time.Time
}

// NewDirectory creates an empty user directory.
func NewDirectory(eventBus *events.EventBus) *Directory {
	return &Directory{
		log:           util.ComponentLogger("users"),
		eventBus:      eventBus,
		all:           make(map[int32]*UserInfo),
		online:        make(map[int32]struct{}),
		presenceQueue: make(map[int32]struct{}),
		statsQueue:    make(map[int32]struct{}),
		now:           time.Now,
	}
}

// GetOrCreate returns the cache entry for id, creating a placeholder
// entry on first reference.
func (d *Directory) GetOrCreate(id int32) *UserInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.getOrCreateLocked(id)
}

func (d *Directory) getOrCreateLocked(id int32) *UserInfo {
	if u, ok := d.all[id]; ok {
		return u
	}
	u := &UserInfo{
		ID:   id,
		Name: fmt.Sprintf("User #%d", id),
	}
	d.all[id] = u
	d.eventBus.Emit(context.Background(), events.Event{
		Type:   events.EventUserListChanged,
		Source: "users",
	})
	return u
}

// Lookup returns a copy of the cache entry for id, if present.
func (d *Directory) Lookup(id int32) (UserInfo, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.all[id]
	if !ok {
		return UserInfo{}, false
	}
	return *u, true
}

// EnqueuePresenceRequest queues a presence lookup. The insert is
// idempotent and skipped entirely when presence is already known.
func (d *Directory) EnqueuePresenceRequest(id int32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u := d.getOrCreateLocked(id)
	if u.HasPresence {
		return
	}
	d.presenceQueue[id] = struct{}{}
}

// EnqueueStatsRequest queues a stats lookup, skipped when a stats
// response arrived within the refresh window.
func (d *Directory) EnqueueStatsRequest(id int32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u := d.getOrCreateLocked(id)
	if d.statsFresh(u) {
		return
	}
	d.statsQueue[id] = struct{}{}
}

func (d *Directory) statsFresh(u *UserInfo) bool {
	return !u.StatsReceived.IsZero() && d.now().Sub(u.StatsReceived) < statsRefreshWindow
}

// FlushPresenceBatch drains the presence queue into one outgoing packet.
// Queue entries are re-validated at flush time: presence may have arrived
// between enqueue and flush. An empty batch produces no packet.
func (d *Directory) FlushPresenceBatch() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	ids := make([]int32, 0, len(d.presenceQueue))
	for id := range d.presenceQueue {
		if u, ok := d.all[id]; ok && u.HasPresence {
			continue
		}
		ids = append(ids, id)
	}
	d.presenceQueue = make(map[int32]struct{})

	if len(ids) == 0 {
		return nil
	}
	return protocol.BuildPresenceRequest(ids)
}

// FlushStatsBatch drains the stats queue into one outgoing packet, with
// the same flush-time re-validation. An empty batch produces no packet.
func (d *Directory) FlushStatsBatch() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	ids := make([]int32, 0, len(d.statsQueue))
	for id := range d.statsQueue {
		if u, ok := d.all[id]; ok && d.statsFresh(u) {
			continue
		}
		ids = append(ids, id)
	}
	d.statsQueue = make(map[int32]struct{})

	if len(ids) == 0 {
		return nil
	}
	return protocol.BuildStatsRequest(ids)
}

// ApplyPresence installs a presence record.
func (d *Directory) ApplyPresence(p protocol.UserPresence) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u := d.getOrCreateLocked(p.UserID)
	if p.Name != "" {
		u.Name = p.Name
	}
	u.HasPresence = true
	u.CountryID = p.CountryID
	u.UTCOffset = p.UTCOffset
	u.Privileges = p.Privileges
	u.Longitude = p.Longitude
	u.Latitude = p.Latitude
	u.GlobalRank = p.GlobalRank
}

// ApplyStats installs a stats record and reports whether the user's
// activity changed in a way worth a friend toast: the action differs from
// the previous one, the new action is not a submission, and the last
// toast for this user is outside the throttle window.
func (d *Directory) ApplyStats(stats protocol.UserStats, isFriend bool) (toast string, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u := d.getOrCreateLocked(stats.UserID)
	prev := u.Stats.Action
	hadStats := !u.StatsReceived.IsZero()
	u.Stats = stats
	u.StatsReceived = d.now()

	if !isFriend || !hadStats || prev == stats.Action {
		return "", false
	}
	if stats.Action == protocol.ActionSubmitting {
		return "", false
	}
	if d.now().Sub(u.lastActivityToast) < 10*time.Second {
		return "", false
	}
	u.lastActivityToast = d.now()
	return fmt.Sprintf("%s %s", u.Name, stats.Action), true
}

// Login adds a user to the online index.
func (d *Directory) Login(id int32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.getOrCreateLocked(id)
	d.online[id] = struct{}{}
}

// Logout removes a user from the online index. The cache entry stays.
func (d *Directory) Logout(id int32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.online, id)
	d.eventBus.Emit(context.Background(), events.Event{
		Type:   events.EventUserListChanged,
		Source: "users",
	})
}

// LogoutAll clears everything: the online index, both request queues and
// the full cache. Used on disconnect.
func (d *Directory) LogoutAll() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.all = make(map[int32]*UserInfo)
	d.online = make(map[int32]struct{})
	d.presenceQueue = make(map[int32]struct{})
	d.statsQueue = make(map[int32]struct{})
	d.eventBus.Emit(context.Background(), events.Event{
		Type:   events.EventUserListChanged,
		Source: "users",
	})
}

// IsOnline reports whether the user is in the online index.
func (d *Directory) IsOnline(id int32) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.online[id]
	return ok
}

// OnlineUsers returns a snapshot of the online users.
func (d *Directory) OnlineUsers() []UserInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]UserInfo, 0, len(d.online))
	for id := range d.online {
		if u, ok := d.all[id]; ok {
			out = append(out, *u)
		}
	}
	return out
}

// Count returns the cached and online user counts.
func (d *Directory) Count() (cached, online int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.all), len(d.online)
}
