package users

import (
	"testing"
	"time"

	"github.com/overture-project/overture/internal/events"
	"github.com/overture-project/overture/internal/protocol"
)

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	bus := events.NewEventBus()
	t.Cleanup(bus.Stop)
	return NewDirectory(bus)
}

// decodeIDBatch unwraps a flushed request packet and returns the
// requested ids.
func decodeIDBatch(t *testing.T, raw []byte, wantID uint16) []int32 {
	t.Helper()
	pkts, rest, err := protocol.DecodeFrames(raw)
	if err != nil {
		t.Fatalf("DecodeFrames: %v", err)
	}
	if len(pkts) != 1 || len(rest) != 0 {
		t.Fatalf("got %d packets, %d trailing bytes", len(pkts), len(rest))
	}
	p := pkts[0]
	if p.ID != wantID {
		t.Fatalf("packet id = %d, want %d", p.ID, wantID)
	}
	n := p.ReadU16()
	ids := make([]int32, 0, n)
	for i := uint16(0); i < n; i++ {
		ids = append(ids, p.ReadI32())
	}
	if p.Truncated() {
		t.Fatal("batch payload truncated")
	}
	return ids
}

func TestGetOrCreatePlaceholder(t *testing.T) {
	d := newTestDirectory(t)

	u := d.GetOrCreate(4242)
	if u.Name != "User #4242" {
		t.Fatalf("placeholder name = %q", u.Name)
	}
	if u.HasPresence {
		t.Fatal("placeholder claims presence")
	}

	// Same id returns the same entry, no duplicate.
	if again := d.GetOrCreate(4242); again != u {
		t.Fatal("GetOrCreate created a duplicate entry")
	}
	if cached, _ := d.Count(); cached != 1 {
		t.Fatalf("cached = %d, want 1", cached)
	}
}

func TestPresenceQueueDeduplicates(t *testing.T) {
	d := newTestDirectory(t)

	d.EnqueuePresenceRequest(7)
	d.EnqueuePresenceRequest(7)
	d.EnqueuePresenceRequest(7)

	ids := decodeIDBatch(t, d.FlushPresenceBatch(), protocol.PktOutPresenceRequest)
	if len(ids) != 1 || ids[0] != 7 {
		t.Fatalf("ids = %v, want [7]", ids)
	}

	// Drained queue yields no packet.
	if raw := d.FlushPresenceBatch(); raw != nil {
		t.Fatal("empty queue produced a packet")
	}
}

func TestPresenceQueueSkipsKnownUsers(t *testing.T) {
	d := newTestDirectory(t)

	d.ApplyPresence(protocol.UserPresence{UserID: 9, Name: "peppy"})
	d.EnqueuePresenceRequest(9)

	if raw := d.FlushPresenceBatch(); raw != nil {
		t.Fatal("known presence was requested again")
	}
}

func TestPresenceQueueRevalidatedAtFlush(t *testing.T) {
	d := newTestDirectory(t)

	d.EnqueuePresenceRequest(5)
	d.EnqueuePresenceRequest(6)
	// Presence for 5 arrives before the flush timer fires.
	d.ApplyPresence(protocol.UserPresence{UserID: 5, Name: "five"})

	ids := decodeIDBatch(t, d.FlushPresenceBatch(), protocol.PktOutPresenceRequest)
	if len(ids) != 1 || ids[0] != 6 {
		t.Fatalf("ids = %v, want [6]", ids)
	}
}

func TestStatsRefreshThrottle(t *testing.T) {
	d := newTestDirectory(t)
	now := time.Unix(1000, 0)
	d.now = func() time.Time { return now }

	d.ApplyStats(protocol.UserStats{UserID: 3}, false)

	// Within the window the request is dropped.
	now = now.Add(4 * time.Second)
	d.EnqueueStatsRequest(3)
	if raw := d.FlushStatsBatch(); raw != nil {
		t.Fatal("fresh stats were requested again")
	}

	// Past the window it goes through.
	now = now.Add(2 * time.Second)
	d.EnqueueStatsRequest(3)
	ids := decodeIDBatch(t, d.FlushStatsBatch(), protocol.PktOutUserStatsRequest)
	if len(ids) != 1 || ids[0] != 3 {
		t.Fatalf("ids = %v, want [3]", ids)
	}
}

func TestStatsQueueRevalidatedAtFlush(t *testing.T) {
	d := newTestDirectory(t)
	now := time.Unix(1000, 0)
	d.now = func() time.Time { return now }

	d.EnqueueStatsRequest(11)
	// A stats response lands between enqueue and flush.
	d.ApplyStats(protocol.UserStats{UserID: 11}, false)

	if raw := d.FlushStatsBatch(); raw != nil {
		t.Fatal("stale queue entry survived flush revalidation")
	}
}

func TestOnlineIndex(t *testing.T) {
	d := newTestDirectory(t)

	d.Login(1)
	d.Login(2)
	if !d.IsOnline(1) || !d.IsOnline(2) {
		t.Fatal("logged-in users not online")
	}

	d.Logout(1)
	if d.IsOnline(1) {
		t.Fatal("user still online after logout")
	}
	// The cache entry outlives the online index.
	if _, ok := d.Lookup(1); !ok {
		t.Fatal("logout evicted the cache entry")
	}

	// Every online user has a cache entry.
	for _, u := range d.OnlineUsers() {
		if _, ok := d.Lookup(u.ID); !ok {
			t.Fatalf("online user %d not cached", u.ID)
		}
	}
}

func TestLogoutAll(t *testing.T) {
	d := newTestDirectory(t)

	d.Login(1)
	d.Login(2)
	d.EnqueuePresenceRequest(3)
	d.EnqueueStatsRequest(4)

	d.LogoutAll()

	cached, online := d.Count()
	if cached != 0 || online != 0 {
		t.Fatalf("cached=%d online=%d after LogoutAll", cached, online)
	}
	if d.FlushPresenceBatch() != nil || d.FlushStatsBatch() != nil {
		t.Fatal("request queues survived LogoutAll")
	}
}

func TestFriendActivityToast(t *testing.T) {
	d := newTestDirectory(t)
	now := time.Unix(1000, 0)
	d.now = func() time.Time { return now }

	d.ApplyPresence(protocol.UserPresence{UserID: 8, Name: "cookiezi"})
	d.ApplyStats(protocol.UserStats{UserID: 8, Action: protocol.ActionIdle}, true)

	// First observed action change produces a toast.
	now = now.Add(time.Minute)
	msg, ok := d.ApplyStats(protocol.UserStats{UserID: 8, Action: protocol.ActionPlaying}, true)
	if !ok {
		t.Fatal("action change produced no toast")
	}
	if msg != "cookiezi is playing" {
		t.Fatalf("toast = %q", msg)
	}

	// Another change right after is rate limited.
	now = now.Add(3 * time.Second)
	if _, ok := d.ApplyStats(protocol.UserStats{UserID: 8, Action: protocol.ActionEditing}, true); ok {
		t.Fatal("toast not rate limited")
	}

	// Non-friends never toast.
	now = now.Add(time.Minute)
	d.ApplyStats(protocol.UserStats{UserID: 99, Action: protocol.ActionIdle}, false)
	now = now.Add(time.Minute)
	if _, ok := d.ApplyStats(protocol.UserStats{UserID: 99, Action: protocol.ActionPlaying}, false); ok {
		t.Fatal("non-friend produced a toast")
	}
}
