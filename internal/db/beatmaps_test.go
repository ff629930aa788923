package db

import (
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *BeatmapDatabase {
	t.Helper()
	bdb, err := NewBeatmapDatabase(filepath.Join(t.TempDir(), "overture.db"))
	if err != nil {
		t.Fatalf("NewBeatmapDatabase: %v", err)
	}
	t.Cleanup(func() { bdb.Close() })
	return bdb
}

func TestBeatmapUpsertAndLookup(t *testing.T) {
	bdb := newTestDB(t)

	m := CachedBeatmap{MD5: "abc123", MapID: 129891, SetID: 39804, Status: 2}
	if err := bdb.UpsertBeatmap(m); err != nil {
		t.Fatalf("UpsertBeatmap: %v", err)
	}

	got, ok, err := bdb.LookupByMD5("abc123")
	if err != nil || !ok {
		t.Fatalf("LookupByMD5: ok=%v err=%v", ok, err)
	}
	if got.MapID != 129891 || got.SetID != 39804 || got.Status != 2 {
		t.Fatalf("record = %+v", got)
	}

	// Refresh keeps the key and replaces the metadata.
	m.Status = 5
	if err := bdb.UpsertBeatmap(m); err != nil {
		t.Fatalf("UpsertBeatmap update: %v", err)
	}
	got, _, _ = bdb.LookupByMD5("abc123")
	if got.Status != 5 {
		t.Fatalf("status after refresh = %d", got.Status)
	}
}

func TestLookupMissing(t *testing.T) {
	bdb := newTestDB(t)
	_, ok, err := bdb.LookupByMD5("nope")
	if err != nil {
		t.Fatalf("LookupByMD5: %v", err)
	}
	if ok {
		t.Fatal("missing hash reported as cached")
	}
}

func TestOnlineOffsetSurvivesMetadataRefresh(t *testing.T) {
	bdb := newTestDB(t)

	if err := bdb.SetOnlineOffset("abc123", -23); err != nil {
		t.Fatalf("SetOnlineOffset: %v", err)
	}
	// A later metadata refresh must not clobber the tuned offset.
	if err := bdb.UpsertBeatmap(CachedBeatmap{MD5: "abc123", MapID: 1, Status: 2}); err != nil {
		t.Fatalf("UpsertBeatmap: %v", err)
	}

	got, ok, err := bdb.LookupByMD5("abc123")
	if err != nil || !ok {
		t.Fatalf("LookupByMD5: ok=%v err=%v", ok, err)
	}
	if got.OnlineOffset != -23 {
		t.Fatalf("offset = %d, want -23", got.OnlineOffset)
	}
}

func TestChannelReadJournal(t *testing.T) {
	bdb := newTestDB(t)

	if _, ok, _ := bdb.LastRead("#osu"); ok {
		t.Fatal("unread channel reported as read")
	}
	if err := bdb.MarkChannelRead("#osu"); err != nil {
		t.Fatalf("MarkChannelRead: %v", err)
	}
	if _, ok, err := bdb.LastRead("#osu"); err != nil || !ok {
		t.Fatalf("LastRead after mark: ok=%v err=%v", ok, err)
	}
}

func TestSubmissionJournal(t *testing.T) {
	bdb := newTestDB(t)

	for i, score := range []int64{1000, 2000, 3000} {
		if err := bdb.RecordSubmission("md5", score, i%2 == 0); err != nil {
			t.Fatalf("RecordSubmission: %v", err)
		}
	}

	recent, err := bdb.RecentSubmissions(2)
	if err != nil {
		t.Fatalf("RecentSubmissions: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d records, want 2", len(recent))
	}
	// Newest first.
	if recent[0].TotalScore != 3000 || recent[1].TotalScore != 2000 {
		t.Fatalf("order = %d,%d", recent[0].TotalScore, recent[1].TotalScore)
	}
}
