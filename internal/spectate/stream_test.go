package spectate

import (
	"testing"

	"github.com/overture-project/overture/internal/events"
	"github.com/overture-project/overture/internal/protocol"
)

func newTestStream(t *testing.T) *Stream {
	t.Helper()
	bus := events.NewEventBus()
	t.Cleanup(bus.Stop)
	return NewStream(bus)
}

func frameAt(time int32) protocol.LiveReplayFrame {
	return protocol.LiveReplayFrame{Time: time, X: float32(time), Y: float32(time)}
}

func TestIngestSortsFramesByTime(t *testing.T) {
	s := newTestStream(t)
	s.Start(1001)

	s.Ingest(protocol.LiveReplayBundle{
		Frames: []protocol.LiveReplayFrame{frameAt(300), frameAt(100), frameAt(200)},
	})

	frames := s.Frames()
	if len(frames) != 3 {
		t.Fatalf("got %d frames", len(frames))
	}
	for i, want := range []int32{100, 200, 300} {
		if frames[i].Time != want {
			t.Fatalf("frames[%d].Time = %d, want %d", i, frames[i].Time, want)
		}
	}
	for i, want := range []int32{100, 100, 100} {
		if frames[i].TimeDelta != want {
			t.Fatalf("frames[%d].TimeDelta = %d, want %d", i, frames[i].TimeDelta, want)
		}
	}
}

func TestIngestMergesAcrossBundles(t *testing.T) {
	s := newTestStream(t)
	s.Start(1001)

	s.Ingest(protocol.LiveReplayBundle{
		Frames: []protocol.LiveReplayFrame{frameAt(500), frameAt(600)},
	})
	// A late bundle with earlier timestamps slots in before them.
	s.Ingest(protocol.LiveReplayBundle{
		Frames:   []protocol.LiveReplayFrame{frameAt(450)},
		Sequence: 9,
	})

	frames := s.Frames()
	if len(frames) != 3 {
		t.Fatalf("got %d frames", len(frames))
	}
	if frames[0].Time != 450 || frames[1].Time != 500 || frames[2].Time != 600 {
		t.Fatalf("frame order = %d,%d,%d", frames[0].Time, frames[1].Time, frames[2].Time)
	}
	if frames[0].TimeDelta != 450 || frames[1].TimeDelta != 50 || frames[2].TimeDelta != 100 {
		t.Fatalf("deltas = %d,%d,%d", frames[0].TimeDelta, frames[1].TimeDelta, frames[2].TimeDelta)
	}
	if s.LastSequence() != 9 {
		t.Fatalf("sequence = %d, want 9", s.LastSequence())
	}
}

func TestNewSongResetsBuffers(t *testing.T) {
	s := newTestStream(t)
	s.Start(1001)

	s.Ingest(protocol.LiveReplayBundle{
		Frames: []protocol.LiveReplayFrame{frameAt(100)},
	})
	s.Ingest(protocol.LiveReplayBundle{Action: protocol.ReplayActionNewSong})

	if len(s.Frames()) != 0 {
		t.Fatal("frame buffer survived a new song")
	}
	if !s.GameplayActive() {
		t.Fatal("gameplay not active after new song")
	}

	s.Ingest(protocol.LiveReplayBundle{Action: protocol.ReplayActionCompletion})
	if s.GameplayActive() {
		t.Fatal("gameplay still active after completion")
	}
}

func TestIngestDropsBundlesWhileIdle(t *testing.T) {
	s := newTestStream(t)

	// No Start: a stray bundle must not touch any session state.
	s.Ingest(protocol.LiveReplayBundle{
		Action:   protocol.ReplayActionNewSong,
		Frames:   []protocol.LiveReplayFrame{frameAt(100)},
		Score:    protocol.ScoreFrame{TotalScore: 100},
		Sequence: 7,
	})

	if s.GameplayActive() {
		t.Fatal("idle stream flipped gameplayActive from a stray bundle")
	}
	if len(s.Frames()) != 0 || len(s.Scores()) != 0 || s.LastSequence() != 0 {
		t.Fatal("idle stream accumulated state from a stray bundle")
	}

	// After stopping, bundles still in flight are dropped the same way.
	s.Start(1001)
	s.Stop()
	s.Ingest(protocol.LiveReplayBundle{Action: protocol.ReplayActionNewSong})
	if s.GameplayActive() || len(s.Scores()) != 0 {
		t.Fatal("stopped stream acted on an in-flight bundle")
	}
}

func TestScoreHistoryAccumulates(t *testing.T) {
	s := newTestStream(t)
	s.Start(1001)

	s.Ingest(protocol.LiveReplayBundle{Score: protocol.ScoreFrame{TotalScore: 100}})
	s.Ingest(protocol.LiveReplayBundle{Score: protocol.ScoreFrame{TotalScore: 250}})

	scores := s.Scores()
	if len(scores) != 2 || scores[1].TotalScore != 250 {
		t.Fatalf("score history = %+v", scores)
	}
}

func TestFellowSpectators(t *testing.T) {
	s := newTestStream(t)
	s.Start(1001)

	s.FellowJoined(5)
	s.FellowJoined(6)
	s.FellowJoined(5)
	if got := len(s.Fellows()); got != 2 {
		t.Fatalf("fellows = %d, want 2", got)
	}

	s.FellowLeft(5)
	if got := s.Fellows(); len(got) != 1 || got[0] != 6 {
		t.Fatalf("fellows = %v, want [6]", got)
	}
}

func TestStopClearsSession(t *testing.T) {
	s := newTestStream(t)
	s.Start(1001)
	s.FellowJoined(5)
	s.Ingest(protocol.LiveReplayBundle{
		Frames:   []protocol.LiveReplayFrame{frameAt(100)},
		Sequence: 3,
	})

	s.Stop()

	if s.Active() || s.HostID() != 0 {
		t.Fatal("stream still active after stop")
	}
	if len(s.Frames()) != 0 || len(s.Fellows()) != 0 || s.LastSequence() != 0 {
		t.Fatal("session state survived stop")
	}
}

func TestStartReplacesPreviousSession(t *testing.T) {
	s := newTestStream(t)
	s.Start(1001)
	s.Ingest(protocol.LiveReplayBundle{
		Frames: []protocol.LiveReplayFrame{frameAt(100)},
	})

	s.Start(2002)
	if s.HostID() != 2002 {
		t.Fatalf("host = %d, want 2002", s.HostID())
	}
	if len(s.Frames()) != 0 {
		t.Fatal("old session frames leaked into new session")
	}
}
