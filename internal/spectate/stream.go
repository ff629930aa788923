// Package spectate maintains the client side of a spectating session: the
// accumulated input frame buffer, the score snapshot history, and the set
// of fellow spectators watching the same player.
package spectate

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/overture-project/overture/internal/events"
	"github.com/overture-project/overture/internal/protocol"
	"github.com/overture-project/overture/internal/util"
)

// Stream holds the state of the current spectating session. Bundles can
// arrive out of order relative to gameplay time, so the frame buffer is
// re-sorted by timestamp after every ingest and the per-frame deltas are
// recomputed from the sorted order.
type Stream struct {
	mu  sync.RWMutex
	log zerolog.Logger

	eventBus *events.EventBus

	hostID  int32
	fellows map[int32]struct{}

	// watchers are the users spectating the local player, independent of
	// any session this client has as a spectator.
	watchers map[int32]struct{}

	frames       []protocol.LiveReplayFrame
	scores       []protocol.ScoreFrame
	lastSequence uint16

	gameplayActive bool
}

// NewStream creates an idle spectating stream.
func NewStream(eventBus *events.EventBus) *Stream {
	return &Stream{
		log:      util.ComponentLogger("spectate"),
		eventBus: eventBus,
		fellows:  make(map[int32]struct{}),
		watchers: make(map[int32]struct{}),
	}
}

// Start begins spectating the given user, discarding any previous session.
func (s *Stream) Start(userID int32) {
	s.mu.Lock()
	s.hostID = userID
	s.fellows = make(map[int32]struct{})
	s.frames = nil
	s.scores = nil
	s.lastSequence = 0
	s.gameplayActive = false
	s.mu.Unlock()

	s.log.Info().Int32("user_id", userID).Msg("Started spectating")
	s.eventBus.Emit(context.Background(), events.Event{
		Type:    events.EventSpectatingChanged,
		Source:  "spectate",
		Payload: events.SpectatingPayload{UserID: userID, Spectating: true},
	})
}

// Stop ends the current session and clears all accumulated state.
func (s *Stream) Stop() {
	s.mu.Lock()
	was := s.hostID
	s.hostID = 0
	s.fellows = make(map[int32]struct{})
	s.frames = nil
	s.scores = nil
	s.lastSequence = 0
	s.gameplayActive = false
	s.mu.Unlock()

	if was != 0 {
		s.log.Info().Int32("user_id", was).Msg("Stopped spectating")
	}
	s.eventBus.Emit(context.Background(), events.Event{
		Type:    events.EventSpectatingChanged,
		Source:  "spectate",
		Payload: events.SpectatingPayload{UserID: was, Spectating: false},
	})
}

// HostID returns the spectated user, or 0 when idle.
func (s *Stream) HostID() int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hostID
}

// Active reports whether a spectating session is in progress.
func (s *Stream) Active() bool {
	return s.HostID() != 0
}

// FellowJoined records another spectator of the same player.
func (s *Stream) FellowJoined(userID int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fellows[userID] = struct{}{}
}

// FellowLeft removes a fellow spectator.
func (s *Stream) FellowLeft(userID int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fellows, userID)
}

// WatcherJoined records a user who started spectating the local player.
func (s *Stream) WatcherJoined(userID int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers[userID] = struct{}{}
}

// WatcherLeft removes a spectator of the local player.
func (s *Stream) WatcherLeft(userID int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watchers, userID)
}

// Watchers returns the ids of the users spectating the local player.
func (s *Stream) Watchers() []int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int32, 0, len(s.watchers))
	for id := range s.watchers {
		out = append(out, id)
	}
	return out
}

// Fellows returns the ids of the other spectators.
func (s *Stream) Fellows() []int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int32, 0, len(s.fellows))
	for id := range s.fellows {
		out = append(out, id)
	}
	return out
}

// Ingest merges one frame bundle into the session. Frames are appended to
// the buffer, the buffer is stably sorted by gameplay time, deltas are
// recomputed, and the bundle's replay action is translated into a gameplay
// control event where one applies. Bundles arriving outside a spectating
// session are dropped whole; a stray one must not touch gameplay state.
func (s *Stream) Ingest(bundle protocol.LiveReplayBundle) {
	s.mu.Lock()

	if s.hostID == 0 {
		s.mu.Unlock()
		s.log.Debug().Msg("Dropping frame bundle, not spectating")
		return
	}

	if len(bundle.Frames) > 0 {
		s.frames = append(s.frames, bundle.Frames...)
		sort.SliceStable(s.frames, func(i, j int) bool {
			return s.frames[i].Time < s.frames[j].Time
		})
		prev := int32(0)
		for i := range s.frames {
			s.frames[i].TimeDelta = s.frames[i].Time - prev
			prev = s.frames[i].Time
		}
	}

	s.scores = append(s.scores, bundle.Score)
	s.lastSequence = bundle.Sequence

	action, emit := s.applyActionLocked(bundle.Action)
	s.mu.Unlock()

	if emit {
		s.eventBus.Emit(context.Background(), events.Event{
			Type:    events.EventGameplayControl,
			Source:  "spectate",
			Payload: events.GameplayControlPayload{Action: action},
		})
	}
}

// applyActionLocked updates the gameplay-active flag for the bundle's
// replay action and decides whether a control event should fire. Playback
// controls are only meaningful while gameplay is running; a pause arriving
// during song select is dropped.
func (s *Stream) applyActionLocked(a protocol.LiveReplayAction) (events.GameplayAction, bool) {
	switch a {
	case protocol.ReplayActionNewSong:
		s.frames = nil
		s.scores = nil
		s.gameplayActive = true
		return events.GameplayRestart, true
	case protocol.ReplayActionSkip:
		return events.GameplaySkip, s.gameplayActive
	case protocol.ReplayActionCompletion:
		active := s.gameplayActive
		s.gameplayActive = false
		return events.GameplayStop, active
	case protocol.ReplayActionFail:
		return events.GameplayFail, s.gameplayActive
	case protocol.ReplayActionPause:
		return events.GameplayPause, s.gameplayActive
	case protocol.ReplayActionUnpause:
		return events.GameplayUnpause, s.gameplayActive
	case protocol.ReplayActionSongSelect:
		active := s.gameplayActive
		s.gameplayActive = false
		return events.GameplaySongSelect, active
	case protocol.ReplayActionWatchingOther:
		s.log.Debug().Msg("Spectated player is watching someone else")
		return 0, false
	default:
		return 0, false
	}
}

// Frames returns a snapshot of the sorted frame buffer.
func (s *Stream) Frames() []protocol.LiveReplayFrame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]protocol.LiveReplayFrame, len(s.frames))
	copy(out, s.frames)
	return out
}

// Scores returns a snapshot of the score history.
func (s *Stream) Scores() []protocol.ScoreFrame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]protocol.ScoreFrame, len(s.scores))
	copy(out, s.scores)
	return out
}

// LastSequence returns the sequence number of the latest bundle.
func (s *Stream) LastSequence() uint16 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSequence
}

// GameplayActive reports whether the spectated player is mid-map.
func (s *Stream) GameplayActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gameplayActive
}
