// Package dispatch owns the single packet-processing goroutine. Every
// inbound server packet and every completed side-channel web request is
// funneled into one queue and handled in arrival order, so the session,
// user directory and spectating stream never see concurrent mutation.
package dispatch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/overture-project/overture/internal/events"
	"github.com/overture-project/overture/internal/protocol"
	"github.com/overture-project/overture/internal/session"
	"github.com/overture-project/overture/internal/spectate"
	"github.com/overture-project/overture/internal/users"
	"github.com/overture-project/overture/internal/util"
)

// queueDepth bounds the inbound packet queue. The server sends bursts on
// login (channel listings, presence bundles) but nothing close to this.
const queueDepth = 512

// SideHandler consumes one completed side-channel request. The packet's
// ID is the request kind and Extra carries the request's context value.
type SideHandler func(*protocol.Packet)

// Dispatcher drains the packet queue and applies each packet to the
// session state. It is the only writer of session, directory and stream
// state once Run is started.
type Dispatcher struct {
	log zerolog.Logger

	eventBus *events.EventBus
	session  *session.Session
	users    *users.Directory
	stream   *spectate.Stream

	queue chan *protocol.Packet

	// send transmits raw outgoing packet bytes on the active transport.
	send func([]byte)
	// disconnect tears the transport down; the dispatcher resets state.
	disconnect func()

	// side maps out-of-band packet ids (web request kinds) to handlers.
	// Registered before Run starts, read-only afterwards.
	side map[uint16]SideHandler

	// pong is invoked for keep-alive responses so the transport can reset
	// its timeout clock.
	pong func()

	// uploadMap is invoked when an extended server requests a map file it
	// is missing, with the map's hash.
	uploadMap func(md5 string)
}

// New creates a dispatcher over the given collaborators. send and
// disconnect bind it to the active transport.
func New(eventBus *events.EventBus, sess *session.Session, dir *users.Directory, stream *spectate.Stream, send func([]byte), disconnect func()) *Dispatcher {
	return &Dispatcher{
		log:        util.ComponentLogger("dispatch"),
		eventBus:   eventBus,
		session:    sess,
		users:      dir,
		stream:     stream,
		queue:      make(chan *protocol.Packet, queueDepth),
		send:       send,
		disconnect: disconnect,
		side:       make(map[uint16]SideHandler),
	}
}

// RegisterSideChannel binds a handler for an out-of-band request kind.
// Must be called before Run.
func (d *Dispatcher) RegisterSideChannel(id uint16, h SideHandler) {
	d.side[id] = h
}

// SetPongHook installs the transport's keep-alive callback.
func (d *Dispatcher) SetPongHook(fn func()) {
	d.pong = fn
}

// SetMapUploadHook installs the handler for server-requested map uploads.
func (d *Dispatcher) SetMapUploadHook(fn func(md5 string)) {
	d.uploadMap = fn
}

// Enqueue adds a packet to the processing queue. Blocks when the queue is
// full, which backpressures the transport reader.
func (d *Dispatcher) Enqueue(p *protocol.Packet) {
	d.queue <- p
}

// Run drains the queue until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	d.log.Info().Msg("Packet dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("Packet dispatcher stopped")
			return
		case p := <-d.queue:
			d.Handle(p)
		}
	}
}

// Handle applies one packet. Exported so tests and the polling path can
// process packets synchronously.
func (d *Dispatcher) Handle(p *protocol.Packet) {
	if h, ok := d.side[p.ID]; ok {
		h(p)
		return
	}

	switch p.ID {
	case protocol.PktUserID:
		d.handleUserID(p.ReadI32())

	case protocol.PktMessage:
		d.handleMessage(protocol.DecodeMessage(p))

	case protocol.PktPong:
		if d.pong != nil {
			d.pong()
		}

	case protocol.PktUserStats:
		d.handleUserStats(protocol.DecodeUserStats(p))

	case protocol.PktUserLogout:
		d.handleUserLogout(p.ReadI32())

	case protocol.PktSpectatorJoined:
		d.stream.WatcherJoined(p.ReadI32())

	case protocol.PktSpectatorLeft:
		d.stream.WatcherLeft(p.ReadI32())

	case protocol.PktSpectateFrames:
		d.stream.Ingest(protocol.DecodeLiveReplayBundle(p))

	case protocol.PktFellowSpectatorJoined:
		id := p.ReadI32()
		d.stream.FellowJoined(id)
		d.users.EnqueuePresenceRequest(id)

	case protocol.PktFellowSpectatorLeft:
		d.stream.FellowLeft(p.ReadI32())

	case protocol.PktNotification:
		d.toast(p.ReadString(), "info")

	case protocol.PktRoomUpdated:
		d.handleRoomSnapshot(protocol.DecodeRoom(p), events.EventRoomUpdated)

	case protocol.PktRoomCreated:
		d.handleRoomSnapshot(protocol.DecodeRoom(p), events.EventRoomCreated)

	case protocol.PktRoomClosed:
		d.handleRoomClosed(p.ReadI32())

	case protocol.PktRoomJoinSuccess:
		d.handleRoomJoin(protocol.DecodeRoom(p))

	case protocol.PktRoomJoinFail:
		d.toast("Failed to join the room.", "error")
		d.eventBus.Emit(context.Background(), events.Event{
			Type:   events.EventRoomJoinFail,
			Source: "dispatch",
		})

	case protocol.PktMatchStarted:
		d.handleMatchStarted(protocol.DecodeRoom(p))

	case protocol.PktMatchScoreUpdated:
		d.session.PatchSlotScore(protocol.DecodeScoreFrame(p))
		d.emitRoomUpdate()

	case protocol.PktHostChanged:
		d.handleHostChanged(p.ReadI32())

	case protocol.PktMatchAllPlayersLoaded:
		d.log.Debug().Msg("All players loaded")

	case protocol.PktMatchPlayerFailed:
		d.log.Debug().Int32("slot", p.ReadI32()).Msg("Player failed")

	case protocol.PktMatchFinished:
		d.gameplay(events.GameplayStop)
		d.eventBus.Emit(context.Background(), events.Event{
			Type:   events.EventMatchFinished,
			Source: "dispatch",
		})

	case protocol.PktMatchSkip:
		d.gameplay(events.GameplaySkip)

	case protocol.PktMatchPlayerSkipped:
		d.log.Debug().Int32("user_id", p.ReadI32()).Msg("Player skipped")

	case protocol.PktMatchAbort:
		d.gameplay(events.GameplayStop)
		d.toast("The match was aborted.", "warning")
		d.eventBus.Emit(context.Background(), events.Event{
			Type:   events.EventMatchAborted,
			Source: "dispatch",
		})

	case protocol.PktChannelJoinSuccess:
		d.session.UpsertChannel(protocol.Channel{Name: p.ReadString()})
		d.emitChannelsChanged()

	case protocol.PktChannelInfo, protocol.PktChannelAutoJoin:
		d.session.UpsertChannel(protocol.DecodeChannel(p))

	case protocol.PktChannelKicked:
		name := p.ReadString()
		d.session.RemoveChannel(name)
		d.toast(fmt.Sprintf("You were removed from %s.", name), "warning")
		d.emitChannelsChanged()

	case protocol.PktChannelInfoEnd:
		d.emitChannelsChanged()

	case protocol.PktPrivileges:
		d.session.SetPrivileges(protocol.Privileges(p.ReadI32()))

	case protocol.PktFriendsList:
		d.handleFriendsList(p)

	case protocol.PktProtocolVersion:
		d.session.SetProtocolVersion(p.ReadI32())

	case protocol.PktMainMenuIcon:
		d.session.SetMainMenuIcon(p.ReadString())

	case protocol.PktUserPresence:
		d.handleUserPresence(protocol.DecodeUserPresence(p))

	case protocol.PktUserPresenceSingle:
		id := p.ReadI32()
		d.users.Login(id)
		d.users.EnqueuePresenceRequest(id)

	case protocol.PktUserPresenceBundle:
		d.handlePresenceBundle(p)

	case protocol.PktRestart:
		d.handleServerRestart(p.ReadI32())

	case protocol.PktRoomPasswordChanged:
		d.handleRoomPasswordChanged(p.ReadString())

	case protocol.PktSilenceEnd:
		d.session.SetSilenceEnd(int64(p.ReadI32()))

	case protocol.PktVersionUpdateForced:
		d.toast("This client version is no longer accepted by the server.", "error")
		d.disconnectAndReset()

	case protocol.PktAccountRestricted:
		d.toast("Your account has been restricted.", "error")

	case protocol.PktProtectVariables, protocol.PktUnprotectVariables,
		protocol.PktForceVariables, protocol.PktResetVariables,
		protocol.PktRequestMapUpload:
		d.handleExtended(p)

	default:
		d.log.Debug().
			Uint16("id", p.ID).
			Str("name", protocol.PacketName(p.ID)).
			Int("len", p.Remaining()).
			Msg("Unhandled packet")
	}

	if p.Truncated() {
		d.log.Warn().
			Uint16("id", p.ID).
			Str("name", protocol.PacketName(p.ID)).
			Msg("Packet payload was truncated")
	}
}

func (d *Dispatcher) handleUserID(value int32) {
	switch d.session.HandleUserID(value) {
	case session.OutcomeLoggedIn:
		d.users.Login(value)
		d.users.EnqueuePresenceRequest(value)
		d.users.EnqueueStatsRequest(value)
	case session.OutcomeDeferredLogout:
		d.send(protocol.BuildLogout())
		d.disconnectAndReset()
	case session.OutcomeFatal:
		d.disconnectAndReset()
	case session.OutcomeFailed, session.OutcomeIgnored:
	}
}

func (d *Dispatcher) handleMessage(m protocol.Message) {
	if m.SenderID != 0 {
		d.users.EnqueuePresenceRequest(m.SenderID)
	}
	d.eventBus.Emit(context.Background(), events.Event{
		Type:    events.EventChatMessage,
		Source:  "dispatch",
		Payload: events.ChatMessagePayload{Message: m},
	})
}

func (d *Dispatcher) handleUserStats(stats protocol.UserStats) {
	toast, ok := d.users.ApplyStats(stats, d.session.IsFriend(stats.UserID))
	if ok {
		d.toast(toast, "info")
	}
}

func (d *Dispatcher) handleUserLogout(id int32) {
	d.users.Logout(id)
	if id != 0 && id == d.session.SpectatedID() {
		d.stopSpectating()
	}
}

func (d *Dispatcher) handleUserPresence(pres protocol.UserPresence) {
	d.users.ApplyPresence(pres)
	d.users.Login(pres.UserID)
}

func (d *Dispatcher) handlePresenceBundle(p *protocol.Packet) {
	n := p.ReadU16()
	for i := uint16(0); i < n && !p.Truncated(); i++ {
		id := p.ReadI32()
		d.users.Login(id)
		d.users.EnqueuePresenceRequest(id)
	}
}

func (d *Dispatcher) handleFriendsList(p *protocol.Packet) {
	n := p.ReadU16()
	ids := make([]int32, 0, n)
	for i := uint16(0); i < n && !p.Truncated(); i++ {
		ids = append(ids, p.ReadI32())
	}
	d.session.SetFriends(ids)
	d.eventBus.Emit(context.Background(), events.Event{
		Type:   events.EventFriendsChanged,
		Source: "dispatch",
	})
}

// handleRoomSnapshot processes a full room value from the lobby stream.
// The snapshot replaces local room state only when it addresses the room
// the local player is in, or a room the local player just created.
func (d *Dispatcher) handleRoomSnapshot(r protocol.Room, event events.EventType) {
	cur, joined := d.session.Room()
	selfID := d.session.UserID().Load()

	switch {
	case joined && r.ID == cur.ID:
		d.session.SetRoom(r, true)
	case !joined && session.IsOnline(selfID) && r.IsHost(selfID):
		// Our own freshly created room arrives as a created/updated
		// snapshot with us as host.
		d.session.SetRoom(r, true)
	}

	d.eventBus.Emit(context.Background(), events.Event{
		Type:    event,
		Source:  "dispatch",
		Payload: events.RoomPayload{Room: r},
	})
}

func (d *Dispatcher) handleRoomClosed(roomID int32) {
	cur, joined := d.session.Room()
	if joined && int32(cur.ID) == roomID {
		d.session.ClearRoom()
	}
	d.eventBus.Emit(context.Background(), events.Event{
		Type:   events.EventRoomClosed,
		Source: "dispatch",
	})
}

// handleRoomJoin installs the joined room. Any active spectating session
// ends and gameplay is reset before the new snapshot lands, so no replay
// frame can act on the new room's state.
func (d *Dispatcher) handleRoomJoin(r protocol.Room) {
	if d.session.SpectatedID() != 0 {
		d.stopSpectating()
	}
	d.gameplay(events.GameplayStop)

	d.session.SetRoom(r, true)
	d.eventBus.Emit(context.Background(), events.Event{
		Type:    events.EventRoomJoined,
		Source:  "dispatch",
		Payload: events.RoomPayload{Room: r},
	})
}

func (d *Dispatcher) handleMatchStarted(r protocol.Room) {
	d.session.SetRoom(r, true)
	d.eventBus.Emit(context.Background(), events.Event{
		Type:    events.EventMatchStarted,
		Source:  "dispatch",
		Payload: events.RoomPayload{Room: r},
	})
}

func (d *Dispatcher) handleHostChanged(hostID int32) {
	cur, joined := d.session.Room()
	if !joined {
		return
	}
	cur.HostID = hostID
	d.session.SetRoom(cur, true)
	if hostID == d.session.UserID().Load() {
		d.toast("You are now the host.", "info")
	}
	d.emitRoomUpdate()
}

func (d *Dispatcher) handleRoomPasswordChanged(password string) {
	cur, joined := d.session.Room()
	if !joined {
		return
	}
	cur.Password = password
	d.session.SetRoom(cur, true)
	d.emitRoomUpdate()
}

func (d *Dispatcher) handleServerRestart(delayMS int32) {
	d.log.Warn().Int32("delay_ms", delayMS).Msg("Server requested a restart")
	d.disconnectAndReset()
	d.eventBus.Emit(context.Background(), events.Event{
		Type:    events.EventServerRestart,
		Source:  "dispatch",
		Payload: events.ServerRestartPayload{DelayMS: delayMS},
	})
}

// handleExtended processes the variable-control and map-upload packets
// that only exist on the extended protocol. On a vanilla connection
// their arrival means the server and client disagree about capabilities,
// so the packet is dropped unread.
func (d *Dispatcher) handleExtended(p *protocol.Packet) {
	if !d.session.ExtendedProtocol() {
		d.log.Warn().
			Str("name", protocol.PacketName(p.ID)).
			Msg("Extended packet on a vanilla connection, dropping")
		return
	}

	switch p.ID {
	case protocol.PktProtectVariables:
		d.handleVariableProtection(p, true)
	case protocol.PktUnprotectVariables:
		d.handleVariableProtection(p, false)
	case protocol.PktForceVariables:
		d.handleForceVariables(p)
	case protocol.PktResetVariables:
		d.handleResetVariables(p)
	case protocol.PktRequestMapUpload:
		d.handleMapUploadRequest(p.ReadHashHex())
	}
}

// handleVariableProtection applies one protect or unprotect list: a u16
// count followed by that many variable names. Unknown names are logged
// and skipped.
func (d *Dispatcher) handleVariableProtection(p *protocol.Packet, protect bool) {
	vars := d.session.Variables()
	n := p.ReadU16()
	for i := uint16(0); i < n && !p.Truncated(); i++ {
		name := p.ReadString()
		var ok bool
		if protect {
			ok = vars.Protect(name)
		} else {
			ok = vars.Unprotect(name)
		}
		if !ok {
			d.log.Warn().Str("variable", name).Bool("protect", protect).
				Msg("Server addressed an unknown variable")
		}
	}
}

// handleForceVariables applies server-forced values: a u16 count
// followed by that many name/value string pairs.
func (d *Dispatcher) handleForceVariables(p *protocol.Packet) {
	vars := d.session.Variables()
	n := p.ReadU16()
	for i := uint16(0); i < n && !p.Truncated(); i++ {
		name := p.ReadString()
		value := p.ReadString()
		if !vars.Force(name, value) {
			d.log.Warn().Str("variable", name).Str("value", value).
				Msg("Server forced an unknown variable")
		}
	}
}

// handleResetVariables drops server-forced values: a u16 count followed
// by that many variable names.
func (d *Dispatcher) handleResetVariables(p *protocol.Packet) {
	vars := d.session.Variables()
	n := p.ReadU16()
	for i := uint16(0); i < n && !p.Truncated(); i++ {
		name := p.ReadString()
		if !vars.ClearForced(name) {
			d.log.Warn().Str("variable", name).Msg("Server reset an unknown variable")
		}
	}
}

// handleMapUploadRequest hands a server request for a missing map file
// to the upload hook. The upload itself runs off the dispatch goroutine.
func (d *Dispatcher) handleMapUploadRequest(md5 string) {
	if md5 == "" {
		d.log.Warn().Msg("Map upload request without a hash")
		return
	}
	if d.uploadMap == nil {
		d.log.Debug().Str("md5", md5).Msg("No map upload handler installed")
		return
	}
	d.uploadMap(md5)
}

// stopSpectating tears down the spectating session and tells the server.
func (d *Dispatcher) stopSpectating() {
	d.send(protocol.BuildStopSpectating())
	d.session.SetSpectating(0)
	d.stream.Stop()
	d.gameplay(events.GameplayStop)
}

func (d *Dispatcher) disconnectAndReset() {
	d.disconnect()
	d.session.Reset()
	d.users.LogoutAll()
	d.stream.Stop()
}

func (d *Dispatcher) gameplay(action events.GameplayAction) {
	d.eventBus.Emit(context.Background(), events.Event{
		Type:    events.EventGameplayControl,
		Source:  "dispatch",
		Payload: events.GameplayControlPayload{Action: action},
	})
}

func (d *Dispatcher) toast(message, level string) {
	d.eventBus.Emit(context.Background(), events.Event{
		Type:    events.EventToast,
		Source:  "dispatch",
		Payload: events.ToastPayload{Message: message, Level: level},
	})
}

func (d *Dispatcher) emitRoomUpdate() {
	cur, joined := d.session.Room()
	if !joined {
		return
	}
	d.eventBus.Emit(context.Background(), events.Event{
		Type:    events.EventRoomUpdated,
		Source:  "dispatch",
		Payload: events.RoomPayload{Room: cur},
	})
}

func (d *Dispatcher) emitChannelsChanged() {
	d.eventBus.Emit(context.Background(), events.Event{
		Type:   events.EventChannelsChanged,
		Source: "dispatch",
	})
}
