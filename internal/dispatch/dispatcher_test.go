package dispatch

import (
	"testing"

	"github.com/overture-project/overture/internal/config"
	"github.com/overture-project/overture/internal/events"
	"github.com/overture-project/overture/internal/protocol"
	"github.com/overture-project/overture/internal/session"
	"github.com/overture-project/overture/internal/spectate"
	"github.com/overture-project/overture/internal/users"
)

type testHarness struct {
	dispatcher *Dispatcher
	session    *session.Session
	users      *users.Directory
	stream     *spectate.Stream

	sent         [][]byte
	disconnected int
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.ServerData.Username = "testuser"
	cfg.ServerData.PasswordMD5 = "0123456789abcdef0123456789abcdef"
	cfg.ServerData.DataDirectory = t.TempDir()

	bus := events.NewEventBus()
	t.Cleanup(bus.Stop)

	h := &testHarness{
		session: session.New(cfg, bus),
		users:   users.NewDirectory(bus),
		stream:  spectate.NewStream(bus),
	}
	h.dispatcher = New(bus, h.session, h.users, h.stream,
		func(data []byte) { h.sent = append(h.sent, data) },
		func() { h.disconnected++ },
	)
	return h
}

// login drives the session through a successful login handshake.
func (h *testHarness) login(t *testing.T, userID int32) {
	t.Helper()
	if _, err := h.session.BeginLogin(); err != nil {
		t.Fatalf("BeginLogin: %v", err)
	}
	h.session.SetToken("test-token")
	h.dispatcher.Handle(packet(protocol.PktUserID, protocol.NewBuilder().WriteI32(userID)))
	if h.session.Status() != events.StatusLoggedIn {
		t.Fatalf("status after login = %v", h.session.Status())
	}
}

func packet(id uint16, b *protocol.Builder) *protocol.Packet {
	return protocol.NewPacket(id, b.Build())
}

func encodeRoom(r *protocol.Room) *protocol.Builder {
	b := protocol.NewBuilder()
	r.Encode(b)
	return b
}

func TestLoginRoomLifecycle(t *testing.T) {
	h := newTestHarness(t)
	h.login(t, 12345)

	// The server announces a room we created: we are its host.
	room := protocol.Room{ID: 7, HostID: 12345, Name: "overture room"}
	room.Slots[0].Status = protocol.SlotStatusNotReady
	room.Slots[0].PlayerID = 12345
	h.dispatcher.Handle(packet(protocol.PktRoomCreated, encodeRoom(&room)))

	got, joined := h.session.Room()
	if !joined || got.ID != 7 {
		t.Fatalf("room not installed: id=%d joined=%v", got.ID, joined)
	}
	if !h.session.IsHost() {
		t.Fatal("local player not recognized as host")
	}

	h.dispatcher.Handle(packet(protocol.PktRoomClosed, protocol.NewBuilder().WriteI32(7)))
	if _, joined := h.session.Room(); joined {
		t.Fatal("room survived close")
	}
}

func TestLoginFatalWithoutToken(t *testing.T) {
	h := newTestHarness(t)
	if _, err := h.session.BeginLogin(); err != nil {
		t.Fatalf("BeginLogin: %v", err)
	}

	h.dispatcher.Handle(packet(protocol.PktUserID, protocol.NewBuilder().WriteI32(5000)))

	if h.disconnected != 1 {
		t.Fatalf("disconnects = %d, want 1", h.disconnected)
	}
	if h.session.Status() != events.StatusLoggedOut {
		t.Fatalf("status = %v", h.session.Status())
	}
}

func TestDeferredLogoutSendsLogoutPacket(t *testing.T) {
	h := newTestHarness(t)
	if _, err := h.session.BeginLogin(); err != nil {
		t.Fatalf("BeginLogin: %v", err)
	}
	h.session.SetToken("tok")
	h.session.RequestLogout()

	h.dispatcher.Handle(packet(protocol.PktUserID, protocol.NewBuilder().WriteI32(42)))

	if len(h.sent) != 1 {
		t.Fatalf("sent %d packets, want the logout notice", len(h.sent))
	}
	if h.disconnected != 1 {
		t.Fatalf("disconnects = %d, want 1", h.disconnected)
	}
	if h.session.Status() != events.StatusLoggedOut {
		t.Fatalf("status = %v", h.session.Status())
	}
}

func TestLobbyRoomsDoNotBecomeOurs(t *testing.T) {
	h := newTestHarness(t)
	h.login(t, 12345)

	// A lobby listing for someone else's room must not install itself.
	other := protocol.Room{ID: 3, HostID: 999}
	h.dispatcher.Handle(packet(protocol.PktRoomCreated, encodeRoom(&other)))

	if _, joined := h.session.Room(); joined {
		t.Fatal("foreign room snapshot installed as joined")
	}
}

func TestRoomJoinStopsSpectating(t *testing.T) {
	h := newTestHarness(t)
	h.login(t, 12345)

	h.session.SetSpectating(777)
	h.stream.Start(777)
	h.sent = nil

	room := protocol.Room{ID: 4, HostID: 999}
	room.Slots[1].Status = protocol.SlotStatusNotReady
	room.Slots[1].PlayerID = 12345
	h.dispatcher.Handle(packet(protocol.PktRoomJoinSuccess, encodeRoom(&room)))

	if h.stream.Active() || h.session.SpectatedID() != 0 {
		t.Fatal("spectating survived a room join")
	}
	if len(h.sent) == 0 {
		t.Fatal("stop-spectating notice not sent")
	}
	if _, joined := h.session.Room(); !joined {
		t.Fatal("room not installed after join")
	}
}

func TestScoreUpdatePatchesOneSlot(t *testing.T) {
	h := newTestHarness(t)
	h.login(t, 12345)

	room := protocol.Room{ID: 7, HostID: 12345}
	h.dispatcher.Handle(packet(protocol.PktRoomCreated, encodeRoom(&room)))

	frame := protocol.ScoreFrame{SlotID: 2, TotalScore: 9000}
	b := protocol.NewBuilder()
	frame.Encode(b)
	h.dispatcher.Handle(packet(protocol.PktMatchScoreUpdated, b))

	got, _ := h.session.Room()
	if got.Slots[2].LastScore == nil || got.Slots[2].LastScore.TotalScore != 9000 {
		t.Fatal("slot 2 score not patched")
	}
	if got.Slots[0].LastScore != nil {
		t.Fatal("score update leaked into other slots")
	}
	// The rest of the snapshot is untouched.
	if got.ID != 7 || got.HostID != 12345 {
		t.Fatal("score update rewrote the room snapshot")
	}
}

func TestLogoutOfSpectatedUserStopsSpectating(t *testing.T) {
	h := newTestHarness(t)
	h.login(t, 12345)

	h.session.SetSpectating(777)
	h.stream.Start(777)
	h.users.Login(777)

	h.dispatcher.Handle(packet(protocol.PktUserLogout, protocol.NewBuilder().WriteI32(777)))

	if h.stream.Active() || h.session.SpectatedID() != 0 {
		t.Fatal("spectating survived the target's logout")
	}
	if h.users.IsOnline(777) {
		t.Fatal("target still online")
	}
}

func TestFriendsListInstalled(t *testing.T) {
	h := newTestHarness(t)
	h.login(t, 12345)

	b := protocol.NewBuilder().WriteU16(2).WriteI32(10).WriteI32(20)
	h.dispatcher.Handle(packet(protocol.PktFriendsList, b))

	if !h.session.IsFriend(10) || !h.session.IsFriend(20) || h.session.IsFriend(30) {
		t.Fatal("friends list not installed correctly")
	}
}

func TestPresenceBundleMarksUsersOnline(t *testing.T) {
	h := newTestHarness(t)
	h.login(t, 12345)

	b := protocol.NewBuilder().WriteU16(3).WriteI32(1).WriteI32(2).WriteI32(3)
	h.dispatcher.Handle(packet(protocol.PktUserPresenceBundle, b))

	for _, id := range []int32{1, 2, 3} {
		if !h.users.IsOnline(id) {
			t.Fatalf("user %d not online after presence bundle", id)
		}
	}
	// All three land in the presence request batch.
	if raw := h.users.FlushPresenceBatch(); raw == nil {
		t.Fatal("presence bundle queued no requests")
	}
}

func TestHostChangeUpdatesRoom(t *testing.T) {
	h := newTestHarness(t)
	h.login(t, 12345)

	room := protocol.Room{ID: 7, HostID: 999}
	h.session.SetRoom(room, true)

	h.dispatcher.Handle(packet(protocol.PktHostChanged, protocol.NewBuilder().WriteI32(12345)))

	if !h.session.IsHost() {
		t.Fatal("host transfer not applied")
	}
}

func TestServerRestartResetsEverything(t *testing.T) {
	h := newTestHarness(t)
	h.login(t, 12345)
	h.users.Login(555)

	h.dispatcher.Handle(packet(protocol.PktRestart, protocol.NewBuilder().WriteI32(2000)))

	if h.disconnected != 1 {
		t.Fatalf("disconnects = %d, want 1", h.disconnected)
	}
	if h.session.Status() != events.StatusLoggedOut {
		t.Fatalf("status = %v", h.session.Status())
	}
	if cached, online := h.users.Count(); cached != 0 || online != 0 {
		t.Fatal("user directory survived restart")
	}
}

func TestSideChannelHandlerWins(t *testing.T) {
	h := newTestHarness(t)

	const requestKind = 1005
	var got *protocol.Packet
	h.dispatcher.RegisterSideChannel(requestKind, func(p *protocol.Packet) { got = p })

	p := protocol.NewPacket(requestKind, nil)
	p.Extra = "context-value"
	h.dispatcher.Handle(p)

	if got == nil || got.Extra != "context-value" {
		t.Fatal("side-channel handler not invoked with the request context")
	}
}

func TestUnknownPacketDropped(t *testing.T) {
	h := newTestHarness(t)
	// Must not panic or mutate state.
	h.dispatcher.Handle(protocol.NewPacket(60000, []byte{1, 2, 3}))
	if h.session.Status() != events.StatusLoggedOut {
		t.Fatal("unknown packet changed session state")
	}
}

// negotiateExtended drives the capability handshake.
func (h *testHarness) negotiateExtended(t *testing.T) {
	t.Helper()
	b := protocol.NewBuilder().WriteI32(protocol.ProtocolVersionExtended)
	h.dispatcher.Handle(packet(protocol.PktProtocolVersion, b))
	if !h.session.ExtendedProtocol() {
		t.Fatal("extended protocol not negotiated")
	}
}

func TestExtendedHandshakeAppliesDefaultOverrides(t *testing.T) {
	h := newTestHarness(t)
	h.login(t, 12345)
	h.negotiateExtended(t)

	vars := h.session.Variables()
	if val, _ := vars.Value("sv_allow_speed_override"); val != "1" {
		t.Fatalf("sv_allow_speed_override = %q", val)
	}
	if vars.Protected("mod_timewarp") {
		t.Fatal("mod variables still protected after the extended handshake")
	}
}

func TestExtendedVariableControlPackets(t *testing.T) {
	h := newTestHarness(t)
	h.login(t, 12345)
	h.negotiateExtended(t)
	vars := h.session.Variables()

	// Force two values; the unknown name is skipped, not created.
	b := protocol.NewBuilder().WriteU16(2).
		WriteString("mod_timewarp").WriteString("1.2").
		WriteString("mod_unheard_of").WriteString("9")
	h.dispatcher.Handle(packet(protocol.PktForceVariables, b))
	if val, _ := vars.Value("mod_timewarp"); val != "1.2" {
		t.Fatalf("mod_timewarp = %q", val)
	}
	if _, ok := vars.Value("mod_unheard_of"); ok {
		t.Fatal("unknown variable materialized")
	}

	b = protocol.NewBuilder().WriteU16(1).WriteString("ar_override")
	h.dispatcher.Handle(packet(protocol.PktProtectVariables, b))
	if !vars.Protected("ar_override") {
		t.Fatal("protect list not applied")
	}

	b = protocol.NewBuilder().WriteU16(1).WriteString("ar_override")
	h.dispatcher.Handle(packet(protocol.PktUnprotectVariables, b))
	if vars.Protected("ar_override") {
		t.Fatal("unprotect list not applied")
	}

	b = protocol.NewBuilder().WriteU16(1).WriteString("mod_timewarp")
	h.dispatcher.Handle(packet(protocol.PktResetVariables, b))
	if val, _ := vars.Value("mod_timewarp"); val != "0" {
		t.Fatalf("mod_timewarp = %q after reset", val)
	}
}

func TestExtendedPacketsDroppedOnVanilla(t *testing.T) {
	h := newTestHarness(t)
	h.login(t, 12345)

	var uploads []string
	h.dispatcher.SetMapUploadHook(func(md5 string) { uploads = append(uploads, md5) })

	b := protocol.NewBuilder().WriteU16(1).
		WriteString("mod_timewarp").WriteString("1")
	h.dispatcher.Handle(packet(protocol.PktForceVariables, b))
	if val, _ := h.session.Variables().Value("mod_timewarp"); val != "0" {
		t.Fatal("forced value applied on a vanilla connection")
	}

	hash := "d41d8cd98f00b204e9800998ecf8427e"
	h.dispatcher.Handle(packet(protocol.PktRequestMapUpload, protocol.NewBuilder().WriteString(hash)))
	if len(uploads) != 0 {
		t.Fatal("map upload requested on a vanilla connection")
	}
}

func TestMapUploadRequestInvokesHook(t *testing.T) {
	h := newTestHarness(t)
	h.login(t, 12345)
	h.negotiateExtended(t)

	var got []string
	h.dispatcher.SetMapUploadHook(func(md5 string) { got = append(got, md5) })

	hash := "d41d8cd98f00b204e9800998ecf8427e"
	h.dispatcher.Handle(packet(protocol.PktRequestMapUpload, protocol.NewBuilder().WriteString(hash)))
	if len(got) != 1 || got[0] != hash {
		t.Fatalf("upload requests = %v", got)
	}

	// A request without a hash is dropped.
	h.dispatcher.Handle(packet(protocol.PktRequestMapUpload, protocol.NewBuilder().WriteString("")))
	if len(got) != 1 {
		t.Fatal("hashless upload request reached the hook")
	}
}

func TestSpectateFramesReachStream(t *testing.T) {
	h := newTestHarness(t)
	h.login(t, 12345)
	h.session.SetSpectating(777)
	h.stream.Start(777)

	b := protocol.NewBuilder()
	b.WriteI32(0)  // extra
	b.WriteU16(2)  // frame count
	for _, ts := range []int32{200, 100} {
		b.WriteU8(0).WriteU8(0).WriteF32(0).WriteF32(0).WriteI32(ts)
	}
	b.WriteU8(uint8(protocol.ReplayActionNone))
	(&protocol.ScoreFrame{}).Encode(b)
	b.WriteU16(5) // sequence

	h.dispatcher.Handle(packet(protocol.PktSpectateFrames, b))

	frames := h.stream.Frames()
	if len(frames) != 2 || frames[0].Time != 100 || frames[1].Time != 200 {
		t.Fatalf("frames = %+v", frames)
	}
	if h.stream.LastSequence() != 5 {
		t.Fatalf("sequence = %d, want 5", h.stream.LastSequence())
	}
}
