package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/voxcord/voxcord/internal/core"
	"github.com/voxcord/voxcord/internal/domain"
	"github.com/voxcord/voxcord/internal/storage"
)

// fakeConn captures frames so the state core can be exercised without a
// live transport.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
	full   bool
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFakeClosed
	}
	if f.full {
		return ErrFakeFull
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

var (
	ErrFakeClosed = errors.New("fake conn closed")
	ErrFakeFull   = errors.New("fake conn full")
)

// decoded returns every captured frame of the given type, decoded loosely.
func (f *fakeConn) decoded(t *testing.T, typ string) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, fr := range f.frames {
		var m map[string]any
		if err := json.Unmarshal(fr, &m); err != nil {
			t.Fatalf("captured frame is not JSON: %v", err)
		}
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	f.frames = nil
	f.mu.Unlock()
}

func newTestHub() *Hub {
	return NewHub(storage.NewMemoryStore())
}

func connect(h *Hub, connID core.ConnectionID, user domain.User) *fakeConn {
	fc := &fakeConn{}
	h.Connect(connID, user, fc)
	return fc
}

func usersField(t *testing.T, ev map[string]any) []any {
	t.Helper()
	users, ok := ev["users"].([]any)
	if !ok {
		t.Fatalf("event has no users array: %v", ev)
	}
	return users
}

func TestConnectBroadcastsOnlineStatus(t *testing.T) {
	h := newTestHub()
	a := connect(h, "ca", userA)
	b := connect(h, "cb", userB)

	// Both the existing connection and the newcomer hear about B.
	for name, fc := range map[string]*fakeConn{"a": a, "b": b} {
		evs := fc.decoded(t, EvUserStatus)
		found := false
		for _, ev := range evs {
			if ev["userId"] == "ub" && ev["status"] == "online" {
				found = true
			}
		}
		if !found {
			t.Fatalf("%s missed user:status online for bob: %v", name, evs)
		}
	}
}

func TestDisconnectBroadcastsOfflineAndIsIdempotent(t *testing.T) {
	h := newTestHub()
	a := connect(h, "ca", userA)
	connect(h, "cb", userB)
	a.reset()

	h.Disconnect("cb")
	h.Disconnect("cb")

	evs := a.decoded(t, EvUserStatus)
	if len(evs) != 1 || evs[0]["userId"] != "ub" || evs[0]["status"] != "offline" {
		t.Fatalf("offline events = %v; want exactly one for bob", evs)
	}
}

// Two users join the same voice channel and one disconnects abruptly;
// every notification lands on the right recipients, end to end against the
// state core.
func TestVoiceJoinLeaveScenario(t *testing.T) {
	h := newTestHub()
	a := connect(h, "ca", userA)
	b := connect(h, "cb", userB)

	h.JoinVoice("ca", "room1")
	if evs := a.decoded(t, EvVoiceUsers); len(evs) != 1 || len(usersField(t, evs[0])) != 0 {
		t.Fatalf("alice voice:users = %v; want one event with empty list", evs)
	}

	a.reset()
	b.reset()
	h.JoinVoice("cb", "room1")

	evs := b.decoded(t, EvVoiceUsers)
	if len(evs) != 1 {
		t.Fatalf("bob voice:users events = %v", evs)
	}
	users := usersField(t, evs[0])
	if len(users) != 1 || users[0].(map[string]any)["userId"] != "ua" {
		t.Fatalf("bob's prior member list = %v; want just alice", users)
	}

	joined := a.decoded(t, EvVoiceUserJoined)
	if len(joined) != 1 || joined[0]["userId"] != "ub" {
		t.Fatalf("alice voice:user-joined = %v; want bob", joined)
	}
	if own := b.decoded(t, EvVoiceUserJoined); len(own) != 0 {
		t.Fatalf("joiner was told about itself: %v", own)
	}

	for name, fc := range map[string]*fakeConn{"a": a, "b": b} {
		ups := fc.decoded(t, EvVoiceChannelUpdate)
		if len(ups) != 1 || len(usersField(t, ups[0])) != 2 {
			t.Fatalf("%s channel-update = %v; want one with both members", name, ups)
		}
	}

	a.reset()
	h.Disconnect("cb")

	left := a.decoded(t, EvVoiceUserLeft)
	if len(left) != 1 || left[0]["userId"] != "ub" || left[0]["channelId"] != "room1" {
		t.Fatalf("alice voice:user-left = %v; want bob leaving room1", left)
	}
	ups := a.decoded(t, EvVoiceChannelUpdate)
	if len(ups) != 1 || len(usersField(t, ups[0])) != 1 {
		t.Fatalf("alice channel-update after leave = %v; want one listing just alice", ups)
	}
}

// Policy under test: the emptied channel emits one last aggregate update
// with an empty member list before vanishing from snapshots.
func TestLeaveVoiceLastMemberEmptyUpdate(t *testing.T) {
	h := newTestHub()
	a := connect(h, "ca", userA)
	b := connect(h, "cb", userB)
	h.JoinVoice("cb", "vc1")
	a.reset()
	b.reset()

	h.LeaveVoice("cb")

	ups := a.decoded(t, EvVoiceChannelUpdate)
	if len(ups) != 1 || len(usersField(t, ups[0])) != 0 {
		t.Fatalf("final channel-update = %v; want one with empty users", ups)
	}
	if members := h.VoiceMembers("vc1"); len(members) != 0 {
		t.Fatalf("emptied channel still in snapshot: %v", members)
	}
}

func TestSwitchVoiceChannelEmitsLeaveThenJoin(t *testing.T) {
	h := newTestHub()
	a := connect(h, "ca", userA)
	connect(h, "cb", userB)
	h.JoinVoice("ca", "vc1")
	h.JoinVoice("cb", "vc2")
	a.reset()

	h.JoinVoice("ca", "vc2")

	left := a.decoded(t, EvVoiceUserLeft)
	if len(left) != 1 || left[0]["channelId"] != "vc1" {
		t.Fatalf("switch leave = %v; want leave of vc1", left)
	}
	if members := h.VoiceMembers("vc1"); len(members) != 0 {
		t.Fatalf("vc1 still occupied after switch: %v", members)
	}
	if members := h.VoiceMembers("vc2"); len(members) != 2 {
		t.Fatalf("vc2 members = %v; want both", members)
	}
}

func TestMessageFanoutScenario(t *testing.T) {
	h := newTestHub()
	x := connect(h, "cx", userA)
	y := connect(h, "cy", userB)
	z := connect(h, "cz", userC)

	h.JoinRoom("cx", "general")
	h.JoinRoom("cy", "general")

	h.SendMessage(context.Background(), "cx", "general", "hi")

	xm := x.decoded(t, EvMessageNew)
	ym := y.decoded(t, EvMessageNew)
	if len(xm) != 1 || len(ym) != 1 {
		t.Fatalf("message:new counts = %d/%d; want 1/1", len(xm), len(ym))
	}
	if xm[0]["id"] == "" || xm[0]["id"] != ym[0]["id"] {
		t.Fatalf("ids diverge: %v vs %v", xm[0]["id"], ym[0]["id"])
	}
	if xm[0]["content"] != "hi" || xm[0]["createdAt"] == nil {
		t.Fatalf("message payload = %v", xm[0])
	}
	if xm[0]["username"] != "alice" {
		t.Fatalf("sender username = %v; want alice", xm[0]["username"])
	}
	if zm := z.decoded(t, EvMessageNew); len(zm) != 0 {
		t.Fatalf("non-subscriber received the message: %v", zm)
	}
}

func TestEmptyMessageDropped(t *testing.T) {
	h := newTestHub()
	x := connect(h, "cx", userA)
	h.JoinRoom("cx", "general")

	h.SendMessage(context.Background(), "cx", "general", "   \n\t")

	if evs := x.decoded(t, EvMessageNew); len(evs) != 0 {
		t.Fatalf("whitespace-only message was fanned out: %v", evs)
	}
}

func TestTypingNeverEchoesToSender(t *testing.T) {
	h := newTestHub()
	x := connect(h, "cx", userA)
	y := connect(h, "cy", userB)
	h.JoinRoom("cx", "general")
	h.JoinRoom("cy", "general")

	h.Typing("cx", "general", true)
	h.Typing("cx", "general", false)

	if evs := x.decoded(t, EvTypingStart); len(evs) != 0 {
		t.Fatalf("typing echoed to sender: %v", evs)
	}
	starts := y.decoded(t, EvTypingStart)
	if len(starts) != 1 || starts[0]["username"] != "alice" {
		t.Fatalf("typing:start = %v", starts)
	}
	stops := y.decoded(t, EvTypingStop)
	if len(stops) != 1 || stops[0]["userId"] != "ua" {
		t.Fatalf("typing:stop = %v", stops)
	}
}

func TestMuteEventReachesWholeChannel(t *testing.T) {
	h := newTestHub()
	a := connect(h, "ca", userA)
	b := connect(h, "cb", userB)
	h.JoinVoice("ca", "vc1")
	h.JoinVoice("cb", "vc1")
	a.reset()
	b.reset()

	h.SetMute("ca", true)

	for name, fc := range map[string]*fakeConn{"initiator": a, "peer": b} {
		evs := fc.decoded(t, EvVoiceUserMute)
		if len(evs) != 1 || evs[0]["userId"] != "ua" || evs[0]["muted"] != true {
			t.Fatalf("%s voice:user-mute = %v", name, evs)
		}
	}
}

func TestDeafenEventCarriesForcedMute(t *testing.T) {
	h := newTestHub()
	a := connect(h, "ca", userA)
	h.JoinVoice("ca", "vc1")
	a.reset()

	h.SetDeafen("ca", true)
	h.SetDeafen("ca", false)

	evs := a.decoded(t, EvVoiceUserDeafen)
	if len(evs) != 2 {
		t.Fatalf("voice:user-deafen count = %d; want 2", len(evs))
	}
	if evs[0]["deafened"] != true || evs[0]["muted"] != true {
		t.Fatalf("deafen event = %v; want deafened+muted", evs[0])
	}
	if evs[1]["deafened"] != false || evs[1]["muted"] != true {
		t.Fatalf("undeafen event = %v; want muted retained", evs[1])
	}
}

func TestScreenShareNotifiesOthersOnly(t *testing.T) {
	h := newTestHub()
	a := connect(h, "ca", userA)
	b := connect(h, "cb", userB)
	h.JoinVoice("ca", "vc1")
	h.JoinVoice("cb", "vc1")
	a.reset()
	b.reset()

	h.SetStreaming("ca", "vc1", true)
	h.SetStreaming("ca", "vc1", false)

	if evs := a.decoded(t, EvScreenStarted); len(evs) != 0 {
		t.Fatalf("initiator received screen:started: %v", evs)
	}
	started := b.decoded(t, EvScreenStarted)
	if len(started) != 1 || started[0]["userId"] != "ua" || started[0]["username"] != "alice" {
		t.Fatalf("screen:started = %v", started)
	}
	stopped := b.decoded(t, EvScreenStopped)
	if len(stopped) != 1 || stopped[0]["userId"] != "ua" {
		t.Fatalf("screen:stopped = %v", stopped)
	}
}

func TestRelayDeliversExactlyOnce(t *testing.T) {
	h := newTestHub()
	connect(h, "ca", userA)
	b := connect(h, "cb", userB)
	b.reset()

	payload := json.RawMessage(`{"sdp":"v=0 fake offer"}`)
	h.Relay(EvWebRTCOffer, "ca", userB.ID, payload)

	evs := b.decoded(t, EvWebRTCOffer)
	if len(evs) != 1 {
		t.Fatalf("webrtc:offer count = %d; want 1", len(evs))
	}
	got, _ := json.Marshal(evs[0]["payload"])
	if string(got) != `{"sdp":"v=0 fake offer"}` {
		t.Fatalf("payload mangled in relay: %s", got)
	}
	if evs[0]["fromUserId"] != "ua" || evs[0]["fromUsername"] != "alice" {
		t.Fatalf("offer sender tags = %v", evs[0])
	}
}

func TestRelayToOfflineTargetDropsSilently(t *testing.T) {
	h := newTestHub()
	a := connect(h, "ca", userA)
	a.reset()

	h.Relay(EvWebRTCOffer, "ca", "nobody", json.RawMessage(`{}`))

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.frames) != 0 {
		t.Fatalf("relay to offline target produced frames: %d", len(a.frames))
	}
}

func TestRelayAnswerOmitsUsername(t *testing.T) {
	h := newTestHub()
	connect(h, "ca", userA)
	b := connect(h, "cb", userB)
	b.reset()

	h.Relay(EvWebRTCAnswer, "ca", userB.ID, json.RawMessage(`{"sdp":"v=0"}`))

	evs := b.decoded(t, EvWebRTCAnswer)
	if len(evs) != 1 || evs[0]["fromUserId"] != "ua" {
		t.Fatalf("webrtc:answer = %v", evs)
	}
	if _, present := evs[0]["fromUsername"]; present {
		t.Fatalf("answer leaked fromUsername: %v", evs[0])
	}
}

// Disconnect must unwind everything at once: registry, rooms, voice. A
// replayed event for the freed id afterwards finds no state.
func TestDisconnectPurgesAllState(t *testing.T) {
	h := newTestHub()
	a := connect(h, "ca", userA)
	b := connect(h, "cb", userB)
	h.JoinRoom("cb", "general")
	h.JoinVoice("cb", "vc1")
	a.reset()

	h.Disconnect("cb")

	if members := h.VoiceMembers("vc1"); len(members) != 0 {
		t.Fatalf("voice membership survived disconnect: %v", members)
	}
	if subs := h.rooms.Subscribers("general"); subs != nil {
		t.Fatalf("room subscription survived disconnect: %v", subs)
	}
	if _, ok := h.reg.LookupUser(userB.ID); ok {
		t.Fatal("registry entry survived disconnect")
	}

	left := a.decoded(t, EvVoiceUserLeft)
	if len(left) != 1 || left[0]["userId"] != "ub" {
		t.Fatalf("voice:user-left on disconnect = %v", left)
	}

	// Late events for the dead id are no-ops, not panics.
	h.LeaveVoice("cb")
	h.SetMute("cb", true)
	h.SendMessage(context.Background(), "cb", "general", "ghost")
	if evs := b.decoded(t, EvMessageNew); len(evs) != 0 {
		t.Fatalf("dead connection produced fan-out: %v", evs)
	}
}

// A clogged recipient is skipped; the rest of the fan-out still lands.
func TestFanoutSkipsFailedRecipient(t *testing.T) {
	h := newTestHub()
	x := connect(h, "cx", userA)
	y := connect(h, "cy", userB)
	h.JoinRoom("cx", "general")
	h.JoinRoom("cy", "general")
	x.full = true

	h.SendMessage(context.Background(), "cy", "general", "still here")

	if evs := y.decoded(t, EvMessageNew); len(evs) != 1 {
		t.Fatalf("healthy recipient missed the message: %v", evs)
	}
}
