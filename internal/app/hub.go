// Package app holds the in-memory realtime state: who is connected, which
// rooms they subscribe to, which voice channel they occupy. The Hub is the
// single sequencer in front of the three tables; nothing else reads or
// writes them.
package app

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/voxcord/voxcord/internal/core"
	"github.com/voxcord/voxcord/internal/domain"
)

// Hub serializes every state mutation behind one mutex, so two client
// events can never interleave mid-mutation. Delivery is fire-and-forget
// through SignalConnection.TrySend: a vanished or clogged transport is
// skipped, never waited on, so no cross-connection deadlock is possible.
type Hub struct {
	mu    sync.Mutex
	reg   *Registry
	rooms *Rooms
	voice *VoiceTable
	store core.MessageStore
}

func NewHub(store core.MessageStore) *Hub {
	return &Hub{
		reg:   NewRegistry(),
		rooms: NewRooms(),
		voice: NewVoiceTable(),
		store: store,
	}
}

// Connect registers the authenticated connection and announces the user
// online to everyone, the new connection included.
func (h *Hub) Connect(connID core.ConnectionID, user domain.User, conn core.SignalConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.reg.Register(connID, user, conn)
	log.Info().Str("module", "app.hub").Str("conn", string(connID)).Str("user", string(user.ID)).Int("online", h.reg.Len()).Msg("connection registered")

	h.broadcastAll(UserStatus{Type: EvUserStatus, UserID: user.ID, Status: "online"})
}

// Disconnect purges every trace of the connection in one critical section:
// registry entry, room subscriptions, voice membership. By the time the
// lock is released no orphaned relation survives, so a later event reusing
// the id cannot observe stale state. Idempotent.
func (h *Hub) Disconnect(connID core.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID, ok := h.reg.Deregister(connID)
	if !ok {
		return
	}
	h.rooms.LeaveAll(connID)
	lv, inVoice := h.voice.Leave(connID)

	log.Info().Str("module", "app.hub").Str("conn", string(connID)).Str("user", string(userID)).Msg("connection purged")

	h.broadcastAll(UserStatus{Type: EvUserStatus, UserID: userID, Status: "offline"})
	if inVoice {
		h.emitVoiceLeave(lv)
	}
}

// JoinRoom subscribes the connection to a text room. No broadcast: only
// voice membership is globally visible.
func (h *Hub) JoinRoom(connID core.ConnectionID, roomID domain.ChannelID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.reg.User(connID); !ok {
		log.Warn().Str("module", "app.hub").Str("conn", string(connID)).Msg("join from unknown connection")
		return
	}
	h.rooms.Join(roomID, connID)
}

func (h *Hub) LeaveRoom(connID core.ConnectionID, roomID domain.ChannelID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rooms.Leave(roomID, connID)
}

// SendMessage persists the message through the store collaborator, then
// fans it out to every room subscriber, sender included. Persistence is
// blocking I/O and runs outside the lock; the fan-out runs under it, which
// is what gives per-room delivery its ordering guarantee.
func (h *Hub) SendMessage(ctx context.Context, connID core.ConnectionID, channelID domain.ChannelID, content string) {
	h.mu.Lock()
	user, ok := h.reg.User(connID)
	h.mu.Unlock()
	if !ok {
		log.Warn().Str("module", "app.hub").Str("conn", string(connID)).Msg("message from unknown connection")
		return
	}
	if strings.TrimSpace(content) == "" {
		return
	}

	msg, err := h.store.Append(ctx, channelID, user.ID, user.Username, content)
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Str("channel", string(channelID)).Msg("message store append")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastRoom(channelID, MessageNew{Type: EvMessageNew, Message: msg}, "")
}

// Typing relays a typing indicator to the room, never echoing the sender.
func (h *Hub) Typing(connID core.ConnectionID, channelID domain.ChannelID, start bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	user, ok := h.reg.User(connID)
	if !ok {
		return
	}
	ev := Typing{Type: EvTypingStop, ChannelID: channelID, UserID: user.ID}
	if start {
		ev.Type = EvTypingStart
		ev.Username = user.Username
	}
	h.broadcastRoom(channelID, ev, connID)
}

// JoinVoice moves the connection into channelID as one atomic transition.
// A prior membership is unwound first with the ordinary leave events; then
// the joiner learns who was already there, the incumbents learn about the
// joiner, and everyone gets the new occupancy snapshot.
func (h *Hub) JoinVoice(connID core.ConnectionID, channelID domain.ChannelID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	user, ok := h.reg.User(connID)
	if !ok {
		log.Warn().Str("module", "app.hub").Str("conn", string(connID)).Msg("voice join from unknown connection")
		return
	}

	prior, left := h.voice.Join(channelID, connID, user)
	if left != nil {
		h.emitVoiceLeave(left)
	}

	log.Info().Str("module", "app.hub").Str("user", string(user.ID)).Str("channel", string(channelID)).Int("present", len(prior)).Msg("voice join")

	h.send(connID, VoiceUsers{Type: EvVoiceUsers, ChannelID: channelID, Users: prior})
	joined := VoiceUserJoined{Type: EvVoiceUserJoined, ChannelID: channelID, UserID: user.ID, Username: user.Username}
	for _, member := range h.voice.MemberConns(channelID) {
		if member != connID {
			h.send(member, joined)
		}
	}
	h.broadcastAll(VoiceChannelUpdate{Type: EvVoiceChannelUpdate, ChannelID: channelID, Users: h.voice.Members(channelID)})
}

// LeaveVoice removes the connection from its voice channel, if any.
func (h *Hub) LeaveVoice(connID core.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	lv, ok := h.voice.Leave(connID)
	if !ok {
		log.Warn().Str("module", "app.hub").Str("conn", string(connID)).Msg("voice leave without membership")
		return
	}
	h.emitVoiceLeave(lv)
}

// emitVoiceLeave announces a completed removal. The occupancy snapshot is
// sent even when the channel just emptied, so clients see it drain to zero
// before it disappears; the table has already dropped the empty channel.
func (h *Hub) emitVoiceLeave(lv *VoiceLeave) {
	h.broadcastAll(VoiceUserLeft{Type: EvVoiceUserLeft, ChannelID: lv.Channel, UserID: lv.Member.UserID})
	h.broadcastAll(VoiceChannelUpdate{Type: EvVoiceChannelUpdate, ChannelID: lv.Channel, Users: lv.Remaining})
}

// SetMute toggles the caller's mute flag and tells the whole channel,
// the caller included so its own UI converges.
func (h *Hub) SetMute(connID core.ConnectionID, muted bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, channelID, ok := h.voice.SetMute(connID, muted)
	if !ok {
		log.Warn().Str("module", "app.hub").Str("conn", string(connID)).Msg("mute outside voice")
		return
	}
	ev := VoiceUserMute{Type: EvVoiceUserMute, UserID: m.UserID, Muted: m.Muted}
	for _, member := range h.voice.MemberConns(channelID) {
		h.send(member, ev)
	}
}

// SetDeafen toggles deafen; the table forces mute alongside it and the
// event carries both resulting flags.
func (h *Hub) SetDeafen(connID core.ConnectionID, deafened bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, channelID, ok := h.voice.SetDeafen(connID, deafened)
	if !ok {
		log.Warn().Str("module", "app.hub").Str("conn", string(connID)).Msg("deafen outside voice")
		return
	}
	ev := VoiceUserDeafen{Type: EvVoiceUserDeafen, UserID: m.UserID, Deafened: m.Deafened, Muted: m.Muted}
	for _, member := range h.voice.MemberConns(channelID) {
		h.send(member, ev)
	}
}

// SetStreaming flips the screen-share flag and notifies the other channel
// members; the initiator already knows.
func (h *Hub) SetStreaming(connID core.ConnectionID, channelID domain.ChannelID, streaming bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.voice.SetStreaming(connID, channelID, streaming)
	if !ok {
		log.Warn().Str("module", "app.hub").Str("conn", string(connID)).Str("channel", string(channelID)).Msg("screen toggle outside channel")
		return
	}
	ev := Screen{Type: EvScreenStopped, UserID: m.UserID}
	if streaming {
		ev.Type = EvScreenStarted
		ev.Username = m.Username
	}
	for _, member := range h.voice.MemberConns(channelID) {
		if member != connID {
			h.send(member, ev)
		}
	}
}

// Relay forwards an opaque negotiation payload to the target user's live
// connection. At-most-once: an offline target means the frame is dropped,
// no queue, no retry. Offers carry the sender's username so the callee can
// render the caller before any media flows.
func (h *Hub) Relay(kind string, connID core.ConnectionID, targetUserID domain.UserID, payload json.RawMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	from, ok := h.reg.User(connID)
	if !ok {
		return
	}
	target, ok := h.reg.LookupUser(targetUserID)
	if !ok {
		log.Warn().Str("module", "app.hub").Str("kind", kind).Str("target", string(targetUserID)).Msg("relay target offline, dropped")
		return
	}
	ev := WebRTCSignal{Type: kind, Payload: payload, FromUserID: from.ID}
	if kind == EvWebRTCOffer {
		ev.FromUsername = from.Username
	}
	h.send(target, ev)
}

// VoiceMembers exposes a point-in-time occupancy snapshot, for surfaces
// like the channel sidebar bootstrap.
func (h *Hub) VoiceMembers(channelID domain.ChannelID) []domain.VoiceMember {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.voice.Members(channelID)
}

// send marshals once and queues to a single connection, dropping on error.
func (h *Hub) send(connID core.ConnectionID, v any) {
	conn, ok := h.reg.Conn(connID)
	if !ok {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Msg("marshal frame")
		return
	}
	if err := conn.TrySend(b); err != nil {
		log.Debug().Err(err).Str("module", "app.hub").Str("conn", string(connID)).Msg("send skipped")
	}
}

// broadcastRoom delivers to every subscriber of a room except exclude.
// Failed recipients are skipped; the fan-out never aborts.
func (h *Hub) broadcastRoom(roomID domain.ChannelID, v any, exclude core.ConnectionID) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Msg("marshal frame")
		return
	}
	for _, connID := range h.rooms.Subscribers(roomID) {
		if connID == exclude {
			continue
		}
		if conn, ok := h.reg.Conn(connID); ok {
			if err := conn.TrySend(b); err != nil {
				log.Debug().Err(err).Str("module", "app.hub").Str("conn", string(connID)).Msg("fanout skipped")
			}
		}
	}
}

// broadcastAll delivers to every live connection.
func (h *Hub) broadcastAll(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Msg("marshal frame")
		return
	}
	for _, connID := range h.reg.All() {
		if conn, ok := h.reg.Conn(connID); ok {
			if err := conn.TrySend(b); err != nil {
				log.Debug().Err(err).Str("module", "app.hub").Str("conn", string(connID)).Msg("broadcast skipped")
			}
		}
	}
}
