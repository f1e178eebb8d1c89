package app

import (
	"github.com/voxcord/voxcord/internal/core"
	"github.com/voxcord/voxcord/internal/domain"
)

// VoiceTable is the per-voice-channel membership table with mute/deafen/
// streaming flags. Invariant: a connection occupies at most one channel;
// an emptied channel is deleted, never retained. Owned by the Hub
// sequencer, no internal lock.
type VoiceTable struct {
	channels map[domain.ChannelID]map[core.ConnectionID]*domain.VoiceMember
	byConn   map[core.ConnectionID]domain.ChannelID
}

func NewVoiceTable() *VoiceTable {
	return &VoiceTable{
		channels: make(map[domain.ChannelID]map[core.ConnectionID]*domain.VoiceMember),
		byConn:   make(map[core.ConnectionID]domain.ChannelID),
	}
}

// VoiceLeave describes a completed removal: who left which channel and who
// remains there. Remaining is empty when the channel died with the member.
type VoiceLeave struct {
	Channel   domain.ChannelID
	Member    domain.VoiceMember
	Remaining []domain.VoiceMember
}

// Join inserts the connection into channelID with all flags off. If it was
// already in a channel that membership is removed first, inside the same
// call, so the connection is never observably in two channels. Returns the
// implicit leave (nil if there was none) and the channel's member list as
// it stood before insertion, which is what the joiner gets told.
func (v *VoiceTable) Join(channelID domain.ChannelID, connID core.ConnectionID, user domain.User) (prior []domain.VoiceMember, left *VoiceLeave) {
	// Implicit leave; also covers a duplicate join to the same channel,
	// which re-enters with flags reset.
	if prev, ok := v.byConn[connID]; ok {
		left = v.remove(connID, prev)
	}

	prior = v.Members(channelID)

	if v.channels[channelID] == nil {
		v.channels[channelID] = make(map[core.ConnectionID]*domain.VoiceMember)
	}
	v.channels[channelID][connID] = &domain.VoiceMember{
		UserID:   user.ID,
		Username: user.Username,
	}
	v.byConn[connID] = channelID
	return prior, left
}

// Leave removes the connection from its channel, if any. Stale leaves from
// clients racing their own disconnect report ok=false and mutate nothing.
func (v *VoiceTable) Leave(connID core.ConnectionID) (*VoiceLeave, bool) {
	channelID, ok := v.byConn[connID]
	if !ok {
		return nil, false
	}
	return v.remove(connID, channelID), true
}

func (v *VoiceTable) remove(connID core.ConnectionID, channelID domain.ChannelID) *VoiceLeave {
	members := v.channels[channelID]
	m := members[connID]
	delete(members, connID)
	delete(v.byConn, connID)
	if len(members) == 0 {
		delete(v.channels, channelID)
	}
	lv := &VoiceLeave{Channel: channelID, Remaining: v.Members(channelID)}
	if m != nil {
		lv.Member = *m
	}
	return lv
}

// SetMute flips the mute flag. Not a member: ok=false, nothing changes.
func (v *VoiceTable) SetMute(connID core.ConnectionID, muted bool) (domain.VoiceMember, domain.ChannelID, bool) {
	m, channelID, ok := v.member(connID)
	if !ok {
		return domain.VoiceMember{}, "", false
	}
	m.Muted = muted
	return *m, channelID, true
}

// SetDeafen flips the deafen flag. Deafening forces muted=true; undeafening
// leaves muted as-is — the user stays muted until explicitly unmuted.
func (v *VoiceTable) SetDeafen(connID core.ConnectionID, deafened bool) (domain.VoiceMember, domain.ChannelID, bool) {
	m, channelID, ok := v.member(connID)
	if !ok {
		return domain.VoiceMember{}, "", false
	}
	m.Deafened = deafened
	if deafened {
		m.Muted = true
	}
	return *m, channelID, true
}

// SetStreaming flips the screen-share flag, but only when the connection
// really is a member of the named channel; stale channel ids are no-ops.
func (v *VoiceTable) SetStreaming(connID core.ConnectionID, channelID domain.ChannelID, streaming bool) (domain.VoiceMember, bool) {
	m, actual, ok := v.member(connID)
	if !ok || actual != channelID {
		return domain.VoiceMember{}, false
	}
	m.Streaming = streaming
	return *m, true
}

func (v *VoiceTable) member(connID core.ConnectionID) (*domain.VoiceMember, domain.ChannelID, bool) {
	channelID, ok := v.byConn[connID]
	if !ok {
		return nil, "", false
	}
	return v.channels[channelID][connID], channelID, true
}

// ChannelOf reports which channel the connection occupies, if any.
func (v *VoiceTable) ChannelOf(connID core.ConnectionID) (domain.ChannelID, bool) {
	channelID, ok := v.byConn[connID]
	return channelID, ok
}

// MemberConns snapshots the connection ids present in a channel.
func (v *VoiceTable) MemberConns(channelID domain.ChannelID) []core.ConnectionID {
	members := v.channels[channelID]
	if len(members) == 0 {
		return nil
	}
	out := make([]core.ConnectionID, 0, len(members))
	for connID := range members {
		out = append(out, connID)
	}
	return out
}

// Members snapshots the member states of a channel, by value, so callers
// cannot reach back into the table.
func (v *VoiceTable) Members(channelID domain.ChannelID) []domain.VoiceMember {
	members := v.channels[channelID]
	out := make([]domain.VoiceMember, 0, len(members))
	for _, m := range members {
		out = append(out, *m)
	}
	return out
}
