package app

import (
	"encoding/json"

	"github.com/voxcord/voxcord/internal/domain"
)

// Outbound wire events. Every frame is a flat JSON object with a "type"
// discriminator, mirroring the inbound envelope.

const (
	EvMessageNew         = "message:new"
	EvTypingStart        = "typing:start"
	EvTypingStop         = "typing:stop"
	EvUserStatus         = "user:status"
	EvVoiceUsers         = "voice:users"
	EvVoiceUserJoined    = "voice:user-joined"
	EvVoiceUserLeft      = "voice:user-left"
	EvVoiceUserMute      = "voice:user-mute"
	EvVoiceUserDeafen    = "voice:user-deafen"
	EvVoiceChannelUpdate = "voice:channel-update"
	EvWebRTCOffer        = "webrtc:offer"
	EvWebRTCAnswer       = "webrtc:answer"
	EvWebRTCICE          = "webrtc:ice-candidate"
	EvScreenStarted      = "screen:started"
	EvScreenStopped      = "screen:stopped"
)

type MessageNew struct {
	Type string `json:"type"`
	domain.Message
}

type Typing struct {
	Type      string           `json:"type"`
	ChannelID domain.ChannelID `json:"channelId"`
	UserID    domain.UserID    `json:"userId"`
	Username  string           `json:"username,omitempty"`
}

type UserStatus struct {
	Type   string        `json:"type"`
	UserID domain.UserID `json:"userId"`
	Status string        `json:"status"`
}

type VoiceUsers struct {
	Type      string               `json:"type"`
	ChannelID domain.ChannelID     `json:"channelId"`
	Users     []domain.VoiceMember `json:"users"`
}

type VoiceUserJoined struct {
	Type      string           `json:"type"`
	ChannelID domain.ChannelID `json:"channelId"`
	UserID    domain.UserID    `json:"userId"`
	Username  string           `json:"username"`
}

type VoiceUserLeft struct {
	Type      string           `json:"type"`
	ChannelID domain.ChannelID `json:"channelId"`
	UserID    domain.UserID    `json:"userId"`
}

type VoiceUserMute struct {
	Type   string        `json:"type"`
	UserID domain.UserID `json:"userId"`
	Muted  bool          `json:"muted"`
}

type VoiceUserDeafen struct {
	Type     string        `json:"type"`
	UserID   domain.UserID `json:"userId"`
	Deafened bool          `json:"deafened"`
	Muted    bool          `json:"muted"`
}

// VoiceChannelUpdate is the global occupancy snapshot every client gets on
// any member-set change, so channel lists stay live in every view.
type VoiceChannelUpdate struct {
	Type      string               `json:"type"`
	ChannelID domain.ChannelID     `json:"channelId"`
	Users     []domain.VoiceMember `json:"users"`
}

// WebRTCSignal re-tags a relayed negotiation payload with its sender. The
// payload stays raw bytes end to end; this layer never parses SDP or ICE.
type WebRTCSignal struct {
	Type         string          `json:"type"`
	Payload      json.RawMessage `json:"payload"`
	FromUserID   domain.UserID   `json:"fromUserId"`
	FromUsername string          `json:"fromUsername,omitempty"`
}

type Screen struct {
	Type     string        `json:"type"`
	UserID   domain.UserID `json:"userId"`
	Username string        `json:"username,omitempty"`
}
