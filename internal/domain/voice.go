package domain

// VoiceMember is a user's ephemeral state inside one voice channel.
// It lives only in memory; a server restart drops every transport, so
// voice state resetting with it is the expected behavior.
//
// The struct doubles as the wire payload for voice snapshots.
type VoiceMember struct {
	UserID    UserID `json:"userId"`
	Username  string `json:"username"`
	Muted     bool   `json:"muted"`
	Deafened  bool   `json:"deafened"`
	Streaming bool   `json:"streaming"`
}
