package domain

import "time"

// Message is a persisted chat message as returned by the message store.
// The store assigns ID and CreatedAt; this layer never invents them.
type Message struct {
	ID        string    `json:"id"`
	ChannelID ChannelID `json:"channelId"`
	UserID    UserID    `json:"userId"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
