package core

import (
	"context"

	"github.com/voxcord/voxcord/internal/domain"
)

// Frame is a marshaled wire event ready for the transport.
type Frame []byte

// ConnectionID identifies one live transport session. Ephemeral: minted at
// upgrade, dead when the socket closes, never reused for state lookups
// after Disconnect.
type ConnectionID string

// SignalConnection abstracts the per-client messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend queues a frame without blocking. A full or closed peer is
	// reported as an error so fan-out can skip it and move on.
	TrySend(Frame) error
	Close()
}

// MessageStore is the persistence collaborator for chat messages. It
// validates content, assigns the id and server timestamp, and is the only
// component allowed to do blocking I/O on the message path.
type MessageStore interface {
	Append(ctx context.Context, channelID domain.ChannelID, userID domain.UserID, username, content string) (domain.Message, error)
}

// TokenVerifier checks the pre-issued identity token presented at
// handshake. Implementations front the external auth service.
type TokenVerifier interface {
	Verify(token string) (*domain.User, error)
}
