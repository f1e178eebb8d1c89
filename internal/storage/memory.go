// Package storage provides the in-memory message store used when the
// relational collaborator is not wired in, and in tests. It owns message
// validation: ids and timestamps are assigned here, never upstream.
package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxcord/voxcord/internal/domain"
)

var ErrEmptyContent = errors.New("empty content")

type MemoryStore struct {
	mu        sync.Mutex
	byChannel map[domain.ChannelID][]domain.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byChannel: make(map[domain.ChannelID][]domain.Message)}
}

// Append validates, stamps and stores the message. Content is trimmed;
// whitespace-only content is rejected.
func (s *MemoryStore) Append(ctx context.Context, channelID domain.ChannelID, userID domain.UserID, username, content string) (domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Message{}, ErrEmptyContent
	}
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}

	msg := domain.Message{
		ID:        uuid.NewString(),
		ChannelID: channelID,
		UserID:    userID,
		Username:  username,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.byChannel[channelID] = append(s.byChannel[channelID], msg)
	s.mu.Unlock()
	return msg, nil
}

// Recent returns up to limit most recent messages of a channel, oldest
// first, matching what a history fetch hands to a just-opened room.
func (s *MemoryStore) Recent(channelID domain.ChannelID, limit int) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.byChannel[channelID]
	if limit <= 0 || limit > len(msgs) {
		limit = len(msgs)
	}
	out := make([]domain.Message, limit)
	copy(out, msgs[len(msgs)-limit:])
	return out
}
