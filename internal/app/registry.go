package app

import (
	"github.com/voxcord/voxcord/internal/core"
	"github.com/voxcord/voxcord/internal/domain"
)

type connEntry struct {
	User domain.User
	Conn core.SignalConnection
}

// Registry maps live connections to identities and back. It is one of the
// three tables owned by the Hub sequencer and carries no lock of its own:
// every call happens under the Hub mutex.
type Registry struct {
	conns  map[core.ConnectionID]*connEntry
	byUser map[domain.UserID]core.ConnectionID
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[core.ConnectionID]*connEntry),
		byUser: make(map[domain.UserID]core.ConnectionID),
	}
}

// Register binds a connection to its authenticated user. A reconnecting
// user overwrites the user index immediately; the stale connection's entry
// stays until its own transport closes.
func (r *Registry) Register(connID core.ConnectionID, user domain.User, conn core.SignalConnection) {
	r.conns[connID] = &connEntry{User: user, Conn: conn}
	r.byUser[user.ID] = connID
}

// Deregister drops the connection entry and returns its user. Idempotent:
// disconnect notifications can race explicit leaves, so an unknown id is a
// no-op. The user index is only cleared when it still points at this
// connection, which keeps a fresh reconnect from being evicted by the old
// socket's teardown.
func (r *Registry) Deregister(connID core.ConnectionID) (domain.UserID, bool) {
	e, ok := r.conns[connID]
	if !ok {
		return "", false
	}
	delete(r.conns, connID)
	if r.byUser[e.User.ID] == connID {
		delete(r.byUser, e.User.ID)
	}
	return e.User.ID, true
}

// LookupUser resolves a stable user id to its single live connection.
func (r *Registry) LookupUser(userID domain.UserID) (core.ConnectionID, bool) {
	connID, ok := r.byUser[userID]
	return connID, ok
}

func (r *Registry) User(connID core.ConnectionID) (domain.User, bool) {
	if e, ok := r.conns[connID]; ok {
		return e.User, true
	}
	return domain.User{}, false
}

func (r *Registry) Conn(connID core.ConnectionID) (core.SignalConnection, bool) {
	if e, ok := r.conns[connID]; ok {
		return e.Conn, true
	}
	return nil, false
}

// All snapshots every live connection id, for global presence broadcasts.
func (r *Registry) All() []core.ConnectionID {
	out := make([]core.ConnectionID, 0, len(r.conns))
	for id := range r.conns {
		out = append(out, id)
	}
	return out
}

func (r *Registry) Len() int { return len(r.conns) }
