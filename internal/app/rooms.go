package app

import (
	"github.com/voxcord/voxcord/internal/core"
	"github.com/voxcord/voxcord/internal/domain"
)

// Rooms tracks which connections subscribe to which text rooms. Pure
// membership, no flags, no broadcasts of its own. Owned by the Hub
// sequencer; not safe for use outside it.
type Rooms struct {
	byRoom map[domain.ChannelID]map[core.ConnectionID]struct{}
	byConn map[core.ConnectionID]map[domain.ChannelID]struct{}
}

func NewRooms() *Rooms {
	return &Rooms{
		byRoom: make(map[domain.ChannelID]map[core.ConnectionID]struct{}),
		byConn: make(map[core.ConnectionID]map[domain.ChannelID]struct{}),
	}
}

// Join is idempotent; duplicate joins from a flaky client are absorbed.
func (r *Rooms) Join(roomID domain.ChannelID, connID core.ConnectionID) {
	if r.byRoom[roomID] == nil {
		r.byRoom[roomID] = make(map[core.ConnectionID]struct{})
	}
	r.byRoom[roomID][connID] = struct{}{}
	if r.byConn[connID] == nil {
		r.byConn[connID] = make(map[domain.ChannelID]struct{})
	}
	r.byConn[connID][roomID] = struct{}{}
}

// Leave is idempotent. An emptied room is deleted, not retained.
func (r *Rooms) Leave(roomID domain.ChannelID, connID core.ConnectionID) {
	if subs, ok := r.byRoom[roomID]; ok {
		delete(subs, connID)
		if len(subs) == 0 {
			delete(r.byRoom, roomID)
		}
	}
	if rooms, ok := r.byConn[connID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.byConn, connID)
		}
	}
}

// LeaveAll unsubscribes the connection everywhere and reports which rooms
// it was in. Runs exactly once per disconnect.
func (r *Rooms) LeaveAll(connID core.ConnectionID) []domain.ChannelID {
	rooms, ok := r.byConn[connID]
	if !ok {
		return nil
	}
	out := make([]domain.ChannelID, 0, len(rooms))
	for roomID := range rooms {
		out = append(out, roomID)
		if subs, ok := r.byRoom[roomID]; ok {
			delete(subs, connID)
			if len(subs) == 0 {
				delete(r.byRoom, roomID)
			}
		}
	}
	delete(r.byConn, connID)
	return out
}

// Subscribers snapshots the current member set of a room.
func (r *Rooms) Subscribers(roomID domain.ChannelID) []core.ConnectionID {
	subs := r.byRoom[roomID]
	if len(subs) == 0 {
		return nil
	}
	out := make([]core.ConnectionID, 0, len(subs))
	for connID := range subs {
		out = append(out, connID)
	}
	return out
}
