// Package rooms groups connections into delivery groups keyed by invite code.
package rooms

import (
	"sync"

	"go.uber.org/zap"

	"codecast/pkg/interfaces"
	"codecast/pkg/types"
)

// Registry is the transport-side room membership table. It knows nothing
// about sessions or control; it only delivers events to groups and single
// connections. Delivery is at-most-once: a failed write is treated as a
// disconnected peer and dropped.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]interfaces.Connection // room -> connID -> conn
	log   *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		rooms: make(map[string]map[string]interfaces.Connection),
		log:   log,
	}
}

// Join adds conn to the room's delivery group, creating the group lazily.
func (r *Registry) Join(room string, conn interfaces.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]interfaces.Connection)
		r.rooms[room] = members
	}
	members[conn.ID()] = conn
}

// Leave removes conn from every room it belongs to and prunes empty groups.
// Invoked once per disconnect.
func (r *Registry) Leave(conn interfaces.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room, members := range r.rooms {
		delete(members, conn.ID())
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
}

// Broadcast delivers ev to every connection in the room, the sender included
// if joined. Membership is snapshotted under the read lock; writes happen
// outside it.
func (r *Registry) Broadcast(room string, ev types.Event) {
	r.send(room, nil, ev)
}

// BroadcastExcept delivers ev to every connection in the room except one.
func (r *Registry) BroadcastExcept(room string, except interfaces.Connection, ev types.Event) {
	r.send(room, except, ev)
}

func (r *Registry) send(room string, except interfaces.Connection, ev types.Event) {
	r.mu.RLock()
	members := make([]interfaces.Connection, 0, len(r.rooms[room]))
	for _, conn := range r.rooms[room] {
		if except != nil && conn.ID() == except.ID() {
			continue
		}
		members = append(members, conn)
	}
	r.mu.RUnlock()

	for _, conn := range members {
		r.Send(conn, ev)
	}
}

// Send delivers ev to a single connection. A dead connection is a silent
// no-op; disconnect cleanup will catch up with it.
func (r *Registry) Send(conn interfaces.Connection, ev types.Event) {
	if conn == nil {
		return
	}
	if err := conn.WriteEvent(ev); err != nil {
		r.log.Debug("dropped event for disconnected peer",
			zap.String("event", ev.Type),
			zap.String("user", conn.UserID()),
		)
	}
}

// Members reports how many connections are joined to room.
func (r *Registry) Members(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// Count reports how many rooms currently have members.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
