// Package control arbitrates the single-writer editing token per room.
package control

import (
	"sync"

	"codecast/pkg/types"
)

// roomState is the control state machine for one room. Invariants held after
// every exported call: currentEditor is never empty once the room exists;
// pending never contains currentEditor; a user appears in pending at most
// once, in first-request order.
type roomState struct {
	instructorID  string
	currentEditor string
	pending       []types.Requester
}

// Arbiter owns control state for all rooms behind one mutex. Classroom scale
// (tens of rooms, tens of participants) makes finer-grained locking pointless.
type Arbiter struct {
	mu    sync.Mutex
	rooms map[string]*roomState
}

func NewArbiter() *Arbiter {
	return &Arbiter{rooms: make(map[string]*roomState)}
}

// EnsureRoom provisions control state for a room once the session directory
// has confirmed the invite code. Idempotent; the editor defaults to the
// instructor and is never changed here once set.
func (a *Arbiter) EnsureRoom(room, instructorID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	state, ok := a.rooms[room]
	if !ok {
		state = &roomState{}
		a.rooms[room] = state
	}
	state.instructorID = instructorID
	if state.currentEditor == "" {
		state.currentEditor = instructorID
	}
}

// RequestControl records a control request. Returns false when the request
// goes nowhere: unknown room, or the requester already holds control.
// Re-requests by a user already pending are accepted (the instructor gets
// notified again) but the queue stays de-duplicated.
func (a *Arbiter) RequestControl(room string, requester types.Requester) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	state, ok := a.rooms[room]
	if !ok {
		return false
	}
	if requester.ID == state.currentEditor {
		return false
	}

	for _, pending := range state.pending {
		if pending.ID == requester.ID {
			return true
		}
	}
	state.pending = append(state.pending, requester)
	return true
}

// GrantControl hands the token to grantee and clears the whole pending queue.
// The grantee is taken on trust; only instructor clients emit grants.
func (a *Arbiter) GrantControl(room string, grantee types.Requester) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	state, ok := a.rooms[room]
	if !ok {
		return false
	}
	state.currentEditor = grantee.ID
	state.pending = state.pending[:0]
	return true
}

// DenyControl drops userID from the pending queue, leaving the rest in order.
// The current editor is never touched.
func (a *Arbiter) DenyControl(room, userID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	state, ok := a.rooms[room]
	if !ok {
		return false
	}
	for i, pending := range state.pending {
		if pending.ID == userID {
			state.pending = append(state.pending[:i], state.pending[i+1:]...)
			return true
		}
	}
	return false
}

// RevokeControl returns the token to the instructor. Pending requests are
// deliberately kept; the instructor may still grant one of them next.
func (a *Arbiter) RevokeControl(room string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	state, ok := a.rooms[room]
	if !ok {
		return false
	}
	state.currentEditor = state.instructorID
	return true
}

// CurrentEditor reports who holds the token for room.
func (a *Arbiter) CurrentEditor(room string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	state, ok := a.rooms[room]
	if !ok {
		return "", false
	}
	return state.currentEditor, true
}

// PendingRequests returns a copy of the queue in first-request order.
func (a *Arbiter) PendingRequests(room string) []types.Requester {
	a.mu.Lock()
	defer a.mu.Unlock()

	state, ok := a.rooms[room]
	if !ok {
		return nil
	}
	pending := make([]types.Requester, len(state.pending))
	copy(pending, state.pending)
	return pending
}

// DropRoom discards control state for a room, e.g. after session deactivation.
func (a *Arbiter) DropRoom(room string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.rooms, room)
}
