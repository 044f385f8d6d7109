// Package presence tracks which live connection belongs to which user.
package presence

import (
	"sync"

	"codecast/pkg/interfaces"
)

// Directory maps user IDs to their active connection. At most one entry per
// user: a reconnect silently supersedes the old link without notifying it.
// The directory is injected into the router so coordinator instances can be
// tested in isolation.
type Directory struct {
	mu     sync.RWMutex
	byUser map[string]interfaces.Connection
}

func NewDirectory() *Directory {
	return &Directory{byUser: make(map[string]interfaces.Connection)}
}

// Record inserts or overwrites the mapping for userID.
func (d *Directory) Record(userID string, conn interfaces.Connection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byUser[userID] = conn
}

// Resolve returns the live connection for userID, if any. Callers tolerate
// stale misses; a user whose connection dropped simply resolves to nothing.
func (d *Directory) Resolve(userID string) (interfaces.Connection, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	conn, ok := d.byUser[userID]
	return conn, ok
}

// Remove deletes the entry whose connection is conn. Removal is
// connection-scoped: if the user already reconnected on a newer link, the
// newer entry stays. The O(n) scan is fine at classroom scale.
func (d *Directory) Remove(conn interfaces.Connection) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for userID, c := range d.byUser {
		if c == conn {
			delete(d.byUser, userID)
			return userID, true
		}
	}
	return "", false
}

// Len reports how many users are currently tracked.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byUser)
}
