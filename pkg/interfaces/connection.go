package interfaces

import "codecast/pkg/types"

// Connection is one live transport link. The coordination layer only ever
// holds these behind this interface so presence, rooms, and routing can be
// exercised with in-memory fakes.
//
// WriteEvent must be safe for concurrent use and must not block the caller
// on a slow peer; a failed write is treated as a disconnected peer.
type Connection interface {
	// ID is a server-assigned identifier unique to this link, not the user.
	// A user reconnecting gets a new connection ID.
	ID() string

	// UserID is the authenticated account behind this link.
	UserID() string

	WriteEvent(ev types.Event) error
	Close() error
}
