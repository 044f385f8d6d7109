package interfaces

import (
	"context"

	"codecast/pkg/types"
)

// SessionDirectory resolves an invite code to the session's instructor and
// participant roster. It is the only external lookup the event router makes;
// callers treat any error the same as "not found" and degrade to a no-op.
type SessionDirectory interface {
	ResolveInviteCode(ctx context.Context, code string) (*types.RoomInfo, error)
}
