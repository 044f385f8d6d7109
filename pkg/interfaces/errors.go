package interfaces

import "errors"

// Errors shared across component boundaries.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrPromptNotFound  = errors.New("prompt not found")
	ErrUnauthorized    = errors.New("user not authorized for this operation")
)
