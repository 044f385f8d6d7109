package types

import "errors"

// Validation errors shared across the API and storage layers.
var (
	ErrInvalidUserName          = errors.New("user name must be 1-100 characters")
	ErrInvalidEmail             = errors.New("invalid email address")
	ErrInvalidRole              = errors.New("invalid role: must be 'student' or 'instructor'")
	ErrInvalidInviteCode        = errors.New("invalid invite code format")
	ErrInvalidPromptTitle       = errors.New("prompt title must be 1-200 characters")
	ErrInvalidPromptDescription = errors.New("prompt description cannot be empty")
)
