package types

import "regexp"

// Compiled once at package initialization; validation sits on the hot path
// of every join.
var (
	inviteCodeRegex = regexp.MustCompile(`^[A-Z0-9]{6}$`)
	emailRegex      = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// IsValidRole reports whether role is one of the two supported roles.
func IsValidRole(role string) bool {
	return role == RoleInstructor || role == RoleStudent
}

// IsValidInviteCode reports whether code has the 6-character A-Z0-9 shape
// generated at session creation. Room keys that fail this never reach the
// session directory.
func IsValidInviteCode(code string) bool {
	return inviteCodeRegex.MatchString(code)
}

// IsValidEmail applies a permissive shape check; real verification is the
// mail system's problem.
func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// Validate ensures a user record is storable.
func (u *User) Validate() error {
	if u.Name == "" || len(u.Name) > 100 {
		return ErrInvalidUserName
	}
	if !IsValidEmail(u.Email) {
		return ErrInvalidEmail
	}
	if !IsValidRole(u.Role) {
		return ErrInvalidRole
	}
	return nil
}

// Validate ensures a prompt record is storable.
func (p *Prompt) Validate() error {
	if p.Title == "" || len(p.Title) > 200 {
		return ErrInvalidPromptTitle
	}
	if p.Description == "" {
		return ErrInvalidPromptDescription
	}
	return nil
}
