package types

import (
	"encoding/json"
	"time"
)

// Roles assigned at registration. A role is fixed for the lifetime of the
// account and carried inside the auth token.
const (
	RoleInstructor = "instructor"
	RoleStudent    = "student"
)

// User is an account holder. PasswordHash never leaves the process.
type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// File is one shared editor buffer inside a session.
type File struct {
	Name     string `json:"name"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

// Session is a classroom session. Participants holds user IDs; the invite
// code doubles as the room key for the real-time layer.
type Session struct {
	ID           string    `json:"id" db:"id"`
	InviteCode   string    `json:"invite_code" db:"invite_code"`
	InstructorID string    `json:"instructor_id" db:"instructor_id"`
	Active       bool      `json:"active" db:"active"`
	Participants []string  `json:"participants" db:"participants"`
	Files        []File    `json:"files" db:"files"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Prompt is a reusable coding exercise owned by an instructor.
type Prompt struct {
	ID           string    `json:"id" db:"id"`
	Title        string    `json:"title" db:"title"`
	Description  string    `json:"description" db:"description"`
	StarterCode  string    `json:"starter_code" db:"starter_code"`
	InstructorID string    `json:"instructor_id" db:"instructor_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Participant is the public view of a session member, broadcast to rooms.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// RoomInfo is what the coordination layer needs to know about a session:
// who runs it and who belongs to it. Resolved by invite code.
type RoomInfo struct {
	SessionID    string        `json:"session_id"`
	InstructorID string        `json:"instructor_id"`
	Participants []Participant `json:"participants"`
}

// Requester identifies a participant asking for (or being handed) editing
// control. The display name rides along so the instructor UI can render the
// request without another lookup.
type Requester struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DecodeData re-marshals a decoded event payload into a concrete struct.
// Event payloads arrive as generic JSON; handlers pick the shape they expect.
func DecodeData(data any, v any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// DefaultFiles is the editor buffer set every new session starts with.
func DefaultFiles() []File {
	return []File{
		{Name: "index.html", Content: "<h1>Hello World</h1>", Language: "html"},
		{Name: "script.js", Content: "console.log('Hello from script!');", Language: "javascript"},
	}
}
