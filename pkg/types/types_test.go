package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidInviteCode(t *testing.T) {
	tests := []struct {
		code  string
		valid bool
	}{
		{"ABC123", true},
		{"ZZZZZZ", true},
		{"000000", true},
		{"abc123", false},
		{"ABC12", false},
		{"ABC1234", false},
		{"ABC-12", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, IsValidInviteCode(tt.code), "code %q", tt.code)
	}
}

func TestIsValidRole(t *testing.T) {
	assert.True(t, IsValidRole(RoleInstructor))
	assert.True(t, IsValidRole(RoleStudent))
	assert.False(t, IsValidRole("admin"))
	assert.False(t, IsValidRole(""))
}

func TestUserValidate(t *testing.T) {
	user := &User{Name: "Alice", Email: "alice@example.com", Role: RoleStudent}
	require.NoError(t, user.Validate())

	noName := *user
	noName.Name = ""
	assert.ErrorIs(t, noName.Validate(), ErrInvalidUserName)

	badEmail := *user
	badEmail.Email = "not-an-email"
	assert.ErrorIs(t, badEmail.Validate(), ErrInvalidEmail)

	badRole := *user
	badRole.Role = "admin"
	assert.ErrorIs(t, badRole.Validate(), ErrInvalidRole)
}

func TestPromptValidate(t *testing.T) {
	prompt := &Prompt{Title: "FizzBuzz", Description: "The classic"}
	require.NoError(t, prompt.Validate())

	noTitle := *prompt
	noTitle.Title = ""
	assert.ErrorIs(t, noTitle.Validate(), ErrInvalidPromptTitle)

	noDescription := *prompt
	noDescription.Description = ""
	assert.ErrorIs(t, noDescription.Validate(), ErrInvalidPromptDescription)
}

func TestDecodeData(t *testing.T) {
	// Payloads arrive as map[string]any after the envelope is decoded.
	raw := map[string]any{"room": "ABC123", "userId": "user-1"}

	var payload JoinRoomPayload
	require.NoError(t, DecodeData(raw, &payload))
	assert.Equal(t, "ABC123", payload.Room)
	assert.Equal(t, "user-1", payload.UserID)
}

func TestDecodeDataWrongShape(t *testing.T) {
	var payload JoinRoomPayload
	assert.Error(t, DecodeData("just a string", &payload))
}

func TestDefaultFiles(t *testing.T) {
	files := DefaultFiles()
	require.Len(t, files, 2)
	assert.Equal(t, "index.html", files[0].Name)
	assert.Equal(t, "script.js", files[1].Name)
}
