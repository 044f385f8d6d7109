package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codecast/pkg/types"
)

func TestEnsureRoomDefaultsEditorToInstructor(t *testing.T) {
	a := NewArbiter()
	a.EnsureRoom("ABC123", "instructor-1")

	editor, ok := a.CurrentEditor("ABC123")
	require.True(t, ok)
	assert.Equal(t, "instructor-1", editor)
}

func TestEnsureRoomIsIdempotent(t *testing.T) {
	a := NewArbiter()
	a.EnsureRoom("ABC123", "instructor-1")
	require.True(t, a.GrantControl("ABC123", types.Requester{ID: "student-1"}))

	// Re-provisioning must not steal the token back.
	a.EnsureRoom("ABC123", "instructor-1")

	editor, ok := a.CurrentEditor("ABC123")
	require.True(t, ok)
	assert.Equal(t, "student-1", editor)
}

func TestRequestControlUnknownRoom(t *testing.T) {
	a := NewArbiter()
	assert.False(t, a.RequestControl("NOROOM", types.Requester{ID: "student-1"}))
}

func TestRequestControlByCurrentEditor(t *testing.T) {
	a := NewArbiter()
	a.EnsureRoom("ABC123", "instructor-1")

	assert.False(t, a.RequestControl("ABC123", types.Requester{ID: "instructor-1"}))
	assert.Empty(t, a.PendingRequests("ABC123"))
}

func TestRequestControlDeduplicatesQueue(t *testing.T) {
	a := NewArbiter()
	a.EnsureRoom("ABC123", "instructor-1")

	alice := types.Requester{ID: "student-1", Name: "Alice"}
	require.True(t, a.RequestControl("ABC123", alice))
	// A repeat request still returns true so the instructor gets re-notified,
	// but the queue keeps a single entry.
	require.True(t, a.RequestControl("ABC123", alice))

	pending := a.PendingRequests("ABC123")
	require.Len(t, pending, 1)
	assert.Equal(t, "student-1", pending[0].ID)
}

func TestPendingRequestsPreserveOrder(t *testing.T) {
	a := NewArbiter()
	a.EnsureRoom("ABC123", "instructor-1")

	a.RequestControl("ABC123", types.Requester{ID: "student-1", Name: "Alice"})
	a.RequestControl("ABC123", types.Requester{ID: "student-2", Name: "Bob"})
	a.RequestControl("ABC123", types.Requester{ID: "student-3", Name: "Cara"})

	pending := a.PendingRequests("ABC123")
	require.Len(t, pending, 3)
	assert.Equal(t, "student-1", pending[0].ID)
	assert.Equal(t, "student-2", pending[1].ID)
	assert.Equal(t, "student-3", pending[2].ID)
}

func TestGrantControlClearsPending(t *testing.T) {
	a := NewArbiter()
	a.EnsureRoom("ABC123", "instructor-1")
	a.RequestControl("ABC123", types.Requester{ID: "student-1"})
	a.RequestControl("ABC123", types.Requester{ID: "student-2"})

	require.True(t, a.GrantControl("ABC123", types.Requester{ID: "student-1"}))

	editor, ok := a.CurrentEditor("ABC123")
	require.True(t, ok)
	assert.Equal(t, "student-1", editor)
	assert.Empty(t, a.PendingRequests("ABC123"))
}

func TestGrantControlUnknownRoomIsNoop(t *testing.T) {
	a := NewArbiter()
	assert.False(t, a.GrantControl("NOROOM", types.Requester{ID: "student-1"}))
}

func TestDenyControlRemovesOnlyTarget(t *testing.T) {
	a := NewArbiter()
	a.EnsureRoom("ABC123", "instructor-1")
	a.RequestControl("ABC123", types.Requester{ID: "student-1"})
	a.RequestControl("ABC123", types.Requester{ID: "student-2"})
	a.RequestControl("ABC123", types.Requester{ID: "student-3"})

	require.True(t, a.DenyControl("ABC123", "student-2"))

	pending := a.PendingRequests("ABC123")
	require.Len(t, pending, 2)
	assert.Equal(t, "student-1", pending[0].ID)
	assert.Equal(t, "student-3", pending[1].ID)

	editor, ok := a.CurrentEditor("ABC123")
	require.True(t, ok)
	assert.Equal(t, "instructor-1", editor)
}

func TestDenyControlMissingRequester(t *testing.T) {
	a := NewArbiter()
	a.EnsureRoom("ABC123", "instructor-1")
	assert.False(t, a.DenyControl("ABC123", "nobody"))
}

func TestRevokeControlRestoresInstructor(t *testing.T) {
	a := NewArbiter()
	a.EnsureRoom("ABC123", "instructor-1")
	a.GrantControl("ABC123", types.Requester{ID: "student-1"})
	a.RequestControl("ABC123", types.Requester{ID: "student-2"})

	require.True(t, a.RevokeControl("ABC123"))

	editor, ok := a.CurrentEditor("ABC123")
	require.True(t, ok)
	assert.Equal(t, "instructor-1", editor)

	// Revocation leaves the queue alone.
	pending := a.PendingRequests("ABC123")
	require.Len(t, pending, 1)
	assert.Equal(t, "student-2", pending[0].ID)
}

func TestDropRoomDiscardsState(t *testing.T) {
	a := NewArbiter()
	a.EnsureRoom("ABC123", "instructor-1")
	a.DropRoom("ABC123")

	_, ok := a.CurrentEditor("ABC123")
	assert.False(t, ok)
	assert.Nil(t, a.PendingRequests("ABC123"))
}
