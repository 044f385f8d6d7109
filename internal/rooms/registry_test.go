package rooms

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"codecast/pkg/types"
)

type fakeConn struct {
	id     string
	userID string
	events []types.Event
	err    error
}

func (f *fakeConn) ID() string     { return f.id }
func (f *fakeConn) UserID() string { return f.userID }
func (f *fakeConn) WriteEvent(ev types.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}
func (f *fakeConn) Close() error { return nil }

func TestBroadcastReachesAllMembers(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	a := &fakeConn{id: "c1", userID: "user-1"}
	b := &fakeConn{id: "c2", userID: "user-2"}
	r.Join("ABC123", a)
	r.Join("ABC123", b)

	r.Broadcast("ABC123", types.NewEvent("new-message", nil))

	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	assert.Equal(t, "new-message", a.events[0].Type)
}

func TestBroadcastExceptSkipsSender(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	sender := &fakeConn{id: "c1", userID: "user-1"}
	other := &fakeConn{id: "c2", userID: "user-2"}
	r.Join("ABC123", sender)
	r.Join("ABC123", other)

	r.BroadcastExcept("ABC123", sender, types.NewEvent("code-update", nil))

	assert.Empty(t, sender.events)
	require.Len(t, other.events, 1)
}

func TestBroadcastToUnknownRoom(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	// Must not panic.
	r.Broadcast("NOROOM", types.NewEvent("new-message", nil))
	assert.Equal(t, 0, r.Count())
}

func TestBroadcastIsScopedToRoom(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	inRoom := &fakeConn{id: "c1", userID: "user-1"}
	elsewhere := &fakeConn{id: "c2", userID: "user-2"}
	r.Join("ABC123", inRoom)
	r.Join("XYZ789", elsewhere)

	r.Broadcast("ABC123", types.NewEvent("new-reaction", nil))

	require.Len(t, inRoom.events, 1)
	assert.Empty(t, elsewhere.events)
}

func TestFailedWriteIsDropped(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	dead := &fakeConn{id: "c1", userID: "user-1", err: errors.New("broken pipe")}
	live := &fakeConn{id: "c2", userID: "user-2"}
	r.Join("ABC123", dead)
	r.Join("ABC123", live)

	// The dead peer must not block delivery to the rest of the room.
	r.Broadcast("ABC123", types.NewEvent("new-message", nil))

	require.Len(t, live.events, 1)
}

func TestLeaveRemovesFromAllRoomsAndPrunes(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	conn := &fakeConn{id: "c1", userID: "user-1"}
	other := &fakeConn{id: "c2", userID: "user-2"}
	r.Join("ABC123", conn)
	r.Join("XYZ789", conn)
	r.Join("ABC123", other)

	r.Leave(conn)

	assert.Equal(t, 1, r.Members("ABC123"))
	assert.Equal(t, 0, r.Members("XYZ789"))
	assert.Equal(t, 1, r.Count())
}

func TestSendNilConnection(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	// Must not panic.
	r.Send(nil, types.NewEvent("new-message", nil))
}
