// Package router dispatches inbound client events to the coordination
// components and fans outbound events back through the room registry.
package router

import (
	"context"
	"time"

	"go.uber.org/zap"

	"codecast/internal/control"
	"codecast/internal/metrics"
	"codecast/internal/presence"
	"codecast/internal/rooms"
	"codecast/pkg/interfaces"
	"codecast/pkg/types"
)

// Router holds no per-event state of its own; every handler's effect lands in
// the presence directory, room registry, or control arbiter. Handlers never
// propagate errors to the transport: an unresolved room, an offline target,
// or a failed send all degrade to a logged no-op, matching at-most-once relay
// semantics.
type Router struct {
	presence  *presence.Directory
	rooms     *rooms.Registry
	arbiter   *control.Arbiter
	directory interfaces.SessionDirectory
	metrics   *metrics.Metrics
	log       *zap.Logger

	// enforceEditor turns on server-side rejection of code updates from a
	// non-editor. Off by default: the shipped protocol trusts the client UI
	// to gate edits, and flipping this changes observable behavior.
	enforceEditor bool
}

func NewRouter(
	presenceDir *presence.Directory,
	roomRegistry *rooms.Registry,
	arbiter *control.Arbiter,
	directory interfaces.SessionDirectory,
	m *metrics.Metrics,
	log *zap.Logger,
	enforceEditor bool,
) *Router {
	return &Router{
		presence:      presenceDir,
		rooms:         roomRegistry,
		arbiter:       arbiter,
		directory:     directory,
		metrics:       m,
		log:           log,
		enforceEditor: enforceEditor,
	}
}

// HandleEvent routes one inbound event. Called from the connection's read
// pump, so events from a single connection are processed in arrival order;
// events from different connections interleave and handlers take no
// atomicity across calls.
func (r *Router) HandleEvent(ctx context.Context, conn interfaces.Connection, ev types.Event) {
	r.metrics.EventRouted(ev.Type)

	switch ev.Type {
	case types.EventJoinRoom:
		r.handleJoinRoom(ctx, conn, ev)
	case types.EventCodeUpdate:
		r.handleCodeUpdate(conn, ev)
	case types.EventSendMessage:
		r.handleSendMessage(ev)
	case types.EventSendReaction:
		r.handleSendReaction(ev)
	case types.EventBroadcastPrompt:
		r.handleBroadcastPrompt(ev)
	case types.EventRequestControl:
		r.handleRequestControl(ctx, ev)
	case types.EventGrantControl:
		r.handleGrantControl(ev)
	case types.EventDenyControl:
		r.handleDenyControl(ev)
	case types.EventRevokeControl:
		r.handleRevokeControl(ev)
	default:
		r.log.Debug("unknown event type", zap.String("type", ev.Type))
	}
}

// HandleDisconnect cleans up after a closed connection: the presence entry
// matching this exact connection goes away, and the connection leaves every
// room. A user who already reconnected keeps their newer presence entry.
func (r *Router) HandleDisconnect(conn interfaces.Connection) {
	if userID, ok := r.presence.Remove(conn); ok {
		r.log.Info("presence removed", zap.String("user", userID))
	}
	r.rooms.Leave(conn)
	r.metrics.SetActiveRooms(r.rooms.Count())
}

func (r *Router) handleJoinRoom(ctx context.Context, conn interfaces.Connection, ev types.Event) {
	var payload types.JoinRoomPayload
	if err := types.DecodeData(ev.Data, &payload); err != nil {
		r.log.Debug("malformed join-room payload", zap.Error(err))
		return
	}

	r.rooms.Join(payload.Room, conn)
	r.presence.Record(payload.UserID, conn)
	r.metrics.SetActiveRooms(r.rooms.Count())

	info, err := r.directory.ResolveInviteCode(ctx, payload.Room)
	if err != nil {
		// Unknown invite code: the connection stays in the transport group
		// but gets no roster. The client re-issues join-room on desync.
		r.log.Debug("join-room for unresolved invite code",
			zap.String("room", payload.Room), zap.Error(err))
		return
	}

	r.arbiter.EnsureRoom(payload.Room, info.InstructorID)
	r.rooms.Broadcast(payload.Room, types.NewEvent(types.EventParticipantsUpdate, info.Participants))

	r.log.Info("user joined room",
		zap.String("room", payload.Room),
		zap.String("user", payload.UserID),
	)
}

func (r *Router) handleCodeUpdate(conn interfaces.Connection, ev types.Event) {
	var payload types.CodeUpdatePayload
	if err := types.DecodeData(ev.Data, &payload); err != nil {
		r.log.Debug("malformed code-update payload", zap.Error(err))
		return
	}

	if r.enforceEditor {
		editor, ok := r.arbiter.CurrentEditor(payload.Room)
		if !ok || editor != conn.UserID() {
			r.rooms.Send(conn, types.NewEvent(types.EventUpdateRejected, nil))
			return
		}
	}

	// Relay to everyone but the sender; the sender's editor already shows
	// the change.
	r.rooms.BroadcastExcept(payload.Room, conn,
		types.NewEvent(types.EventCodeUpdate, types.CodeBroadcast{Code: payload.Code}))
}

func (r *Router) handleSendMessage(ev types.Event) {
	var payload types.SendMessagePayload
	if err := types.DecodeData(ev.Data, &payload); err != nil {
		r.log.Debug("malformed send-message payload", zap.Error(err))
		return
	}

	r.rooms.Broadcast(payload.Room, types.NewEvent(types.EventNewMessage, types.MessageBroadcast{
		User:      payload.User,
		Text:      payload.Text,
		Timestamp: time.Now().UTC(),
	}))
}

func (r *Router) handleSendReaction(ev types.Event) {
	var payload types.SendReactionPayload
	if err := types.DecodeData(ev.Data, &payload); err != nil {
		r.log.Debug("malformed send-reaction payload", zap.Error(err))
		return
	}

	// Reactions echo back to the sender too; expiry is the client's business.
	r.rooms.Broadcast(payload.Room, types.NewEvent(types.EventNewReaction, types.ReactionBroadcast{
		UserID:   payload.UserID,
		Reaction: payload.Reaction,
	}))
}

func (r *Router) handleBroadcastPrompt(ev types.Event) {
	var payload types.BroadcastPromptPayload
	if err := types.DecodeData(ev.Data, &payload); err != nil {
		r.log.Debug("malformed broadcast-prompt payload", zap.Error(err))
		return
	}

	r.rooms.Broadcast(payload.Room, types.NewEvent(types.EventNewPrompt, types.PromptBroadcast{
		Prompt: payload.Prompt,
	}))
}

func (r *Router) handleRequestControl(ctx context.Context, ev types.Event) {
	var payload types.RequestControlPayload
	if err := types.DecodeData(ev.Data, &payload); err != nil {
		r.log.Debug("malformed request-control payload", zap.Error(err))
		return
	}

	info, err := r.directory.ResolveInviteCode(ctx, payload.Room)
	if err != nil {
		r.log.Debug("request-control for unresolved invite code",
			zap.String("room", payload.Room), zap.Error(err))
		return
	}

	r.arbiter.EnsureRoom(payload.Room, info.InstructorID)
	if !r.arbiter.RequestControl(payload.Room, payload.Requester) {
		return
	}

	instructorConn, ok := r.presence.Resolve(info.InstructorID)
	if !ok {
		// Instructor offline: the request stays pending but nobody is told.
		// No retry by design.
		r.log.Debug("instructor offline, control request dropped",
			zap.String("room", payload.Room),
			zap.String("requester", payload.Requester.ID),
		)
		return
	}

	r.rooms.Send(instructorConn, types.NewEvent(types.EventNewControlRequest, types.ControlRequestNotice{
		Requester: payload.Requester,
	}))
}

func (r *Router) handleGrantControl(ev types.Event) {
	var payload types.GrantControlPayload
	if err := types.DecodeData(ev.Data, &payload); err != nil {
		r.log.Debug("malformed grant-control payload", zap.Error(err))
		return
	}

	if !r.arbiter.GrantControl(payload.Room, payload.Controller) {
		return
	}

	r.rooms.Broadcast(payload.Room, types.NewEvent(types.EventControlGranted, types.ControlGrantedBroadcast{
		Controller: payload.Controller,
	}))
}

func (r *Router) handleDenyControl(ev types.Event) {
	var payload types.DenyControlPayload
	if err := types.DecodeData(ev.Data, &payload); err != nil {
		r.log.Debug("malformed deny-control payload", zap.Error(err))
		return
	}

	r.arbiter.DenyControl(payload.Room, payload.RequesterID)

	// Denial goes to the requester alone, never the room.
	requesterConn, ok := r.presence.Resolve(payload.RequesterID)
	if !ok {
		return
	}
	r.rooms.Send(requesterConn, types.NewEvent(types.EventRequestDenied, nil))
}

func (r *Router) handleRevokeControl(ev types.Event) {
	var payload types.RevokeControlPayload
	if err := types.DecodeData(ev.Data, &payload); err != nil {
		r.log.Debug("malformed revoke-control payload", zap.Error(err))
		return
	}

	if !r.arbiter.RevokeControl(payload.Room) {
		return
	}

	r.rooms.Broadcast(payload.Room, types.NewEvent(types.EventControlRevoked, nil))
}
