package types

import "time"

// Inbound event types (client -> server).
const (
	EventJoinRoom        = "join-room"
	EventCodeUpdate      = "code-update"
	EventSendMessage     = "send-message"
	EventSendReaction    = "send-reaction"
	EventBroadcastPrompt = "broadcast-prompt"
	EventRequestControl  = "request-control"
	EventGrantControl    = "grant-control"
	EventDenyControl     = "deny-control"
	EventRevokeControl   = "revoke-control"
)

// Outbound event types (server -> client).
const (
	EventParticipantsUpdate = "participants-update"
	EventNewMessage         = "new-message"
	EventNewReaction        = "new-reaction"
	EventNewPrompt          = "new-prompt"
	EventNewControlRequest  = "new-control-request"
	EventControlGranted     = "control-granted"
	EventRequestDenied      = "request-denied"
	EventControlRevoked     = "control-revoked"
	EventUpdateRejected     = "update-rejected"
)

// Event is the wire envelope for everything crossing the WebSocket.
// Data is left generic; handlers decode it with DecodeData.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

func NewEvent(eventType string, data any) Event {
	return Event{Type: eventType, Data: data}
}

// Inbound payloads. Field names follow the client protocol.

type JoinRoomPayload struct {
	Room   string `json:"room"`
	UserID string `json:"userId"`
}

type CodeUpdatePayload struct {
	Room string `json:"room"`
	Code string `json:"code"`
}

type SendMessagePayload struct {
	Room string `json:"room"`
	User string `json:"user"`
	Text string `json:"text"`
}

type SendReactionPayload struct {
	Room     string `json:"room"`
	UserID   string `json:"userId"`
	Reaction string `json:"reaction"`
}

type BroadcastPromptPayload struct {
	Room   string        `json:"room"`
	Prompt PromptContent `json:"prompt"`
}

// PromptContent is the prompt body relayed into a room. Relay is verbatim;
// the server neither stores nor validates it beyond JSON shape.
type PromptContent struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StarterCode string `json:"starterCode"`
}

type RequestControlPayload struct {
	Room      string    `json:"room"`
	Requester Requester `json:"requester"`
}

type GrantControlPayload struct {
	Room       string    `json:"room"`
	Controller Requester `json:"controller"`
}

type DenyControlPayload struct {
	Room        string `json:"room"`
	RequesterID string `json:"requesterId"`
}

type RevokeControlPayload struct {
	Room string `json:"room"`
}

// Outbound payloads.

type CodeBroadcast struct {
	Code string `json:"code"`
}

type MessageBroadcast struct {
	User      string    `json:"user"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type ReactionBroadcast struct {
	UserID   string `json:"userId"`
	Reaction string `json:"reaction"`
}

type PromptBroadcast struct {
	Prompt PromptContent `json:"prompt"`
}

type ControlRequestNotice struct {
	Requester Requester `json:"requester"`
}

type ControlGrantedBroadcast struct {
	Controller Requester `json:"controller"`
}
