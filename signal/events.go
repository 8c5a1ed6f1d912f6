package signal

import "encoding/json"

// Client-emitted event types.
const (
	EventCreateRoom   = "create-room"
	EventJoinRoom     = "join-room"
	EventLeaveRoom    = "leave-room"
	EventStartSharing = "start-sharing"
	EventStopSharing  = "stop-sharing"
	EventSendMessage  = "send-message"
	EventChangeName   = "change-name"
)

// Server-emitted event types.
const (
	EventRoomCreated        = "room-created"
	EventRoomError          = "room-error"
	EventRoomNotFound       = "room-not-found"
	EventGetMessages        = "get-messages"
	EventGetUsers           = "get-users"
	EventUserJoined         = "user-joined"
	EventUserDisconnected   = "user-disconnected"
	EventUserStartedSharing = "user-started-sharing"
	EventUserStoppedSharing = "user-stopped-sharing"
	EventAddMessage         = "add-message"
	EventNameChanged        = "name-changed"
)

// JoinRoomBody is the payload of a join-room event. PeerID and UserName are
// optional as a pair: a probe join carries neither and only subscribes the
// connection to the room without registering a participant.
type JoinRoomBody struct {
	RoomID   string `json:"roomId" validate:"required"`
	PeerID   string `json:"peerId,omitempty"`
	UserName string `json:"userName,omitempty"`
}

type LeaveRoomBody struct {
	RoomID string `json:"roomId" validate:"required"`
	PeerID string `json:"peerId" validate:"required"`
}

type StartSharingBody struct {
	RoomID string `json:"roomId" validate:"required"`
	PeerID string `json:"peerId" validate:"required"`
}

type StopSharingBody struct {
	RoomID string `json:"roomId" validate:"required"`
}

// SendMessageBody carries a chat message. The message itself is relayed
// opaquely; no schema is enforced on it.
type SendMessageBody struct {
	RoomID  string          `json:"roomId" validate:"required"`
	Message json.RawMessage `json:"message" validate:"required"`
}

type ChangeNameBody struct {
	RoomID   string `json:"roomId" validate:"required"`
	PeerID   string `json:"peerId" validate:"required"`
	UserName string `json:"userName" validate:"required"`
}

type RoomCreatedBody struct {
	RoomID string `json:"roomId"`
}

type RoomNotFoundBody struct {
	RoomID string `json:"roomId"`
}

type RoomErrorBody struct {
	Message string `json:"message"`
}

type UserJoinedBody struct {
	PeerID   string `json:"peerId"`
	UserName string `json:"userName"`
}

// RosterBody is sent to a joining connection so it can initiate peer
// connections to the room's existing members.
type RosterBody struct {
	RoomID       string            `json:"roomId"`
	Participants map[string]string `json:"participants"`
}

type NameChangedBody struct {
	PeerID   string `json:"peerId"`
	UserName string `json:"userName"`
}
