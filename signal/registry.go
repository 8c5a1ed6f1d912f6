package signal

import (
	"encoding/json"
	"maps"

	"github.com/google/uuid"
)

// Room is an isolated signaling group. It scopes which connections can see
// each other's presence, screen-share state and chat events.
type Room struct {
	// ID is an opaque unguessable identifier allocated on creation.
	ID string
	// participants maps a caller-supplied peer id to its display name.
	participants map[string]string
	// messages is the append-only chat history for the room's lifetime.
	messages []json.RawMessage
	// members is the broadcast group: the set of connection ids currently
	// subscribed to the room.
	members map[string]struct{}
}

// Registry holds every active room in process memory and is the exclusive
// owner of all Room instances. It performs no locking: all mutation must
// happen on the hub loop goroutine, which serializes event handling.
type Registry struct {
	rooms map[string]*Room

	// maxHistory caps the chat history per room. Zero means unbounded.
	maxHistory int

	newID func() string
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		rooms: make(map[string]*Room),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type RegistryOption func(*Registry)

// WithRoomIDFunc overrides how room ids are allocated.
func WithRoomIDFunc(f func() string) RegistryOption {
	return func(r *Registry) {
		r.newID = f
	}
}

// WithMaxHistory caps the per-room chat history at n messages, dropping the
// oldest once full. Zero keeps the entire history for the room lifetime.
func WithMaxHistory(n int) RegistryOption {
	return func(r *Registry) {
		r.maxHistory = n
	}
}

// CreateRoom allocates a room with an empty participant mapping and an empty
// chat history and returns its id.
func (r *Registry) CreateRoom() string {
	id := r.newID()
	r.rooms[id] = &Room{
		ID:           id,
		participants: make(map[string]string),
		members:      make(map[string]struct{}),
	}
	return id
}

// RoomExists reports whether a room with the given id is live.
func (r *Registry) RoomExists(roomID string) bool {
	_, ok := r.rooms[roomID]
	return ok
}

// RoomCount returns the number of live rooms.
func (r *Registry) RoomCount() int {
	return len(r.rooms)
}

// Join subscribes a connection to a room's broadcast group. When both peerID
// and userName are non-empty the peer is registered as a participant,
// overwriting any prior entry under the same peer id. It returns the room's
// chat history, a copy of the current roster and whether the room exists.
func (r *Registry) Join(roomID, connID, peerID, userName string) (history []json.RawMessage, roster map[string]string, ok bool) {
	room, exists := r.rooms[roomID]
	if !exists {
		return nil, nil, false
	}

	room.members[connID] = struct{}{}
	if peerID != "" && userName != "" {
		room.participants[peerID] = userName
	}

	history = make([]json.RawMessage, len(room.messages))
	copy(history, room.messages)
	return history, maps.Clone(room.participants), true
}

// Members returns the connection ids in the room's broadcast group, excluding
// the given connection. A nil slice is returned for an unknown room.
func (r *Registry) Members(roomID, except string) []string {
	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(room.members))
	for id := range room.members {
		if id == except {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// IsMember reports whether the connection is in the room's broadcast group.
func (r *Registry) IsMember(roomID, connID string) bool {
	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	_, ok = room.members[connID]
	return ok
}

// Leave removes the connection from the room's broadcast group and, when a
// peer id is given, the peer from the participant mapping. The room is reaped
// once its broadcast group is empty. It reports whether the room existed.
func (r *Registry) Leave(roomID, connID, peerID string) bool {
	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	delete(room.members, connID)
	if peerID != "" {
		delete(room.participants, peerID)
	}
	if len(room.members) == 0 {
		delete(r.rooms, roomID)
	}
	return true
}

// RemoveParticipant drops a peer from the participant mapping without
// touching the broadcast group. It reports whether the peer was registered.
func (r *Registry) RemoveParticipant(roomID, peerID string) bool {
	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := room.participants[peerID]; !ok {
		return false
	}
	delete(room.participants, peerID)
	return true
}

// AppendMessage appends a chat message to the room's history, dropping the
// oldest message when the configured cap is exceeded. It reports whether the
// room exists.
func (r *Registry) AppendMessage(roomID string, msg json.RawMessage) bool {
	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	room.messages = append(room.messages, msg)
	if r.maxHistory > 0 && len(room.messages) > r.maxHistory {
		room.messages = room.messages[len(room.messages)-r.maxHistory:]
	}
	return true
}

// Rename updates the display name of a currently registered participant. It
// returns false when the room or the participant does not exist.
func (r *Registry) Rename(roomID, peerID, userName string) bool {
	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := room.participants[peerID]; !ok {
		return false
	}
	room.participants[peerID] = userName
	return true
}
