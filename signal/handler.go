package signal

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/linguahub/signaling/internal/metrics"
	"github.com/linguahub/signaling/ws"
)

var validate = validator.New()

// session records which room and peer id a connection is associated with. The
// connection layer consults it on disconnect to run the implicit leave.
type session struct {
	roomID string
	peerID string
}

// Handler implements the signaling event protocol on top of a ws hub. All of
// its methods run on the hub loop goroutine, so the session map and the
// registry need no locks.
type Handler struct {
	reg      *Registry
	sessions map[string]session
	logger   *slog.Logger
}

func NewHandler(reg *Registry, logger *slog.Logger) *Handler {
	return &Handler{
		reg:      reg,
		sessions: make(map[string]session),
		logger:   logger,
	}
}

// Register mounts the protocol handlers on the router.
func (h *Handler) Register(r *ws.Router) {
	r.On(EventCreateRoom, h.CreateRoom)
	r.On(EventJoinRoom, h.JoinRoom)
	r.On(EventLeaveRoom, h.LeaveRoom)
	r.On(EventStartSharing, h.StartSharing)
	r.On(EventStopSharing, h.StopSharing)
	r.On(EventSendMessage, h.SendMessage)
	r.On(EventChangeName, h.ChangeName)
}

// CreateRoom allocates a fresh room and reports its id to the caller. There is
// no broadcast: the room has no other members yet.
func (h *Handler) CreateRoom(a ws.HubActions, p *ws.Packet) error {
	id := h.reg.CreateRoom()
	metrics.RoomsActive.Set(float64(h.reg.RoomCount()))

	pkt, err := ws.NewPacket(EventRoomCreated, RoomCreatedBody{RoomID: id})
	if err != nil {
		return err
	}
	a.Send(pkt, p.Sender)
	h.logger.Info("room created", slog.String("room.id", id))
	return nil
}

// JoinRoom subscribes the connection to a room. The room's chat history is
// replayed to the caller first, then the join is broadcast to the other
// members, then the caller receives the full roster.
func (h *Handler) JoinRoom(a ws.HubActions, p *ws.Packet) error {
	var body JoinRoomBody
	if err := json.Unmarshal(p.Body, &body); err != nil {
		h.sendError(a, p.Sender, "malformed join-room body")
		return fmt.Errorf("unmarshal join-room: %w", err)
	}
	if err := validate.Struct(body); err != nil {
		h.sendError(a, p.Sender, "room id is required")
		return nil
	}

	if !h.reg.RoomExists(body.RoomID) {
		pkt, err := ws.NewPacket(EventRoomNotFound, RoomNotFoundBody{RoomID: body.RoomID})
		if err != nil {
			return err
		}
		a.Send(pkt, p.Sender)
		return nil
	}

	// a connection is attached to at most one room for its lifetime
	prev, rejoining := h.sessions[p.Sender]
	if rejoining && prev.roomID != body.RoomID {
		h.sendError(a, p.Sender, "connection already joined another room")
		return nil
	}

	// a rejoin must leave the roster consistent with live registrations: a
	// probe rejoin keeps the prior registration, a rejoin under a new peer id
	// retires the old one
	if rejoining && prev.peerID != "" && prev.peerID != body.PeerID {
		if body.PeerID == "" && body.UserName == "" {
			body.PeerID = prev.peerID
		} else {
			h.reg.RemoveParticipant(body.RoomID, prev.peerID)
			gonePkt, err := ws.NewPacket(EventUserDisconnected, prev.peerID)
			if err != nil {
				return err
			}
			a.Send(gonePkt, h.reg.Members(body.RoomID, p.Sender)...)
			metrics.EventsRelayed.WithLabelValues(EventUserDisconnected).Inc()
		}
	}

	history, roster, _ := h.reg.Join(body.RoomID, p.Sender, body.PeerID, body.UserName)

	// history replay must reach the joiner before any of its own or later
	// messages
	histPkt, err := ws.NewPacket(EventGetMessages, history)
	if err != nil {
		return err
	}
	a.Send(histPkt, p.Sender)

	registered := body.PeerID != "" && body.UserName != ""
	if registered {
		joinPkt, err := ws.NewPacket(EventUserJoined, UserJoinedBody{PeerID: body.PeerID, UserName: body.UserName})
		if err != nil {
			return err
		}
		a.Send(joinPkt, h.reg.Members(body.RoomID, p.Sender)...)
		metrics.EventsRelayed.WithLabelValues(EventUserJoined).Inc()
	}

	h.sessions[p.Sender] = session{roomID: body.RoomID, peerID: body.PeerID}

	rosterPkt, err := ws.NewPacket(EventGetUsers, RosterBody{RoomID: body.RoomID, Participants: roster})
	if err != nil {
		return err
	}
	a.Send(rosterPkt, p.Sender)

	h.logger.Info("join",
		slog.String("room.id", body.RoomID),
		slog.String("peer.id", body.PeerID),
		slog.Bool("registered", registered))
	return nil
}

// LeaveRoom broadcasts the departure, removes the peer from the roster and
// drops the connection's session.
func (h *Handler) LeaveRoom(a ws.HubActions, p *ws.Packet) error {
	var body LeaveRoomBody
	if err := json.Unmarshal(p.Body, &body); err != nil {
		return fmt.Errorf("unmarshal leave-room: %w", err)
	}
	if err := validate.Struct(body); err != nil {
		return nil
	}
	if !h.reg.IsMember(body.RoomID, p.Sender) {
		return nil
	}

	members := h.reg.Members(body.RoomID, p.Sender)
	pkt, err := ws.NewPacket(EventUserDisconnected, body.PeerID)
	if err != nil {
		return err
	}
	a.Send(pkt, members...)
	metrics.EventsRelayed.WithLabelValues(EventUserDisconnected).Inc()

	h.reg.Leave(body.RoomID, p.Sender, body.PeerID)
	delete(h.sessions, p.Sender)
	metrics.RoomsActive.Set(float64(h.reg.RoomCount()))

	h.logger.Info("leave", slog.String("room.id", body.RoomID), slog.String("peer.id", body.PeerID))
	return nil
}

// StartSharing relays the screen-share start to the other members. No sharing
// state is kept in the registry; this is a pure relay.
func (h *Handler) StartSharing(a ws.HubActions, p *ws.Packet) error {
	var body StartSharingBody
	if err := json.Unmarshal(p.Body, &body); err != nil {
		return fmt.Errorf("unmarshal start-sharing: %w", err)
	}
	if err := validate.Struct(body); err != nil {
		return nil
	}
	if !h.reg.IsMember(body.RoomID, p.Sender) {
		return nil
	}

	pkt, err := ws.NewPacket(EventUserStartedSharing, body.PeerID)
	if err != nil {
		return err
	}
	a.Send(pkt, h.reg.Members(body.RoomID, p.Sender)...)
	metrics.EventsRelayed.WithLabelValues(EventUserStartedSharing).Inc()
	return nil
}

// StopSharing relays the screen-share stop to the other members.
func (h *Handler) StopSharing(a ws.HubActions, p *ws.Packet) error {
	var body StopSharingBody
	if err := json.Unmarshal(p.Body, &body); err != nil {
		return fmt.Errorf("unmarshal stop-sharing: %w", err)
	}
	if err := validate.Struct(body); err != nil {
		return nil
	}
	if !h.reg.IsMember(body.RoomID, p.Sender) {
		return nil
	}

	pkt, err := ws.NewPacket(EventUserStoppedSharing, nil)
	if err != nil {
		return err
	}
	a.Send(pkt, h.reg.Members(body.RoomID, p.Sender)...)
	metrics.EventsRelayed.WithLabelValues(EventUserStoppedSharing).Inc()
	return nil
}

// SendMessage appends the message to the room history and relays it to the
// other members. Only connections subscribed to the room may relay into it.
func (h *Handler) SendMessage(a ws.HubActions, p *ws.Packet) error {
	var body SendMessageBody
	if err := json.Unmarshal(p.Body, &body); err != nil {
		return fmt.Errorf("unmarshal send-message: %w", err)
	}
	if err := validate.Struct(body); err != nil {
		return nil
	}
	if !h.reg.IsMember(body.RoomID, p.Sender) {
		return nil
	}

	h.reg.AppendMessage(body.RoomID, body.Message)

	pkt, err := ws.NewPacket(EventAddMessage, body.Message)
	if err != nil {
		return err
	}
	a.Send(pkt, h.reg.Members(body.RoomID, p.Sender)...)
	metrics.EventsRelayed.WithLabelValues(EventAddMessage).Inc()
	return nil
}

// ChangeName updates a registered participant's display name and relays the
// change. Renaming an unknown room or peer is a silent no-op.
func (h *Handler) ChangeName(a ws.HubActions, p *ws.Packet) error {
	var body ChangeNameBody
	if err := json.Unmarshal(p.Body, &body); err != nil {
		return fmt.Errorf("unmarshal change-name: %w", err)
	}
	if err := validate.Struct(body); err != nil {
		return nil
	}
	if !h.reg.IsMember(body.RoomID, p.Sender) {
		return nil
	}
	if !h.reg.Rename(body.RoomID, body.PeerID, body.UserName) {
		return nil
	}

	pkt, err := ws.NewPacket(EventNameChanged, NameChangedBody{PeerID: body.PeerID, UserName: body.UserName})
	if err != nil {
		return err
	}
	a.Send(pkt, h.reg.Members(body.RoomID, p.Sender)...)
	metrics.EventsRelayed.WithLabelValues(EventNameChanged).Inc()
	return nil
}

// HandleDisconnect runs the implicit leave for a dropped connection. The
// departure is only broadcast when the connection had registered a peer id;
// probe joins unsubscribe silently.
func (h *Handler) HandleDisconnect(a ws.HubActions, connID string) {
	s, ok := h.sessions[connID]
	if !ok {
		return
	}
	delete(h.sessions, connID)

	if s.peerID != "" {
		members := h.reg.Members(s.roomID, connID)
		pkt, err := ws.NewPacket(EventUserDisconnected, s.peerID)
		if err != nil {
			h.logger.Error(fmt.Sprintf("disconnect broadcast: %v", err))
		} else {
			a.Send(pkt, members...)
			metrics.EventsRelayed.WithLabelValues(EventUserDisconnected).Inc()
		}
	}

	h.reg.Leave(s.roomID, connID, s.peerID)
	metrics.RoomsActive.Set(float64(h.reg.RoomCount()))

	h.logger.Info("disconnect",
		slog.String("room.id", s.roomID),
		slog.String("peer.id", s.peerID))
}

func (h *Handler) sendError(a ws.HubActions, to, msg string) {
	pkt, err := ws.NewPacket(EventRoomError, RoomErrorBody{Message: msg})
	if err != nil {
		h.logger.Error(fmt.Sprintf("room-error: %v", err))
		return
	}
	a.Send(pkt, to)
}
