package ws

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gorilla/websocket"
)

// Packet is the unit of exchange between clients and the hub. Inbound packets
// carry the sender's connection id; the field is never sent on the wire.
type Packet struct {
	Sender string `json:"-"`
	Type   string `json:"type"`
	// Body is the body of the packet.
	// It is decoded into a specific type in the handler.
	Body json.RawMessage `json:"body,omitempty"`
}

// NewPacket builds an outbound packet with the body marshalled as JSON.
func NewPacket(t string, body any) (*Packet, error) {
	if body == nil {
		return &Packet{Type: t}, nil
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s body: %w", t, err)
	}
	return &Packet{Type: t, Body: b}, nil
}

func decodePacket(mt int, r io.Reader) (*Packet, error) {
	if mt != websocket.TextMessage {
		return nil, fmt.Errorf("unexpected message type: %d", mt)
	}

	var packet Packet
	if err := json.NewDecoder(r).Decode(&packet); err != nil {
		return nil, fmt.Errorf("json.Decoder.Decode: %w", err)
	}
	return &packet, nil
}

func encodePacket(next func(mt int) (io.WriteCloser, error), packet *Packet) error {
	w, err := next(websocket.TextMessage)
	if err != nil {
		return fmt.Errorf("NextWriter: %w", err)
	}
	defer w.Close()

	if err := json.NewEncoder(w).Encode(packet); err != nil {
		return fmt.Errorf("json.Encoder.Encode: %w", err)
	}

	return nil
}
