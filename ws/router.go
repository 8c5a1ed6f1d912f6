package ws

import "fmt"

type PacketHandler func(HubActions, *Packet) error

// Router dispatches inbound packets to handlers by packet type. Dispatch
// happens on the hub loop goroutine, so handlers observe packets from a single
// connection in the order they were received.
type Router struct {
	hub      *ConnHub
	handlers map[string]PacketHandler
}

func NewRouter(hub *ConnHub) *Router {
	r := &Router{
		hub:      hub,
		handlers: make(map[string]PacketHandler),
	}
	hub.OnPacket(func(a HubActions, p *Packet) {
		r.dispatch(a, p)
	})
	return r
}

func (r *Router) On(packetType string, h PacketHandler) {
	if _, ok := r.handlers[packetType]; ok {
		panic(fmt.Sprintf("handler(%s): already exists", packetType))
	}
	r.handlers[packetType] = h
}

func (r *Router) dispatch(a HubActions, packet *Packet) {
	h, ok := r.handlers[packet.Type]
	if !ok {
		r.hub.logger.Error(fmt.Sprintf("handler for %s not found", packet.Type))
		return
	}
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.hub.logger.Error(fmt.Sprintf("handler(%s): panic: %v", packet.Type, rec))
			}
		}()
		if err := h(a, packet); err != nil {
			r.hub.logger.Error(fmt.Sprintf("handler(%s): %v", packet.Type, err))
		}
	}()
}
