package ws

import (
	"net/http"
)

type Hub interface {
	Connect(Conn)
	Disconnect(Conn)
	Start()
	// Close closes the hub and releases any resources with a time out.
	// It waits for the clean up to complete or until the time out.
	Close()
	// ServeHTTP handles the HTTP request and upgrades the connection to a
	// websocket connection then adds the connection to the hub.
	ServeHTTP(w http.ResponseWriter, r *http.Request)
	// pass passes an inbound packet to the hub loop.
	pass(*Packet)

	OnPacket(func(HubActions, *Packet))

	OnConnect(func(HubActions, Conn))

	OnDisconnect(func(HubActions, Conn))
}

// HubActions is the surface of the hub that packet and lifecycle handlers may
// use. Handlers run on the hub loop goroutine, so calls on HubActions need no
// external synchronization.
type HubActions interface {
	// Send delivers a packet to the connections with the given ids.
	// Unknown ids are skipped. A connection whose send buffer is full is
	// disconnected rather than blocking the loop.
	Send(p *Packet, ids ...string)
}

type ConnFactory interface {
	// NewConn creates a new connection from the request and response.
	// If the connection is created successfully, it returns the connection and true.
	NewConn(w http.ResponseWriter, r *http.Request, hub Hub, id string) (Conn, bool)
}

type Conn interface {
	// pass returns a write-only channel that the hub uses to send packets to the client.
	pass() chan<- *Packet
	// close initiates the closing of the connection.
	// It must be non-blocking and safe to call once.
	close()
	// ID returns the identifier the hub assigned to this connection.
	ID() string
	readLoop()
	writeLoop()
}
