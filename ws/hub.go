package ws

import (
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

type HubState int

const (
	StateClosed HubState = iota
	StateClosing
	StateRunning
)

// ConnHub owns the set of live connections and serializes all packet handling
// on a single loop goroutine. Every callback registered with OnConnect,
// OnDisconnect and OnPacket runs on that goroutine, so handler state shared
// between callbacks needs no locks.
type ConnHub struct {
	conns map[string]Conn

	connectChan chan Conn

	disconnectChan chan Conn
	// in carries inbound packets to the loop
	in chan *Packet
	// exit signals the loop to tear down all connections and stop
	exit chan struct{}

	logger *slog.Logger

	onConnect func(HubActions, Conn)

	onDisconnect func(HubActions, Conn)

	onPacket func(HubActions, *Packet)

	connFactory ConnFactory

	// newID allocates an identifier for each accepted connection.
	newID func() string

	closeTimeout time.Duration

	wg sync.WaitGroup

	state HubState
	mu    sync.Mutex
}

func New(cf ConnFactory, opts ...HubOption) *ConnHub {
	hub := &ConnHub{
		conns:          make(map[string]Conn),
		connectChan:    make(chan Conn),
		disconnectChan: make(chan Conn),
		in:             make(chan *Packet),
		exit:           make(chan struct{}),
		logger:         slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})),
		closeTimeout:   time.Second * 10,
		connFactory:    cf,
		newID:          uuid.NewString,
		state:          StateClosed,
	}

	for _, opt := range opts {
		opt(hub)
	}

	return hub
}

type HubOption func(*ConnHub)

func WithLogger(logger *slog.Logger) HubOption {
	return func(h *ConnHub) {
		h.logger = logger
	}
}

func WithCloseTimeout(d time.Duration) HubOption {
	return func(h *ConnHub) {
		h.closeTimeout = d
	}
}

// WithIDFunc overrides how connection ids are allocated.
func WithIDFunc(f func() string) HubOption {
	return func(h *ConnHub) {
		h.newID = f
	}
}

func (hub *ConnHub) OnPacket(f func(HubActions, *Packet)) {
	hub.onPacket = f
}

func (hub *ConnHub) OnConnect(f func(HubActions, Conn)) {
	hub.onConnect = f
}

func (hub *ConnHub) OnDisconnect(f func(HubActions, Conn)) {
	hub.onDisconnect = f
}

func (hub *ConnHub) Start() {
	hub.mu.Lock()
	if hub.state != StateClosed {
		hub.mu.Unlock()
		return
	}
	hub.state = StateRunning
	hub.mu.Unlock()

	hub.wg.Add(1)
	go func() {
		defer func() {
			hub.wg.Done()
			hub.logger.Info("hub stopped")
		}()
		hub.loop()
	}()
	hub.logger.Info("hub started")
}

func (hub *ConnHub) loop() {
	defer func() {
		hub.mu.Lock()
		hub.state = StateClosed
		hub.mu.Unlock()
	}()
	for {
		select {
		case <-hub.exit:
			// tear down the remaining connections before exiting so that
			// every client receives a close frame
			for _, c := range hub.conns {
				hub.dropConn(c)
			}
			return
		case newC := <-hub.connectChan:
			hub.addConn(newC)
		case c := <-hub.disconnectChan:
			hub.dropConn(c)
		case packet := <-hub.in:
			if hub.onPacket != nil {
				hub.onPacket(hub, packet)
			}
		}
	}
}

// Close starts closing the hub and waits for the clean up to complete or
// until the close timeout elapses. The closing sequence is:
//  1. Signal the loop to exit; the loop deregisters and closes every
//     connection on its way out.
//  2. Wait for the loop and the per-connection goroutines to finish.
func (hub *ConnHub) Close() {
	hub.mu.Lock()
	if hub.state != StateRunning {
		hub.mu.Unlock()
		return
	}
	hub.state = StateClosing
	hub.mu.Unlock()

	hub.logger.Info("closing hub...")
	close(hub.exit)

	timer := time.NewTimer(hub.closeTimeout)
	defer timer.Stop()
	done := make(chan struct{})
	go func() {
		hub.wg.Wait()
		close(done)
	}()

	select {
	case <-timer.C:
		hub.logger.Info("hub closed with timeout")
	case <-done:
		hub.logger.Info("hub closed gracefully")
	}
}

func (hub *ConnHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, ok := hub.connFactory.NewConn(w, r, hub, hub.newID())
	if !ok {
		return
	}
	hub.Connect(conn)
}

// Connect hands a connection to the hub loop. It is a no-op when the hub is
// closing.
func (hub *ConnHub) Connect(c Conn) {
	select {
	case hub.connectChan <- c:
	case <-hub.exit:
		c.close()
	}
}

// Disconnect asks the hub loop to deregister and close a connection. Safe to
// call from the connection goroutines after the hub has exited.
func (hub *ConnHub) Disconnect(c Conn) {
	select {
	case hub.disconnectChan <- c:
	case <-hub.exit:
	}
}

func (hub *ConnHub) pass(packet *Packet) {
	select {
	case hub.in <- packet:
	case <-hub.exit:
	}
}

// Send delivers a packet to the connections with the given ids. Must only be
// called from the hub loop goroutine (i.e. from registered callbacks).
func (hub *ConnHub) Send(p *Packet, ids ...string) {
	for _, id := range ids {
		c, ok := hub.conns[id]
		if !ok {
			continue
		}
		hub.sendOrDisconnect(c, p)
	}
}

// sendOrDisconnect sends a packet to a connection. If the send buffer of the
// connection is full, the connection is dropped instead of blocking the loop.
func (hub *ConnHub) sendOrDisconnect(c Conn, p *Packet) {
	select {
	case c.pass() <- p:
	default:
		hub.dropConn(c)
	}
}

func (hub *ConnHub) startConn(conn Conn) {
	hub.wg.Add(1)
	go func() {
		defer hub.wg.Done()
		conn.readLoop()
	}()

	hub.wg.Add(1)
	go func() {
		defer hub.wg.Done()
		conn.writeLoop()
	}()
}

func (hub *ConnHub) addConn(c Conn) {
	hub.startConn(c)
	hub.conns[c.ID()] = c
	hub.logger.Info("new connection", slog.String("conn.id", c.ID()))
	if hub.onConnect != nil {
		hub.onConnect(hub, c)
	}
}

func (hub *ConnHub) dropConn(c Conn) {
	if _, ok := hub.conns[c.ID()]; !ok {
		return
	}
	delete(hub.conns, c.ID())
	c.close()
	hub.logger.Info("connection closed", slog.String("conn.id", c.ID()))
	if hub.onDisconnect != nil {
		hub.onDisconnect(hub, c)
	}
}
