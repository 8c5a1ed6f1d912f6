package ws

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

type MockConn struct {
	in       chan *Packet
	id       string
	done     chan struct{}
	hub      Hub
	received chan *Packet
	record   bool
	// stall makes writeLoop stop draining in, simulating a consumer that
	// cannot keep up.
	stall      bool
	reading    atomic.Bool
	writing    atomic.Bool
	closeDelay time.Duration
	closeOnce  sync.Once
}

func NewMockConn(id string, hub Hub) *MockConn {
	return &MockConn{
		id: id,
		// buffered so a send cannot race the write loop reaching its select
		in:       make(chan *Packet, 16),
		done:     make(chan struct{}),
		received: make(chan *Packet, 64),
		record:   true,
		hub:      hub,
	}
}

func (c *MockConn) pass() chan<- *Packet {
	return c.in
}

func (c *MockConn) close() {
	c.closeOnce.Do(func() {
		if c.closeDelay > 0 {
			time.Sleep(c.closeDelay)
		}
		close(c.done)
	})
}

func (c *MockConn) ID() string {
	return c.id
}

func (c *MockConn) readLoop() {
	c.reading.Store(true)
	defer c.reading.Store(false)
	<-c.done
}

func (c *MockConn) writeLoop() {
	c.writing.Store(true)
	defer c.writing.Store(false)
	if c.stall {
		<-c.done
		return
	}
	for {
		select {
		case p := <-c.in:
			if c.record {
				c.received <- p
			}
		case <-c.done:
			return
		}
	}
}

// MockHub records inbound packets and disconnect notifications so conn pump
// tests can run without a real hub loop.
type MockHub struct {
	in           chan *Packet
	disconnected chan Conn
}

func NewMockHub() *MockHub {
	return &MockHub{
		in:           make(chan *Packet, 64),
		disconnected: make(chan Conn, 4),
	}
}

func (h *MockHub) Connect(Conn)                                 {}
func (h *MockHub) Disconnect(c Conn)                            { h.disconnected <- c }
func (h *MockHub) Start()                                       {}
func (h *MockHub) Close()                                       {}
func (h *MockHub) ServeHTTP(http.ResponseWriter, *http.Request) {}
func (h *MockHub) pass(p *Packet)                               { h.in <- p }
func (h *MockHub) OnPacket(func(HubActions, *Packet))           {}
func (h *MockHub) OnConnect(func(HubActions, Conn))             {}
func (h *MockHub) OnDisconnect(func(HubActions, Conn))          {}

type MockConnFactory struct {
	shouldFail bool
}

func (f *MockConnFactory) NewConn(w http.ResponseWriter, r *http.Request,
	hub Hub, id string) (Conn, bool) {
	if f.shouldFail {
		return nil, false
	}
	return NewMockConn(id, hub), true
}
