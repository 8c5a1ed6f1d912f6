package ws

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	defaultMaxMessageSize = 4096

	// Outbound packets buffered per connection before the hub drops it.
	defaultSendBuffer = 256
)

type WSConn struct {
	conn      *websocket.Conn
	id        string
	in        chan *Packet
	hub       Hub
	ticker    *time.Ticker
	logger    *slog.Logger
	closeOnce sync.Once
}

func (c *WSConn) pass() chan<- *Packet {
	return c.in
}

func (c *WSConn) close() {
	c.closeOnce.Do(func() {
		close(c.in)
	})
}

func (c *WSConn) ID() string {
	return c.id
}

func (c *WSConn) readLoop() {
	defer func() {
		c.hub.Disconnect(c)
		c.conn.Close()
		c.logger.Debug("exited read loop", slog.String("conn.id", c.id))
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		mt, r, err := c.conn.NextReader()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug(fmt.Sprintf("expected close: %v", err))
				return
			}
			if websocket.IsUnexpectedCloseError(err) {
				c.logger.Error(fmt.Sprintf("unexpected close: %v", err))
				return
			}
			c.logger.Error(fmt.Sprintf("NextReader: %v", err))
			return
		}

		packet, err := decodePacket(mt, r)
		if err != nil {
			c.logger.Error(fmt.Sprintf("decodePacket: %v", err))
			continue
		}
		packet.Sender = c.id

		c.hub.pass(packet)
	}
}

func (c *WSConn) writeLoop() {
	var err error
	defer func() {
		c.ticker.Stop()
		if err != nil {
			c.conn.Close()
		}
		c.logger.Debug("exited write loop", slog.String("conn.id", c.id))
	}()

	for {
		select {
		case packet, ok := <-c.in:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			err = encodePacket(c.conn.NextWriter, packet)
			if err != nil {
				c.logger.Error(fmt.Sprintf("encodePacket: %v", err))
			}
		case <-c.ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err = c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type WSConnFactory struct {
	upgrader       websocket.Upgrader
	maxMessageSize int64
	sendBuffer     int
	logger         *slog.Logger
}

func NewWSConnFactory(opts ...WSConnFactoryOpt) *WSConnFactory {
	cf := &WSConnFactory{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool {
			return true
		}},
		maxMessageSize: defaultMaxMessageSize,
		sendBuffer:     defaultSendBuffer,
		logger:         slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}

	for _, opt := range opts {
		opt(cf)
	}

	return cf
}

type WSConnFactoryOpt func(*WSConnFactory)

func WithUpgrader(upgrader *websocket.Upgrader) WSConnFactoryOpt {
	return func(cf *WSConnFactory) {
		cf.upgrader = *upgrader
	}
}

func WithMaxMessageSize(n int64) WSConnFactoryOpt {
	return func(cf *WSConnFactory) {
		cf.maxMessageSize = n
	}
}

func WithSendBuffer(n int) WSConnFactoryOpt {
	return func(cf *WSConnFactory) {
		cf.sendBuffer = n
	}
}

func WithConnLogger(logger *slog.Logger) WSConnFactoryOpt {
	return func(cf *WSConnFactory) {
		cf.logger = logger
	}
}

func (f *WSConnFactory) NewConn(w http.ResponseWriter, r *http.Request, hub Hub, id string) (Conn, bool) {
	_conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, false
	}
	_conn.SetReadLimit(f.maxMessageSize)
	conn := &WSConn{
		conn:   _conn,
		id:     id,
		in:     make(chan *Packet, f.sendBuffer),
		hub:    hub,
		ticker: time.NewTicker(pingPeriod),
		logger: f.logger,
	}
	return conn, true
}
