package livelog

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/moderniselife/GFM/internal/common/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum inbound message size. Clients only ever send register messages.
	maxMessageSize = 64 * 1024
)

// ErrClosed is returned by Send once the socket has been closed.
var ErrClosed = errors.New("livelog: connection closed")

// Client is one live-log WebSocket connection.
type Client struct {
	conn   *websocket.Conn
	logger *logger.Logger

	id    atomic.Value // string, set on register
	alive atomic.Bool

	writeMu   sync.Mutex
	closed    bool
	closeOnce sync.Once
	done      chan struct{}
}

func newClient(conn *websocket.Conn, log *logger.Logger) *Client {
	c := &Client{
		conn:   conn,
		logger: log,
		done:   make(chan struct{}),
	}
	c.id.Store("")
	c.alive.Store(true)
	return c
}

// ID returns the registered client ID, or "" before registration.
func (c *Client) ID() string {
	return c.id.Load().(string)
}

// Send writes ev as JSON. It never panics; after Close it returns ErrClosed.
func (c *Client) Send(ev Event) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		c.logger.Debug("dropping event for closed socket",
			zap.String("client_id", c.ID()),
			zap.String("type", string(ev.Type)))
		return ErrClosed
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(ev); err != nil {
		c.logger.Debug("live-log write failed", zap.String("client_id", c.ID()), zap.Error(err))
		return err
	}
	return nil
}

// Close sends a normal close frame and releases the connection. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.closed = true
		c.writeMu.Unlock()

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		err = c.conn.Close()
		close(c.done)
	})
	return err
}

// terminate drops the connection without a close handshake.
func (c *Client) terminate() {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.closed = true
		c.writeMu.Unlock()
		_ = c.conn.Close()
		close(c.done)
	})
}

// Done is closed once the connection has been closed or terminated.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Closed reports whether the connection has been closed.
func (c *Client) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// ping marks the client as awaiting a pong and sends a ping frame.
// It returns false when no pong arrived since the previous ping.
func (c *Client) ping() bool {
	if !c.alive.Swap(false) {
		return false
	}
	if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
		c.logger.Debug("ping failed", zap.String("client_id", c.ID()), zap.Error(err))
	}
	return true
}
