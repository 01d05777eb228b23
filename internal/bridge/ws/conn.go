package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cory-johannsen/bedrockbridge/internal/bridge/link"
)

// ErrClosed is returned by Send after the connection has been closed.
var ErrClosed = link.ErrClosed

// Conn wraps a game client WebSocket and implements link.Link.
// Writes are serialised; gorilla/websocket allows a single concurrent writer.
type Conn struct {
	id  string
	raw *websocket.Conn

	mu           sync.Mutex
	closed       bool
	writeTimeout time.Duration
}

// NewConn wraps raw as a link identified by id.
//
// Precondition: raw must be an open, upgraded connection.
// Postcondition: Returns a Conn ready for Send.
func NewConn(id string, raw *websocket.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{id: id, raw: raw, writeTimeout: writeTimeout}
}

// ID returns the link identity used in logs.
func (c *Conn) ID() string { return c.id }

// Send writes data as a single text frame. The write deadline is the earlier
// of the configured write timeout and the ctx deadline.
//
// Postcondition: Returns ErrClosed once Close has been called.
func (c *Conn) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	var deadline time.Time
	if c.writeTimeout > 0 {
		deadline = time.Now().Add(c.writeTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	_ = c.raw.SetWriteDeadline(deadline)

	if err := c.raw.WriteMessage(websocket.TextMessage, data); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("writing frame: %w: %w", ErrClosed, err)
		}
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// ReadFrame blocks until the next data frame arrives.
func (c *Conn) ReadFrame() ([]byte, error) {
	_, data, err := c.raw.ReadMessage()
	return data, err
}

// Close sends a close frame and closes the socket. Safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.raw.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bridge shutting down"),
		time.Now().Add(time.Second))
	return c.raw.Close()
}
