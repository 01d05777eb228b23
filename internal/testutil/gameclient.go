// Package testutil provides test helpers, including a fake game client that
// speaks the bridge WebSocket protocol.
package testutil

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cory-johannsen/bedrockbridge/internal/bridge/protocol"
)

// Responder decides the reply to one command line: status code and message.
// Returning ok=false leaves the command unanswered.
type Responder func(commandLine string) (status int, message string, ok bool)

// GameClient is a fake game client for integration testing. It records every
// subscription and command it receives and answers commands via a Responder.
type GameClient struct {
	conn *websocket.Conn
	t    *testing.T

	writeMu sync.Mutex

	mu         sync.Mutex
	responder  Responder
	subscribed []string
	commands   []string
	changed    chan struct{}

	done chan struct{}
}

// NewGameClient dials the bridge WebSocket at url ("ws://host:port/path").
//
// Precondition: url must point at a listening bridge.
// Postcondition: Returns a connected client whose read loop is running, or fails the test.
func NewGameClient(t *testing.T, url string) *GameClient {
	t.Helper()
	start := time.Now()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", url, err, time.Since(start))
	}

	c := &GameClient{
		conn:      conn,
		t:         t,
		responder: func(string) (int, string, bool) { return 0, "", true },
		changed:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	t.Cleanup(c.Close)
	go c.readLoop()

	t.Logf("game client connected to %s [%s]", url, time.Since(start))
	return c
}

// SetResponder replaces the reply policy for subsequent commands.
func (c *GameClient) SetResponder(r Responder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responder = r
}

func (c *GameClient) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := protocol.Decode(data)
		if err != nil {
			continue
		}
		switch env.Header.MessagePurpose {
		case protocol.PurposeSubscribe:
			var body protocol.SubscribeBody
			_ = json.Unmarshal(env.Body, &body)
			c.record(func() { c.subscribed = append(c.subscribed, body.EventName) })
		case protocol.PurposeCommandRequest:
			var body protocol.CommandBody
			_ = json.Unmarshal(env.Body, &body)
			c.mu.Lock()
			responder := c.responder
			c.mu.Unlock()
			c.record(func() { c.commands = append(c.commands, body.CommandLine) })
			if status, msg, ok := responder(body.CommandLine); ok {
				c.reply(env.Header.RequestID, status, msg)
			}
		}
	}
}

func (c *GameClient) record(fn func()) {
	c.mu.Lock()
	fn()
	c.mu.Unlock()
	select {
	case c.changed <- struct{}{}:
	default:
	}
}

func (c *GameClient) reply(id string, status int, msg string) {
	body, _ := json.Marshal(map[string]any{"statusCode": status, "statusMessage": msg})
	c.write(protocol.Envelope{
		Header: protocol.Header{Version: protocol.Version, RequestID: id, MessagePurpose: protocol.PurposeCommandResponse},
		Body:   body,
	})
}

// Push sends an event envelope carrying body.
func (c *GameClient) Push(eventName string, body any) {
	c.t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		c.t.Fatalf("encoding %s body: %v", eventName, err)
	}
	c.write(protocol.Envelope{
		Header: protocol.Header{Version: protocol.Version, MessagePurpose: protocol.PurposeEvent, EventName: eventName},
		Body:   raw,
	})
}

func (c *GameClient) write(env protocol.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		c.t.Errorf("encoding envelope: %v", err)
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.t.Logf("game client write: %v", err)
	}
}

// Subscriptions returns the event names subscribed so far.
func (c *GameClient) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.subscribed...)
}

// Commands returns the command lines received so far.
func (c *GameClient) Commands() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.commands...)
}

// WaitForCommand blocks until a received command line contains substr.
//
// Postcondition: Returns the matching command line, or fails the test on timeout.
func (c *GameClient) WaitForCommand(substr string, timeout time.Duration) string {
	c.t.Helper()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		for _, cmd := range c.Commands() {
			if strings.Contains(cmd, substr) {
				return cmd
			}
		}
		select {
		case <-c.changed:
		case <-deadline.C:
			c.t.Fatalf("waiting for command containing %q: got %q", substr, c.Commands())
		}
	}
}

// WaitForSubscriptions blocks until at least n subscriptions have arrived.
func (c *GameClient) WaitForSubscriptions(n int, timeout time.Duration) []string {
	c.t.Helper()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if subs := c.Subscriptions(); len(subs) >= n {
			return subs
		}
		select {
		case <-c.changed:
		case <-deadline.C:
			c.t.Fatalf("waiting for %d subscriptions: got %q", n, c.Subscriptions())
		}
	}
}

// Done is closed when the server side drops the connection.
func (c *GameClient) Done() <-chan struct{} {
	return c.done
}

// Close closes the underlying connection.
func (c *GameClient) Close() {
	c.conn.Close()
}
