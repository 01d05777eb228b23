// Package ws accepts the game client's WebSocket connection and pumps frames
// between it and the command engine and event registry.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/bedrockbridge/internal/bridge/link"
	"github.com/cory-johannsen/bedrockbridge/internal/bridge/protocol"
	"github.com/cory-johannsen/bedrockbridge/internal/config"
)

// ResponseHandler receives correlated command replies.
type ResponseHandler interface {
	HandleResponse(env protocol.Envelope) bool
}

// EventRouter subscribes new links and dispatches pushed events.
type EventRouter interface {
	OnConnect(ctx context.Context, l link.Link) error
	Dispatch(ctx context.Context, eventName string, body json.RawMessage) int
}

// Acceptor upgrades game client connections and runs one read loop per link.
type Acceptor struct {
	cfg       config.WebSocketConfig
	upgrader  websocket.Upgrader
	links     *link.Registry
	responses ResponseHandler
	events    EventRouter
	logger    *zap.Logger

	seq     atomic.Uint64
	wg      sync.WaitGroup
	mu      sync.Mutex
	conns   map[*Conn]struct{}
	closing bool
}

// NewAcceptor creates an Acceptor that registers every accepted link in links.
//
// Precondition: links, responses, events and logger must be non-nil.
// Postcondition: Returns an Acceptor ready to be mounted as an http.Handler.
func NewAcceptor(cfg config.WebSocketConfig, links *link.Registry, responses ResponseHandler, events EventRouter, logger *zap.Logger) *Acceptor {
	if cfg.EventQueue <= 0 {
		cfg.EventQueue = 64
	}
	return &Acceptor{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			// The game client connects from the local machine with no Origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		links:     links,
		responses: responses,
		events:    events,
		logger:    logger,
		conns:     make(map[*Conn]struct{}),
	}
}

// ServeHTTP upgrades the request and serves the link until it disconnects.
func (a *Acceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	conn := NewConn(fmt.Sprintf("%s#%d", r.RemoteAddr, a.seq.Add(1)), raw, a.cfg.WriteTimeout)
	if !a.track(conn) {
		_ = conn.Close()
		return
	}
	defer a.untrack(conn)

	a.serve(conn)
}

// serve runs the lifetime of one link: register, subscribe, read until the
// peer goes away, then deregister.
func (a *Acceptor) serve(conn *Conn) {
	start := time.Now()
	logger := a.logger.With(zap.String("link", conn.ID()))
	logger.Info("game client connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.links.Add(conn)
	defer func() {
		a.links.Remove(conn)
		_ = conn.Close()
	}()

	if err := a.events.OnConnect(ctx, conn); err != nil {
		logger.Error("subscribing events", zap.Error(err))
		return
	}

	// Events are dispatched one at a time in arrival order on their own
	// goroutine so handlers can await replies that this read loop delivers.
	queue := make(chan protocol.Envelope, a.cfg.EventQueue)
	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		for env := range queue {
			a.events.Dispatch(ctx, env.Header.EventName, env.Body)
		}
	}()
	defer func() {
		// Deregister first so handlers still draining fail fast with no peer.
		a.links.Remove(conn)
		cancel()
		close(queue)
		<-dispatched
	}()

	for {
		data, err := conn.ReadFrame()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("game client read failed", zap.Error(err))
			}
			break
		}
		a.route(logger, queue, data)
	}

	logger.Info("game client disconnected", zap.Duration("duration", time.Since(start)))
}

func (a *Acceptor) route(logger *zap.Logger, queue chan<- protocol.Envelope, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		logger.Warn("dropping frame", zap.Error(err))
		return
	}
	switch env.Header.MessagePurpose {
	case protocol.PurposeCommandResponse, protocol.PurposeError:
		a.responses.HandleResponse(env)
	case protocol.PurposeEvent:
		if env.Header.EventName == "" {
			logger.Warn("dropping event without name")
			return
		}
		select {
		case queue <- env:
		default:
			logger.Warn("event queue full, dropping event",
				zap.String("event", env.Header.EventName),
				zap.Int("capacity", cap(queue)),
			)
		}
	default:
		logger.Debug("ignoring frame", zap.String("purpose", env.Header.MessagePurpose))
	}
}

func (a *Acceptor) track(c *Conn) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closing {
		return false
	}
	a.conns[c] = struct{}{}
	a.wg.Add(1)
	return true
}

func (a *Acceptor) untrack(c *Conn) {
	a.mu.Lock()
	delete(a.conns, c)
	a.mu.Unlock()
	a.wg.Done()
}

// Connections returns the number of links currently being served.
func (a *Acceptor) Connections() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.conns)
}

// Close disconnects every link and waits for their read loops to exit.
// Upgrades arriving afterwards are closed immediately.
//
// Postcondition: No link served by this Acceptor remains registered.
func (a *Acceptor) Close() {
	a.mu.Lock()
	if a.closing {
		a.mu.Unlock()
		return
	}
	a.closing = true
	conns := make([]*Conn, 0, len(a.conns))
	for c := range a.conns {
		conns = append(conns, c)
	}
	a.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	a.wg.Wait()
	a.logger.Info("websocket acceptor stopped")
}
