// Package events subscribes the game client to pushed events and routes each
// push to the handlers registered for its name.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/bedrockbridge/internal/bridge/command"
	"github.com/cory-johannsen/bedrockbridge/internal/bridge/link"
	"github.com/cory-johannsen/bedrockbridge/internal/bridge/protocol"
)

// Handler reacts to one pushed event.
type Handler func(ctx context.Context, ec Context) error

// Registry holds the handlers for each event name. Handlers are registered
// during setup; Dispatch and OnConnect are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	names    []string

	commander command.Commander
	logger    *zap.Logger
}

// NewRegistry creates an empty Registry whose contexts carry commander.
//
// Precondition: commander and logger must be non-nil.
func NewRegistry(commander command.Commander, logger *zap.Logger) *Registry {
	return &Registry{
		handlers:  make(map[string][]Handler),
		commander: commander,
		logger:    logger,
	}
}

// Register appends h to the handlers for eventName. Names are matched exactly
// as transmitted on the wire, e.g. "PlayerMessage".
//
// Precondition: eventName must be non-empty and h non-nil.
func (r *Registry) Register(eventName string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[eventName]; !ok {
		r.names = append(r.names, eventName)
	}
	r.handlers[eventName] = append(r.handlers[eventName], h)
}

// Events returns the registered event names in first-registration order.
func (r *Registry) Events() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// OnConnect sends one subscribe envelope per registered event name over l.
//
// Postcondition: Returns the first send error; names after it are not subscribed.
func (r *Registry) OnConnect(ctx context.Context, l link.Link) error {
	for _, name := range r.Events() {
		frame, err := protocol.NewSubscribe(uuid.NewString(), name)
		if err != nil {
			return fmt.Errorf("encoding subscribe for %s: %w", name, err)
		}
		if err := l.Send(ctx, frame); err != nil {
			return fmt.Errorf("subscribing %s on link %s: %w", name, l.ID(), err)
		}
		r.logger.Debug("subscribed", zap.String("event", name), zap.String("link", l.ID()))
	}
	return nil
}

// Dispatch runs every handler registered for eventName, in registration order.
// Unknown names and undecodable bodies are logged and dropped. A handler that
// fails or panics is logged and does not stop its siblings.
//
// Postcondition: Returns the number of handlers that completed without error.
func (r *Registry) Dispatch(ctx context.Context, eventName string, body json.RawMessage) int {
	r.mu.RLock()
	handlers := r.handlers[eventName]
	r.mu.RUnlock()

	if len(handlers) == 0 {
		r.logger.Info("unhandled event", zap.String("event", eventName))
		return 0
	}

	ec, err := NewContext(eventName, body, r.commander)
	if err != nil {
		r.logger.Warn("dropping event",
			zap.String("event", eventName),
			zap.Error(err),
		)
		return 0
	}

	ok := 0
	for i, h := range handlers {
		if err := invoke(ctx, h, ec); err != nil {
			r.logger.Error("event handler failed",
				zap.String("event", eventName),
				zap.Int("handler", i),
				zap.Error(err),
			)
			continue
		}
		ok++
	}
	return ok
}

func invoke(ctx context.Context, h Handler, ec Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v\n%s", p, debug.Stack())
		}
	}()
	return h(ctx, ec)
}
