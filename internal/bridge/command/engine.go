// Package command turns the push-based game link into a request/response API:
// it sends command envelopes and correlates replies by request id.
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/bedrockbridge/internal/bridge/link"
	"github.com/cory-johannsen/bedrockbridge/internal/bridge/protocol"
)

// DefaultTimeout bounds how long Execute waits for a correlated reply.
const DefaultTimeout = 5 * time.Second

var (
	// ErrNoPeer is returned when no game client is attached, or the link closed
	// or went away while the command was being sent.
	ErrNoPeer = errors.New("no game client connected")
	// ErrCommandTimeout is returned when a correlated reply does not arrive in time.
	ErrCommandTimeout = errors.New("game client did not reply in time")
)

// Commander executes a game command, optionally awaiting its reply.
type Commander interface {
	Execute(ctx context.Context, commandLine string, wait bool) (*protocol.Response, error)
}

// Engine sends commands over the current link and correlates replies.
// It is safe for concurrent use.
type Engine struct {
	links   *link.Registry
	table   *Table
	timeout time.Duration
	logger  *zap.Logger
	newID   func() string
}

// NewEngine creates an Engine sending over links and correlating through table.
// A non-positive timeout selects DefaultTimeout.
//
// Precondition: links, table, and logger must be non-nil.
func NewEngine(links *link.Registry, table *Table, timeout time.Duration, logger *zap.Logger) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Engine{
		links:   links,
		table:   table,
		timeout: timeout,
		logger:  logger,
		newID:   func() string { return uuid.NewString() },
	}
}

// Execute sends commandLine to the game client. When wait is false it returns
// (nil, nil) as soon as the frame is written. When wait is true it blocks the
// calling goroutine until the matching reply arrives, the timeout elapses, or
// ctx is done.
//
// Postcondition: On ErrNoPeer, ErrCommandTimeout, or ctx cancellation no pending
// entry remains for the request.
func (e *Engine) Execute(ctx context.Context, commandLine string, wait bool) (*protocol.Response, error) {
	l, ok := e.links.Current()
	if !ok {
		return nil, ErrNoPeer
	}

	id := e.newID()
	frame, err := protocol.NewCommandRequest(id, commandLine)
	if err != nil {
		return nil, fmt.Errorf("encoding command: %w", err)
	}

	// Register before sending so a fast reply always finds its slot.
	var replyCh <-chan *protocol.Response
	if wait {
		replyCh, err = e.table.Register(id)
		if err != nil {
			return nil, err
		}
	}

	if err := l.Send(ctx, frame); err != nil {
		if wait {
			e.table.Evict(id)
		}
		return nil, e.sendError(l, err)
	}
	e.logger.Debug("command sent",
		zap.String("request_id", id),
		zap.String("command", commandLine),
		zap.Bool("wait", wait),
	)
	if !wait {
		return nil, nil
	}

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case resp := <-replyCh:
		e.logger.Debug("command reply",
			zap.String("request_id", id),
			zap.Int("status", resp.StatusCode),
			zap.String("message", resp.StatusMessage),
		)
		return resp, nil
	case <-timer.C:
		e.table.Evict(id)
		e.logger.Warn("command timed out",
			zap.String("request_id", id),
			zap.String("command", commandLine),
			zap.Duration("timeout", e.timeout),
		)
		return nil, fmt.Errorf("%w: %q after %s", ErrCommandTimeout, commandLine, e.timeout)
	case <-ctx.Done():
		e.table.Evict(id)
		return nil, ctx.Err()
	}
}

// sendError classifies a failed Send. Context errors pass through unchanged;
// a closed link, or one no longer registered, is reported as ErrNoPeer.
func (e *Engine) sendError(l link.Link, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, link.ErrClosed) || !e.attached(l) {
		return fmt.Errorf("sending command on link %s: %w: %w", l.ID(), ErrNoPeer, err)
	}
	return fmt.Errorf("sending command on link %s: %w", l.ID(), err)
}

func (e *Engine) attached(l link.Link) bool {
	cur, ok := e.links.Current()
	return ok && cur == l
}

// HandleResponse fulfils the waiter for a commandResponse envelope. A reply
// whose body cannot be decoded still fulfils its waiter, with a failure status.
//
// Postcondition: Returns true if a waiter was fulfilled; unmatched replies are dropped.
func (e *Engine) HandleResponse(env protocol.Envelope) bool {
	resp, err := protocol.ParseResponse(env)
	if err != nil {
		e.logger.Warn("malformed command response",
			zap.String("request_id", env.Header.RequestID),
			zap.Error(err),
		)
		resp = &protocol.Response{
			RequestID:     env.Header.RequestID,
			StatusCode:    -1,
			StatusMessage: err.Error(),
			Body:          env.Body,
		}
	}
	if !e.table.Resolve(resp.RequestID, resp) {
		e.logger.Debug("dropping uncorrelated command response",
			zap.String("request_id", resp.RequestID),
		)
		return false
	}
	return true
}

// Pending returns the number of replies currently awaited.
func (e *Engine) Pending() int {
	return e.table.Len()
}
