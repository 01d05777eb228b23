// Package timer runs per-player countdowns that trigger a follow-up effect on
// expiry, once or repeatedly.
package timer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/bedrockbridge/internal/bridge/command"
	"github.com/cory-johannsen/bedrockbridge/internal/game/flavor"
)

var (
	// ErrAlreadyRunning is returned by Start when the key already has a live countdown.
	ErrAlreadyRunning = errors.New("timer already running")
	// ErrNotRunning is returned by Stop when the key has no live countdown.
	ErrNotRunning = errors.New("timer not running")
	// ErrInvalidDuration is returned by Start for a non-positive duration.
	ErrInvalidDuration = errors.New("timer duration must be positive")
	// ErrInvalidMode is returned for a mode other than once or loop.
	ErrInvalidMode = errors.New("timer mode must be once or loop")
)

// Mode selects what happens at expiry.
type Mode string

const (
	// ModeOnce returns to idle after the first expiry.
	ModeOnce Mode = "once"
	// ModeLoop restarts the countdown after every expiry until stopped.
	ModeLoop Mode = "loop"
)

// ParseMode parses a mode name. The empty string selects ModeOnce.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeOnce:
		return ModeOnce, nil
	case ModeLoop:
		return ModeLoop, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// FollowUp is run when a countdown reaches zero.
type FollowUp interface {
	Trigger(ctx context.Context, key string) error
}

// FollowUpFunc adapts a function to FollowUp.
type FollowUpFunc func(ctx context.Context, key string) error

// Trigger calls f.
func (f FollowUpFunc) Trigger(ctx context.Context, key string) error {
	return f(ctx, key)
}

// Status is a snapshot of one key's timer.
type Status struct {
	Running   bool
	Remaining int
	Initial   int
	Mode      Mode
}

// task is one live countdown. Its fields are guarded by Manager.mu.
type task struct {
	cancel    context.CancelFunc
	remaining int
	initial   int
	mode      Mode
}

// Manager owns at most one live countdown per key.
// All methods are safe for concurrent use.
type Manager struct {
	cmd      command.Commander
	followUp FollowUp
	tick     time.Duration
	logger   *zap.Logger

	root     context.Context
	shutdown context.CancelFunc
	wg       sync.WaitGroup

	mu    sync.Mutex
	tasks map[string]*task
}

// NewManager creates a Manager that pushes countdown status through cmd and
// runs followUp at expiry. A non-positive tick selects one second.
//
// Precondition: cmd, followUp and logger must be non-nil.
func NewManager(cmd command.Commander, followUp FollowUp, tick time.Duration, logger *zap.Logger) *Manager {
	if tick <= 0 {
		tick = time.Second
	}
	root, cancel := context.WithCancel(context.Background())
	return &Manager{
		cmd:      cmd,
		followUp: followUp,
		tick:     tick,
		logger:   logger,
		root:     root,
		shutdown: cancel,
		tasks:    make(map[string]*task),
	}
}

// Start begins a countdown of seconds ticks for key.
//
// Precondition: key must be non-empty.
// Postcondition: On success Status(key).Running is true and Remaining equals
// seconds. On ErrAlreadyRunning the existing countdown is untouched.
func (m *Manager) Start(key string, seconds int, mode Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, running := m.tasks[key]; running {
		return ErrAlreadyRunning
	}
	if seconds <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDuration, seconds)
	}
	if mode != ModeOnce && mode != ModeLoop {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if m.root.Err() != nil {
		return fmt.Errorf("starting timer for %s: %w", key, m.root.Err())
	}

	ctx, cancel := context.WithCancel(m.root)
	t := &task{cancel: cancel, remaining: seconds, initial: seconds, mode: mode}
	m.tasks[key] = t

	m.wg.Add(1)
	go m.run(ctx, key, t)

	m.logger.Info("timer started",
		zap.String("key", key),
		zap.Int("seconds", seconds),
		zap.String("mode", string(mode)),
	)
	return nil
}

// Stop cancels the countdown for key. The key is idle when Stop returns; the
// goroutine notices at its next tick boundary at the latest.
//
// Postcondition: Returns ErrNotRunning when key has no live countdown.
func (m *Manager) Stop(key string) error {
	m.mu.Lock()
	t, running := m.tasks[key]
	if running {
		delete(m.tasks, key)
	}
	m.mu.Unlock()

	if !running {
		return ErrNotRunning
	}
	t.cancel()
	m.logger.Info("timer stopped", zap.String("key", key))
	return nil
}

// Status reports the countdown state for key without side effects.
func (m *Manager) Status(key string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, running := m.tasks[key]
	if !running {
		return Status{}
	}
	return Status{Running: true, Remaining: t.remaining, Initial: t.initial, Mode: t.mode}
}

// Running returns the number of live countdowns.
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Shutdown cancels every countdown and waits for their goroutines to exit.
// Start fails once Shutdown has been called.
func (m *Manager) Shutdown() {
	m.shutdown()
	m.mu.Lock()
	for key := range m.tasks {
		delete(m.tasks, key)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context, key string, t *task) {
	defer m.wg.Done()
	defer m.release(key, t)
	defer func() {
		if p := recover(); p != nil {
			m.logger.Error("timer panicked", zap.String("key", key), zap.Any("panic", p))
		}
	}()

	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		for {
			remaining := m.remaining(t)
			if remaining <= 0 {
				break
			}
			m.push(ctx, flavor.Countdown(key, remaining))
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			m.decrement(t)
		}
		if ctx.Err() != nil {
			return
		}

		m.logger.Info("timer expired", zap.String("key", key))
		if err := m.followUp.Trigger(ctx, key); err != nil {
			m.logger.Warn("timer follow-up failed",
				zap.String("key", key),
				zap.Error(err),
			)
			return
		}
		if t.mode != ModeLoop || ctx.Err() != nil {
			return
		}
		m.restart(t)
		ticker.Reset(m.tick)
		m.push(ctx, flavor.Tellraw(key, flavor.Yellow+"Timer restarting..."))
	}
}

func (m *Manager) remaining(t *task) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return t.remaining
}

func (m *Manager) decrement(t *task) {
	m.mu.Lock()
	t.remaining--
	m.mu.Unlock()
}

func (m *Manager) restart(t *task) {
	m.mu.Lock()
	t.remaining = t.initial
	m.mu.Unlock()
}

// release clears key only if t still owns it, so a countdown restarted after
// Stop is never clobbered by the old goroutine's exit.
func (m *Manager) release(key string, t *task) {
	m.mu.Lock()
	current, restarted := m.tasks[key]
	if current == t {
		delete(m.tasks, key)
		restarted = false
	}
	m.mu.Unlock()
	t.cancel()

	if restarted {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m.push(ctx, flavor.ClearActionbar(key))
}

// push sends a fire-and-forget command; the countdown never fails on a push.
func (m *Manager) push(ctx context.Context, line string) {
	if _, err := m.cmd.Execute(ctx, line, false); err != nil {
		m.logger.Debug("timer push failed", zap.String("command", line), zap.Error(err))
	}
}
