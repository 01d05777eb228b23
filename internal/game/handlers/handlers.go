// Package handlers reacts to the events the game client pushes: it keeps the
// player state current and runs chat commands.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	bridgecmd "github.com/cory-johannsen/bedrockbridge/internal/bridge/command"
	"github.com/cory-johannsen/bedrockbridge/internal/bridge/events"
	"github.com/cory-johannsen/bedrockbridge/internal/game/command"
	"github.com/cory-johannsen/bedrockbridge/internal/game/flavor"
	"github.com/cory-johannsen/bedrockbridge/internal/game/session"
	"github.com/cory-johannsen/bedrockbridge/internal/game/timer"
)

// Event names as the game client sends them.
const (
	EventPlayerTransform = "PlayerTransform"
	EventPlayerJoin      = "PlayerJoin"
	EventPlayerMessage   = "PlayerMessage"
)

// systemSenders are chat senders that are not players, such as command output.
var systemSenders = map[string]bool{
	"":         true,
	"External": true,
	"Externo":  true,
}

// Timers is the session timer surface chat commands drive.
type Timers interface {
	Start(key string, seconds int, mode timer.Mode) error
	Stop(key string) error
	Status(key string) timer.Status
}

// Handlers holds the event handlers and their shared state.
type Handlers struct {
	players  *session.Manager
	timers   Timers
	commands *command.Registry
	logger   *zap.Logger
}

// New creates Handlers.
//
// Precondition: every argument must be non-nil.
func New(players *session.Manager, timers Timers, commands *command.Registry, logger *zap.Logger) *Handlers {
	return &Handlers{players: players, timers: timers, commands: commands, logger: logger}
}

// Register adds every handler to r.
func (h *Handlers) Register(r *events.Registry) {
	r.Register(EventPlayerTransform, h.PlayerTransform)
	r.Register(EventPlayerJoin, h.PlayerJoin)
	r.Register(EventPlayerMessage, h.PlayerMessage)
}

// PlayerTransform records the player's position and facing.
func (h *Handlers) PlayerTransform(_ context.Context, ec events.Context) error {
	t, ok := ec.(*events.PlayerTransform)
	if !ok {
		return fmt.Errorf("unexpected context %T for %s", ec, ec.Name())
	}
	if t.Player == "" {
		return nil
	}
	h.players.UpdateTransform(t.Player, session.Vec3{X: t.Position.X, Y: t.Position.Y, Z: t.Position.Z}, t.YRot)
	return nil
}

// PlayerJoin registers the player with no known position.
func (h *Handlers) PlayerJoin(_ context.Context, ec events.Context) error {
	j, ok := ec.(*events.PlayerJoin)
	if !ok {
		return fmt.Errorf("unexpected context %T for %s", ec, ec.Name())
	}
	if j.Player == "" {
		return nil
	}
	h.players.Join(j.Player)
	h.logger.Info("player joined", zap.String("player", j.Player))
	return nil
}

// PlayerMessage runs chat commands. Messages from system senders and plain
// chat are ignored.
func (h *Handlers) PlayerMessage(ctx context.Context, ec events.Context) error {
	m, ok := ec.(*events.PlayerMessage)
	if !ok {
		return fmt.Errorf("unexpected context %T for %s", ec, ec.Name())
	}
	if systemSenders[m.Sender] {
		return nil
	}
	parsed, ok := command.ParseChat(m.Message)
	if !ok {
		h.logger.Debug("chat", zap.String("sender", m.Sender), zap.String("message", m.Message))
		return nil
	}

	c := &chat{cmd: ec.Commander(), sender: m.Sender}
	cmd, found := h.commands.Resolve(parsed.Command)
	if !found {
		return c.tellAll(ctx, flavor.Red+"Unknown command.")
	}
	h.logger.Info("chat command",
		zap.String("sender", m.Sender),
		zap.String("command", cmd.Name),
		zap.Strings("args", parsed.Args),
	)

	switch cmd.Handler {
	case command.HandlerTimer:
		return h.timerCommand(ctx, c, cmd, parsed.Args)
	case command.HandlerHelp:
		return h.helpCommand(ctx, c)
	default:
		return c.tellAll(ctx, flavor.Red+"Unknown command.")
	}
}

const invalidMode = `Invalid mode. Use "loop" or "once".`

func (h *Handlers) timerCommand(ctx context.Context, c *chat, cmd *command.Command, args []string) error {
	if len(args) == 0 {
		return c.tell(ctx, fmt.Sprintf("%sUsage: %s", flavor.Red, cmd.Usage))
	}
	key := c.sender

	switch args[0] {
	case command.TimerStart:
		if len(args) < 2 {
			return c.tell(ctx, flavor.Red+"Usage: !timer start <seconds> [once|loop]")
		}
		seconds, err := strconv.Atoi(args[1])
		if err != nil {
			return c.tell(ctx, flavor.Red+"Usage: !timer start <seconds> [once|loop]")
		}
		var modeArg string
		if len(args) > 2 {
			modeArg = args[2]
		}
		mode, err := timer.ParseMode(modeArg)
		if err != nil {
			return c.tell(ctx, flavor.Red+invalidMode)
		}
		switch err := h.timers.Start(key, seconds, mode); {
		case err == nil:
			return c.tell(ctx, fmt.Sprintf("%sThe timer started for %d seconds in '%s' mode.", flavor.Green, seconds, mode))
		case errors.Is(err, timer.ErrAlreadyRunning):
			return c.tell(ctx, flavor.Yellow+"Your timer is already running.")
		case errors.Is(err, timer.ErrInvalidDuration):
			return c.tell(ctx, flavor.Red+"The duration must be a positive number.")
		case errors.Is(err, timer.ErrInvalidMode):
			return c.tell(ctx, flavor.Red+invalidMode)
		default:
			return c.tell(ctx, fmt.Sprintf("%sCould not start the timer: %v", flavor.Red, err))
		}
	case command.TimerStop:
		if err := h.timers.Stop(key); err != nil {
			if errors.Is(err, timer.ErrNotRunning) {
				return c.tell(ctx, flavor.Yellow+"You don't have a timer running.")
			}
			return c.tell(ctx, fmt.Sprintf("%sCould not stop the timer: %v", flavor.Red, err))
		}
		return c.tell(ctx, flavor.Green+"Your timer was stopped.")
	case command.TimerStatus:
		st := h.timers.Status(key)
		if !st.Running {
			return c.tell(ctx, flavor.Green+"The timer is stopped.")
		}
		return c.tell(ctx, fmt.Sprintf("%sThe timer is running. Time remaining: %ds", flavor.Yellow, st.Remaining))
	default:
		return c.tell(ctx, fmt.Sprintf("%sUnknown subcommand: %s.", flavor.Red, args[0]))
	}
}

func (h *Handlers) helpCommand(ctx context.Context, c *chat) error {
	var b strings.Builder
	b.WriteString(flavor.Yellow + "Commands:")
	groups := h.commands.CommandsByCategory()
	categories := make([]string, 0, len(groups))
	for category := range groups {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		fmt.Fprintf(&b, "\n%s[%s]", flavor.Yellow, category)
		for _, cmd := range groups[category] {
			fmt.Fprintf(&b, "\n%s%s%s - %s", flavor.Gold, cmd.Usage, flavor.Reset, cmd.Help)
		}
	}
	return c.tell(ctx, b.String())
}

// chat replies to the sender of one message.
type chat struct {
	cmd    bridgecmd.Commander
	sender string
}

func (c *chat) tell(ctx context.Context, text string) error {
	return c.send(ctx, flavor.Tellraw(c.sender, text))
}

func (c *chat) tellAll(ctx context.Context, text string) error {
	return c.send(ctx, flavor.Tellraw(flavor.Everyone, text))
}

func (c *chat) send(ctx context.Context, line string) error {
	if _, err := c.cmd.Execute(ctx, line, false); err != nil {
		return fmt.Errorf("replying to %s: %w", c.sender, err)
	}
	return nil
}
