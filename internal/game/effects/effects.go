// Package effects picks and runs the random event that fires when a session
// timer expires.
package effects

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/bedrockbridge/internal/bridge/command"
	"github.com/cory-johannsen/bedrockbridge/internal/game/actions"
	"github.com/cory-johannsen/bedrockbridge/internal/game/content"
	"github.com/cory-johannsen/bedrockbridge/internal/game/flavor"
	"github.com/cory-johannsen/bedrockbridge/internal/game/rng"
	"github.com/cory-johannsen/bedrockbridge/internal/game/session"
)

// Follow-up actions.
const (
	ActionSpawnMob       = "spawn_mob_at_player"
	ActionTeleport       = "teleport_player"
	ActionRouletteEffect = "roulette_effect"
)

// DefaultUsername credits events that do not name one.
const DefaultUsername = "Timer"

const defaultMob = "zombie"

// Table is a weighted set of random events. An event with weight 0 counts
// as weight 1.
type Table struct {
	events []content.RandomEvent
	total  int
}

// NewTable creates a Table over events.
func NewTable(events []content.RandomEvent) *Table {
	t := &Table{events: append([]content.RandomEvent(nil), events...)}
	for _, ev := range t.events {
		t.total += weight(ev)
	}
	return t
}

func weight(ev content.RandomEvent) int {
	if ev.Weight <= 0 {
		return 1
	}
	return ev.Weight
}

// Len returns the number of events.
func (t *Table) Len() int { return len(t.events) }

// Pick draws an event with probability proportional to its weight.
//
// Postcondition: Returns (event, true), or (zero, false) for an empty table.
func (t *Table) Pick(src rng.Source) (content.RandomEvent, bool) {
	if t.total == 0 {
		return content.RandomEvent{}, false
	}
	n := src.Intn(t.total)
	for _, ev := range t.events {
		n -= weight(ev)
		if n < 0 {
			return ev, true
		}
	}
	return t.events[len(t.events)-1], true
}

// Actions is the subset of actions.Service the runner drives.
type Actions interface {
	SpawnMob(ctx context.Context, req actions.MobRequest, playerName, username string) (actions.SpawnResult, error)
	Teleport(ctx context.Context, req actions.TeleportRequest, playerName, username string) (actions.TeleportResult, error)
	RouletteEffect(ctx context.Context, playerName, username string) (actions.RouletteResult, error)
}

// Runner triggers a random event for a timer owner. It implements
// timer.FollowUp.
type Runner struct {
	table   *Table
	actions Actions
	players *session.Manager
	cmd     command.Commander
	src     rng.Source
	logger  *zap.Logger
}

// NewRunner creates a Runner.
//
// Precondition: every argument must be non-nil.
func NewRunner(table *Table, acts Actions, players *session.Manager, cmd command.Commander, src rng.Source, logger *zap.Logger) *Runner {
	return &Runner{table: table, actions: acts, players: players, cmd: cmd, src: src, logger: logger}
}

// Trigger announces and runs one random event on behalf of key, the timer
// owner. Events configured with player_name "random" hit a random player.
//
// Postcondition: Returns nil when the event ran or there was nobody to run
// it on; otherwise the action's error after telling the owner.
func (r *Runner) Trigger(ctx context.Context, key string) error {
	logger := r.logger.With(zap.String("owner", key))
	if r.players.Count() == 0 {
		r.tell(ctx, key, flavor.Red+"No players connected. The event cannot run.")
		return nil
	}
	ev, ok := r.table.Pick(r.src)
	if !ok {
		logger.Warn("no random events configured")
		return nil
	}

	target := key
	switch ev.Args.PlayerName {
	case "":
	case session.RandomTarget:
		p, err := r.players.Random(r.src)
		if err != nil {
			return err
		}
		target = p.Name
	default:
		target = ev.Args.PlayerName
	}
	username := ev.Args.Username
	if username == "" {
		username = DefaultUsername
	}

	r.tell(ctx, key, fmt.Sprintf("%sThe timer has ended!\n%sSURVIVE %s.", flavor.Yellow, flavor.Red, ev.Name))
	logger.Info("running random event",
		zap.String("event", ev.Name),
		zap.String("action", ev.Action),
		zap.String("target", target),
	)

	if err := r.run(ctx, ev, target, username); err != nil {
		r.tell(ctx, key, fmt.Sprintf("%sError running the event: %v", flavor.Red, err))
		return fmt.Errorf("running event %q: %w", ev.Name, err)
	}
	return nil
}

func (r *Runner) run(ctx context.Context, ev content.RandomEvent, target, username string) error {
	var err error
	switch ev.Action {
	case ActionSpawnMob:
		mob, ok := rng.Pick(r.src, ev.Args.Mobs)
		if !ok {
			mob = defaultMob
		}
		_, err = r.actions.SpawnMob(ctx, actions.MobRequest{MobType: mob, Quantity: ev.Args.Quantity, Radius: ev.Args.Radius}, target, username)
	case ActionTeleport:
		_, err = r.actions.Teleport(ctx, actions.TeleportRequest{}, target, username)
	case ActionRouletteEffect:
		_, err = r.actions.RouletteEffect(ctx, target, username)
	default:
		err = fmt.Errorf("no handler for action %q", ev.Action)
	}
	return err
}

// tell sends a chat line to the owner. Delivery failures are only logged.
func (r *Runner) tell(ctx context.Context, player, text string) {
	if _, err := r.cmd.Execute(ctx, flavor.Tellraw(player, text), false); err != nil {
		r.logger.Debug("telling player", zap.String("player", player), zap.Error(err))
	}
}
