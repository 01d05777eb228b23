// Package actions implements the operations the control plane triggers on a
// player: summoning mobs, random teleports, the effect roulette and item
// grants. Each operation is a scripted sequence of game commands.
package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/bedrockbridge/internal/bridge/command"
	"github.com/cory-johannsen/bedrockbridge/internal/bridge/protocol"
	"github.com/cory-johannsen/bedrockbridge/internal/config"
	"github.com/cory-johannsen/bedrockbridge/internal/game/content"
	"github.com/cory-johannsen/bedrockbridge/internal/game/rng"
	"github.com/cory-johannsen/bedrockbridge/internal/game/search"
	"github.com/cory-johannsen/bedrockbridge/internal/game/session"
)

// ErrInvalidRequest is returned for a request whose fields cannot be acted on.
var ErrInvalidRequest = errors.New("invalid request")

// DefaultUsername credits actions whose caller gave no name.
const DefaultUsername = "Chat"

// Locator finds a safe standing position in a column.
type Locator interface {
	Find(ctx context.Context, x, z int) (search.Result, error)
}

// Service runs actions against the connected game client.
type Service struct {
	cmd     command.Commander
	players *session.Manager
	locator Locator
	vocab   *content.Content
	src     rng.Source
	cfg     config.ActionsConfig
	logger  *zap.Logger
}

// NewService creates a Service.
//
// Precondition: every argument must be non-nil.
func NewService(cmd command.Commander, players *session.Manager, locator Locator, vocab *content.Content, src rng.Source, cfg config.ActionsConfig, logger *zap.Logger) *Service {
	return &Service{
		cmd:     cmd,
		players: players,
		locator: locator,
		vocab:   vocab,
		src:     src,
		cfg:     cfg,
		logger:  logger,
	}
}

// Players returns the player state the service reads.
func (s *Service) Players() *session.Manager {
	return s.players
}

// PlayerData returns the last reported state of name.
//
// Postcondition: Returns an error wrapping session.ErrPlayerNotFound for unknown names.
func (s *Service) PlayerData(name string) (session.Player, error) {
	p, ok := s.players.Get(name)
	if !ok {
		return session.Player{}, fmt.Errorf("%w: %s", session.ErrPlayerNotFound, name)
	}
	return p, nil
}

// run sends one command and waits for its reply when wait is set.
func (s *Service) run(ctx context.Context, line string, wait bool) (*protocol.Response, error) {
	resp, err := s.cmd.Execute(ctx, line, wait)
	if err != nil {
		return nil, fmt.Errorf("running %q: %w", line, err)
	}
	return resp, nil
}

// runAll sends lines in order, waiting for each reply when wait is set.
func (s *Service) runAll(ctx context.Context, wait bool, lines ...string) error {
	for _, line := range lines {
		if _, err := s.run(ctx, line, wait); err != nil {
			return err
		}
	}
	return nil
}

// accent picks a highlight color for a username.
func (s *Service) accent() string {
	c, ok := rng.Pick(s.src, s.vocab.AccentColors())
	if !ok {
		return ""
	}
	return c.Code
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
