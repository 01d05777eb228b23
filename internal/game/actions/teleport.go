package actions

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/cory-johannsen/bedrockbridge/internal/game/flavor"
	"github.com/cory-johannsen/bedrockbridge/internal/game/rng"
	"github.com/cory-johannsen/bedrockbridge/internal/game/session"
)

// dropHeight is where the player waits, slow falling, while the search runs.
const dropHeight = 320

// TeleportRequest optionally fixes the destination. Missing X and Z are
// randomised around the player; the height is always chosen by the safe
// search, so Y only serves as a hint in logs.
type TeleportRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

// Coordinates is a block position.
type Coordinates struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// TeleportResult reports a completed teleport.
type TeleportResult struct {
	Message     string      `json:"message"`
	Player      string      `json:"player"`
	Coordinates Coordinates `json:"coordinates"`
}

// Teleport moves the target player to a safe location. The player is first
// lifted to the top of the world with slow falling so they are out of harm's
// way while the column is probed.
//
// Postcondition: On success the player was sent to a probed-safe location.
// Returns an error wrapping search.ErrNoSafeLocation when none was found.
func (s *Service) Teleport(ctx context.Context, req TeleportRequest, playerName, username string) (TeleportResult, error) {
	p, err := s.players.ResolvePositioned(playerName, s.src)
	if err != nil {
		return TeleportResult{}, err
	}
	origin := *p.Position

	destX := origin.X + float64(rng.Offset(s.src, s.cfg.TeleportRange))
	if req.X != nil {
		destX = *req.X
	}
	destZ := origin.Z + float64(rng.Offset(s.src, s.cfg.TeleportRange))
	if req.Z != nil {
		destZ = *req.Z
	}
	x, z := int(destX), int(destZ)

	logger := s.logger.With(zap.String("player", p.Name))
	if req.Y != nil {
		logger.Debug("teleport height hint ignored", zap.Float64("y", *req.Y))
	}

	if err := s.runAll(ctx, true,
		fmt.Sprintf("tp %s %d %d %d", p.Name, x, dropHeight, z),
		fmt.Sprintf("effect %s slow_falling 43 3 true", p.Name),
	); err != nil {
		return TeleportResult{}, err
	}
	if err := sleep(ctx, s.cfg.SettleDelay); err != nil {
		return TeleportResult{}, err
	}

	found, err := s.locator.Find(ctx, x, z)
	if err != nil {
		return TeleportResult{}, fmt.Errorf("teleporting %s near %d, %d: %w", p.Name, x, z, err)
	}
	if _, err := s.run(ctx, fmt.Sprintf("effect %s clear slow_falling", p.Name), true); err != nil {
		return TeleportResult{}, err
	}

	dest := Coordinates{X: found.X, Y: found.Y, Z: found.Z}
	from := Coordinates{X: int(origin.X), Y: int(origin.Y), Z: int(origin.Z)}

	credit := ""
	if username != "" {
		credit = fmt.Sprintf(" by %s%s %s", s.accent(), username, flavor.Green)
	}
	if err := s.runAll(ctx, false,
		fmt.Sprintf("tp %s %d %d %d", p.Name, dest.X, dest.Y, dest.Z),
		flavor.Actionbar(p.Name, fmt.Sprintf("%sYou were teleported%s to %d, %d, %d", flavor.Green, credit, dest.X, dest.Y, dest.Z)),
		flavor.Msg("@s", fmt.Sprintf("%sYou were teleported %skm%s (%d, %d, %d)",
			flavor.Green, strconv.FormatFloat(distanceKm(from, dest), 'f', -1, 64), credit, from.X, from.Y, from.Z)),
	); err != nil {
		return TeleportResult{}, err
	}

	logger.Info("player teleported",
		zap.Int("x", dest.X),
		zap.Int("y", dest.Y),
		zap.Int("z", dest.Z),
		zap.Int("probes", found.Attempts),
	)
	return TeleportResult{
		Message:     fmt.Sprintf("Player %s teleported to %d, %d, %d.", p.Name, dest.X, dest.Y, dest.Z),
		Player:      p.Name,
		Coordinates: dest,
	}, nil
}

// distanceKm is the straight-line distance in kilometres, truncated to two
// decimals.
func distanceKm(a, b Coordinates) float64 {
	m := a.vec().Distance(b.vec())
	return math.Trunc(m/1000*100) / 100
}

func (c Coordinates) vec() session.Vec3 {
	return session.Vec3{X: float64(c.X), Y: float64(c.Y), Z: float64(c.Z)}
}
