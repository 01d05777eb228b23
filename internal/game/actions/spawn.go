package actions

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/bedrockbridge/internal/game/content"
	"github.com/cory-johannsen/bedrockbridge/internal/game/flavor"
	"github.com/cory-johannsen/bedrockbridge/internal/game/rng"
)

// spawnDistance is how far in front of the player mobs appear.
const spawnDistance = 3

// MaxSpawn caps the quantity of a single spawn request.
const MaxSpawn = 64

// MobRequest asks for mobs to be summoned in front of a player.
type MobRequest struct {
	MobType  string `json:"mob_type"`
	Quantity int    `json:"quantity"`
	// Radius scatters the mobs when more than one is summoned.
	Radius int `json:"r"`
}

// SpawnResult reports a completed spawn.
type SpawnResult struct {
	Message  string `json:"message"`
	MobType  string `json:"mob_type"`
	Player   string `json:"player"`
	Article  string `json:"article"`
	MobName  string `json:"mob_name"`
	Username string `json:"username"`
}

// SpawnMob summons req.Quantity mobs three blocks in front of the target
// player and announces it on their actionbar. An empty or "random" player
// name targets a random player. A non-empty username names the mobs after
// the requester.
//
// Postcondition: All summons were sent before the announcement is awaited.
func (s *Service) SpawnMob(ctx context.Context, req MobRequest, playerName, username string) (SpawnResult, error) {
	if req.MobType == "" {
		return SpawnResult{}, fmt.Errorf("%w: mob_type is required", ErrInvalidRequest)
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 || req.Quantity > MaxSpawn {
		return SpawnResult{}, fmt.Errorf("%w: quantity must be 1-%d, got %d", ErrInvalidRequest, MaxSpawn, req.Quantity)
	}
	if req.Radius < 0 {
		return SpawnResult{}, fmt.Errorf("%w: r must not be negative", ErrInvalidRequest)
	}

	p, err := s.players.ResolvePositioned(playerName, s.src)
	if err != nil {
		return SpawnResult{}, err
	}
	mob := s.vocab.Mob(req.MobType)

	tag, color := "", ""
	if username != "" {
		color = s.accent()
		tag = fmt.Sprintf(" %q", color+username)
	}
	origin := p.Position.Ahead(p.Rotation, spawnDistance)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < req.Quantity; i++ {
		x, z := origin.X, origin.Z
		if req.Quantity > 1 {
			x += float64(rng.Offset(s.src, req.Radius))
			z += float64(rng.Offset(s.src, req.Radius))
		}
		line := fmt.Sprintf("summon %s%s %s %s %s", mob.ID, tag, coord(x), coord(p.Position.Y), coord(z))
		g.Go(func() error {
			_, err := s.run(gctx, line, false)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return SpawnResult{}, err
	}

	if _, err := s.run(ctx, flavor.Actionbar(p.Name, spawnAnnouncement(mob, username, color)), true); err != nil {
		return SpawnResult{}, err
	}

	s.logger.Info("mobs spawned",
		zap.String("player", p.Name),
		zap.String("mob", mob.ID),
		zap.Int("quantity", req.Quantity),
		zap.String("username", username),
	)

	credited := username
	if credited == "" {
		credited = "N/A"
	}
	return SpawnResult{
		Message:  fmt.Sprintf("Mob %s spawned at %s.", mob.ID, p.Name),
		MobType:  mob.ID,
		Player:   p.Name,
		Article:  mob.Article,
		MobName:  mob.Name,
		Username: credited,
	}, nil
}

func spawnAnnouncement(mob content.Mob, username, color string) string {
	if username == "" {
		return fmt.Sprintf("%sYou spawned %s %s!", flavor.Green, mob.Article, mob.Name)
	}
	user := color + username
	switch mob.Kind {
	case content.KindPassive:
		return fmt.Sprintf("%s %sspawned a new pet (%s%s%s)!", user, flavor.Green, color, mob.Name, flavor.Green)
	case content.KindStrike:
		return fmt.Sprintf("%sThe god %s %shas punished you!", flavor.Green, user, flavor.Green)
	case content.KindPush:
		return fmt.Sprintf("%s %shas pushed you!", user, flavor.Green)
	case content.KindSpecial:
		return fmt.Sprintf("%s %sspawned %s %s%s%s!", user, flavor.Green, mob.Article, color, mob.Name, flavor.Green)
	default:
		return fmt.Sprintf("%sSpawned %s %s(%s)!", flavor.Green, user, flavor.Green, mob.Name)
	}
}

// coord renders a world coordinate without trailing zeros.
func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
