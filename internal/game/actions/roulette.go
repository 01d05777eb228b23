package actions

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/bedrockbridge/internal/game/flavor"
	"github.com/cory-johannsen/bedrockbridge/internal/game/rng"
)

// Spin pacing: fast frames, then slowing frames, then the reveal.
const (
	fastFrames = 30
	slowFrames = 5
)

const (
	soundClick    = "random.click"
	soundBowhit   = "random.bowhit"
	soundLevelup  = "random.levelup"
	soundBadLuck  = "mob.enderdragon.death"
	effectMinSecs = 30
	effectMaxSecs = 90
	effectMaxAmp  = 5
)

// RouletteOption is one slot of a roulette.
type RouletteOption struct {
	Name     string `json:"name"`
	Command  string `json:"command"`
	Color    string `json:"color"`
	Duration int    `json:"duration,omitempty"`
	IsBad    bool   `json:"is_bad"`
}

// RouletteResult reports the winning option.
type RouletteResult struct {
	Message string         `json:"message"`
	Winner  RouletteOption `json:"winner"`
}

var goodPhrases = []string{
	"Hero spotted! %[1]s blessed you with %[2]s!",
	"The community protects you! Thanks to %[1]s you got %[2]s.",
	"Bonus! %[1]s gave you %[2]s for %[3]d seconds.",
	"A gift from the sky has fallen on you. Enjoy %[2]s!",
}

var badPhrases = []string{
	"Watch out! %[1]s hit you with %[2]s!",
	"Surprise! %[1]s gifted you %[2]s. Enjoy it!",
	"%[1]s dares you to survive %[2]s for %[3]d seconds!",
	"Plague warning! You were infected with %[2]s by %[1]s.",
}

// RouletteEffect spins a roulette over every known status effect and applies
// the winner to the target player with a random duration and strength.
//
// Postcondition: The winning effect command was acknowledged by the game.
func (s *Service) RouletteEffect(ctx context.Context, playerName, username string) (RouletteResult, error) {
	if err := sleep(ctx, s.cfg.SettleDelay); err != nil {
		return RouletteResult{}, err
	}
	p, err := s.players.Resolve(playerName, s.src)
	if err != nil {
		return RouletteResult{}, err
	}
	if username == "" {
		username = DefaultUsername
	}

	options := make([]RouletteOption, 0, len(s.vocab.Effects))
	for _, e := range s.vocab.Effects {
		secs := rng.Between(s.src, effectMinSecs, effectMaxSecs)
		options = append(options, RouletteOption{
			Name:     e.Name,
			Command:  fmt.Sprintf("effect %s %s %d %d", p.Name, e.ID, secs, rng.Between(s.src, 1, effectMaxAmp)),
			Color:    s.accent(),
			Duration: secs,
			IsBad:    e.Bad,
		})
	}

	winner, err := s.spin(ctx, options, func(o RouletteOption) string { return o.Color })
	if err != nil {
		return RouletteResult{}, err
	}

	phrases, base, sound := goodPhrases, flavor.Green, soundLevelup
	if winner.IsBad {
		phrases, base, sound = badPhrases, flavor.Red, soundBadLuck
	}
	phrase, _ := rng.Pick(s.src, phrases)
	user := s.accent() + username + base
	text := base + fmt.Sprintf(phrase, user, winner.Color+winner.Name+base, winner.Duration)

	if _, err := s.run(ctx, flavor.Playsound(sound, flavor.Everyone), false); err != nil {
		return RouletteResult{}, err
	}
	if err := sleep(ctx, s.frame(20)); err != nil {
		return RouletteResult{}, err
	}
	if err := s.runAll(ctx, true,
		winner.Command,
		flavor.Actionbar(p.Name, text),
		flavor.Msg("@s", fmt.Sprintf("%q", text)),
	); err != nil {
		return RouletteResult{}, err
	}

	s.logger.Info("effect roulette applied",
		zap.String("player", p.Name),
		zap.String("effect", winner.Name),
		zap.Bool("bad", winner.IsBad),
		zap.String("username", username),
	)
	return RouletteResult{Message: "Roulette effect applied.", Winner: winner}, nil
}

// Roulette spins options, or the configured roulette when options is empty,
// and runs the winner's command.
//
// Postcondition: The winning command was acknowledged by the game.
func (s *Service) Roulette(ctx context.Context, options []RouletteOption) (RouletteResult, error) {
	if len(options) == 0 {
		for _, o := range s.vocab.Roulette {
			options = append(options, RouletteOption{Name: o.Name, Command: o.Command, Color: o.Color})
		}
	}
	if len(options) == 0 {
		return RouletteResult{}, fmt.Errorf("%w: roulette has no options", ErrInvalidRequest)
	}
	for i, o := range options {
		if o.Name == "" || o.Command == "" {
			return RouletteResult{}, fmt.Errorf("%w: option %d needs name and command", ErrInvalidRequest, i)
		}
	}

	winner, err := s.spin(ctx, options, func(RouletteOption) string {
		c, _ := rng.Pick(s.src, s.vocab.Colors)
		return c.Code
	})
	if err != nil {
		return RouletteResult{}, err
	}
	if _, err := s.run(ctx, flavor.Playsound(soundLevelup, flavor.Everyone), false); err != nil {
		return RouletteResult{}, err
	}
	if err := sleep(ctx, s.frame(20)); err != nil {
		return RouletteResult{}, err
	}
	if _, err := s.run(ctx, winner.Command, true); err != nil {
		return RouletteResult{}, err
	}

	s.logger.Info("roulette finished", zap.String("winner", winner.Name))
	return RouletteResult{Message: "The roulette has finished and the command was run.", Winner: winner}, nil
}

// spin shows randomly drawn options to everyone, fast and then slowing down,
// and reveals the last one drawn as the winner.
//
// Precondition: options must be non-empty.
func (s *Service) spin(ctx context.Context, options []RouletteOption, color func(RouletteOption) string) (RouletteOption, error) {
	var winner RouletteOption
	frame := func(sound string, delay time.Duration) error {
		winner, _ = rng.Pick(s.src, options)
		if err := s.runAll(ctx, false,
			flavor.Title(flavor.Everyone, color(winner)+winner.Name),
			flavor.Playsound(sound, flavor.Everyone),
		); err != nil {
			return err
		}
		return sleep(ctx, delay)
	}

	for i := 0; i < fastFrames; i++ {
		if err := frame(soundClick, s.frame(1)); err != nil {
			return RouletteOption{}, err
		}
	}
	for i := 1; i <= slowFrames; i++ {
		if err := frame(soundBowhit, s.frame(2*i)); err != nil {
			return RouletteOption{}, err
		}
	}

	if _, err := s.run(ctx, flavor.Title(flavor.Everyone, "Here it comes!"), false); err != nil {
		return RouletteOption{}, err
	}
	if err := sleep(ctx, s.frame(10)); err != nil {
		return RouletteOption{}, err
	}
	if err := s.runAll(ctx, false,
		flavor.Title(flavor.Everyone, winner.Color+winner.Name),
		flavor.Subtitle(flavor.Everyone, "Good luck!"),
	); err != nil {
		return RouletteOption{}, err
	}
	return winner, nil
}

// frame returns n spin frames of delay.
func (s *Service) frame(n int) time.Duration {
	return time.Duration(n) * s.cfg.SpinFrame
}
