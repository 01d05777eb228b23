package search

import (
	"context"
	"fmt"

	"github.com/cory-johannsen/bedrockbridge/internal/bridge/command"
)

// Reason explains a probe outcome.
type Reason string

// Probe reasons.
const (
	ReasonSafe           Reason = "safe"
	ReasonNoSpace        Reason = "no_space"
	ReasonNoFloor        Reason = "no_floor"
	ReasonDangerousBlock Reason = "dangerous_block"
)

// DefaultHazards are the floor blocks a player must not land on.
var DefaultHazards = []string{"lava", "flowing_lava", "fire"}

// Outcome is the verdict of a single coordinate test.
type Outcome struct {
	Safe   bool
	Reason Reason
}

// Prober tests whether a player can stand at (x, y, z).
type Prober interface {
	Probe(ctx context.Context, x, y, z int) (Outcome, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, x, y, z int) (Outcome, error)

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, x, y, z int) (Outcome, error) {
	return f(ctx, x, y, z)
}

// CommandProber probes with testforblock commands over the game link.
type CommandProber struct {
	cmd     command.Commander
	hazards []string
}

// NewCommandProber creates a prober issuing commands through cmd. An empty
// hazards list selects DefaultHazards.
//
// Precondition: cmd must be non-nil.
func NewCommandProber(cmd command.Commander, hazards []string) *CommandProber {
	if len(hazards) == 0 {
		hazards = DefaultHazards
	}
	return &CommandProber{cmd: cmd, hazards: hazards}
}

// Probe checks that the feet and head cells are air, the floor cell is not
// air, and the floor is none of the hazards. testforblock answers status 0
// when the block matches.
//
// Postcondition: Transport errors (no peer, timeout) are returned unchanged.
func (p *CommandProber) Probe(ctx context.Context, x, y, z int) (Outcome, error) {
	feet, err := p.matches(ctx, x, y, z, "air")
	if err != nil {
		return Outcome{}, err
	}
	head, err := p.matches(ctx, x, y+1, z, "air")
	if err != nil {
		return Outcome{}, err
	}
	if !feet || !head {
		return Outcome{Reason: ReasonNoSpace}, nil
	}

	floorIsAir, err := p.matches(ctx, x, y-1, z, "air")
	if err != nil {
		return Outcome{}, err
	}
	if floorIsAir {
		return Outcome{Reason: ReasonNoFloor}, nil
	}

	for _, block := range p.hazards {
		hit, err := p.matches(ctx, x, y-1, z, block)
		if err != nil {
			return Outcome{}, err
		}
		if hit {
			return Outcome{Reason: ReasonDangerousBlock}, nil
		}
	}
	return Outcome{Safe: true, Reason: ReasonSafe}, nil
}

func (p *CommandProber) matches(ctx context.Context, x, y, z int, block string) (bool, error) {
	resp, err := p.cmd.Execute(ctx, fmt.Sprintf("testforblock %d %d %d %s", x, y, z, block), true)
	if err != nil {
		return false, err
	}
	return resp.OK(), nil
}
