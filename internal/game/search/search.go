// Package search finds a vertical coordinate where a player can stand safely.
//
// Safety is not monotonic in height (caves, overhangs, lava lakes), so the
// search bisects the vertical range but moves its bounds according to why a
// probe failed, and shifts horizontally when the floor itself is hazardous.
package search

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/bedrockbridge/internal/game/rng"
)

// ErrNoSafeLocation is returned when no probe in the budget was safe.
var ErrNoSafeLocation = errors.New("no safe location found")

// Bounds configures the search.
type Bounds struct {
	MinY        int
	MaxY        int
	SeaLevel    int
	MaxAttempts int
	// Jitter is the maximum horizontal shift applied after a hazardous probe.
	Jitter int
}

// DefaultBounds are the Bedrock overworld limits.
var DefaultBounds = Bounds{MinY: -59, MaxY: 320, SeaLevel: 64, MaxAttempts: 100, Jitter: 5}

// Result is the outcome of a successful search.
type Result struct {
	// X and Z are the final horizontal coordinates, including any jitter.
	X, Z int
	// Y is the highest safe elevation found.
	Y        int
	Attempts int
}

// Searcher runs safe-location searches.
type Searcher struct {
	prober Prober
	bounds Bounds
	src    rng.Source
	logger *zap.Logger
}

// NewSearcher creates a Searcher. Zero MaxAttempts selects the default budget.
//
// Precondition: prober, src and logger must be non-nil; bounds.MinY <= bounds.MaxY.
func NewSearcher(prober Prober, bounds Bounds, src rng.Source, logger *zap.Logger) *Searcher {
	if bounds.MaxAttempts <= 0 {
		bounds.MaxAttempts = DefaultBounds.MaxAttempts
	}
	return &Searcher{prober: prober, bounds: bounds, src: src, logger: logger}
}

// Find searches the column at (x, z) for the highest safe elevation.
//
// Postcondition: Returns a Result whose Y was probed safe at (Result.X, Result.Z),
// ErrNoSafeLocation when the budget ran out without one, or the probe's
// transport error.
func (s *Searcher) Find(ctx context.Context, x, z int) (Result, error) {
	low, high := s.bounds.MinY, s.bounds.MaxY
	lastHigh := high
	best, found := 0, false
	bestX, bestZ := x, z

	attempts := 0
	for low <= high && attempts < s.bounds.MaxAttempts {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		mid := floorDiv(low+high, 2)
		out, err := s.prober.Probe(ctx, x, mid, z)
		if err != nil {
			return Result{}, fmt.Errorf("probing %d %d %d: %w", x, mid, z, err)
		}
		attempts++
		s.logger.Debug("probe",
			zap.Int("attempt", attempts),
			zap.Int("x", x), zap.Int("y", mid), zap.Int("z", z),
			zap.Int("low", low), zap.Int("high", high),
			zap.String("reason", string(out.Reason)),
		)

		switch {
		case out.Safe:
			best, found = mid, true
			bestX, bestZ = x, z
			low = mid + 1
		case low == high || attempts >= s.bounds.MaxAttempts:
			return s.finish(best, found, bestX, bestZ, attempts)
		case out.Reason == ReasonNoFloor:
			lastHigh = high
			high = floorDiv(mid+high, 2)
		case out.Reason == ReasonNoSpace:
			if mid < s.bounds.SeaLevel {
				low = mid + 1
			} else {
				high = lastHigh
			}
		default:
			x += rng.Offset(s.src, s.bounds.Jitter)
			z += rng.Offset(s.src, s.bounds.Jitter)
		}
	}
	return s.finish(best, found, bestX, bestZ, attempts)
}

func (s *Searcher) finish(y int, found bool, x, z, attempts int) (Result, error) {
	if !found {
		return Result{}, fmt.Errorf("%w after %d probes", ErrNoSafeLocation, attempts)
	}
	return Result{X: x, Z: z, Y: y, Attempts: attempts}, nil
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
