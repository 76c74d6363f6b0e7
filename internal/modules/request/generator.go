// README: Stochastic request source with Poisson-distributed arrivals per tick.
package request

import (
	"fmt"
	"math"
	"math/rand"

	"ridesim/internal/types"
)

const (
	// MaxRate is the sanity ceiling for the mean arrivals per tick.
	MaxRate = 100.0
	// MaxDimension is the sanity ceiling for the map width and height.
	MaxDimension = 1e6
)

type GeneratorConfig struct {
	Rate    float64
	Bounds  types.Bounds
	Enabled bool
	StartID types.ID
}

// Generator produces new waiting requests each tick. It owns its id counter and
// draws every random number from the injected source.
type Generator struct {
	rate      float64
	bounds    types.Bounds
	enabled   bool
	nextID    types.ID
	generated int
	rng       *rand.Rand
}

func NewGenerator(cfg GeneratorConfig, rng *rand.Rand) (*Generator, error) {
	if rng == nil {
		return nil, fmt.Errorf("%w: random source is required", ErrInvalidConfig)
	}
	if err := validateRate(cfg.Rate); err != nil {
		return nil, err
	}
	if err := validateBounds(cfg.Bounds); err != nil {
		return nil, err
	}
	return &Generator{
		rate:    cfg.Rate,
		bounds:  cfg.Bounds,
		enabled: cfg.Enabled,
		nextID:  cfg.StartID,
		rng:     rng,
	}, nil
}

// MaybeGenerate returns the requests arriving at tick now.
func (g *Generator) MaybeGenerate(now int) []*Request {
	if !g.enabled || g.rate == 0 {
		return nil
	}
	k := g.poisson()
	if k == 0 {
		return nil
	}
	out := make([]*Request, 0, k)
	for i := 0; i < k; i++ {
		pickup := g.randomPoint()
		dropoff := g.randomPoint()
		out = append(out, New(g.nextID, pickup, dropoff, now))
		g.nextID++
	}
	g.generated += k
	return out
}

func (g *Generator) SetEnabled(enabled bool) {
	g.enabled = enabled
}

func (g *Generator) SetRate(rate float64) error {
	if err := validateRate(rate); err != nil {
		return err
	}
	g.rate = rate
	return nil
}

func (g *Generator) Rate() float64 { return g.rate }
func (g *Generator) Enabled() bool { return g.enabled }
func (g *Generator) Generated() int { return g.generated }

// poisson draws a count with Knuth's multiplication method.
func (g *Generator) poisson() int {
	limit := math.Exp(-g.rate)
	k := 0
	p := 1.0
	for {
		k++
		p *= g.rng.Float64()
		if p <= limit {
			return k - 1
		}
	}
}

func (g *Generator) randomPoint() types.Point {
	return types.Point{
		X: g.rng.Float64() * g.bounds.Width,
		Y: g.rng.Float64() * g.bounds.Height,
	}
}

func validateRate(rate float64) error {
	if math.IsNaN(rate) || rate < 0 || rate > MaxRate {
		return fmt.Errorf("%w: rate %v outside [0, %v]", ErrInvalidConfig, rate, MaxRate)
	}
	return nil
}

func validateBounds(b types.Bounds) error {
	if !(b.Width > 0) || b.Width > MaxDimension {
		return fmt.Errorf("%w: width %v outside (0, %v]", ErrInvalidConfig, b.Width, MaxDimension)
	}
	if !(b.Height > 0) || b.Height > MaxDimension {
		return fmt.Errorf("%w: height %v outside (0, %v]", ErrInvalidConfig, b.Height, MaxDimension)
	}
	return nil
}
