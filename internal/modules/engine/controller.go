// README: Controller serializes access to a simulation shared by the run loop and HTTP handlers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"ridesim/internal/modules/mutation"
)

var ErrGeneratorNotTunable = errors.New("request source cannot be tuned")

// TunableSource is a RequestSource whose rate and on/off switch can change at runtime.
type TunableSource interface {
	RequestSource
	SetEnabled(enabled bool)
	SetRate(rate float64) error
	Rate() float64
	Enabled() bool
}

// TickEvent is handed to observers after every tick.
type TickEvent struct {
	RunID    string
	Report   TickReport
	Metrics  TickMetrics
	Snapshot Snapshot
	Leaders  []DriverView
}

// Observer receives tick events outside the simulation lock.
type Observer interface {
	OnTick(ctx context.Context, ev TickEvent) error
}

type Controller struct {
	mu        sync.Mutex
	sim       *Simulation
	runID     string
	observers []Observer
	log       zerolog.Logger
}

func NewController(runID string, log zerolog.Logger, observers ...Observer) *Controller {
	return &Controller{runID: runID, observers: observers, log: log}
}

// Load installs sim as the controlled simulation, replacing any previous one.
func (c *Controller) Load(sim *Simulation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sim = sim
}

func (c *Controller) RunID() string { return c.runID }

func (c *Controller) Snapshot() (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sim == nil {
		return Snapshot{}, ErrNotInitialized
	}
	return c.sim.Snapshot(), nil
}

func (c *Controller) Metrics() (TickMetrics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sim == nil {
		return TickMetrics{}, ErrNotInitialized
	}
	return c.sim.Metrics(), nil
}

func (c *Controller) Series(since int) ([]TickMetrics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sim == nil {
		return nil, ErrNotInitialized
	}
	return c.sim.Recorder().Samples(since), nil
}

func (c *Controller) Summary() (Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sim == nil {
		return Summary{}, ErrNotInitialized
	}
	return c.sim.Summary(), nil
}

func (c *Controller) Mutations() ([]mutation.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sim == nil {
		return nil, ErrNotInitialized
	}
	return c.sim.Mutations(), nil
}

func (c *Controller) Leaderboard(n int) ([]DriverView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sim == nil {
		return nil, ErrNotInitialized
	}
	return c.sim.Leaderboard(n), nil
}

func (c *Controller) OfferLog() ([]OfferRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sim == nil {
		return nil, ErrNotInitialized
	}
	return c.sim.OfferLog(), nil
}

func (c *Controller) Legacy() (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sim == nil {
		return nil, ErrNotInitialized
	}
	return FlatState(c.sim), nil
}

// ConfigureGenerator changes the request source at runtime. Nil arguments keep
// the current setting.
func (c *Controller) ConfigureGenerator(enabled *bool, perTick *float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sim == nil {
		return ErrNotInitialized
	}
	src, ok := c.sim.generator.(TunableSource)
	if !ok {
		return ErrGeneratorNotTunable
	}
	if perTick != nil {
		if err := src.SetRate(*perTick); err != nil {
			return err
		}
	}
	if enabled != nil {
		src.SetEnabled(*enabled)
	}
	return nil
}

// Step runs n ticks immediately and notifies observers after each one.
func (c *Controller) Step(ctx context.Context, n int) ([]TickReport, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: step count %d must be positive", ErrInvalidConfig, n)
	}
	reports := make([]TickReport, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		ev, err := c.tick()
		if err != nil {
			return reports, err
		}
		reports = append(reports, ev.Report)
		c.notify(ctx, ev)
	}
	return reports, nil
}

// Run ticks until ctx is done or maxTicks ticks ran (maxTicks <= 0 means no
// limit). A nil limiter runs as fast as possible.
func (c *Controller) Run(ctx context.Context, limiter *rate.Limiter, maxTicks int) error {
	for i := 0; maxTicks <= 0 || i < maxTicks; i++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return ctxErr(ctx, err)
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		ev, err := c.tick()
		if err != nil {
			return err
		}
		c.notify(ctx, ev)
	}
	c.log.Info().Str("run_id", c.runID).Int("ticks", maxTicks).Msg("simulation run finished")
	return nil
}

func (c *Controller) tick() (TickEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sim == nil {
		return TickEvent{}, ErrNotInitialized
	}
	rep, err := c.sim.Tick()
	if err != nil {
		return TickEvent{}, fmt.Errorf("tick %d: %w", rep.Time, err)
	}
	return TickEvent{
		RunID:    c.runID,
		Report:   rep,
		Metrics:  c.sim.Metrics(),
		Snapshot: c.sim.Snapshot(),
		Leaders:  c.sim.Leaderboard(0),
	}, nil
}

// notify fans the event out. Observer failures are logged and never stop the run.
func (c *Controller) notify(ctx context.Context, ev TickEvent) {
	for _, o := range c.observers {
		if err := o.OnTick(ctx, ev); err != nil {
			c.log.Warn().Err(err).Str("run_id", ev.RunID).Int("time", ev.Report.Time).Msg("tick observer failed")
		}
	}
}

// ctxErr prefers the context error over the limiter's own wording.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
