// README: Hybrid mutation rule (exit, performance, stagnation checks behind a cooldown).
package mutation

import (
	"fmt"
	"math"
	"math/rand"

	"ridesim/internal/modules/driver"
)

// minStagnationMean keeps drivers with near-zero fares out of exploration.
const minStagnationMean = 0.1

// Hybrid swaps driver behaviors based on recent fares. It owns the mutation
// history of one simulation.
type Hybrid struct {
	cfg         Config
	rng         *rand.Rand
	history     []Record
	transitions map[Transition]int
	reasons     map[Reason]int
}

func NewHybrid(cfg Config, rng *rand.Rand) (*Hybrid, error) {
	if rng == nil {
		return nil, fmt.Errorf("%w: random source is required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Hybrid{
		cfg:         cfg,
		rng:         rng,
		transitions: make(map[Transition]int),
		reasons:     make(map[Reason]int),
	}, nil
}

// MaybeMutate evaluates d at tick now and reports the mutation it applied, if any.
func (h *Hybrid) MaybeMutate(d *driver.Driver, now int) (Record, bool) {
	if d == nil || d.Behavior == nil {
		return Record{}, false
	}
	if d.LastMutationTime != nil && now-*d.LastMutationTime < h.cfg.CooldownTicks {
		return Record{}, false
	}
	avg, ok := AverageFare(d, h.cfg.Window)
	if !ok {
		return Record{}, false
	}
	current := d.Behavior.Kind()

	switch current {
	case driver.KindGreedy:
		if avg >= h.cfg.greedyExit() {
			return h.apply(d, now, driver.KindLazy, ReasonExitGreedy, avg)
		}
	case driver.KindEarnings:
		if avg < h.cfg.earningsExit() {
			return h.apply(d, now, driver.KindLazy, ReasonExitEarnings, avg)
		}
	}

	if avg < h.cfg.LowThreshold {
		if current == driver.KindGreedy {
			return Record{}, false
		}
		return h.apply(d, now, driver.KindGreedy, ReasonLowEarnings, avg)
	}
	if avg > h.cfg.HighThreshold {
		if current == driver.KindEarnings {
			return Record{}, false
		}
		return h.apply(d, now, driver.KindEarnings, ReasonHighEarnings, avg)
	}

	if !h.stagnating(d) {
		return Record{}, false
	}
	if h.rng.Float64() >= h.cfg.ExplorationProb {
		return Record{}, false
	}
	others := make([]driver.Kind, 0, len(driver.Kinds)-1)
	for _, k := range driver.Kinds {
		if k != current {
			others = append(others, k)
		}
	}
	return h.apply(d, now, others[h.rng.Intn(len(others))], ReasonExploration, avg)
}

// History returns a copy of every mutation applied so far.
func (h *Hybrid) History() []Record {
	out := make([]Record, len(h.history))
	copy(out, h.history)
	return out
}

func (h *Hybrid) Transitions() map[Transition]int {
	out := make(map[Transition]int, len(h.transitions))
	for k, v := range h.transitions {
		out[k] = v
	}
	return out
}

func (h *Hybrid) CountsByReason() map[Reason]int {
	out := make(map[Reason]int, len(h.reasons))
	for k, v := range h.reasons {
		out[k] = v
	}
	return out
}

func (h *Hybrid) stagnating(d *driver.Driver) bool {
	trips := d.CompletedTrips(h.cfg.StagnationWindow)
	if len(trips) < h.cfg.StagnationWindow {
		return false
	}
	sum := 0.0
	for _, t := range trips {
		sum += t.Fare
	}
	mean := sum / float64(len(trips))
	if mean <= minStagnationMean {
		return false
	}
	for _, t := range trips {
		if math.Abs(t.Fare-mean) > h.cfg.StagnationBand*mean {
			return false
		}
	}
	return true
}

func (h *Hybrid) apply(d *driver.Driver, now int, to driver.Kind, reason Reason, avg float64) (Record, bool) {
	b, err := driver.NewBehavior(to, h.cfg.Behaviors)
	if err != nil {
		// params were validated in NewHybrid
		return Record{}, false
	}
	rec := Record{
		DriverID: d.ID,
		Time:     now,
		From:     d.Behavior.Kind(),
		To:       to,
		Reason:   reason,
		AvgFare:  avg,
	}
	d.Behavior = b
	t := now
	d.LastMutationTime = &t
	h.history = append(h.history, rec)
	h.transitions[Transition{From: rec.From, To: rec.To}]++
	h.reasons[reason]++
	return rec, true
}

// AverageFare is the mean fare of the driver's last window completed trips.
func AverageFare(d *driver.Driver, window int) (float64, bool) {
	trips := d.CompletedTrips(window)
	if len(trips) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, t := range trips {
		sum += t.Fare
	}
	return sum / float64(len(trips)), true
}
