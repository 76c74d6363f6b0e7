// README: Driver behavior strategies deciding whether to accept an offer.
package driver

import (
	"fmt"
	"math"
)

type Kind string

const (
	KindLazy     Kind = "lazy"
	KindGreedy   Kind = "greedy_distance"
	KindEarnings Kind = "earnings_max"
)

// Kinds lists every behavior kind in a fixed order.
var Kinds = []Kind{KindLazy, KindGreedy, KindEarnings}

type Behavior interface {
	Kind() Kind
	Decide(d *Driver, o Offer, now int) bool
}

// BehaviorParams holds the parameters of every behavior kind so a behavior can
// be rebuilt by kind at runtime.
type BehaviorParams struct {
	LazyIdleTicks     int
	LazyMaxDistance   float64
	GreedyMaxDistance float64
	MinRewardPerTime  float64
}

func DefaultBehaviorParams() BehaviorParams {
	return BehaviorParams{
		LazyIdleTicks:     5,
		LazyMaxDistance:   10,
		GreedyMaxDistance: 15,
		MinRewardPerTime:  0.8,
	}
}

func (p BehaviorParams) Validate() error {
	switch {
	case p.LazyIdleTicks < 0:
		return fmt.Errorf("%w: lazy idle ticks %d is negative", ErrInvalidConfig, p.LazyIdleTicks)
	case !nonNegative(p.LazyMaxDistance):
		return fmt.Errorf("%w: lazy max distance %v", ErrInvalidConfig, p.LazyMaxDistance)
	case !nonNegative(p.GreedyMaxDistance):
		return fmt.Errorf("%w: greedy max distance %v", ErrInvalidConfig, p.GreedyMaxDistance)
	case !nonNegative(p.MinRewardPerTime):
		return fmt.Errorf("%w: min reward per time %v", ErrInvalidConfig, p.MinRewardPerTime)
	}
	return nil
}

// NewBehavior builds the behavior of the given kind.
func NewBehavior(kind Kind, p BehaviorParams) (Behavior, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	switch kind {
	case KindLazy:
		return Lazy{IdleTicksNeeded: p.LazyIdleTicks, MaxDistance: p.LazyMaxDistance}, nil
	case KindGreedy:
		return GreedyDistance{MaxDistance: p.GreedyMaxDistance}, nil
	case KindEarnings:
		return EarningsMax{MinRewardPerTime: p.MinRewardPerTime}, nil
	}
	return nil, fmt.Errorf("%w: unknown behavior %q", ErrInvalidConfig, kind)
}

// Lazy accepts nearby offers only after idling long enough.
type Lazy struct {
	IdleTicksNeeded int
	MaxDistance     float64
}

func (Lazy) Kind() Kind { return KindLazy }

func (b Lazy) Decide(d *Driver, o Offer, now int) bool {
	if d.IdleSince == nil || d.IdleFor(now) < b.IdleTicksNeeded {
		return false
	}
	return o.PickupDistance() <= b.MaxDistance
}

// GreedyDistance accepts anything within reach.
type GreedyDistance struct {
	MaxDistance float64
}

func (GreedyDistance) Kind() Kind { return KindGreedy }

func (b GreedyDistance) Decide(_ *Driver, o Offer, _ int) bool {
	return o.PickupDistance() <= b.MaxDistance
}

// EarningsMax accepts offers paying at least MinRewardPerTime per tick of approach.
type EarningsMax struct {
	MinRewardPerTime float64
}

func (EarningsMax) Kind() Kind { return KindEarnings }

func (b EarningsMax) Decide(_ *Driver, o Offer, _ int) bool {
	if !(o.EstimatedTravelTime > 0) || math.IsInf(o.EstimatedTravelTime, 0) {
		return false
	}
	return o.RewardPerTime() >= b.MinRewardPerTime
}

func nonNegative(v float64) bool {
	return v >= 0 && !math.IsNaN(v)
}
