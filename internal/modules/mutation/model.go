// README: Mutation records, reasons and rule configuration.
package mutation

import (
	"errors"
	"fmt"
	"math"

	"ridesim/internal/modules/driver"
	"ridesim/internal/types"
)

type Reason string

const (
	ReasonExitGreedy   Reason = "exit_greedy"
	ReasonExitEarnings Reason = "exit_earnings"
	ReasonLowEarnings  Reason = "performance_low_earnings"
	ReasonHighEarnings Reason = "performance_high_earnings"
	ReasonExploration  Reason = "stagnation_exploration"
)

var ErrInvalidConfig = errors.New("invalid mutation config")

// Record describes one behavior switch.
type Record struct {
	DriverID types.ID    `json:"driver_id"`
	Time     int         `json:"time"`
	From     driver.Kind `json:"from_behavior"`
	To       driver.Kind `json:"to_behavior"`
	Reason   Reason      `json:"reason"`
	AvgFare  float64     `json:"avg_fare"`
}

// Transition is a (from, to) behavior pair used as a counter key.
type Transition struct {
	From driver.Kind
	To   driver.Kind
}

type Config struct {
	Window           int
	LowThreshold     float64
	HighThreshold    float64
	CooldownTicks    int
	ExplorationProb  float64
	StagnationWindow int
	StagnationBand   float64 // relative spread around the mean that counts as flat
	Behaviors        driver.BehaviorParams

	// GreedyExitThreshold defaults to the midpoint of the low and high thresholds.
	GreedyExitThreshold *float64
	// EarningsExitThreshold defaults to the low threshold.
	EarningsExitThreshold *float64
}

func DefaultConfig() Config {
	return Config{
		Window:           10,
		LowThreshold:     5,
		HighThreshold:    15,
		CooldownTicks:    10,
		ExplorationProb:  0.1,
		StagnationWindow: 5,
		StagnationBand:   0.05,
		Behaviors:        driver.DefaultBehaviorParams(),
	}
}

func (c Config) Validate() error {
	switch {
	case c.Window <= 0:
		return fmt.Errorf("%w: window %d must be positive", ErrInvalidConfig, c.Window)
	case math.IsNaN(c.LowThreshold) || math.IsNaN(c.HighThreshold) || c.LowThreshold >= c.HighThreshold:
		return fmt.Errorf("%w: low threshold %v must be below high threshold %v", ErrInvalidConfig, c.LowThreshold, c.HighThreshold)
	case c.CooldownTicks < 0:
		return fmt.Errorf("%w: cooldown %d is negative", ErrInvalidConfig, c.CooldownTicks)
	case !(c.ExplorationProb >= 0 && c.ExplorationProb <= 1):
		return fmt.Errorf("%w: exploration probability %v outside [0, 1]", ErrInvalidConfig, c.ExplorationProb)
	case c.StagnationWindow <= 0:
		return fmt.Errorf("%w: stagnation window %d must be positive", ErrInvalidConfig, c.StagnationWindow)
	case !(c.StagnationBand >= 0):
		return fmt.Errorf("%w: stagnation band %v is negative", ErrInvalidConfig, c.StagnationBand)
	}
	if err := c.Behaviors.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) greedyExit() float64 {
	if c.GreedyExitThreshold != nil {
		return *c.GreedyExitThreshold
	}
	return (c.LowThreshold + c.HighThreshold) / 2
}

func (c Config) earningsExit() float64 {
	if c.EarningsExitThreshold != nil {
		return *c.EarningsExitThreshold
	}
	return c.LowThreshold
}
