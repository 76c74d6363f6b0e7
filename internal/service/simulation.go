// README: Builds a seeded simulation from config (scenario, generator, mutation rule, policy).
package service

import (
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"

	"ridesim/internal/config"
	"ridesim/internal/modules/dispatch"
	"ridesim/internal/modules/driver"
	"ridesim/internal/modules/engine"
	"ridesim/internal/modules/mutation"
	"ridesim/internal/modules/request"
	"ridesim/internal/modules/scenario"
	"ridesim/internal/types"
)

// defaultHorizon spreads random scheduled requests when the run is unbounded.
const defaultHorizon = 100

// Random streams are derived from the seed so that the scenario and the arrival
// stream stay identical across policies.
const (
	scenarioStream  = 0
	generatorStream = 1
	mutationStream  = 2
)

// Setup is everything NewSimulation produced, for callers that need more than
// the engine itself.
type Setup struct {
	Sim       *engine.Simulation
	Generator *request.Generator
	Mutation  *mutation.Hybrid
	Drivers   int
	Scheduled int
}

// NewSimulation builds a simulation from cfg running the named dispatch policy.
// An empty policyName uses cfg.Simulation.Policy.
func NewSimulation(cfg config.Config, policyName string, log *zerolog.Logger) (*Setup, error) {
	if policyName == "" {
		policyName = cfg.Simulation.Policy
	}
	policy, err := dispatch.ByName(policyName)
	if err != nil {
		return nil, err
	}
	bounds := cfg.Bounds()
	scenRng := stream(cfg.Simulation.Seed, scenarioStream)

	driverRecs, err := driverRecords(cfg, bounds, scenRng)
	if err != nil {
		return nil, err
	}
	requestRecs, err := requestRecords(cfg, bounds, scenRng)
	if err != nil {
		return nil, err
	}

	drivers, err := scenario.BuildDrivers(driverRecs, scenario.FleetDefaults{
		Speed:    cfg.Fleet.Speed,
		Behavior: driver.Kind(cfg.Fleet.Behavior),
		Mix:      cfg.BehaviorMix(),
		Params:   cfg.BehaviorParams(),
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("build drivers: %w", err)
	}
	scheduled := scenario.BuildRequests(requestRecs, 1)

	gen, err := request.NewGenerator(request.GeneratorConfig{
		Rate:    cfg.Generator.Rate,
		Bounds:  bounds,
		Enabled: cfg.Generator.Enabled,
		StartID: types.ID(len(scheduled) + 1),
	}, stream(cfg.Simulation.Seed, generatorStream))
	if err != nil {
		return nil, fmt.Errorf("build generator: %w", err)
	}

	opts := engine.Options{
		Drivers:        drivers,
		Requests:       scheduled,
		Policy:         policy,
		Generator:      gen,
		Timeout:        cfg.Simulation.Timeout,
		Bounds:         bounds,
		ExpireAssigned: cfg.Simulation.ExpireAssigned,
		KeepOfferLog:   cfg.Simulation.OfferLog,
		Logger:         log,
	}
	out := &Setup{Generator: gen, Drivers: len(drivers), Scheduled: len(scheduled)}
	if cfg.Mutation.Enabled {
		rule, err := mutation.NewHybrid(cfg.MutationConfig(), stream(cfg.Simulation.Seed, mutationStream))
		if err != nil {
			return nil, fmt.Errorf("build mutation rule: %w", err)
		}
		opts.Mutation = rule
		out.Mutation = rule
	}

	sim, err := engine.New(opts)
	if err != nil {
		return nil, err
	}
	out.Sim = sim
	return out, nil
}

func driverRecords(cfg config.Config, bounds types.Bounds, rng *rand.Rand) ([]scenario.DriverRecord, error) {
	if cfg.Fleet.DriversCSV != "" {
		return scenario.LoadDriversFile(cfg.Fleet.DriversCSV, bounds)
	}
	return scenario.RandomDrivers(cfg.Fleet.Drivers, bounds, rng), nil
}

func requestRecords(cfg config.Config, bounds types.Bounds, rng *rand.Rand) ([]scenario.RequestRecord, error) {
	if cfg.Fleet.RequestsCSV != "" {
		return scenario.LoadRequestsFile(cfg.Fleet.RequestsCSV, bounds)
	}
	if cfg.Fleet.RandomRequests == 0 {
		return nil, nil
	}
	horizon := cfg.Simulation.Ticks
	if horizon <= 0 {
		horizon = defaultHorizon
	}
	return scenario.RandomRequests(cfg.Fleet.RandomRequests, horizon, bounds, rng), nil
}

func stream(seed int64, n int64) *rand.Rand {
	return rand.New(rand.NewSource(seed*7919 + n))
}
