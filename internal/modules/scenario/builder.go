// README: Random demo scenarios and conversion of records into engine entities.
package scenario

import (
	"fmt"
	"math/rand"
	"sort"

	"ridesim/internal/modules/driver"
	"ridesim/internal/modules/request"
	"ridesim/internal/types"
)

// RandomDrivers places n drivers uniformly on the map. Speed and behavior are
// left to the defaults.
func RandomDrivers(n int, bounds types.Bounds, rng *rand.Rand) []DriverRecord {
	out := make([]DriverRecord, 0, max(n, 0))
	for i := 0; i < n; i++ {
		out = append(out, DriverRecord{
			X: rng.Float64() * bounds.Width,
			Y: rng.Float64() * bounds.Height,
		})
	}
	return out
}

// RandomRequests draws n requests with creation times in [0, horizon), sorted by time.
func RandomRequests(n, horizon int, bounds types.Bounds, rng *rand.Rand) []RequestRecord {
	out := make([]RequestRecord, 0, max(n, 0))
	for i := 0; i < n; i++ {
		t := 0
		if horizon > 0 {
			t = rng.Intn(horizon)
		}
		out = append(out, RequestRecord{
			Time: t,
			PX:   rng.Float64() * bounds.Width,
			PY:   rng.Float64() * bounds.Height,
			DX:   rng.Float64() * bounds.Width,
			DY:   rng.Float64() * bounds.Height,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

// FleetDefaults fills in what a driver record leaves out.
type FleetDefaults struct {
	Speed    float64
	Behavior driver.Kind
	// Mix cycles behaviors over the fleet when set, ignored for records that name one.
	Mix    []driver.Kind
	Params driver.BehaviorParams
}

// BuildDrivers creates idle drivers with ids 1..n at time now.
func BuildDrivers(records []DriverRecord, def FleetDefaults, now int) ([]*driver.Driver, error) {
	out := make([]*driver.Driver, 0, len(records))
	for i, rec := range records {
		speed := rec.Speed
		if speed == 0 {
			speed = def.Speed
		}
		kind := rec.Behavior
		if kind == "" {
			kind = def.Behavior
			if len(def.Mix) > 0 {
				kind = def.Mix[i%len(def.Mix)]
			}
		}
		b, err := driver.NewBehavior(kind, def.Params)
		if err != nil {
			return nil, fmt.Errorf("driver %d: %w", i+1, err)
		}
		d, err := driver.New(types.ID(i+1), types.Point{X: rec.X, Y: rec.Y}, speed, b, now)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// BuildRequests creates waiting requests numbered from startID in record order.
func BuildRequests(records []RequestRecord, startID types.ID) []*request.Request {
	out := make([]*request.Request, 0, len(records))
	for i, rec := range records {
		out = append(out, request.New(
			startID+types.ID(i),
			types.Point{X: rec.PX, Y: rec.PY},
			types.Point{X: rec.DX, Y: rec.DY},
			rec.Time,
		))
	}
	return out
}
