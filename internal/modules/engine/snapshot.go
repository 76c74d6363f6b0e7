// README: Read-only snapshot views and the earnings leaderboard.
package engine

import (
	"sort"

	"ridesim/internal/modules/driver"
	"ridesim/internal/modules/request"
	"ridesim/internal/types"
)

type DriverView struct {
	ID        types.ID      `json:"id"`
	Position  types.Point   `json:"position"`
	Speed     float64       `json:"speed"`
	Status    driver.Status `json:"status"`
	Behavior  driver.Kind   `json:"behavior"`
	Earnings  float64       `json:"earnings"`
	Points    float64       `json:"points"`
	Trips     int           `json:"trips"`
	RequestID *types.ID     `json:"request_id,omitempty"`
}

// Snapshot is a detached copy of the simulation state. Mutating it never
// affects the engine.
type Snapshot struct {
	Time     int           `json:"time"`
	Policy   string        `json:"policy"`
	Drivers  []DriverView  `json:"drivers"`
	Pickups  []types.Point `json:"pickups"`
	Dropoffs []types.Point `json:"dropoffs"`
	Served   int           `json:"served"`
	Expired  int           `json:"expired"`
	AvgWait  float64       `json:"avg_wait"`
}

func (s *Simulation) Snapshot() Snapshot {
	snap := Snapshot{
		Time:     s.time,
		Policy:   s.policy.Name(),
		Drivers:  make([]DriverView, 0, len(s.drivers)),
		Pickups:  []types.Point{},
		Dropoffs: []types.Point{},
		Served:   s.stats.Served,
		Expired:  s.stats.Expired,
		AvgWait:  s.AvgWait(),
	}
	for _, d := range s.drivers {
		snap.Drivers = append(snap.Drivers, viewOf(d))
	}
	for _, r := range s.active {
		switch r.Status {
		case request.StatusWaiting, request.StatusAssigned:
			snap.Pickups = append(snap.Pickups, r.Pickup)
		case request.StatusPicked:
			snap.Dropoffs = append(snap.Dropoffs, r.Dropoff)
		}
	}
	return snap
}

// Leaderboard returns the n best earning drivers, ties broken by id.
// n <= 0 returns every driver.
func (s *Simulation) Leaderboard(n int) []DriverView {
	views := make([]DriverView, 0, len(s.drivers))
	for _, d := range s.drivers {
		views = append(views, viewOf(d))
	}
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].Earnings != views[j].Earnings {
			return views[i].Earnings > views[j].Earnings
		}
		return views[i].ID < views[j].ID
	})
	if n > 0 && n < len(views) {
		views = views[:n]
	}
	return views
}

func viewOf(d *driver.Driver) DriverView {
	v := DriverView{
		ID:       d.ID,
		Position: d.Position,
		Speed:    d.Speed,
		Status:   d.Status,
		Behavior: d.Behavior.Kind(),
		Earnings: d.Earnings,
		Points:   d.Points,
		Trips:    len(d.CompletedTrips(len(d.History))),
	}
	if id, ok := d.CurrentRequestID(); ok {
		v.RequestID = &id
	}
	return v
}
