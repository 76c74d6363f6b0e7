// README: Driver agent: position, movement, trip history and earnings.
package driver

import (
	"errors"
	"fmt"
	"math"

	"ridesim/internal/modules/request"
	"ridesim/internal/types"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusToPickup  Status = "to_pickup"
	StatusToDropoff Status = "to_dropoff"
)

// waitPenalty is the per-tick wait deduction applied when scoring a trip.
const waitPenalty = 0.1

var (
	ErrDriverBusy    = errors.New("driver is not idle")
	ErrInvalidConfig = errors.New("invalid driver config")
)

// Trip is one history entry. It is opened on assignment and completed on dropoff.
type Trip struct {
	RequestID types.ID
	StartTime int
	Completed bool
	Time      int
	Fare      float64
	Wait      int
	Points    float64
}

type Driver struct {
	ID               types.ID
	Position         types.Point
	Speed            float64
	Status           Status
	Behavior         Behavior
	History          []Trip
	IdleSince        *int
	Earnings         float64
	Points           float64
	LastMutationTime *int

	// current is the request being served. The request only stores this driver's id back.
	current *request.Request
}

func New(id types.ID, pos types.Point, speed float64, behavior Behavior, now int) (*Driver, error) {
	if !(speed > 0) || math.IsInf(speed, 0) {
		return nil, fmt.Errorf("%w: driver %d speed %v must be positive", ErrInvalidConfig, id, speed)
	}
	if behavior == nil {
		return nil, fmt.Errorf("%w: driver %d has no behavior", ErrInvalidConfig, id)
	}
	idle := now
	return &Driver{
		ID:        id,
		Position:  pos,
		Speed:     speed,
		Status:    StatusIdle,
		Behavior:  behavior,
		IdleSince: &idle,
	}, nil
}

func (d *Driver) IsIdle() bool {
	return d.Status == StatusIdle && d.current == nil
}

func (d *Driver) CurrentRequest() *request.Request {
	return d.current
}

// CurrentRequestID returns the id of the request being served, if any.
func (d *Driver) CurrentRequestID() (types.ID, bool) {
	if d.current == nil {
		return 0, false
	}
	return d.current.ID, true
}

// IdleFor returns how many ticks the driver has been idle at now.
func (d *Driver) IdleFor(now int) int {
	if !d.IsIdle() || d.IdleSince == nil {
		return 0
	}
	return now - *d.IdleSince
}

func (d *Driver) AssignRequest(r *request.Request, now int) error {
	if !d.IsIdle() {
		return fmt.Errorf("%w: driver %d is %s", ErrDriverBusy, d.ID, d.Status)
	}
	if err := r.MarkAssigned(d.ID, now); err != nil {
		return err
	}
	d.current = r
	d.Status = StatusToPickup
	d.IdleSince = nil
	d.History = append(d.History, Trip{RequestID: r.ID, StartTime: now})
	return nil
}

// TargetPoint returns where the driver is heading. Idle drivers have no target.
func (d *Driver) TargetPoint() (types.Point, bool) {
	if d.current == nil {
		return types.Point{}, false
	}
	switch d.Status {
	case StatusToPickup:
		return d.current.Pickup, true
	case StatusToDropoff:
		return d.current.Dropoff, true
	}
	return types.Point{}, false
}

// AtTarget reports whether the driver stands on its target within Epsilon.
func (d *Driver) AtTarget() bool {
	target, ok := d.TargetPoint()
	return ok && d.Position.DistanceTo(target) <= types.Epsilon
}

// Step moves the driver speed*dt towards its target without overshooting.
func (d *Driver) Step(dt float64) {
	target, ok := d.TargetPoint()
	if !ok || d.Position.DistanceTo(target) <= types.Epsilon {
		return
	}
	d.Position = types.MoveTowards(d.Position, target, d.Speed*dt)
}

func (d *Driver) CompletePickup(now int) error {
	if d.current == nil {
		return nil
	}
	if err := d.current.MarkPicked(now); err != nil {
		return err
	}
	d.Status = StatusToDropoff
	return nil
}

// CompleteDropoff delivers the current request and books the trip. It returns
// the completed trip, or nil when there was nothing to deliver.
func (d *Driver) CompleteDropoff(now int) (*Trip, error) {
	r := d.current
	if r == nil {
		return nil, nil
	}
	if err := r.MarkDelivered(now); err != nil {
		return nil, err
	}
	fare := r.Fare()
	points := math.Max(0, fare-waitPenalty*float64(r.WaitTime))

	trip := d.openTrip(r.ID)
	if trip == nil {
		d.History = append(d.History, Trip{RequestID: r.ID, StartTime: now})
		trip = &d.History[len(d.History)-1]
	}
	trip.Completed = true
	trip.Time = now
	trip.Fare = fare
	trip.Wait = r.WaitTime
	trip.Points = points

	d.Earnings += fare
	d.Points += points
	d.becomeIdle(now)
	out := *trip
	return &out, nil
}

// Release drops the current request without completing it, e.g. when it expired
// before pickup. The open history entry is discarded.
func (d *Driver) Release(now int) {
	if d.current == nil {
		return
	}
	if n := len(d.History); n > 0 && !d.History[n-1].Completed && d.History[n-1].RequestID == d.current.ID {
		d.History = d.History[:n-1]
	}
	d.becomeIdle(now)
}

// CompletedTrips returns up to the last n completed trips, oldest first.
func (d *Driver) CompletedTrips(n int) []Trip {
	if n <= 0 {
		return nil
	}
	out := make([]Trip, 0, n)
	for i := len(d.History) - 1; i >= 0 && len(out) < n; i-- {
		if d.History[i].Completed {
			out = append(out, d.History[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (d *Driver) openTrip(id types.ID) *Trip {
	for i := len(d.History) - 1; i >= 0; i-- {
		if d.History[i].RequestID == id && !d.History[i].Completed {
			return &d.History[i]
		}
	}
	return nil
}

func (d *Driver) becomeIdle(now int) {
	d.current = nil
	d.Status = StatusIdle
	idle := now
	d.IdleSince = &idle
}
