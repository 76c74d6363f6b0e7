// README: Request aggregate and lifecycle status definitions.
package request

import (
	"errors"
	"fmt"

	"ridesim/internal/types"
)

type Status string

const (
	StatusNone      Status = "none"
	StatusWaiting   Status = "waiting"
	StatusAssigned  Status = "assigned"
	StatusPicked    Status = "picked"
	StatusDelivered Status = "delivered"
	StatusExpired   Status = "expired"
)

var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrInvalidConfig     = errors.New("invalid request generator config")
)

type Request struct {
	ID               types.ID
	Pickup           types.Point
	Dropoff          types.Point
	CreationTime     int
	Status           Status
	AssignedDriverID *types.ID
	WaitTime         int
	Events           []Event
}

// Event is one recorded status change.
type Event struct {
	FromStatus Status
	ToStatus   Status
	Time       int
	DriverID   *types.ID
}

// AllowedTransitions represents the request state flow (diagram) as code.
// Self-loops let the engine re-dispatch or re-confirm without an intermediate state.
var AllowedTransitions = map[Status][]Status{
	StatusNone:      {StatusWaiting},
	StatusWaiting:   {StatusAssigned, StatusExpired},
	StatusAssigned:  {StatusAssigned, StatusPicked, StatusExpired},
	StatusPicked:    {StatusPicked, StatusDelivered, StatusExpired},
	StatusDelivered: {StatusDelivered},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// New creates a waiting request.
func New(id types.ID, pickup, dropoff types.Point, createdAt int) *Request {
	r := &Request{
		ID:           id,
		Pickup:       pickup,
		Dropoff:      dropoff,
		CreationTime: createdAt,
		Status:       StatusNone,
	}
	r.transition(StatusWaiting, createdAt, nil)
	return r
}

func (r *Request) MarkAssigned(driverID types.ID, now int) error {
	if err := r.check(StatusAssigned); err != nil {
		return err
	}
	d := driverID
	r.AssignedDriverID = &d
	r.transition(StatusAssigned, now, &d)
	return nil
}

// MarkPicked moves the request to picked. The wait time is fixed on the first pickup.
func (r *Request) MarkPicked(now int) error {
	if err := r.check(StatusPicked); err != nil {
		return err
	}
	if r.Status != StatusPicked {
		r.WaitTime = now - r.CreationTime
	}
	r.transition(StatusPicked, now, r.AssignedDriverID)
	return nil
}

func (r *Request) MarkDelivered(now int) error {
	if err := r.check(StatusDelivered); err != nil {
		return err
	}
	r.transition(StatusDelivered, now, r.AssignedDriverID)
	return nil
}

func (r *Request) MarkExpired(now int) error {
	if err := r.check(StatusExpired); err != nil {
		return err
	}
	r.WaitTime = now - r.CreationTime
	r.transition(StatusExpired, now, r.AssignedDriverID)
	return nil
}

func (r *Request) IsActive() bool {
	switch r.Status {
	case StatusWaiting, StatusAssigned, StatusPicked:
		return true
	}
	return false
}

func (r *Request) IsTerminal() bool {
	return r.Status == StatusDelivered || r.Status == StatusExpired
}

// UpdateWait refreshes the running wait time of a request nobody has picked up yet.
func (r *Request) UpdateWait(now int) {
	if r.Status == StatusWaiting || r.Status == StatusAssigned {
		r.WaitTime = now - r.CreationTime
	}
}

// Age is the number of ticks since creation.
func (r *Request) Age(now int) int {
	return now - r.CreationTime
}

// Fare is the straight-line trip distance.
func (r *Request) Fare() float64 {
	return r.Pickup.DistanceTo(r.Dropoff)
}

func (r *Request) check(to Status) error {
	if !CanTransition(r.Status, to) {
		return fmt.Errorf("%w: request %d %s -> %s", ErrInvalidTransition, r.ID, r.Status, to)
	}
	return nil
}

func (r *Request) transition(to Status, now int, driverID *types.ID) {
	r.Events = append(r.Events, Event{
		FromStatus: r.Status,
		ToStatus:   to,
		Time:       now,
		DriverID:   driverID,
	})
	r.Status = to
}
