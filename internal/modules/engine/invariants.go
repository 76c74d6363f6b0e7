package engine

import (
	"errors"
	"fmt"

	"ridesim/internal/modules/driver"
	"ridesim/internal/modules/request"
	"ridesim/internal/types"
)

var ErrInvariant = errors.New("simulation invariant violated")

// CheckInvariants verifies request conservation and the driver/request links.
// It is meant for tests and benchmark runs, not the tick hot path.
func (s *Simulation) CheckInvariants() error {
	if got := s.stats.Served + s.stats.Expired + len(s.active); got != s.stats.Generated {
		return fmt.Errorf("%w: served %d + expired %d + active %d != generated %d",
			ErrInvariant, s.stats.Served, s.stats.Expired, len(s.active), s.stats.Generated)
	}

	owner := make(map[types.ID]types.ID, len(s.drivers))
	for _, d := range s.drivers {
		r := d.CurrentRequest()
		if (d.Status == driver.StatusIdle) != (r == nil) {
			return fmt.Errorf("%w: driver %d is %s with request %v", ErrInvariant, d.ID, d.Status, r != nil)
		}
		for _, t := range d.History {
			if t.Fare < 0 || t.Points < 0 {
				return fmt.Errorf("%w: driver %d trip %d has negative fare or points", ErrInvariant, d.ID, t.RequestID)
			}
		}
		if r == nil {
			continue
		}
		if prev, dup := owner[r.ID]; dup {
			return fmt.Errorf("%w: request %d held by drivers %d and %d", ErrInvariant, r.ID, prev, d.ID)
		}
		owner[r.ID] = d.ID
		if r.AssignedDriverID == nil || *r.AssignedDriverID != d.ID {
			return fmt.Errorf("%w: request %d is not linked back to driver %d", ErrInvariant, r.ID, d.ID)
		}
		if r.IsTerminal() {
			return fmt.Errorf("%w: driver %d still holds %s request %d", ErrInvariant, d.ID, r.Status, r.ID)
		}
	}

	for _, r := range s.active {
		if !r.IsActive() {
			return fmt.Errorf("%w: %s request %d left in the active pool", ErrInvariant, r.Status, r.ID)
		}
		_, held := owner[r.ID]
		switch r.Status {
		case request.StatusWaiting:
			if held {
				return fmt.Errorf("%w: waiting request %d is held by a driver", ErrInvariant, r.ID)
			}
		default:
			if !held {
				return fmt.Errorf("%w: %s request %d has no driver", ErrInvariant, r.Status, r.ID)
			}
		}
	}
	return nil
}
