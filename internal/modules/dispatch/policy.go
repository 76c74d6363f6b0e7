// README: Dispatch policy contract and shared eligibility helpers.
package dispatch

import (
	"errors"
	"fmt"

	"ridesim/internal/modules/driver"
	"ridesim/internal/modules/request"
)

const (
	PolicyNearestNeighbor = "nearest_neighbor"
	PolicyGlobalGreedy    = "global_greedy"
	PolicyAdaptiveHybrid  = "adaptive_hybrid"
)

var ErrUnknownPolicy = errors.New("unknown dispatch policy")

// Pair is one proposed (driver, request) match.
type Pair struct {
	Driver  *driver.Driver
	Request *request.Request
}

// Distance is the pickup distance of the pair.
func (p Pair) Distance() float64 {
	return p.Driver.Position.DistanceTo(p.Request.Pickup)
}

// Policy proposes matches for one tick. Only idle drivers and waiting requests
// are eligible and no driver or request appears twice in the result.
type Policy interface {
	Name() string
	Assign(drivers []*driver.Driver, requests []*request.Request, now int) []Pair
}

// ByName builds a policy from its configured name.
func ByName(name string) (Policy, error) {
	switch name {
	case PolicyNearestNeighbor:
		return NearestNeighbor{}, nil
	case PolicyGlobalGreedy:
		return GlobalGreedy{}, nil
	case PolicyAdaptiveHybrid:
		return &AdaptiveHybrid{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
}

// Names lists the policies ByName understands.
func Names() []string {
	return []string{PolicyNearestNeighbor, PolicyGlobalGreedy, PolicyAdaptiveHybrid}
}

func idleDrivers(drivers []*driver.Driver) []*driver.Driver {
	out := make([]*driver.Driver, 0, len(drivers))
	for _, d := range drivers {
		if d != nil && d.IsIdle() {
			out = append(out, d)
		}
	}
	return out
}

func waitingRequests(requests []*request.Request) []*request.Request {
	out := make([]*request.Request, 0, len(requests))
	for _, r := range requests {
		if r != nil && r.Status == request.StatusWaiting {
			out = append(out, r)
		}
	}
	return out
}
