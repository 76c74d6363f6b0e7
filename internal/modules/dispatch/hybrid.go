package dispatch

import (
	"ridesim/internal/modules/driver"
	"ridesim/internal/modules/request"
)

// AdaptiveHybrid uses NearestNeighbor while drivers outnumber (or match) waiting
// requests and GlobalGreedy once requests pile up.
type AdaptiveHybrid struct {
	last string
}

func (*AdaptiveHybrid) Name() string { return PolicyAdaptiveHybrid }

func (h *AdaptiveHybrid) Assign(drivers []*driver.Driver, requests []*request.Request, now int) []Pair {
	idle := len(idleDrivers(drivers))
	waiting := len(waitingRequests(requests))

	var p Policy = GlobalGreedy{}
	if waiting <= idle {
		p = NearestNeighbor{}
	}
	h.last = p.Name()
	return p.Assign(drivers, requests, now)
}

// LastChoice returns the name of the policy used on the most recent call.
func (h *AdaptiveHybrid) LastChoice() string {
	return h.last
}
