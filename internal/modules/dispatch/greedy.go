package dispatch

import (
	"ridesim/internal/modules/driver"
	"ridesim/internal/modules/request"
)

// GlobalGreedy sorts every candidate pair by pickup distance once and accepts
// pairs in that order while both ends are still free.
type GlobalGreedy struct{}

func (GlobalGreedy) Name() string { return PolicyGlobalGreedy }

type candidate struct {
	driver   int
	request  int
	distance float64
}

func (GlobalGreedy) Assign(drivers []*driver.Driver, requests []*request.Request, _ int) []Pair {
	ds := idleDrivers(drivers)
	rs := waitingRequests(requests)
	if len(ds) == 0 || len(rs) == 0 {
		return nil
	}

	cands := make([]candidate, 0, len(ds)*len(rs))
	for i, d := range ds {
		for j, r := range rs {
			cands = append(cands, candidate{driver: i, request: j, distance: d.Position.DistanceTo(r.Pickup)})
		}
	}
	sortByDistance(cands, func(c candidate) float64 { return c.distance })

	usedD := make([]bool, len(ds))
	usedR := make([]bool, len(rs))
	pairs := make([]Pair, 0, min(len(ds), len(rs)))
	for _, c := range cands {
		if usedD[c.driver] || usedR[c.request] {
			continue
		}
		usedD[c.driver], usedR[c.request] = true, true
		pairs = append(pairs, Pair{Driver: ds[c.driver], Request: rs[c.request]})
		if len(pairs) == cap(pairs) {
			break
		}
	}
	return pairs
}
