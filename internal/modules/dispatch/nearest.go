package dispatch

import (
	"math"

	"ridesim/internal/modules/driver"
	"ridesim/internal/modules/request"
)

// NearestNeighbor repeatedly takes the closest remaining (driver, request) pair.
// Ties go to the first pair found, drivers outer and requests inner.
type NearestNeighbor struct{}

func (NearestNeighbor) Name() string { return PolicyNearestNeighbor }

func (NearestNeighbor) Assign(drivers []*driver.Driver, requests []*request.Request, _ int) []Pair {
	ds := idleDrivers(drivers)
	rs := waitingRequests(requests)
	if len(ds) == 0 || len(rs) == 0 {
		return nil
	}

	usedD := make([]bool, len(ds))
	usedR := make([]bool, len(rs))
	n := min(len(ds), len(rs))
	pairs := make([]Pair, 0, n)

	for len(pairs) < n {
		bi, bj := -1, -1
		best := math.Inf(1)
		for i, d := range ds {
			if usedD[i] {
				continue
			}
			for j, r := range rs {
				if usedR[j] {
					continue
				}
				if dist := d.Position.DistanceTo(r.Pickup); dist < best {
					best, bi, bj = dist, i, j
				}
			}
		}
		if bi < 0 {
			break
		}
		usedD[bi], usedR[bj] = true, true
		pairs = append(pairs, Pair{Driver: ds[bi], Request: rs[bj]})
	}
	return pairs
}
