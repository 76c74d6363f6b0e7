package dispatch

import (
	"ridesim/internal/modules/driver"
	"ridesim/internal/types"
)

// ResolveConflicts keeps one accepted offer per request: the one with the
// smallest pickup distance, earliest offer on ties. Winners come back in the
// order their requests first appeared. Losing offers are simply dropped.
func ResolveConflicts(accepted []driver.Offer) []driver.Offer {
	if len(accepted) == 0 {
		return nil
	}
	winner := make(map[types.ID]int, len(accepted))
	order := make([]types.ID, 0, len(accepted))
	for i, o := range accepted {
		id := o.Request.ID
		cur, ok := winner[id]
		if !ok {
			winner[id] = i
			order = append(order, id)
			continue
		}
		if o.PickupDistance() < accepted[cur].PickupDistance() {
			winner[id] = i
		}
	}
	out := make([]driver.Offer, 0, len(order))
	for _, id := range order {
		out = append(out, accepted[winner[id]])
	}
	return out
}

// Conflicts counts the accepted offers that lost to another offer for the same request.
func Conflicts(accepted, winners []driver.Offer) int {
	return len(accepted) - len(winners)
}
