// README: Offer value object proposed to a driver during dispatch.
package driver

import "ridesim/internal/modules/request"

type Offer struct {
	Driver              *Driver
	Request             *request.Request
	EstimatedTravelTime float64
	EstimatedReward     float64
	CreatedAt           int
	PolicyName          string
}

// NewOffer estimates travel time to pickup and the straight-line trip reward.
func NewOffer(d *Driver, r *request.Request, now int, policy string) Offer {
	travel := 0.0
	if d.Speed > 0 {
		travel = d.Position.DistanceTo(r.Pickup) / d.Speed
	}
	return Offer{
		Driver:              d,
		Request:             r,
		EstimatedTravelTime: travel,
		EstimatedReward:     r.Fare(),
		CreatedAt:           now,
		PolicyName:          policy,
	}
}

// RewardPerTime is reward over travel time, or exactly 0 when travel time is not positive.
func (o Offer) RewardPerTime() float64 {
	if o.EstimatedTravelTime <= 0 {
		return 0.0
	}
	return o.EstimatedReward / o.EstimatedTravelTime
}

func (o Offer) PickupDistance() float64 {
	return o.Driver.Position.DistanceTo(o.Request.Pickup)
}
