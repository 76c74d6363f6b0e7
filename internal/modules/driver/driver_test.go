// README: Driver movement, assignment and trip bookkeeping tests.
package driver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"ridesim/internal/modules/request"
	"ridesim/internal/types"
)

func newTestDriver(t *testing.T, pos types.Point, speed float64) *Driver {
	t.Helper()
	d, err := New(1, pos, speed, GreedyDistance{MaxDistance: 100}, 0)
	require.NoError(t, err)
	return d
}

func TestNew_Validation(t *testing.T) {
	_, err := New(1, types.Point{}, 0, Lazy{}, 0)
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = New(1, types.Point{}, -2, Lazy{}, 0)
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = New(1, types.Point{}, 1, nil, 0)
	require.ErrorIs(t, err, ErrInvalidConfig)

	d, err := New(3, types.Point{X: 1}, 2, Lazy{}, 4)
	require.NoError(t, err)
	require.True(t, d.IsIdle())
	require.Equal(t, 4, *d.IdleSince)
}

// TestDriverFullTrip walks a driver through pickup and dropoff on a straight line.
func TestDriverFullTrip(t *testing.T) {
	d := newTestDriver(t, types.Point{X: 0, Y: 0}, 5)
	r := request.New(10, types.Point{X: 10, Y: 0}, types.Point{X: 20, Y: 0}, 0)

	require.NoError(t, d.AssignRequest(r, 0))
	require.Equal(t, StatusToPickup, d.Status)
	require.Nil(t, d.IdleSince)
	require.Equal(t, request.StatusAssigned, r.Status)
	require.Equal(t, d.ID, *r.AssignedDriverID)

	d.Step(1)
	d.Step(1)
	require.True(t, d.Position.Equal(types.Point{X: 10, Y: 0}))
	require.True(t, d.AtTarget())

	require.NoError(t, d.CompletePickup(2))
	require.Equal(t, request.StatusPicked, r.Status)
	require.Equal(t, 2, r.WaitTime)
	require.Equal(t, StatusToDropoff, d.Status)

	d.Step(1)
	d.Step(1)
	require.True(t, d.Position.Equal(types.Point{X: 20, Y: 0}))

	trip, err := d.CompleteDropoff(4)
	require.NoError(t, err)
	require.NotNil(t, trip)
	require.Equal(t, request.StatusDelivered, r.Status)
	require.InDelta(t, 10.0, d.Earnings, 1e-9)
	require.InDelta(t, 10.0, trip.Fare, 1e-9)
	require.InDelta(t, 10.0-0.1*2, trip.Points, 1e-9)
	require.InDelta(t, trip.Points, d.Points, 1e-9)

	require.True(t, d.IsIdle())
	require.Nil(t, d.CurrentRequest())
	require.Equal(t, 4, *d.IdleSince)

	require.Len(t, d.History, 1)
	h := d.History[0]
	require.Equal(t, types.ID(10), h.RequestID)
	require.Equal(t, 0, h.StartTime)
	require.True(t, h.Completed)
	require.Equal(t, 4, h.Time)
	require.Equal(t, 2, h.Wait)
	require.InDelta(t, 9.8, h.Points, 1e-9)
}

func TestStepNeverOvershoots(t *testing.T) {
	d := newTestDriver(t, types.Point{X: 0, Y: 0}, 3)
	r := request.New(1, types.Point{X: 7, Y: 0}, types.Point{X: 7, Y: 7}, 0)
	require.NoError(t, d.AssignRequest(r, 0))

	target, ok := d.TargetPoint()
	require.True(t, ok)
	prev := d.Position.DistanceTo(target)
	for i := 0; i < 5; i++ {
		d.Step(1)
		now := d.Position.DistanceTo(target)
		require.GreaterOrEqual(t, now, 0.0)
		require.LessOrEqual(t, now, prev)
		prev = now
	}
	require.True(t, d.Position.Equal(target))
}

func TestStep_NoTargetIsNoop(t *testing.T) {
	d := newTestDriver(t, types.Point{X: 4, Y: 4}, 3)
	d.Step(1)
	require.Equal(t, types.Point{X: 4, Y: 4}, d.Position)
	_, ok := d.TargetPoint()
	require.False(t, ok)
	require.False(t, d.AtTarget())
}

func TestAssignRequest_Busy(t *testing.T) {
	d := newTestDriver(t, types.Point{}, 1)
	r1 := request.New(1, types.Point{X: 1}, types.Point{X: 2}, 0)
	r2 := request.New(2, types.Point{X: 1}, types.Point{X: 2}, 0)
	require.NoError(t, d.AssignRequest(r1, 0))

	err := d.AssignRequest(r2, 0)
	require.True(t, errors.Is(err, ErrDriverBusy))
	require.Equal(t, request.StatusWaiting, r2.Status)
}

func TestAssignRequest_PropagatesInvalidTransition(t *testing.T) {
	d := newTestDriver(t, types.Point{}, 1)
	r := request.New(1, types.Point{X: 1}, types.Point{X: 2}, 0)
	require.NoError(t, r.MarkExpired(1))

	err := d.AssignRequest(r, 1)
	require.ErrorIs(t, err, request.ErrInvalidTransition)
	require.True(t, d.IsIdle())
	require.Empty(t, d.History)
}

func TestCompletions_NoRequestAreNoops(t *testing.T) {
	d := newTestDriver(t, types.Point{}, 1)
	require.NoError(t, d.CompletePickup(3))
	trip, err := d.CompleteDropoff(3)
	require.NoError(t, err)
	require.Nil(t, trip)
	require.True(t, d.IsIdle())
	require.Zero(t, d.Earnings)
}

func TestPointsClampedAtZero(t *testing.T) {
	d := newTestDriver(t, types.Point{}, 100)
	r := request.New(1, types.Point{}, types.Point{X: 1}, 0)
	require.NoError(t, d.AssignRequest(r, 40))
	require.NoError(t, d.CompletePickup(50))
	d.Step(1)
	trip, err := d.CompleteDropoff(51)
	require.NoError(t, err)
	require.InDelta(t, 1.0, trip.Fare, 1e-12)
	require.Equal(t, 0.0, trip.Points)
	require.Equal(t, 0.0, d.Points)
}

func TestRelease(t *testing.T) {
	d := newTestDriver(t, types.Point{}, 1)
	r := request.New(1, types.Point{X: 5}, types.Point{X: 6}, 0)
	require.NoError(t, d.AssignRequest(r, 0))
	d.Release(3)
	require.True(t, d.IsIdle())
	require.Empty(t, d.History)
	require.Equal(t, 3, *d.IdleSince)
}

func TestCompletedTrips(t *testing.T) {
	d := newTestDriver(t, types.Point{}, 1)
	d.History = []Trip{
		{RequestID: 1, Completed: true, Fare: 1},
		{RequestID: 2, Completed: true, Fare: 2},
		{RequestID: 3, Completed: true, Fare: 3},
		{RequestID: 4},
	}
	got := d.CompletedTrips(2)
	require.Len(t, got, 2)
	require.Equal(t, types.ID(2), got[0].RequestID)
	require.Equal(t, types.ID(3), got[1].RequestID)
	require.Len(t, d.CompletedTrips(10), 3)
	require.Nil(t, d.CompletedTrips(0))
}

func TestIdleInvariant(t *testing.T) {
	d := newTestDriver(t, types.Point{}, 2)
	r := request.New(1, types.Point{X: 2}, types.Point{X: 4}, 0)
	check := func() {
		require.Equal(t, d.Status == StatusIdle, d.CurrentRequest() == nil)
	}
	check()
	require.NoError(t, d.AssignRequest(r, 0))
	for now := 1; now < 10; now++ {
		d.Step(1)
		if d.AtTarget() {
			switch d.Status {
			case StatusToPickup:
				require.NoError(t, d.CompletePickup(now))
			case StatusToDropoff:
				_, err := d.CompleteDropoff(now)
				require.NoError(t, err)
			}
		}
		check()
	}
	require.True(t, d.IsIdle())
}
