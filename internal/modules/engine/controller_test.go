package engine

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"ridesim/internal/modules/driver"
	"ridesim/internal/modules/request"
	"ridesim/internal/types"
)

type mockObserver struct {
	events []TickEvent
	err    error
}

func (m *mockObserver) OnTick(_ context.Context, ev TickEvent) error {
	m.events = append(m.events, ev)
	return m.err
}

func TestController_NotInitialized(t *testing.T) {
	c := NewController("run-1", zerolog.Nop())

	_, err := c.Snapshot()
	require.ErrorIs(t, err, ErrNotInitialized)
	_, err = c.Metrics()
	require.ErrorIs(t, err, ErrNotInitialized)
	_, err = c.Series(0)
	require.ErrorIs(t, err, ErrNotInitialized)
	_, err = c.Summary()
	require.ErrorIs(t, err, ErrNotInitialized)
	_, err = c.Mutations()
	require.ErrorIs(t, err, ErrNotInitialized)
	_, err = c.Leaderboard(3)
	require.ErrorIs(t, err, ErrNotInitialized)
	_, err = c.Legacy()
	require.ErrorIs(t, err, ErrNotInitialized)
	_, err = c.Step(context.Background(), 1)
	require.ErrorIs(t, err, ErrNotInitialized)
	require.ErrorIs(t, c.ConfigureGenerator(nil, nil), ErrNotInitialized)
}

func TestController_StepNotifiesObservers(t *testing.T) {
	failing := &mockObserver{err: errors.New("sink down")}
	ok := &mockObserver{}
	c := NewController("run-2", zerolog.Nop(), failing, ok)
	c.Load(newSim(t, Options{Drivers: []*driver.Driver{greedyDriver(t, 1, 1, 1, 1)}}))

	reports, err := c.Step(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	require.Len(t, failing.events, 3)
	require.Len(t, ok.events, 3)

	last := ok.events[2]
	require.Equal(t, "run-2", last.RunID)
	require.Equal(t, 2, last.Report.Time)
	require.Equal(t, 3, last.Metrics.Time)
	require.Equal(t, 3, last.Snapshot.Time)
	require.Len(t, last.Leaders, 1)

	_, err = c.Step(context.Background(), 0)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestController_RunRespectsLimitAndContext(t *testing.T) {
	c := NewController("run-3", zerolog.Nop())
	c.Load(newSim(t, Options{}))

	require.NoError(t, c.Run(context.Background(), nil, 5))
	m, err := c.Metrics()
	require.NoError(t, err)
	require.Equal(t, 5, m.Time)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = c.Run(ctx, rate.NewLimiter(rate.Limit(1000), 1), 0)
	require.ErrorIs(t, err, context.Canceled)
}

func TestController_ConfigureGenerator(t *testing.T) {
	gen, err := request.NewGenerator(request.GeneratorConfig{
		Rate: 1, Bounds: testBounds, Enabled: true, StartID: 1,
	}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	c := NewController("run-4", zerolog.Nop())
	c.Load(newSim(t, Options{Generator: gen}))

	off, r := false, 7.5
	require.NoError(t, c.ConfigureGenerator(&off, &r))
	require.False(t, gen.Enabled())
	require.Equal(t, 7.5, gen.Rate())

	bad := -1.0
	require.ErrorIs(t, c.ConfigureGenerator(nil, &bad), request.ErrInvalidConfig)
	require.Equal(t, 7.5, gen.Rate())

	c.Load(newSim(t, Options{}))
	require.ErrorIs(t, c.ConfigureGenerator(&off, nil), ErrGeneratorNotTunable)
}

func TestController_Reads(t *testing.T) {
	c := NewController("run-5", zerolog.Nop())
	d := greedyDriver(t, 1, 0, 0, 5)
	c.Load(newSim(t, Options{
		Drivers:      []*driver.Driver{d},
		Requests:     []*request.Request{request.New(1, types.Point{X: 10}, types.Point{X: 20}, 0)},
		KeepOfferLog: true,
	}))
	_, err := c.Step(context.Background(), 4)
	require.NoError(t, err)

	series, err := c.Series(0)
	require.NoError(t, err)
	require.Len(t, series, 4)

	sum, err := c.Summary()
	require.NoError(t, err)
	require.Equal(t, 1, sum.Served)

	offers, err := c.OfferLog()
	require.NoError(t, err)
	require.Len(t, offers, 1)

	flat, err := c.Legacy()
	require.NoError(t, err)
	require.Equal(t, 4, flat["t"])
}
