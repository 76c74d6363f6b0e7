package request

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"ridesim/internal/types"
)

func newRNG() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func TestNewGenerator_Validation(t *testing.T) {
	bounds := types.Bounds{Width: 100, Height: 100}
	tests := []struct {
		name string
		cfg  GeneratorConfig
	}{
		{name: "negative rate", cfg: GeneratorConfig{Rate: -1, Bounds: bounds}},
		{name: "rate above ceiling", cfg: GeneratorConfig{Rate: MaxRate + 1, Bounds: bounds}},
		{name: "zero width", cfg: GeneratorConfig{Rate: 1, Bounds: types.Bounds{Width: 0, Height: 10}}},
		{name: "negative height", cfg: GeneratorConfig{Rate: 1, Bounds: types.Bounds{Width: 10, Height: -5}}},
		{name: "huge map", cfg: GeneratorConfig{Rate: 1, Bounds: types.Bounds{Width: MaxDimension * 2, Height: 10}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGenerator(tt.cfg, newRNG())
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}

	_, err := NewGenerator(GeneratorConfig{Rate: 1, Bounds: bounds}, nil)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestMaybeGenerate_ZeroRate(t *testing.T) {
	g, err := NewGenerator(GeneratorConfig{Rate: 0, Bounds: types.Bounds{Width: 10, Height: 10}, Enabled: true}, newRNG())
	require.NoError(t, err)
	total := 0
	for tick := 0; tick < 100; tick++ {
		total += len(g.MaybeGenerate(tick))
	}
	require.Equal(t, 0, total)
	require.Equal(t, 0, g.Generated())
}

func TestMaybeGenerate_Disabled(t *testing.T) {
	g, err := NewGenerator(GeneratorConfig{Rate: 5, Bounds: types.Bounds{Width: 10, Height: 10}}, newRNG())
	require.NoError(t, err)
	require.Empty(t, g.MaybeGenerate(0))

	g.SetEnabled(true)
	got := 0
	for tick := 0; tick < 10; tick++ {
		got += len(g.MaybeGenerate(tick))
	}
	require.Greater(t, got, 0)
}

func TestMaybeGenerate_WithinBoundsAndSequentialIDs(t *testing.T) {
	bounds := types.Bounds{Width: 30, Height: 20}
	g, err := NewGenerator(GeneratorConfig{Rate: 3, Bounds: bounds, Enabled: true, StartID: 100}, newRNG())
	require.NoError(t, err)

	next := types.ID(100)
	for tick := 0; tick < 200; tick++ {
		for _, r := range g.MaybeGenerate(tick) {
			require.Equal(t, next, r.ID)
			next++
			require.Equal(t, tick, r.CreationTime)
			require.Equal(t, StatusWaiting, r.Status)
			require.True(t, bounds.Contains(r.Pickup))
			require.True(t, bounds.Contains(r.Dropoff))
		}
	}
	require.Equal(t, int(next-100), g.Generated())
}

func TestMaybeGenerate_MeanMatchesRate(t *testing.T) {
	g, err := NewGenerator(GeneratorConfig{Rate: 2.5, Bounds: types.Bounds{Width: 10, Height: 10}, Enabled: true}, newRNG())
	require.NoError(t, err)
	const ticks = 4000
	total := 0
	for tick := 0; tick < ticks; tick++ {
		total += len(g.MaybeGenerate(tick))
	}
	require.InDelta(t, 2.5, float64(total)/ticks, 0.15)
}

func TestMaybeGenerate_SeedReproducible(t *testing.T) {
	cfg := GeneratorConfig{Rate: 1.5, Bounds: types.Bounds{Width: 50, Height: 50}, Enabled: true}
	a, err := NewGenerator(cfg, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	b, err := NewGenerator(cfg, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	for tick := 0; tick < 50; tick++ {
		ra, rb := a.MaybeGenerate(tick), b.MaybeGenerate(tick)
		require.Equal(t, len(ra), len(rb))
		for i := range ra {
			require.Equal(t, ra[i].Pickup, rb[i].Pickup)
			require.Equal(t, ra[i].Dropoff, rb[i].Dropoff)
		}
	}
}

func TestSetRate(t *testing.T) {
	g, err := NewGenerator(GeneratorConfig{Rate: 1, Bounds: types.Bounds{Width: 10, Height: 10}, Enabled: true}, newRNG())
	require.NoError(t, err)
	require.ErrorIs(t, g.SetRate(-3), ErrInvalidConfig)
	require.Equal(t, 1.0, g.Rate())
	require.NoError(t, g.SetRate(0))
	require.Empty(t, g.MaybeGenerate(0))
}
