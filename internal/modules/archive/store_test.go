package archive

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"ridesim/internal/modules/driver"
	"ridesim/internal/modules/engine"
	"ridesim/internal/modules/mutation"
	"ridesim/internal/types"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("RIDESIM_TEST_DSN")
	if dsn == "" {
		t.Skip("RIDESIM_TEST_DSN not set; skipping DB-backed archive tests")
	}
	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewStore(db)
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestStore_RunLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	id := uuid.NewString()

	started := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, s.CreateRun(ctx, &Run{ID: id, Policy: "global_greedy", Seed: 42, Drivers: 3, StartedAt: started}))

	rec := mutation.Record{DriverID: 1, Time: 0, From: driver.KindLazy, To: driver.KindGreedy, Reason: mutation.ReasonLowEarnings, AvgFare: 2}
	require.NoError(t, s.RecordTick(ctx, id, engine.TickMetrics{Time: 1, Served: 0}, []mutation.Record{rec}))
	require.NoError(t, s.RecordTick(ctx, id, engine.TickMetrics{Time: 2, Served: 1, AvgWait: 3}, nil))
	// replays of the same tick are ignored
	require.NoError(t, s.RecordTick(ctx, id, engine.TickMetrics{Time: 2, Served: 9}, nil))

	ticks, err := s.ListTicks(ctx, id)
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	require.Equal(t, 1, ticks[1].Served)

	muts, err := s.ListMutations(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []mutation.Record{rec}, muts)

	ok, err := s.FinishRun(ctx, id, engine.Summary{Policy: "global_greedy", Ticks: 2, Served: 1}, started.Add(time.Second))
	require.NoError(t, err)
	require.True(t, ok)

	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(42), run.Seed)
	require.NotNil(t, run.FinishedAt)
	require.Equal(t, 1, run.Summary.Served)

	_, err = s.GetRun(ctx, uuid.NewString())
	require.ErrorIs(t, err, ErrNotFound)
	ok, err = s.FinishRun(ctx, uuid.NewString(), engine.Summary{}, started)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCache_SnapshotAndLeaderboard(t *testing.T) {
	addr := os.Getenv("RIDESIM_REDIS_ADDR")
	if addr == "" {
		t.Skip("RIDESIM_REDIS_ADDR not set; skipping integration test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	c := NewCache(rdb, time.Minute)
	ctx := context.Background()
	runID := uuid.NewString()

	_, found, err := c.GetSnapshot(ctx, runID)
	require.NoError(t, err)
	require.False(t, found)

	snap := engine.Snapshot{Time: 7, Served: 2, Pickups: []types.Point{{X: 1, Y: 2}}}
	require.NoError(t, c.PutSnapshot(ctx, runID, snap))
	got, found, err := c.GetSnapshot(ctx, runID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 7, got.Time)
	require.Equal(t, snap.Pickups, got.Pickups)

	require.NoError(t, c.UpdateLeaderboard(ctx, runID, []engine.DriverView{
		{ID: 1, Earnings: 5}, {ID: 2, Earnings: 20}, {ID: 3, Earnings: 11},
	}))
	top, err := c.TopDrivers(ctx, runID, 2)
	require.NoError(t, err)
	require.Equal(t, []LeaderEntry{{DriverID: 2, Earnings: 20}, {DriverID: 3, Earnings: 11}}, top)

	ttl, err := rdb.TTL(ctx, leaderboardKey(runID)).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
}
