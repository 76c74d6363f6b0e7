// README: Latest snapshot and earnings leaderboard cached in Redis.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"ridesim/internal/modules/engine"
	"ridesim/internal/types"
)

const (
	snapshotKeyPattern    = "ridesim:run:%s:snapshot"
	leaderboardKeyPattern = "ridesim:run:%s:leaderboard"
	// Runs are inspected shortly after they end; keys do not need to outlive a day.
	keyTTL = 24 * time.Hour
)

type Cache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewCache(redis *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = keyTTL
	}
	return &Cache{redis: redis, ttl: ttl}
}

func (c *Cache) PutSnapshot(ctx context.Context, runID string, snap engine.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, snapshotKey(runID), raw, c.ttl).Err()
}

// GetSnapshot returns the last cached snapshot of a run, and whether there is one.
func (c *Cache) GetSnapshot(ctx context.Context, runID string) (engine.Snapshot, bool, error) {
	raw, err := c.redis.Get(ctx, snapshotKey(runID)).Bytes()
	if err == redis.Nil {
		return engine.Snapshot{}, false, nil
	}
	if err != nil {
		return engine.Snapshot{}, false, err
	}
	var snap engine.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return engine.Snapshot{}, false, err
	}
	return snap, true, nil
}

// UpdateLeaderboard replaces every driver's score with its current earnings.
func (c *Cache) UpdateLeaderboard(ctx context.Context, runID string, drivers []engine.DriverView) error {
	if len(drivers) == 0 {
		return nil
	}
	members := make([]redis.Z, len(drivers))
	for i, d := range drivers {
		members[i] = redis.Z{Score: d.Earnings, Member: strconv.Itoa(int(d.ID))}
	}
	key := leaderboardKey(runID)
	pipe := c.redis.Pipeline()
	pipe.ZAdd(ctx, key, members...)
	pipe.Expire(ctx, key, c.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// TopDrivers returns the n best earners, highest first.
func (c *Cache) TopDrivers(ctx context.Context, runID string, n int) ([]LeaderEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	res, err := c.redis.ZRevRangeWithScores(ctx, leaderboardKey(runID), 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]LeaderEntry, 0, len(res))
	for _, z := range res {
		member, ok := z.Member.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected leaderboard member %v", z.Member)
		}
		id, err := strconv.Atoi(member)
		if err != nil {
			return nil, fmt.Errorf("leaderboard member %q: %w", member, err)
		}
		out = append(out, LeaderEntry{DriverID: types.ID(id), Earnings: z.Score})
	}
	return out, nil
}

func snapshotKey(runID string) string {
	return fmt.Sprintf(snapshotKeyPattern, runID)
}

func leaderboardKey(runID string) string {
	return fmt.Sprintf(leaderboardKeyPattern, runID)
}
