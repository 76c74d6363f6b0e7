// README: Archive records shared by the Postgres store, Redis cache and Kafka stream.
package archive

import (
	"errors"
	"time"

	"ridesim/internal/modules/engine"
	"ridesim/internal/types"
)

var ErrNotFound = errors.New("not found")

// Run is one archived simulation.
type Run struct {
	ID         string          `json:"id"`
	Policy     string          `json:"policy"`
	Seed       int64           `json:"seed"`
	Drivers    int             `json:"drivers"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Summary    *engine.Summary `json:"summary,omitempty"`
}

// LeaderEntry is one row of the cached earnings leaderboard.
type LeaderEntry struct {
	DriverID types.ID `json:"driver_id"`
	Earnings float64  `json:"earnings"`
}

// TickMessage is the payload published for every tick.
type TickMessage struct {
	RunID   string             `json:"run_id"`
	Report  engine.TickReport  `json:"report"`
	Metrics engine.TickMetrics `json:"metrics"`
}
