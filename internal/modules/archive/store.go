// README: Run archive backed by PostgreSQL (runs, tick metrics, mutation records).
package archive

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridesim/internal/modules/engine"
	"ridesim/internal/modules/mutation"
	"ridesim/internal/types"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Migrate creates the archive tables when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range splitSQL(schema) {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) CreateRun(ctx context.Context, r *Run) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sim_runs (id, policy, seed, drivers, started_at)
		VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.Policy, r.Seed, r.Drivers, r.StartedAt,
	)
	return err
}

// FinishRun stores the final summary. It reports false when the run is unknown.
func (s *Store) FinishRun(ctx context.Context, id string, sum engine.Summary, at time.Time) (bool, error) {
	raw, err := json.Marshal(sum)
	if err != nil {
		return false, err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE sim_runs
		SET finished_at = $1, summary = $2
		WHERE id = $3`,
		at, raw, id,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, policy, seed, drivers, started_at, finished_at, summary
		FROM sim_runs
		WHERE id = $1`, id,
	)
	var r Run
	var raw []byte
	err := row.Scan(&r.ID, &r.Policy, &r.Seed, &r.Drivers, &r.StartedAt, &r.FinishedAt, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		var sum engine.Summary
		if err := json.Unmarshal(raw, &sum); err != nil {
			return nil, err
		}
		r.Summary = &sum
	}
	return &r, nil
}

// RecordTick writes the tick sample and any mutations of that tick in one batch.
func (s *Store) RecordTick(ctx context.Context, runID string, m engine.TickMetrics, muts []mutation.Record) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO sim_ticks (
			run_id, tick, served, expired, active, avg_wait,
			utilization, service_level, acceptance_rate, metrics
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_id, tick) DO NOTHING`,
		runID, m.Time, m.Served, m.Expired, m.Active, m.AvgWait,
		m.Utilization, m.ServiceLevel, m.AcceptanceRate, raw,
	)
	for _, rec := range muts {
		batch.Queue(`
			INSERT INTO sim_mutations (
				run_id, driver_id, tick, from_behavior, to_behavior, reason, avg_fare
			) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			runID, int(rec.DriverID), rec.Time, string(rec.From), string(rec.To), string(rec.Reason), rec.AvgFare,
		)
	}
	return s.db.SendBatch(ctx, batch).Close()
}

// ListTicks returns the stored samples of a run in tick order.
func (s *Store) ListTicks(ctx context.Context, runID string) ([]engine.TickMetrics, error) {
	rows, err := s.db.Query(ctx, `
		SELECT metrics FROM sim_ticks
		WHERE run_id = $1
		ORDER BY tick`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.TickMetrics
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var m engine.TickMetrics
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) ListMutations(ctx context.Context, runID string) ([]mutation.Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT driver_id, tick, from_behavior, to_behavior, reason, avg_fare
		FROM sim_mutations
		WHERE run_id = $1
		ORDER BY id`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []mutation.Record
	for rows.Next() {
		var rec mutation.Record
		var driverID int
		if err := rows.Scan(&driverID, &rec.Time, &rec.From, &rec.To, &rec.Reason, &rec.AvgFare); err != nil {
			return nil, err
		}
		rec.DriverID = types.ID(driverID)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func splitSQL(src string) []string {
	var out []string
	var b strings.Builder
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "--") {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	for _, stmt := range strings.Split(b.String(), ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}
