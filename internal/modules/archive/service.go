// README: Archiver fans tick events out to the configured sinks.
package archive

import (
	"context"
	"errors"
	"time"

	"ridesim/internal/modules/engine"
	"ridesim/internal/modules/mutation"
)

type TickStore interface {
	RecordTick(ctx context.Context, runID string, m engine.TickMetrics, muts []mutation.Record) error
}

type SnapshotCache interface {
	PutSnapshot(ctx context.Context, runID string, snap engine.Snapshot) error
	UpdateLeaderboard(ctx context.Context, runID string, drivers []engine.DriverView) error
}

type Publisher interface {
	Publish(ctx context.Context, ev engine.TickEvent) error
}

// Archiver is an engine.Observer. Nil sinks are skipped.
type Archiver struct {
	store   TickStore
	cache   SnapshotCache
	stream  Publisher
	timeout time.Duration
}

func NewArchiver(store TickStore, cache SnapshotCache, stream Publisher, timeout time.Duration) *Archiver {
	return &Archiver{store: store, cache: cache, stream: stream, timeout: timeout}
}

// OnTick writes the event to every sink and reports every sink that failed.
func (a *Archiver) OnTick(ctx context.Context, ev engine.TickEvent) error {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	var errs []error
	if a.store != nil {
		if err := a.store.RecordTick(ctx, ev.RunID, ev.Metrics, ev.Report.Mutations); err != nil {
			errs = append(errs, err)
		}
	}
	if a.cache != nil {
		if err := a.cache.PutSnapshot(ctx, ev.RunID, ev.Snapshot); err != nil {
			errs = append(errs, err)
		}
		if err := a.cache.UpdateLeaderboard(ctx, ev.RunID, ev.Leaders); err != nil {
			errs = append(errs, err)
		}
	}
	if a.stream != nil {
		if err := a.stream.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
