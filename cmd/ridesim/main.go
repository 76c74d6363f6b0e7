// README: Entry point; loads config, builds the simulation, wires sinks, runs the tick loop and HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"ridesim/internal/config"
	httptransport "ridesim/internal/http"
	"ridesim/internal/infra"
	"ridesim/internal/modules/archive"
	"ridesim/internal/modules/engine"
	"ridesim/internal/observability"
	"ridesim/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := infra.NewLogger("info", false)
		boot.Fatal().Err(err).Msg("load config")
	}
	log := infra.NewLogger(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("ridesim stopped")
	}
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	runID := uuid.NewString()
	log = log.With().Str("run_id", runID).Logger()

	setup, err := service.NewSimulation(cfg, "", &log)
	if err != nil {
		return err
	}
	log.Info().
		Str("policy", setup.Sim.PolicyName()).
		Int("drivers", setup.Drivers).
		Int("scheduled", setup.Scheduled).
		Int64("seed", cfg.Simulation.Seed).
		Msg("simulation ready")

	metrics := observability.NewMetrics()
	observers := []engine.Observer{metrics}

	sinks, err := openSinks(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer sinks.close(log)
	if sinks.enabled() {
		observers = append(observers, sinks.archiver(cfg.Simulation.SinkTimeout))
	}
	if sinks.store != nil {
		err := sinks.store.CreateRun(ctx, &archive.Run{
			ID:        runID,
			Policy:    setup.Sim.PolicyName(),
			Seed:      cfg.Simulation.Seed,
			Drivers:   setup.Drivers,
			StartedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
	}

	ctrl := engine.NewController(runID, log, observers...)
	ctrl.Load(setup.Sim)

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Sim:     ctrl,
		Metrics: metrics,
		Logger:  log,
	})
	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Routes()}

	var limiter *rate.Limiter
	if cfg.Simulation.TickRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Simulation.TickRate), 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := ctrl.Run(gctx, limiter, cfg.Simulation.Ticks)
		finishRun(sinks.store, ctrl, log)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// finishRun stores the end-of-run summary. It uses its own context so it still
// runs after a shutdown signal.
func finishRun(store *archive.Store, ctrl *engine.Controller, log zerolog.Logger) {
	sum, err := ctrl.Summary()
	if err != nil {
		log.Warn().Err(err).Msg("summary unavailable")
		return
	}
	log.Info().
		Int("ticks", sum.Ticks).
		Int("served", sum.Served).
		Int("expired", sum.Expired).
		Float64("avg_wait", sum.AvgWait).
		Msg("simulation finished")
	if store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ok, err := store.FinishRun(ctx, ctrl.RunID(), sum, time.Now().UTC())
	switch {
	case err != nil:
		log.Error().Err(err).Msg("archive run summary")
	case !ok:
		log.Warn().Msg("run row missing, summary not archived")
	}
}
