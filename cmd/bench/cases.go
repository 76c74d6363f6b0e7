// README: Bench cases: per-policy invariant runs, reproducibility, and optional archive connectivity checks.
package main

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"ridesim/internal/modules/archive"
	"ridesim/internal/modules/dispatch"
	"ridesim/internal/modules/engine"
	"ridesim/internal/service"
)

const (
	StatusPass = "PASS"
	StatusFail = "FAIL"
	StatusSkip = "SKIP"
)

// reproTicks caps the reproducibility case so it stays cheap on long benches.
const reproTicks = 100

type Runner struct {
	cfg       Config
	summaries map[string]engine.Summary
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	if len(cfg.Policies) == 0 {
		cfg.Policies = dispatch.Names()
	}
	return &Runner{cfg: cfg, summaries: make(map[string]engine.Summary)}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}
	return results
}

// Summaries returns the end-of-run summary of every policy that completed.
func (r *Runner) Summaries() []engine.Summary {
	out := make([]engine.Summary, 0, len(r.summaries))
	for _, s := range r.summaries {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Policy < out[j].Policy })
	return out
}

func (r *Runner) cases() []TestCase {
	var tests []TestCase
	for _, name := range r.cfg.Policies {
		policy := name
		tests = append(tests, TestCase{
			Name: fmt.Sprintf("Policy %s: invariants over %d ticks", policy, r.cfg.Sim.Simulation.Ticks),
			Run: func(ctx context.Context, r *Runner) Result {
				start := time.Now()
				sum, err := runPolicy(ctx, r.cfg, policy, r.cfg.Sim.Simulation.Ticks)
				if err != nil {
					return Result{Status: StatusFail, Latency: time.Since(start), Note: err.Error()}
				}
				r.summaries[policy] = sum
				return Result{
					Status:  StatusPass,
					Latency: time.Since(start),
					Note:    fmt.Sprintf("served=%d expired=%d avg_wait=%.2f", sum.Served, sum.Expired, sum.AvgWait),
				}
			},
		})
	}

	tests = append(tests,
		TestCase{
			Name: "Reproducibility: same seed gives the same summary",
			Run: func(ctx context.Context, r *Runner) Result {
				policy := r.cfg.Policies[0]
				ticks := min(r.cfg.Sim.Simulation.Ticks, reproTicks)
				a, err := runPolicy(ctx, r.cfg, policy, ticks)
				if err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				b, err := runPolicy(ctx, r.cfg, policy, ticks)
				if err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				if !reflect.DeepEqual(a, b) {
					return Result{Status: StatusFail, Note: fmt.Sprintf("%s diverged between runs", policy)}
				}
				return Result{Status: StatusPass, Note: policy}
			},
		},
		TestCase{
			Name: "Env: Postgres archive",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.cfg.Sim.DB.DSN == "" {
					return Result{Status: StatusSkip, Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				start := time.Now()
				db, err := pgxpool.New(ctx, r.cfg.Sim.DB.DSN)
				if err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				defer db.Close()
				if err := archive.NewStore(db).Migrate(ctx); err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				return Result{Status: StatusPass, Latency: time.Since(start)}
			},
		},
		TestCase{
			Name: "Env: Redis cache",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.cfg.Sim.Redis.Addr == "" {
					return Result{Status: StatusSkip, Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				client := redis.NewClient(&redis.Options{Addr: r.cfg.Sim.Redis.Addr})
				defer client.Close()
				start := time.Now()
				if err := client.Ping(ctx).Err(); err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				return Result{Status: StatusPass, Latency: time.Since(start)}
			},
		},
	)
	return tests
}

// runPolicy runs the configured scenario under one policy, checking invariants
// after every tick.
func runPolicy(ctx context.Context, cfg Config, policy string, ticks int) (engine.Summary, error) {
	setup, err := service.NewSimulation(cfg.Sim, policy, nil)
	if err != nil {
		return engine.Summary{}, err
	}
	sim := setup.Sim
	for i := 0; i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			return engine.Summary{}, err
		}
		if _, err := sim.Tick(); err != nil {
			return engine.Summary{}, err
		}
		if err := sim.CheckInvariants(); err != nil {
			return engine.Summary{}, fmt.Errorf("tick %d: %w", sim.Time(), err)
		}
	}
	return sim.Summary(), nil
}

func printComparison(w io.Writer, sums []engine.Summary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "POLICY\tGENERATED\tSERVED\tEXPIRED\tAVG_WAIT\tSERVICE\tACCEPT\tCONFLICTS\tEARNINGS\tMUTATIONS")
	for _, s := range sums {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.2f\t%.1f%%\t%.1f%%\t%d\t%.1f\t%d\n",
			s.Policy, s.Generated, s.Served, s.Expired, s.AvgWait,
			100*s.ServiceLevel, 100*s.AcceptanceRate, s.Conflicts, s.TotalEarnings, s.Mutations)
	}
	_ = tw.Flush()
}
