// README: Policy comparison runner; replays one seeded scenario under every dispatch policy and prints results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"ridesim/internal/config"
	"ridesim/internal/infra"
)

func main() {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	bench := NewRunner(cfg)
	results := bench.RunAll(ctx)

	fmt.Println("\n== Comparison ==")
	printComparison(os.Stdout, bench.Summaries())

	fmt.Println("\n== Summary ==")
	pass, fail, skipped := 0, 0, 0
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			pass++
		case StatusFail:
			fail++
		case StatusSkip:
			skipped++
		}
	}
	fmt.Printf("PASS=%d FAIL=%d SKIP=%d\n", pass, fail, skipped)

	if fail > 0 || (cfg.Strict && skipped > 0) {
		os.Exit(1)
	}
}

type Config struct {
	Sim      config.Config
	Policies []string
	Strict   bool
	Timeout  time.Duration
}

func loadConfig() Config {
	base, err := config.Load()
	if err != nil {
		log := infra.NewLogger("info", false)
		log.Fatal().Err(err).Msg("load config")
	}

	var cfg Config
	var policies string
	flag.IntVar(&base.Simulation.Ticks, "ticks", envOrDefaultInt("RIDESIM_BENCH_TICKS", 300), "Ticks per policy")
	flag.Int64Var(&base.Simulation.Seed, "seed", base.Simulation.Seed, "Random seed shared by every policy")
	flag.IntVar(&base.Fleet.Drivers, "drivers", base.Fleet.Drivers, "Fleet size for random scenarios")
	flag.Float64Var(&base.Generator.Rate, "rate", base.Generator.Rate, "Mean requests per tick")
	flag.StringVar(&policies, "policies", envOrDefault("RIDESIM_BENCH_POLICIES", ""), "Comma separated policies (default: all)")
	flag.BoolVar(&cfg.Strict, "strict", envOrDefaultBool("RIDESIM_BENCH_STRICT", false), "Fail on skipped checks")
	flag.DurationVar(&cfg.Timeout, "timeout", envOrDefaultDuration("RIDESIM_BENCH_TIMEOUT", 60*time.Second), "Total timeout")
	flag.Parse()

	if err := base.Validate(); err != nil {
		log := infra.NewLogger("info", false)
		log.Fatal().Err(err).Msg("invalid bench flags")
	}
	cfg.Sim = base
	for _, p := range strings.Split(policies, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cfg.Policies = append(cfg.Policies, p)
		}
	}
	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "1" || v == "true" || v == "yes"
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		_, _ = fmt.Sscanf(v, "%d", &n)
		if n > 0 {
			return n
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
