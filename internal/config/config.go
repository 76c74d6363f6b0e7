// README: Config loader (viper) with defaults, RIDESIM_ env overrides and an optional file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"ridesim/internal/modules/dispatch"
	"ridesim/internal/modules/driver"
	"ridesim/internal/modules/mutation"
	"ridesim/internal/types"
)

var ErrInvalidConfig = errors.New("invalid config")

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type SimulationConfig struct {
	Width          float64       `mapstructure:"width"`
	Height         float64       `mapstructure:"height"`
	Timeout        int           `mapstructure:"timeout"`
	Ticks          int           `mapstructure:"ticks"`
	TickRate       float64       `mapstructure:"tick_rate"`
	Seed           int64         `mapstructure:"seed"`
	Policy         string        `mapstructure:"policy"`
	ExpireAssigned bool          `mapstructure:"expire_assigned"`
	OfferLog       bool          `mapstructure:"offer_log"`
	SinkTimeout    time.Duration `mapstructure:"sink_timeout"`
}

type GeneratorConfig struct {
	Rate    float64 `mapstructure:"rate"`
	Enabled bool    `mapstructure:"enabled"`
}

type FleetConfig struct {
	Drivers        int      `mapstructure:"drivers"`
	Speed          float64  `mapstructure:"speed"`
	Behavior       string   `mapstructure:"behavior"`
	Mix            []string `mapstructure:"mix"`
	DriversCSV     string   `mapstructure:"drivers_csv"`
	RequestsCSV    string   `mapstructure:"requests_csv"`
	RandomRequests int      `mapstructure:"random_requests"`
}

type BehaviorConfig struct {
	LazyIdleTicks     int     `mapstructure:"lazy_idle_ticks"`
	LazyMaxDistance   float64 `mapstructure:"lazy_max_distance"`
	GreedyMaxDistance float64 `mapstructure:"greedy_max_distance"`
	MinRewardPerTime  float64 `mapstructure:"min_reward_per_time"`
}

type MutationConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	Window           int     `mapstructure:"window"`
	LowThreshold     float64 `mapstructure:"low_threshold"`
	HighThreshold    float64 `mapstructure:"high_threshold"`
	CooldownTicks    int     `mapstructure:"cooldown_ticks"`
	ExplorationProb  float64 `mapstructure:"exploration_prob"`
	StagnationWindow int     `mapstructure:"stagnation_window"`
	StagnationBand   float64 `mapstructure:"stagnation_band"`
}

type Config struct {
	HTTP HTTPConfig `mapstructure:"http"`
	DB   struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"db"`
	Redis struct {
		Addr string        `mapstructure:"addr"`
		TTL  time.Duration `mapstructure:"ttl"`
	} `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Log        LogConfig        `mapstructure:"log"`
	Simulation SimulationConfig `mapstructure:"sim"`
	Generator  GeneratorConfig  `mapstructure:"generator"`
	Fleet      FleetConfig      `mapstructure:"fleet"`
	Behavior   BehaviorConfig   `mapstructure:"behavior"`
	Mutation   MutationConfig   `mapstructure:"mutation"`
}

var defaults = map[string]any{
	"http.addr":                    ":8080",
	"http.shutdown_timeout":        5 * time.Second,
	"db.dsn":                       "",
	"redis.addr":                   "",
	"redis.ttl":                    24 * time.Hour,
	"kafka.brokers":                []string{},
	"kafka.topic":                  "ridesim.ticks",
	"log.level":                    "info",
	"log.pretty":                   false,
	"sim.width":                    100.0,
	"sim.height":                   100.0,
	"sim.timeout":                  20,
	"sim.ticks":                    500,
	"sim.tick_rate":                10.0,
	"sim.seed":                     1,
	"sim.policy":                   dispatch.PolicyGlobalGreedy,
	"sim.expire_assigned":          false,
	"sim.offer_log":                false,
	"sim.sink_timeout":             2 * time.Second,
	"generator.rate":               1.0,
	"generator.enabled":            true,
	"fleet.drivers":                10,
	"fleet.speed":                  1.0,
	"fleet.behavior":               string(driver.KindLazy),
	"fleet.mix":                    []string{},
	"fleet.drivers_csv":            "",
	"fleet.requests_csv":           "",
	"fleet.random_requests":        0,
	"behavior.lazy_idle_ticks":     5,
	"behavior.lazy_max_distance":   10.0,
	"behavior.greedy_max_distance": 15.0,
	"behavior.min_reward_per_time": 0.8,
	"mutation.enabled":             true,
	"mutation.window":              10,
	"mutation.low_threshold":       5.0,
	"mutation.high_threshold":      15.0,
	"mutation.cooldown_ticks":      10,
	"mutation.exploration_prob":    0.1,
	"mutation.stagnation_window":   5,
	"mutation.stagnation_band":     0.05,
}

// Load reads defaults, then the file named by RIDESIM_CONFIG if any, then
// RIDESIM_* environment variables (sim.tick_rate -> RIDESIM_SIM_TICK_RATE).
func Load() (Config, error) {
	return load(os.Getenv("RIDESIM_CONFIG"))
}

// Default returns the built-in defaults, ignoring files and the environment.
func Default() Config {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

func load(path string) (Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix("RIDESIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	bad := func(key string, format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, key, fmt.Sprintf(format, args...))
	}
	switch {
	case c.HTTP.Addr == "":
		return bad("http.addr", "must not be empty")
	case !(c.Simulation.Width > 0):
		return bad("sim.width", "%v must be positive", c.Simulation.Width)
	case !(c.Simulation.Height > 0):
		return bad("sim.height", "%v must be positive", c.Simulation.Height)
	case c.Simulation.Timeout <= 0:
		return bad("sim.timeout", "%d must be positive", c.Simulation.Timeout)
	case c.Simulation.Ticks < 0:
		return bad("sim.ticks", "%d is negative", c.Simulation.Ticks)
	case c.Simulation.TickRate < 0:
		return bad("sim.tick_rate", "%v is negative", c.Simulation.TickRate)
	case !knownPolicy(c.Simulation.Policy):
		return bad("sim.policy", "unknown policy %q", c.Simulation.Policy)
	case c.Fleet.Drivers < 0:
		return bad("fleet.drivers", "%d is negative", c.Fleet.Drivers)
	case !(c.Fleet.Speed > 0):
		return bad("fleet.speed", "%v must be positive", c.Fleet.Speed)
	case !knownKind(c.Fleet.Behavior):
		return bad("fleet.behavior", "unknown behavior %q", c.Fleet.Behavior)
	case c.Fleet.RandomRequests < 0:
		return bad("fleet.random_requests", "%d is negative", c.Fleet.RandomRequests)
	}
	for _, k := range c.Fleet.Mix {
		if !knownKind(k) {
			return bad("fleet.mix", "unknown behavior %q", k)
		}
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return bad("kafka.topic", "required when brokers are set")
	}
	if err := c.BehaviorParams().Validate(); err != nil {
		return fmt.Errorf("%w: behavior: %v", ErrInvalidConfig, err)
	}
	if c.Mutation.Enabled {
		if err := c.MutationConfig().Validate(); err != nil {
			return fmt.Errorf("%w: mutation: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

func (c Config) Bounds() types.Bounds {
	return types.Bounds{Width: c.Simulation.Width, Height: c.Simulation.Height}
}

func (c Config) BehaviorParams() driver.BehaviorParams {
	return driver.BehaviorParams{
		LazyIdleTicks:     c.Behavior.LazyIdleTicks,
		LazyMaxDistance:   c.Behavior.LazyMaxDistance,
		GreedyMaxDistance: c.Behavior.GreedyMaxDistance,
		MinRewardPerTime:  c.Behavior.MinRewardPerTime,
	}
}

func (c Config) MutationConfig() mutation.Config {
	return mutation.Config{
		Window:           c.Mutation.Window,
		LowThreshold:     c.Mutation.LowThreshold,
		HighThreshold:    c.Mutation.HighThreshold,
		CooldownTicks:    c.Mutation.CooldownTicks,
		ExplorationProb:  c.Mutation.ExplorationProb,
		StagnationWindow: c.Mutation.StagnationWindow,
		StagnationBand:   c.Mutation.StagnationBand,
		Behaviors:        c.BehaviorParams(),
	}
}

// BehaviorMix returns the configured fleet mix as behavior kinds.
func (c Config) BehaviorMix() []driver.Kind {
	out := make([]driver.Kind, 0, len(c.Fleet.Mix))
	for _, k := range c.Fleet.Mix {
		out = append(out, driver.Kind(k))
	}
	return out
}

func knownPolicy(name string) bool {
	for _, p := range dispatch.Names() {
		if p == name {
			return true
		}
	}
	return false
}

func knownKind(name string) bool {
	for _, k := range driver.Kinds {
		if string(k) == name {
			return true
		}
	}
	return false
}
