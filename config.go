package modkit

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"

	"github.com/goliatone/go-modkit/mixing"
)

// Config holds process level builder defaults read from the environment.
type Config struct {
	StateStrategy   string `env:"MODKIT_STATE_STRATEGY" envDefault:"shallow"`
	LogLevel        string `env:"MODKIT_LOG_LEVEL" envDefault:"info"`
	LogFormat       string `env:"MODKIT_LOG_FORMAT" envDefault:"text"`
	Trace           bool   `env:"MODKIT_TRACE" envDefault:"false"`
	ActivityChannel string `env:"MODKIT_ACTIVITY_CHANNEL" envDefault:"modkit"`
}

// LoadConfig parses Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("modkit: parse env: %w", err)
	}
	if _, ok := mixing.ParseStrategy(cfg.StateStrategy); !ok {
		return Config{}, fmt.Errorf("modkit: MODKIT_STATE_STRATEGY %q must be shallow or deep", cfg.StateStrategy)
	}
	return cfg, nil
}

// Strategy returns the configured default state strategy.
func (c Config) Strategy() mixing.Strategy {
	strategy, _ := mixing.ParseStrategy(c.StateStrategy)
	return strategy
}

// Logger builds a slog.Logger writing to w at the configured level. A nil w
// writes to stderr.
func (c Config) Logger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: parseLevel(c.LogLevel)}
	var handler slog.Handler
	if c.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler)
}

// WithConfig applies cfg to a builder: default state strategy, tracing and
// activity channel. The logger is left to WithLogger.
func WithConfig(cfg Config) Option {
	return func(bc *builderConfig) {
		bc.stateStrategy = cfg.Strategy()
		bc.trace = cfg.Trace
		if cfg.ActivityChannel != "" {
			bc.activityChannel = cfg.ActivityChannel
		}
	}
}
