package modkit

import (
	"context"
	"log/slog"
	"time"
)

// BuildEvent describes one builder lifecycle step for logging.
type BuildEvent struct {
	Builder  string
	Stage    string
	Label    string
	Entries  int
	Duration time.Duration
	Err      error
}

// BuildLogger records builder events.
type BuildLogger interface {
	LogBuild(BuildEvent)
}

// BuildLoggerFunc adapts a function to BuildLogger.
type BuildLoggerFunc func(BuildEvent)

// LogBuild implements BuildLogger.
func (f BuildLoggerFunc) LogBuild(event BuildEvent) {
	if f != nil {
		f(event)
	}
}

// ExpressionEvent describes one run of an expression getter.
type ExpressionEvent struct {
	Engine   string
	Source   string
	Getter   string
	Duration time.Duration
	Err      error
}

// ExpressionLogger records expression getter runs.
type ExpressionLogger interface {
	LogExpression(ExpressionEvent)
}

// ExpressionLoggerFunc adapts a function to ExpressionLogger.
type ExpressionLoggerFunc func(ExpressionEvent)

// LogExpression implements ExpressionLogger.
func (f ExpressionLoggerFunc) LogExpression(event ExpressionEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogBuild(BuildEvent) {}

func (noopLogger) LogExpression(ExpressionEvent) {}

// WithLogger attaches a build logger to the builder.
func WithLogger(logger BuildLogger) Option {
	return func(cfg *builderConfig) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithExpressionLogger attaches a logger called after every expression getter
// run. Without it, expression runs go to the build logger when that logger
// also implements ExpressionLogger.
func WithExpressionLogger(logger ExpressionLogger) Option {
	return func(cfg *builderConfig) {
		cfg.exprLogger = logger
	}
}

func (cfg builderConfig) expressionLogger() ExpressionLogger {
	if cfg.exprLogger != nil {
		return cfg.exprLogger
	}
	if logger, ok := cfg.logger.(ExpressionLogger); ok {
		return logger
	}
	return noopLogger{}
}

// SlogLogger writes build events and expression runs to logger. Build
// failures log at error level, failed expressions at warn, everything else
// at debug. The returned logger also implements ExpressionLogger.
func SlogLogger(logger *slog.Logger) BuildLogger {
	if logger == nil {
		return noopLogger{}
	}
	return slogBuildLogger{logger: logger}
}

type slogBuildLogger struct {
	logger *slog.Logger
}

func (l slogBuildLogger) LogBuild(event BuildEvent) {
	attrs := []slog.Attr{
		slog.String("builder", event.Builder),
		slog.String("stage", event.Stage),
		slog.Int("entries", event.Entries),
	}
	if event.Label != "" {
		attrs = append(attrs, slog.String("label", event.Label))
	}
	if event.Duration > 0 {
		attrs = append(attrs, slog.Duration("duration", event.Duration))
	}
	level := slog.LevelDebug
	if event.Err != nil {
		level = slog.LevelError
		attrs = append(attrs, slog.Any("error", event.Err))
	}
	l.logger.LogAttrs(context.Background(), level, "modkit "+event.Stage, attrs...)
}

func (l slogBuildLogger) LogExpression(event ExpressionEvent) {
	attrs := []slog.Attr{
		slog.String("engine", event.Engine),
		slog.String("getter", event.Getter),
		slog.String("source", event.Source),
		slog.Duration("duration", event.Duration),
	}
	level := slog.LevelDebug
	if event.Err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.Any("error", event.Err))
	}
	l.logger.LogAttrs(context.Background(), level, "modkit expression", attrs...)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
