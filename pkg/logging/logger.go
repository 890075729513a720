// Package logging configures the gateway's structured zerolog output.
package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: JSON).
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer

	// Service is attached to every record when set.
	Service string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:   LevelInfo,
		Output:  os.Stderr,
		Service: "realty-gateway",
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(string(cfg.Level)))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	lctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		lctx = lctx.Str("service", cfg.Service)
	}
	logger := lctx.Logger()

	log.Logger = logger
	return logger
}

// ParseLevel converts a level name to a zerolog.Level. Unknown names map to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a logger tagged with a component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// ForObject adds the object type and id being served.
func ForObject(logger zerolog.Logger, objectType, id string) zerolog.Logger {
	lctx := logger.With().Str("object_type", objectType)
	if id != "" {
		lctx = lctx.Str("object_id", id)
	}
	return lctx.Logger()
}

// WithRequestID stores a request-scoped logger in ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	logger := log.With().Str("request_id", requestID).Logger()
	return logger.WithContext(ctx)
}

// FromContext returns the logger stored in ctx, or the global logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

// Log Level Guidelines:
//
// Debug: upstream request flow, cache hit/miss, token reuse.
// Info: token refreshes, server startup/shutdown, retries that recovered.
// Warn: retry attempts, host cooldowns, partial aggregations, cache errors.
// Error: retry exhaustion, failed token refresh, unhandled upstream failures.
//
// Context Fields:
//   - component: emitting package (transport, retry, auth, aggregate, cache)
//   - object_type, object_id: the entity being served
//   - url: redacted upstream URL
//   - status: upstream HTTP status
//   - error_class: client, auth, timeout, rate_limit, server, network
//   - endpoint: aggregation endpoint name
//   - failed_endpoints: names of endpoints that failed in a batch
//   - request_id: X-Request-ID of the inbound call
