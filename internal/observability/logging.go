// Package observability provides structured logging and Prometheus
// metrics for the simulation engine.
package observability

import (
	"os"

	"github.com/rs/zerolog"
)

// NewLogger creates a structured JSON logger for one component.
// Level comes from the PERPSIM_LOG_LEVEL env var, defaulting to info.
func NewLogger(component string) zerolog.Logger {
	level := parseLogLevel(os.Getenv("PERPSIM_LOG_LEVEL"))

	return zerolog.New(os.Stderr).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// NewLoggerWithLevel creates a logger with an explicit level.
func NewLoggerWithLevel(component string, level zerolog.Level) zerolog.Logger {
	return zerolog.New(os.Stderr).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

func parseLogLevel(s string) zerolog.Level {
	switch s {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
