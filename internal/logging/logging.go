// Package logging configures the global zerolog logger used throughout
// domlb, console-formatted to stderr the way the kernel component's own
// messages are expected to reach the operator's terminal.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. Init must be called once at startup
// before any component logs.
var Logger zerolog.Logger

func init() {
	Logger = New(0)
}

// New builds a logger at the level implied by a --verbose count: 0=info,
// 1=debug, 2+=trace.
func New(verbosity int) zerolog.Logger {
	level := zerolog.InfoLevel
	switch {
	case verbosity >= 2:
		level = zerolog.TraceLevel
	case verbosity == 1:
		level = zerolog.DebugLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).Level(level).With().Timestamp().Logger()
}

// Init replaces the global Logger, e.g. once CLI flags have been parsed.
func Init(verbosity int) {
	Logger = New(verbosity)
}

// Component returns a child logger tagged with the given component name.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}
