// Package logging provides the process-wide structured logger.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Log is the package-level logger used throughout the pipeline. Components
// take it as a dependency rather than constructing their own, mirroring the
// single-global-logger convention the rest of this module's ancestry uses.
var Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	With().
	Timestamp().
	Caller().
	Logger()

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

// SetLevel adjusts the global minimum log level, e.g. from a CLI verbosity flag.
func SetLevel(level zerolog.Level) {
	Log = Log.Level(level)
}

// Named returns a child logger tagged with a component name, used so log
// lines from preprocess, icpodom, posegraph, etc. can be filtered.
func Named(component string) zerolog.Logger {
	return Log.With().Str("component", component).Logger()
}
