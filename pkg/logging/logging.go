// Package logging builds the zerolog loggers used across the engine.
package logging

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// New returns a configured logger writing to w. Unrecognized levels fall
// back to info rather than failing startup.
func New(level string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Component tags a logger with the component emitting through it.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

// Nop returns a logger that discards everything. Used as the default when a
// caller passes no logger.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
