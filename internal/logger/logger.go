// Package logger builds the process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Options selects the output format and minimum level.
type Options struct {
	// Level is a zerolog level name; unknown or empty means info.
	Level string
	// Development switches to the human-readable console writer.
	Development bool
	// Out defaults to stderr.
	Out io.Writer
}

// New returns a JSON logger with a "severity" level field so Cloud Logging and
// similar collectors parse the level.
func New(opts Options) zerolog.Logger {
	zerolog.LevelFieldName = "severity"
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if opts.Development {
		out = zerolog.ConsoleWriter{Out: out}
	}
	return zerolog.New(out).With().Timestamp().Logger().Level(ParseLevel(opts.Level))
}

// ParseLevel maps a level name to a zerolog.Level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
