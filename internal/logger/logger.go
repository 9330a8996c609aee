package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	LogFormatPlain = "plain"
	LogFormatText  = "text"
	LogFormatJSON  = "json"

	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// New returns a zerolog logger writing to stderr in the given format and level.
func New(format, level string) (zerolog.Logger, error) {
	return NewWithWriter(os.Stderr, format, level)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, format, level string) (zerolog.Logger, error) {
	var out io.Writer
	switch strings.ToLower(format) {
	case LogFormatPlain, LogFormatText:
		out = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    true,
			TimeFormat: time.RFC3339,
		}
	case LogFormatJSON:
		out = w
	default:
		return zerolog.Nop(), fmt.Errorf("unsupported log format: %s", format)
	}

	if level == "" {
		return zerolog.Nop(), fmt.Errorf("log level cannot be empty")
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("failed to parse log level (%s): %w", level, err)
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

// MustNew is New that panics on a bad format or level.
func MustNew(format, level string) zerolog.Logger {
	l, err := New(format, level)
	if err != nil {
		panic(err)
	}
	return l
}
