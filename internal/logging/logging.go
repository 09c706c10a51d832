package logging

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// New returns a zerolog logger configured for stdout at info level.
func New() zerolog.Logger {
	return NewWithLevel("info")
}

// NewWithLevel returns a stdout logger at the given level. Unknown levels fall back to info.
func NewWithLevel(level string) zerolog.Logger {
	return newLogger(os.Stdout, level)
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()
}

// parseLevel accepts zerolog's level names plus "warning". Anything else,
// including numeric and disabled levels, falls back to info.
func parseLevel(value string) zerolog.Level {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "warning" {
		value = zerolog.LevelWarnValue
	}
	level, err := zerolog.ParseLevel(value)
	if err != nil || level < zerolog.TraceLevel || level > zerolog.PanicLevel {
		return zerolog.InfoLevel
	}
	if _, numeric := strconv.Atoi(value); numeric == nil {
		return zerolog.InfoLevel
	}
	return level
}
