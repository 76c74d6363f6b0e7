// README: Root zerolog logger construction.
package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger. Unknown levels fall back to info.
func NewLogger(level string, pretty bool) zerolog.Logger {
	return newLogger(os.Stderr, level, pretty)
}

func newLogger(w io.Writer, level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "ridesim").Logger()
}
