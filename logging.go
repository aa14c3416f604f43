package compositor

import (
	"os"

	"github.com/rs/zerolog"
)

// defaultLogger is the package-level fallback used when a Compositor is
// constructed without WithLogger. Components never reach for the global
// zerolog logger directly; they hold the instance handed to them so tests
// can capture output with zerolog.New(io.Writer).
func defaultLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger().
		Level(zerolog.InfoLevel)
}
