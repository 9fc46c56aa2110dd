package services

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogging switches the global logger to a console writer, or plain JSON outside local runs.
func SetupLogging(env string) {
	zerolog.TimeFieldFormat = time.RFC3339

	if env != "local" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		return
	}
	cw := zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = os.Stdout
		w.TimeFormat = time.RFC3339
	})
	log.Logger = zerolog.New(cw).With().Timestamp().Logger()
}
