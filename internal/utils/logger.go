package utils

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

var logger zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	if os.Getenv("LOG_PRETTY") == "1" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	if os.Getenv("LOG_LEVEL") == "debug" {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}
}

// Logger returns the process-wide zerolog logger.
func Logger() *zerolog.Logger {
	return &logger
}

func LogDebug(format string, v ...interface{}) {
	logger.Debug().Msgf(format, v...)
}

func LogInfo(format string, v ...interface{}) {
	logger.Info().Msgf(format, v...)
}

func LogError(format string, v ...interface{}) {
	logger.Error().Msgf(format, v...)
}

func LogWarning(format string, v ...interface{}) {
	logger.Warn().Msgf(format, v...)
}

func TimeTrack(start time.Time, name string) {
	logger.Debug().Dur("elapsed", time.Since(start)).Msg(name)
}
