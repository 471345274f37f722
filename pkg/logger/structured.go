package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var zlog zerolog.Logger

// InitStructured initializes the structured zerolog logger
func InitStructured(env string) {
	var w io.Writer

	if env == "development" || env == "dev" || env == "local" {
		// Pretty console output for development
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	} else {
		// JSON output for production (machine-readable)
		w = os.Stdout
	}

	zlog = zerolog.New(w).With().
		Timestamp().
		Str("service", "hearthbid-backend").
		Logger()

	zerolog.TimeFieldFormat = time.RFC3339
}

// GetLogger returns the global zerolog logger
func GetLogger() *zerolog.Logger {
	return &zlog
}

// WithRequestID returns a logger with request_id field
func WithRequestID(requestID string) zerolog.Logger {
	return zlog.With().Str("request_id", requestID).Logger()
}

// WithProjectID returns a logger with project_id field
func WithProjectID(projectID string) zerolog.Logger {
	return zlog.With().Str("project_id", projectID).Logger()
}

// Info logs a formatted message at info level
func Info(format string, args ...interface{}) {
	zlog.Info().Msgf(format, args...)
}

// Error logs a formatted message at error level
func Error(format string, args ...interface{}) {
	zlog.Error().Msgf(format, args...)
}
