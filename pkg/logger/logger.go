package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	log         = zerolog.New(os.Stdout).With().Timestamp().Logger()
	development = os.Getenv("ENVIRONMENT") == "development"
)

// Init switches to a human readable console writer in development.
func Init(env string) {
	zerolog.TimeFieldFormat = time.RFC3339
	development = env == "development"
	if development {
		cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log = zerolog.New(cw).With().Timestamp().Logger()
		return
	}
	log = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func Info(format string, v ...interface{}) {
	log.Info().CallerSkipFrame(1).Msgf(format, v...)
}

func Error(format string, v ...interface{}) {
	log.Error().CallerSkipFrame(1).Msgf(format, v...)
}

func Debug(format string, v ...interface{}) {
	if development {
		log.Debug().CallerSkipFrame(1).Msgf(format, v...)
	}
}

func Warn(format string, v ...interface{}) {
	log.Warn().CallerSkipFrame(1).Msgf(format, v...)
}

// With returns a child logger carrying a fixed field, e.g. a conversation id.
func With(key, value string) zerolog.Logger {
	return log.With().Str(key, value).Logger()
}

// LogNotificationError records a dropped push without surfacing it.
func LogNotificationError(conversationID, recipient string, err error) {
	Warn("Notification delivery failed: conversationID=%s, recipient=%s, error=%v", conversationID, recipient, err)
}

// Fatal logs and exits the process.
func Fatal(format string, v ...interface{}) {
	log.Fatal().CallerSkipFrame(1).Msgf(format, v...)
}
