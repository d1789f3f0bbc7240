package processor

import (
	"marketplace/pkg/logger"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// cronLogger направляет логи robfig/cron в zerolog
type cronLogger struct {
	log zerolog.Logger
}

var _ cron.Logger = cronLogger{}

func newCronLogger() cronLogger {
	return cronLogger{log: logger.Logger().With().Str("component", "cron").Logger()}
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
