// Package zerologadapter provides a tracelog.Logger that writes to a
// github.com/rs/zerolog logger, grounded on the teacher's
// log/zerologadapter package of the same name.
package zerologadapter

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/lorentzlasson/slonik/tracelog"
)

type Logger struct {
	logger zerolog.Logger
}

// NewLogger accepts a zerolog.Logger as input and returns a tracelog
// adapter writing to it, tagged with module=slonik.
func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{logger: logger.With().Str("module", "slonik").Logger()}
}

func (l *Logger) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	var zlevel zerolog.Level
	switch level {
	case tracelog.LogLevelNone:
		zlevel = zerolog.NoLevel
	case tracelog.LogLevelError:
		zlevel = zerolog.ErrorLevel
	case tracelog.LogLevelWarn:
		zlevel = zerolog.WarnLevel
	case tracelog.LogLevelInfo:
		zlevel = zerolog.InfoLevel
	case tracelog.LogLevelDebug:
		zlevel = zerolog.DebugLevel
	default:
		zlevel = zerolog.TraceLevel
	}

	sublogger := l.logger.With().Fields(data).Logger()
	sublogger.WithLevel(zlevel).Msg(msg)
}

var _ tracelog.Logger = (*Logger)(nil)
