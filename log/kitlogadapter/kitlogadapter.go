// Package kitlogadapter provides a tracelog.Logger that writes to a
// github.com/go-kit/log.Logger, grounded on the teacher's
// log/kitlogadapter package.
package kitlogadapter

import (
	"context"

	"github.com/go-kit/log"
	kitlevel "github.com/go-kit/log/level"

	"github.com/lorentzlasson/slonik/tracelog"
)

type Logger struct {
	l log.Logger
}

func NewLogger(l log.Logger) *Logger {
	return &Logger{l: l}
}

func (l *Logger) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	logger := l.l
	for k, v := range data {
		logger = log.With(logger, k, v)
	}

	switch level {
	case tracelog.LogLevelTrace:
		logger.Log("slonik_log_level", level.String(), "msg", msg)
	case tracelog.LogLevelDebug:
		kitlevel.Debug(logger).Log("msg", msg)
	case tracelog.LogLevelInfo:
		kitlevel.Info(logger).Log("msg", msg)
	case tracelog.LogLevelWarn:
		kitlevel.Warn(logger).Log("msg", msg)
	case tracelog.LogLevelError:
		kitlevel.Error(logger).Log("msg", msg)
	default:
		logger.Log("invalid_slonik_log_level", level.String(), "msg", msg)
	}
}

var _ tracelog.Logger = (*Logger)(nil)
