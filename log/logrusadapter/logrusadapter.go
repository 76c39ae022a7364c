// Package logrusadapter provides a tracelog.Logger that writes to a
// github.com/sirupsen/logrus.Logger, grounded on the teacher's
// log/logrusadapter package.
package logrusadapter

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/lorentzlasson/slonik/tracelog"
)

type Logger struct {
	l *logrus.Logger
}

func NewLogger(l *logrus.Logger) *Logger {
	return &Logger{l: l}
}

func (l *Logger) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	var logger logrus.FieldLogger
	if data != nil {
		logger = l.l.WithFields(data)
	} else {
		logger = l.l
	}

	switch level {
	case tracelog.LogLevelTrace:
		logger.WithField("slonik_log_level", level.String()).Debug(msg)
	case tracelog.LogLevelDebug:
		logger.Debug(msg)
	case tracelog.LogLevelInfo:
		logger.Info(msg)
	case tracelog.LogLevelWarn:
		logger.Warn(msg)
	case tracelog.LogLevelError:
		logger.Error(msg)
	default:
		logger.WithField("invalid_slonik_log_level", level.String()).Error(msg)
	}
}

var _ tracelog.Logger = (*Logger)(nil)
