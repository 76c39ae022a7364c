// Package zapadapter provides a tracelog.Logger that writes to a
// go.uber.org/zap.Logger, authored in the idiom of the sibling
// log/*adapter packages (zerologadapter, logrusadapter, kitlogadapter).
package zapadapter

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lorentzlasson/slonik/tracelog"
)

type Logger struct {
	l *zap.Logger
}

func NewLogger(l *zap.Logger) *Logger {
	return &Logger{l: l.WithOptions(zap.AddCallerSkip(1))}
}

func (l *Logger) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	fields := make([]zap.Field, 0, len(data))
	for k, v := range data {
		fields = append(fields, zap.Any(k, v))
	}

	var zlevel zapcore.Level
	switch level {
	case tracelog.LogLevelTrace, tracelog.LogLevelDebug:
		zlevel = zapcore.DebugLevel
	case tracelog.LogLevelInfo:
		zlevel = zapcore.InfoLevel
	case tracelog.LogLevelWarn:
		zlevel = zapcore.WarnLevel
	case tracelog.LogLevelError:
		zlevel = zapcore.ErrorLevel
	default:
		zlevel = zapcore.ErrorLevel
	}

	if ce := l.l.Check(zlevel, msg); ce != nil {
		ce.Write(fields...)
	}
}

var _ tracelog.Logger = (*Logger)(nil)
