// Package tracelog adapts slonik's Interceptor hooks to a small
// structured-logging interface, grounded on the teacher's
// tracelog.TraceLog (tracelog/tracelog.go): one Logger interface any
// backend can satisfy, and a LogLevel gate shared across every hook.
package tracelog

import (
	"context"
	"fmt"

	"github.com/lorentzlasson/slonik"
)

// LogLevel mirrors the teacher's tracelog.LogLevel ordering.
type LogLevel int

const (
	LogLevelNone LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelNone:
		return "none"
	case LogLevelError:
		return "error"
	case LogLevelWarn:
		return "warn"
	case LogLevelInfo:
		return "info"
	case LogLevelDebug:
		return "debug"
	case LogLevelTrace:
		return "trace"
	default:
		return fmt.Sprintf("invalid(%d)", int(l))
	}
}

// Logger is the narrow interface every log/*adapter package satisfies.
type Logger interface {
	Log(ctx context.Context, level LogLevel, msg string, data map[string]any)
}

// LoggerFunc adapts a plain function to Logger.
type LoggerFunc func(ctx context.Context, level LogLevel, msg string, data map[string]any)

func (f LoggerFunc) Log(ctx context.Context, level LogLevel, msg string, data map[string]any) {
	f(ctx, level, msg, data)
}

// Config controls a TraceLog's verbosity.
type Config struct {
	Logger   Logger
	LogLevel LogLevel
}

// TraceLog implements slonik.Interceptor, logging query submission,
// completion, and failure at the configured LogLevel. It is a
// pass-through for every hook with a return value that can alter
// behavior (TransformQuery, BeforeQueryExecution, BeforePoolConnection,
// TransformRow), same as the teacher's TraceLog only observes rather than
// mutates.
type TraceLog struct {
	slonik.NoopInterceptor
	Config Config
}

func New(config Config) *TraceLog {
	return &TraceLog{Config: config}
}

func (t *TraceLog) log(ctx context.Context, level LogLevel, msg string, data map[string]any) {
	if t.Config.Logger == nil || level > t.Config.LogLevel {
		return
	}
	t.Config.Logger.Log(ctx, level, msg, data)
}

func (t *TraceLog) BeforeTransformQuery(ctx context.Context, qctx slonik.QueryContext, token slonik.RawToken) error {
	t.log(ctx, LogLevelDebug, "submitting query", map[string]any{
		"queryId": qctx.QueryID,
		"sql":     token.SQL,
	})
	return nil
}

func (t *TraceLog) QueryExecutionError(ctx context.Context, qctx slonik.QueryContext, query slonik.Query, err error) {
	t.log(ctx, LogLevelError, "query execution failed", map[string]any{
		"queryId": qctx.QueryID,
		"sql":     query.SQL,
		"err":     err.Error(),
	})
}

func (t *TraceLog) AfterQueryExecution(ctx context.Context, qctx slonik.QueryContext, query slonik.Query, rows []slonik.Row) {
	t.log(ctx, LogLevelTrace, "query complete", map[string]any{
		"queryId":  qctx.QueryID,
		"sql":      query.SQL,
		"rowCount": len(rows),
	})
}

var _ slonik.Interceptor = (*TraceLog)(nil)
