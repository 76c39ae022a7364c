// Package interceptors collects small, composable slonik.Interceptor
// implementations: a minimal query logger and a column-name normalizer,
// the interceptor-level analogue of the teacher's tracer.go hooks.
package interceptors

import (
	"context"

	"github.com/lorentzlasson/slonik"
)

// QueryLogging is a minimal Interceptor that reports query start,
// failure, and completion through a single Log callback, for callers who
// want basic visibility without pulling in tracelog and a backend
// adapter.
type QueryLogging struct {
	slonik.NoopInterceptor
	Log func(event string, data map[string]any)
}

func (q QueryLogging) BeforeTransformQuery(ctx context.Context, qctx slonik.QueryContext, token slonik.RawToken) error {
	if q.Log != nil {
		q.Log("query.start", map[string]any{"queryId": qctx.QueryID, "sql": token.SQL})
	}
	return nil
}

func (q QueryLogging) QueryExecutionError(ctx context.Context, qctx slonik.QueryContext, query slonik.Query, err error) {
	if q.Log != nil {
		q.Log("query.error", map[string]any{"queryId": qctx.QueryID, "sql": query.SQL, "error": err.Error()})
	}
}

func (q QueryLogging) AfterQueryExecution(ctx context.Context, qctx slonik.QueryContext, query slonik.Query, rows []slonik.Row) {
	if q.Log != nil {
		q.Log("query.complete", map[string]any{"queryId": qctx.QueryID, "sql": query.SQL, "rowCount": len(rows)})
	}
}

var _ slonik.Interceptor = QueryLogging{}
