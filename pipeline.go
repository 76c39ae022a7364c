package slonik

import (
	"context"
	"errors"
	"time"
)

// Engine is the execution pipeline (spec §4.G): it owns the Driver, the
// Type Registry, and the interceptor chain, and runs the nine
// well-ordered steps common to every query regardless of which handle
// kind issued it. DatabasePool, Transaction, and ExplicitConnection are
// thin wrappers (runner, in shapes.go) around a shared *Engine.
type Engine struct {
	Driver   Driver
	Registry *TypeRegistry
	Config   ClientConfiguration
	PoolID   PoolID
}

// NewEngine wires a Driver, a Type Registry built from config's extra
// TypeParsers, and config itself into an Engine bound to poolID.
func NewEngine(driver Driver, config ClientConfiguration, poolID PoolID) *Engine {
	return &Engine{
		Driver:   driver,
		Registry: NewTypeRegistry(config.TypeParsers...),
		Config:   config,
		PoolID:   poolID,
	}
}

// run executes the full pipeline once (no retry) for token against the
// connection provider's connection. It returns the query context (for
// error annotation by callers), the fully transformed Query, and the
// parsed rows.
func (e *Engine) run(ctx context.Context, provider ConnectionProvider, kind ConnectionKind, transactionID string, token RawToken) (*QueryContext, Query, []Row, error) {
	qctx := newQueryContext(e.PoolID, kind, transactionID, e.Config.CaptureStackTrace)

	for _, ic := range e.Config.Interceptors {
		if err := ic.BeforeTransformQuery(ctx, *qctx, token); err != nil {
			return qctx, Query{}, nil, err
		}
	}

	query, err := Interpret(token)
	if err != nil {
		return qctx, Query{}, nil, err
	}
	qctx.OriginalQuery = query

	working := query
	for _, ic := range e.Config.Interceptors {
		working, err = ic.TransformQuery(ctx, *qctx, working)
		if err != nil {
			return qctx, working, nil, err
		}
	}

	for _, ic := range e.Config.Interceptors {
		result, err := ic.BeforeQueryExecution(ctx, *qctx, working)
		if err != nil {
			return qctx, working, nil, err
		}
		if result != nil {
			rows, err := e.parseResult(ctx, qctx, working, *result, token.RowSchema)
			return qctx, working, rows, err
		}
	}

	if kind == KindPool {
		for _, ic := range e.Config.Interceptors {
			reroute, err := ic.BeforePoolConnection(ctx, *qctx)
			if err != nil {
				return qctx, working, nil, err
			}
			if reroute != nil {
				rows, err := dispatchReroute(ctx, reroute, token)
				return qctx, working, rows, err
			}
		}
	}

	connID, release, err := provider.Provide(ctx)
	if err != nil {
		return qctx, working, nil, err
	}
	qctx.ConnectionID = connID

	result, err := e.executeWithTimeout(ctx, qctx, connID, working)
	if err != nil {
		mapped := mapDriverError(qctx, working, err)
		for _, ic := range e.Config.Interceptors {
			ic.QueryExecutionError(ctx, *qctx, working, mapped)
		}
		release(ctx, ReleaseOptions{Destroy: isConnectionFatal(mapped)})
		return qctx, working, nil, mapped
	}

	for _, ic := range e.Config.Interceptors {
		ic.BeforeQueryResult(ctx, *qctx, working, result)
	}

	rows, err := e.parseResult(ctx, qctx, working, result, token.RowSchema)
	release(ctx, ReleaseOptions{})
	if err != nil {
		return qctx, working, nil, err
	}

	for _, ic := range e.Config.Interceptors {
		ic.AfterQueryExecution(ctx, *qctx, working, rows)
	}

	return qctx, working, rows, nil
}

func (e *Engine) parseResult(ctx context.Context, qctx *QueryContext, query Query, result QueryResult, schema RowSchema) ([]Row, error) {
	transformers := make([]func(Row) (Row, error), 0, len(e.Config.Interceptors))
	for _, ic := range e.Config.Interceptors {
		ic := ic
		transformers = append(transformers, func(row Row) (Row, error) {
			return ic.TransformRow(ctx, *qctx, query, row)
		})
	}
	return parseRows(e.Registry, result.Fields, result.Rows, transformers, schema)
}

// executeWithTimeout enforces spec §5's client-side statementTimeout: if
// the driver call does not complete within the configured window, it
// cancels the in-flight statement and awaits the resulting driver error,
// per the spec's Open Question resolution (cancel, then await).
func (e *Engine) executeWithTimeout(ctx context.Context, qctx *QueryContext, connID ConnectionID, query Query) (QueryResult, error) {
	if e.Config.StatementTimeout == Disable || e.Config.StatementTimeout <= 0 {
		return e.Driver.Execute(ctx, connID, query.SQL, query.Values)
	}

	type outcome struct {
		result QueryResult
		err    error
	}

	done := make(chan outcome, 1)
	go func() {
		result, err := e.Driver.Execute(ctx, connID, query.SQL, query.Values)
		done <- outcome{result, err}
	}()

	timer := time.NewTimer(e.Config.StatementTimeout)
	defer timer.Stop()

	select {
	case o := <-done:
		return o.result, o.err
	case <-timer.C:
		_ = e.Driver.Cancel(ctx, connID)
		o := <-done
		if o.err == nil {
			return o.result, nil
		}
		base := newBaseError(qctx, query)
		base.cause = o.err
		return QueryResult{}, &StatementTimeoutError{baseError: base}
	}
}

// dispatchReroute resubmits token against the handle a BeforePoolConnection
// hook returned instead of acquiring from the original pool.
func dispatchReroute(ctx context.Context, handle ConnectionHandle, token RawToken) ([]Row, error) {
	return handle.Query(ctx, token)
}

func isConnectionFatal(err error) bool {
	var terminated *BackendTerminatedError
	var connErr *ConnectionError
	return errors.As(err, &terminated) || errors.As(err, &connErr)
}

// runWithQueryRetry wraps run with spec §4.F's standalone-query retry
// policy: a class-40 (transaction rollback) failure on a query with no
// enclosing transaction is retried up to queryRetryLimit times.
func (e *Engine) runWithQueryRetry(ctx context.Context, provider ConnectionProvider, kind ConnectionKind, token RawToken) (*QueryContext, Query, []Row, error) {
	var qctx *QueryContext
	var query Query
	var rows []Row
	var err error

	attempts := 1 + e.Config.QueryRetryLimit
	for attempt := 0; attempt < attempts; attempt++ {
		qctx, query, rows, err = e.run(ctx, provider, kind, "", token)
		if err == nil || !isRetryableRollback(err) {
			return qctx, query, rows, err
		}
	}
	return qctx, query, rows, err
}

func isRetryableRollback(err error) bool {
	var pgErr *PgError
	if errors.As(err, &pgErr) {
		return isTransactionRollbackClass(pgErr.Code)
	}
	return false
}
