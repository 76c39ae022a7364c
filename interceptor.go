package slonik

import "context"

// Interceptor is a bundle of optional lifecycle hooks invoked at fixed
// pipeline points (spec §4.G). Embed NoopInterceptor to get no-op
// defaults for hooks you don't need, mirroring the teacher's tracer
// interfaces (tracer.go) generalized to the spec's mixed return
// semantics: most hooks are observational, but TransformQuery replaces
// the query, BeforeQueryExecution can short-circuit with a synthetic
// result, and BeforePoolConnection can re-route to a different handle.
//
// qctx is passed by value, per spec §3: a hook that assigns to its local
// copy's fields cannot leak that mutation into a later hook or pipeline
// stage. Sandbox is the one field interceptors are meant to share state
// through across hooks of the same query, since its map reference still
// points at the same underlying storage after the value copy.
type Interceptor interface {
	// BeforeTransformQuery runs before the token tree is interpreted.
	// Observational.
	BeforeTransformQuery(ctx context.Context, qctx QueryContext, token RawToken) error

	// TransformQuery runs after interpretation, once per registered
	// interceptor, each receiving the previous interceptor's output.
	TransformQuery(ctx context.Context, qctx QueryContext, query Query) (Query, error)

	// BeforeQueryExecution runs just before the driver call. The first
	// interceptor to return a non-nil QueryResult short-circuits
	// execution entirely -- used by mocks and caches.
	BeforeQueryExecution(ctx context.Context, qctx QueryContext, query Query) (*QueryResult, error)

	// BeforePoolConnection runs only for Pool-kind handles, before
	// acquisition. A non-nil, non-nil-error return re-routes the query to
	// the returned handle instead of acquiring from this pool.
	BeforePoolConnection(ctx context.Context, qctx QueryContext) (ConnectionHandle, error)

	// QueryExecutionError runs when the driver call failed, after the
	// error has been mapped into the slonik taxonomy. Observational.
	QueryExecutionError(ctx context.Context, qctx QueryContext, query Query, err error)

	// BeforeQueryResult runs after a successful driver call, before row
	// parsing. Observational.
	BeforeQueryResult(ctx context.Context, qctx QueryContext, query Query, result QueryResult)

	// TransformRow runs once per row, after Type Registry parsing and
	// before RowSchema validation. Identity unless overridden.
	TransformRow(ctx context.Context, qctx QueryContext, query Query, row Row) (Row, error)

	// AfterQueryExecution runs once the result is fully materialized.
	// Observational.
	AfterQueryExecution(ctx context.Context, qctx QueryContext, query Query, rows []Row)
}

// NoopInterceptor implements every Interceptor hook as a no-op. Embed it
// in a concrete interceptor to only override the hooks you care about.
type NoopInterceptor struct{}

func (NoopInterceptor) BeforeTransformQuery(context.Context, QueryContext, RawToken) error {
	return nil
}

func (NoopInterceptor) TransformQuery(_ context.Context, _ QueryContext, query Query) (Query, error) {
	return query, nil
}

func (NoopInterceptor) BeforeQueryExecution(context.Context, QueryContext, Query) (*QueryResult, error) {
	return nil, nil
}

func (NoopInterceptor) BeforePoolConnection(context.Context, QueryContext) (ConnectionHandle, error) {
	return nil, nil
}

func (NoopInterceptor) QueryExecutionError(context.Context, QueryContext, Query, error) {}

func (NoopInterceptor) BeforeQueryResult(context.Context, QueryContext, Query, QueryResult) {}

func (NoopInterceptor) TransformRow(_ context.Context, _ QueryContext, _ Query, row Row) (Row, error) {
	return row, nil
}

func (NoopInterceptor) AfterQueryExecution(context.Context, QueryContext, Query, []Row) {}

var _ Interceptor = NoopInterceptor{}
