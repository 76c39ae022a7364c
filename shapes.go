package slonik

import "context"

// runner is the shared implementation behind DatabasePool, Transaction,
// and ExplicitConnection: all three differ only in how they provide a
// connection (see ConnectionProvider) and in whether a standalone query
// gets the queryRetryLimit retry policy (only outside a transaction).
type runner struct {
	engine        *Engine
	provider      ConnectionProvider
	kind          ConnectionKind
	transactionID string
}

func (r *runner) Kind() ConnectionKind { return r.kind }

func (r *runner) execute(ctx context.Context, token RawToken) (*QueryContext, Query, []Row, error) {
	if r.transactionID != "" {
		return r.engine.run(ctx, r.provider, r.kind, r.transactionID, token)
	}
	return r.engine.runWithQueryRetry(ctx, r.provider, r.kind, token)
}

func (r *runner) Query(ctx context.Context, token RawToken) ([]Row, error) {
	_, _, rows, err := r.execute(ctx, token)
	return rows, err
}

func (r *runner) One(ctx context.Context, token RawToken) (Row, error) {
	qctx, query, rows, err := r.execute(ctx, token)
	if err != nil {
		return Row{}, err
	}
	return shapeOne(qctx, query, rows)
}

func (r *runner) OneFirst(ctx context.Context, token RawToken) (any, error) {
	qctx, query, rows, err := r.execute(ctx, token)
	if err != nil {
		return nil, err
	}
	row, err := shapeOne(qctx, query, rows)
	if err != nil {
		return nil, err
	}
	return firstColumn(qctx, query, row)
}

func (r *runner) MaybeOne(ctx context.Context, token RawToken) (*Row, error) {
	qctx, query, rows, err := r.execute(ctx, token)
	if err != nil {
		return nil, err
	}
	return shapeMaybeOne(qctx, query, rows)
}

func (r *runner) MaybeOneFirst(ctx context.Context, token RawToken) (any, error) {
	qctx, query, rows, err := r.execute(ctx, token)
	if err != nil {
		return nil, err
	}
	row, err := shapeMaybeOne(qctx, query, rows)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return firstColumn(qctx, query, *row)
}

func (r *runner) Many(ctx context.Context, token RawToken) ([]Row, error) {
	qctx, query, rows, err := r.execute(ctx, token)
	if err != nil {
		return nil, err
	}
	return shapeMany(qctx, query, rows)
}

func (r *runner) ManyFirst(ctx context.Context, token RawToken) ([]any, error) {
	qctx, query, rows, err := r.execute(ctx, token)
	if err != nil {
		return nil, err
	}
	rows, err = shapeMany(qctx, query, rows)
	if err != nil {
		return nil, err
	}
	return firstColumnAll(qctx, query, rows)
}

func (r *runner) Any(ctx context.Context, token RawToken) ([]Row, error) {
	_, _, rows, err := r.execute(ctx, token)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []Row{}
	}
	return rows, nil
}

func (r *runner) AnyFirst(ctx context.Context, token RawToken) ([]any, error) {
	qctx, query, rows, err := r.execute(ctx, token)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []Row{}
	}
	return firstColumnAll(qctx, query, rows)
}

func (r *runner) Exists(ctx context.Context, token RawToken) (bool, error) {
	wrapped := RawToken{SQL: "SELECT EXISTS (" + token.SQL + ")", Values: token.Values}
	qctx, query, rows, err := r.execute(ctx, wrapped)
	if err != nil {
		return false, err
	}
	row, err := shapeOne(qctx, query, rows)
	if err != nil {
		return false, err
	}
	v, err := firstColumn(qctx, query, row)
	if err != nil {
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}

var _ ConnectionHandle = (*runner)(nil)

// NewRunner exposes the shared ConnectionHandle implementation to
// slonikpool, which cannot construct a runner directly since the type is
// unexported.
func NewRunner(engine *Engine, provider ConnectionProvider, kind ConnectionKind, transactionID string) ConnectionHandle {
	return &runner{engine: engine, provider: provider, kind: kind, transactionID: transactionID}
}

// shapeOne enforces spec §4.G's one shape: exactly one row, else
// NotFoundError (0 rows) or DataIntegrityError (2+ rows).
func shapeOne(qctx *QueryContext, query Query, rows []Row) (Row, error) {
	switch len(rows) {
	case 0:
		return Row{}, &NotFoundError{baseError: newBaseError(qctx, query)}
	case 1:
		return rows[0], nil
	default:
		return Row{}, &DataIntegrityError{baseError: newBaseError(qctx, query), Reason: "expected exactly one row"}
	}
}

// shapeMaybeOne enforces maybeOne: zero or one row, else DataIntegrityError.
func shapeMaybeOne(qctx *QueryContext, query Query, rows []Row) (*Row, error) {
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return &rows[0], nil
	default:
		return nil, &DataIntegrityError{baseError: newBaseError(qctx, query), Reason: "expected at most one row"}
	}
}

// shapeMany enforces many: one or more rows, else NotFoundError.
func shapeMany(qctx *QueryContext, query Query, rows []Row) ([]Row, error) {
	if len(rows) == 0 {
		return nil, &NotFoundError{baseError: newBaseError(qctx, query)}
	}
	return rows, nil
}

// firstColumn enforces the *First shape requirement that the row has
// exactly one column, returning DataIntegrityError otherwise.
func firstColumn(qctx *QueryContext, query Query, row Row) (any, error) {
	if row.Len() != 1 {
		return nil, &DataIntegrityError{baseError: newBaseError(qctx, query), Reason: "expected exactly one column"}
	}
	return row.values[0], nil
}

func firstColumnAll(qctx *QueryContext, query Query, rows []Row) ([]any, error) {
	out := make([]any, len(rows))
	for i, row := range rows {
		v, err := firstColumn(qctx, query, row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func newBaseError(qctx *QueryContext, query Query) baseError {
	b := baseError{SQL: query.SQL, Values: query.Values}
	if qctx != nil {
		b.QueryID = qctx.QueryID
	}
	return b
}
