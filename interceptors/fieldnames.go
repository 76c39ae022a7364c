package interceptors

import (
	"context"

	"github.com/lorentzlasson/slonik"
)

// FieldNameNormalizer rewrites every column name through Transform (e.g.
// snake_case to camelCase), letting SQL stay idiomatic for the database
// while result rows use the naming convention the rest of the caller's
// code expects.
type FieldNameNormalizer struct {
	slonik.NoopInterceptor
	Transform func(column string) string
}

func (f FieldNameNormalizer) TransformRow(ctx context.Context, qctx slonik.QueryContext, query slonik.Query, row slonik.Row) (slonik.Row, error) {
	if f.Transform == nil {
		return row, nil
	}
	columns := row.Columns()
	for i, c := range columns {
		columns[i] = f.Transform(c)
	}
	return slonik.NewRow(columns, row.Values()), nil
}

var _ slonik.Interceptor = FieldNameNormalizer{}
