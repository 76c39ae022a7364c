package slonik

import "context"

// StreamQuery drives a server-side cursor to completion, invoking sink
// once per row without ever materializing the full result set in memory.
// It runs the same transform-query interceptor stages as Engine.run but
// skips BeforeQueryExecution short-circuiting and result-shaping, since a
// stream has no notion of "the one row" or "the first column". The
// QueryContext it builds has an empty TransactionID, also when called from
// a Transaction.
func StreamQuery(ctx context.Context, engine *Engine, kind ConnectionKind, connID ConnectionID, token RawToken, batchSize int, sink func(Row) error) error {
	qctx := newQueryContext(engine.PoolID, kind, "", engine.Config.CaptureStackTrace)

	for _, ic := range engine.Config.Interceptors {
		if err := ic.BeforeTransformQuery(ctx, *qctx, token); err != nil {
			return err
		}
	}

	query, err := Interpret(token)
	if err != nil {
		return err
	}
	qctx.OriginalQuery = query

	working := query
	for _, ic := range engine.Config.Interceptors {
		working, err = ic.TransformQuery(ctx, *qctx, working)
		if err != nil {
			return err
		}
	}

	if batchSize <= 0 {
		batchSize = 256
	}

	cursor, err := engine.Driver.ExecuteCursor(ctx, connID, working.SQL, working.Values, batchSize)
	if err != nil {
		return mapDriverError(qctx, working, err)
	}
	defer cursor.Close(ctx)

	transformers := make([]func(Row) (Row, error), 0, len(engine.Config.Interceptors))
	for _, ic := range engine.Config.Interceptors {
		ic := ic
		transformers = append(transformers, func(row Row) (Row, error) {
			return ic.TransformRow(ctx, *qctx, working, row)
		})
	}

	var fields []FieldDescription
	for {
		batch, err := cursor.Next(ctx)
		if err != nil {
			return mapDriverError(qctx, working, err)
		}
		if batch.Fields != nil {
			fields = batch.Fields
		}

		rows, err := parseRows(engine.Registry, fields, batch.Rows, transformers, token.RowSchema)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if err := sink(row); err != nil {
				return err
			}
		}

		if batch.Done {
			return nil
		}
	}
}
