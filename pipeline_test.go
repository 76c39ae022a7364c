package slonik_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lorentzlasson/slonik"
	"github.com/lorentzlasson/slonik/internal/mockdriver"
)

func newTestEngine(t *testing.T, configure func(*slonik.ClientConfiguration)) (*mockdriver.Driver, *slonik.Engine) {
	t.Helper()
	driver := mockdriver.New()
	config := slonik.DefaultClientConfiguration()
	if configure != nil {
		configure(&config)
	}
	return driver, slonik.NewEngine(driver, config, slonik.PoolID("test"))
}

func singleRowResult(columns []string, oids []uint32, row []any) slonik.QueryResult {
	fields := make([]slonik.FieldDescription, len(columns))
	for i, c := range columns {
		fields[i] = slonik.FieldDescription{Name: c, DataTypeOID: oids[i]}
	}
	return slonik.QueryResult{Command: "SELECT 1", Fields: fields, Rows: [][]any{row}}
}

func acquireRunner(t *testing.T, engine *slonik.Engine) slonik.ConnectionHandle {
	t.Helper()
	provider := poolProvider{engine: engine}
	return slonik.NewRunner(engine, provider, slonik.KindPool, "")
}

type poolProvider struct {
	engine *slonik.Engine
}

func (p poolProvider) Provide(ctx context.Context) (slonik.ConnectionID, slonik.ReleaseFunc, error) {
	id, err := p.engine.Driver.Acquire(ctx, p.engine.PoolID)
	if err != nil {
		return "", nil, err
	}
	return id, func(ctx context.Context, opts slonik.ReleaseOptions) {
		p.engine.Driver.Release(ctx, id, opts)
	}, nil
}

func TestEngineOneReturnsSingleRow(t *testing.T) {
	driver, engine := newTestEngine(t, nil)
	driver.Handle("SELECT $1", singleRowResult([]string{"id"}, []uint32{slonik.OidInt4}, []any{"7"}))

	handle := acquireRunner(t, engine)
	tok := overrideSQL(slonik.RawToken{}, "SELECT $1")

	row, err := handle.One(context.Background(), tok)
	require.NoError(t, err)
	require.Equal(t, 1, row.Len())
	v, ok := row.Get("id")
	require.True(t, ok)
	require.EqualValues(t, 7, v)
}

func overrideSQL(tok slonik.RawToken, sql string) slonik.RawToken {
	tok.SQL = sql
	return tok
}

func TestEngineOneNotFound(t *testing.T) {
	driver, engine := newTestEngine(t, nil)
	driver.Handle("SELECT $1", slonik.QueryResult{Command: "SELECT 0"})

	handle := acquireRunner(t, engine)
	tok := overrideSQL(slonik.RawToken{}, "SELECT $1")

	_, err := handle.One(context.Background(), tok)
	require.Error(t, err)
	require.IsType(t, &slonik.NotFoundError{}, err)
}

func TestEngineManyRequiresAtLeastOneRow(t *testing.T) {
	driver, engine := newTestEngine(t, nil)
	driver.Handle("SELECT $1", slonik.QueryResult{Command: "SELECT 0"})

	handle := acquireRunner(t, engine)
	tok := overrideSQL(slonik.RawToken{}, "SELECT $1")

	_, err := handle.Many(context.Background(), tok)
	require.Error(t, err)
	require.IsType(t, &slonik.NotFoundError{}, err)
}

func TestEngineAnyToleratesZeroRows(t *testing.T) {
	driver, engine := newTestEngine(t, nil)
	driver.Handle("SELECT $1", slonik.QueryResult{Command: "SELECT 0"})

	handle := acquireRunner(t, engine)
	tok := overrideSQL(slonik.RawToken{}, "SELECT $1")

	rows, err := handle.Any(context.Background(), tok)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestEngineOneFirstRequiresSingleColumn(t *testing.T) {
	driver, engine := newTestEngine(t, nil)
	driver.Handle("SELECT $1", singleRowResult([]string{"a", "b"}, []uint32{slonik.OidInt4, slonik.OidInt4}, []any{"1", "2"}))

	handle := acquireRunner(t, engine)
	tok := overrideSQL(slonik.RawToken{}, "SELECT $1")

	_, err := handle.OneFirst(context.Background(), tok)
	require.Error(t, err)
	require.IsType(t, &slonik.DataIntegrityError{}, err)
}

func TestEngineStatementTimeoutCancelsThenAwaits(t *testing.T) {
	driver, engine := newTestEngine(t, func(c *slonik.ClientConfiguration) {
		c.StatementTimeout = 10 * time.Millisecond
	})
	blockErr := errors.New("mockdriver: canceled")
	driver.BlockUntilCanceled("SELECT pg_sleep(1)", blockErr)

	handle := acquireRunner(t, engine)
	tok := overrideSQL(slonik.RawToken{}, "SELECT pg_sleep(1)")

	_, err := handle.Any(context.Background(), tok)
	require.Error(t, err)

	var timeoutErr *slonik.StatementTimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	require.NotEmpty(t, timeoutErr.QueryID)
	require.Equal(t, "SELECT pg_sleep(1)", timeoutErr.SQL)
	require.ErrorIs(t, timeoutErr, blockErr)

	require.Equal(t, int64(1), driver.CancelCount())
}
