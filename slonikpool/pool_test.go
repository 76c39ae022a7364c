package slonikpool_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lorentzlasson/slonik"
	"github.com/lorentzlasson/slonik/internal/mockdriver"
	"github.com/lorentzlasson/slonik/slonikpool"
)

func newTestPool(t *testing.T) (*mockdriver.Driver, *slonikpool.Pool) {
	t.Helper()
	driver := mockdriver.New()
	pool, err := slonikpool.New(driver, slonik.DefaultClientConfiguration(), slonik.PoolID("test"))
	require.NoError(t, err)
	return driver, pool
}

func TestPoolQueryAcquiresAndReleases(t *testing.T) {
	driver, pool := newTestPool(t)
	driver.Handle("SELECT $1", slonik.QueryResult{
		Fields: []slonik.FieldDescription{{Name: "n", DataTypeOID: slonik.OidInt4}},
		Rows:   [][]any{{"1"}},
	})

	row, err := pool.One(context.Background(), slonik.RawToken{SQL: "SELECT $1"})
	require.NoError(t, err)
	v, ok := row.Get("n")
	require.True(t, ok)
	require.EqualValues(t, 1, v)
	require.Equal(t, int64(1), driver.AcquiredCount())
	require.EqualValues(t, 1, pool.Stat().IdleConns())
}

func TestPoolEndRejectsFurtherQueries(t *testing.T) {
	_, pool := newTestPool(t)
	require.NoError(t, pool.End(context.Background()))

	_, err := pool.Query(context.Background(), slonik.RawToken{SQL: "SELECT 1"})
	require.Error(t, err)
	require.IsType(t, &slonik.PoolEndedError{}, err)
	require.True(t, pool.GetPoolState().Ended)
}

func TestPoolTransactionCommits(t *testing.T) {
	driver, pool := newTestPool(t)

	var seen []string
	driver.Fallback(func(sql string, _ []slonik.PrimitiveValue) (slonik.QueryResult, error) {
		seen = append(seen, sql)
		return slonik.QueryResult{Command: sql}, nil
	})

	err := pool.Transaction(context.Background(), func(ctx context.Context, tx *slonik.Transaction) error {
		_, err := tx.Query(ctx, slonik.RawToken{SQL: "SELECT 1"})
		return err
	})
	require.NoError(t, err)
	require.Equal(t, []string{"START TRANSACTION", "SELECT 1", "COMMIT"}, seen)
}

func TestPoolConnectReleasesOnClose(t *testing.T) {
	driver, pool := newTestPool(t)
	driver.Handle("SELECT 1", slonik.QueryResult{Command: "SELECT 1"})

	err := pool.Connect(context.Background(), func(ctx context.Context, conn *slonik.ExplicitConnection) error {
		_, err := conn.Query(ctx, slonik.RawToken{SQL: "SELECT 1"})
		return err
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), driver.AcquiredCount())
	require.EqualValues(t, 1, pool.Stat().IdleConns())
}

func TestPoolStatReportsAcquiredConns(t *testing.T) {
	_, pool := newTestPool(t)
	stat := pool.Stat()
	require.GreaterOrEqual(t, stat.MaxConns(), int32(1))

	err := pool.Connect(context.Background(), func(ctx context.Context, conn *slonik.ExplicitConnection) error {
		require.EqualValues(t, 1, pool.Stat().AcquiredConns())
		return nil
	})
	require.NoError(t, err)
}

func TestPoolBackgroundReapsIdleConns(t *testing.T) {
	driver := mockdriver.New()
	driver.Handle("SELECT 1", slonik.QueryResult{Command: "SELECT 1"})

	config := slonik.DefaultClientConfiguration()
	config.IdleTimeout = 50 * time.Millisecond

	pool, err := slonikpool.New(driver, config, slonik.PoolID("test"))
	require.NoError(t, err)
	defer pool.End(context.Background())

	_, err = pool.Query(context.Background(), slonik.RawToken{SQL: "SELECT 1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return pool.Stat().TotalConns() == 0
	}, time.Second, 10*time.Millisecond)
}
