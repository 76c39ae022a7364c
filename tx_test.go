package slonik_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lorentzlasson/slonik"
)

func TestTransactionCommitsOnSuccess(t *testing.T) {
	driver, engine := newTestEngine(t, nil)
	connID, err := driver.Acquire(context.Background(), engine.PoolID)
	require.NoError(t, err)

	var seen []string
	driver.Fallback(func(sql string, _ []slonik.PrimitiveValue) (slonik.QueryResult, error) {
		seen = append(seen, sql)
		return slonik.QueryResult{Command: sql}, nil
	})

	err = slonik.BeginTopLevelTransaction(context.Background(), engine, connID, func(ctx context.Context, tx *slonik.Transaction) error {
		_, err := tx.Query(ctx, overrideSQL(slonik.RawToken{}, "SELECT 1"))
		return err
	})
	require.NoError(t, err)
	require.Equal(t, []string{"START TRANSACTION", "SELECT 1", "COMMIT"}, seen)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	driver, engine := newTestEngine(t, nil)
	connID, err := driver.Acquire(context.Background(), engine.PoolID)
	require.NoError(t, err)

	var seen []string
	driver.Fallback(func(sql string, _ []slonik.PrimitiveValue) (slonik.QueryResult, error) {
		seen = append(seen, sql)
		return slonik.QueryResult{Command: sql}, nil
	})

	boom := errors.New("boom")
	err = slonik.BeginTopLevelTransaction(context.Background(), engine, connID, func(ctx context.Context, tx *slonik.Transaction) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, []string{"START TRANSACTION", "ROLLBACK"}, seen)
}

func TestTransactionRetriesOnSerializationFailure(t *testing.T) {
	driver, engine := newTestEngine(t, func(c *slonik.ClientConfiguration) {
		c.TransactionRetryLimit = 2
	})
	connID, err := driver.Acquire(context.Background(), engine.PoolID)
	require.NoError(t, err)

	var seen []string
	driver.Fallback(func(sql string, _ []slonik.PrimitiveValue) (slonik.QueryResult, error) {
		seen = append(seen, sql)
		return slonik.QueryResult{Command: sql}, nil
	})

	attempts := 0
	err = slonik.BeginTopLevelTransaction(context.Background(), engine, connID, func(ctx context.Context, tx *slonik.Transaction) error {
		attempts++
		if attempts < 3 {
			return &slonik.PgError{Code: "40001", Message: "serialization_failure"}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
	require.Equal(t, []string{"START TRANSACTION", "ROLLBACK", "START TRANSACTION", "ROLLBACK", "START TRANSACTION", "COMMIT"}, seen)
}

func TestNestedTransactionUsesSavepoints(t *testing.T) {
	driver, engine := newTestEngine(t, nil)
	connID, err := driver.Acquire(context.Background(), engine.PoolID)
	require.NoError(t, err)

	var seen []string
	driver.Fallback(func(sql string, _ []slonik.PrimitiveValue) (slonik.QueryResult, error) {
		seen = append(seen, sql)
		return slonik.QueryResult{Command: sql}, nil
	})

	err = slonik.BeginTopLevelTransaction(context.Background(), engine, connID, func(ctx context.Context, tx *slonik.Transaction) error {
		return tx.Transaction(ctx, func(ctx context.Context, nested *slonik.Transaction) error {
			return nil
		})
	})
	require.NoError(t, err)
	require.Equal(t, []string{"START TRANSACTION", "SAVEPOINT slonik_2", "RELEASE SAVEPOINT slonik_2", "COMMIT"}, seen)
}

func TestNestedTransactionRollsBackToSavepoint(t *testing.T) {
	driver, engine := newTestEngine(t, nil)
	connID, err := driver.Acquire(context.Background(), engine.PoolID)
	require.NoError(t, err)

	var seen []string
	driver.Fallback(func(sql string, _ []slonik.PrimitiveValue) (slonik.QueryResult, error) {
		seen = append(seen, sql)
		return slonik.QueryResult{Command: sql}, nil
	})

	boom := errors.New("nested failure")
	err = slonik.BeginTopLevelTransaction(context.Background(), engine, connID, func(ctx context.Context, tx *slonik.Transaction) error {
		nestedErr := tx.Transaction(ctx, func(ctx context.Context, nested *slonik.Transaction) error {
			return boom
		})
		require.ErrorIs(t, nestedErr, boom)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"START TRANSACTION", "SAVEPOINT slonik_2", "ROLLBACK TO SAVEPOINT slonik_2", "COMMIT"}, seen)
}

func TestTransactionConcurrencyGuard(t *testing.T) {
	driver, engine := newTestEngine(t, nil)
	connID, err := driver.Acquire(context.Background(), engine.PoolID)
	require.NoError(t, err)

	driver.Fallback(func(sql string, _ []slonik.PrimitiveValue) (slonik.QueryResult, error) {
		return slonik.QueryResult{Command: sql}, nil
	})

	err = slonik.BeginTopLevelTransaction(context.Background(), engine, connID, func(ctx context.Context, tx *slonik.Transaction) error {
		_, queryErr := tx.Query(ctx, overrideSQL(slonik.RawToken{}, "SELECT 1"))
		require.NoError(t, queryErr)

		// tx is busy for the whole nested call, so using it from inside the
		// nested handler is an overlapping call on the same handle.
		return tx.Transaction(ctx, func(ctx context.Context, nested *slonik.Transaction) error {
			_, overlapErr := tx.Query(ctx, overrideSQL(slonik.RawToken{}, "SELECT 1"))
			require.IsType(t, &slonik.ConcurrencyError{}, overlapErr)
			return nil
		})
	})
	require.NoError(t, err)
}
