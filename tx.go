package slonik

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// TransactionHandler is the user-supplied body of a transaction call.
// Returning nil commits (or releases the enclosing savepoint); returning
// an error rolls back (or rolls back to the enclosing savepoint).
type TransactionHandler func(ctx context.Context, tx *Transaction) error

// Transaction is a pinned connection handle bound to a specific savepoint
// depth, grounded on the teacher's Tx (tx.go) generalized from a flat
// commit/rollback machine into the nested-savepoint state machine spec
// §4.F requires.
type Transaction struct {
	engine   *Engine
	connID   ConnectionID
	id       string
	depth    int
	finished bool
	busy     atomic.Bool
}

func newTopLevelTransaction(engine *Engine, connID ConnectionID) *Transaction {
	return &Transaction{engine: engine, connID: connID, id: uuid.NewString(), depth: 1}
}

func (t *Transaction) Kind() ConnectionKind { return KindTransaction }

func (t *Transaction) runner() *runner {
	return &runner{engine: t.engine, provider: pinnedProvider{id: t.connID}, kind: KindTransaction, transactionID: t.id}
}

// withBusy enforces spec §5: overlapping calls on the same pinned handle
// are a contract violation, detected by a per-handle busy flag.
func (t *Transaction) withBusy(fn func() error) error {
	if t.finished {
		return &UnexpectedStateError{Reason: "transaction is no longer usable after commit or rollback"}
	}
	if !t.busy.CompareAndSwap(false, true) {
		return &ConcurrencyError{}
	}
	defer t.busy.Store(false)
	return fn()
}

func (t *Transaction) Query(ctx context.Context, token RawToken) ([]Row, error) {
	var rows []Row
	err := t.withBusy(func() error {
		var err error
		rows, err = t.runner().Query(ctx, token)
		return err
	})
	return rows, err
}

func (t *Transaction) One(ctx context.Context, token RawToken) (Row, error) {
	var row Row
	err := t.withBusy(func() error {
		var err error
		row, err = t.runner().One(ctx, token)
		return err
	})
	return row, err
}

func (t *Transaction) OneFirst(ctx context.Context, token RawToken) (any, error) {
	var v any
	err := t.withBusy(func() error {
		var err error
		v, err = t.runner().OneFirst(ctx, token)
		return err
	})
	return v, err
}

func (t *Transaction) MaybeOne(ctx context.Context, token RawToken) (*Row, error) {
	var row *Row
	err := t.withBusy(func() error {
		var err error
		row, err = t.runner().MaybeOne(ctx, token)
		return err
	})
	return row, err
}

func (t *Transaction) MaybeOneFirst(ctx context.Context, token RawToken) (any, error) {
	var v any
	err := t.withBusy(func() error {
		var err error
		v, err = t.runner().MaybeOneFirst(ctx, token)
		return err
	})
	return v, err
}

func (t *Transaction) Many(ctx context.Context, token RawToken) ([]Row, error) {
	var rows []Row
	err := t.withBusy(func() error {
		var err error
		rows, err = t.runner().Many(ctx, token)
		return err
	})
	return rows, err
}

func (t *Transaction) ManyFirst(ctx context.Context, token RawToken) ([]any, error) {
	var v []any
	err := t.withBusy(func() error {
		var err error
		v, err = t.runner().ManyFirst(ctx, token)
		return err
	})
	return v, err
}

func (t *Transaction) Any(ctx context.Context, token RawToken) ([]Row, error) {
	var rows []Row
	err := t.withBusy(func() error {
		var err error
		rows, err = t.runner().Any(ctx, token)
		return err
	})
	return rows, err
}

func (t *Transaction) AnyFirst(ctx context.Context, token RawToken) ([]any, error) {
	var v []any
	err := t.withBusy(func() error {
		var err error
		v, err = t.runner().AnyFirst(ctx, token)
		return err
	})
	return v, err
}

func (t *Transaction) Exists(ctx context.Context, token RawToken) (bool, error) {
	var v bool
	err := t.withBusy(func() error {
		var err error
		v, err = t.runner().Exists(ctx, token)
		return err
	})
	return v, err
}

// Stream opens a server-side cursor bound to this transaction's pinned
// connection.
func (t *Transaction) Stream(ctx context.Context, token RawToken, batchSize int, sink func(Row) error) error {
	return t.withBusy(func() error {
		return StreamQuery(ctx, t.engine, KindTransaction, t.connID, token, batchSize, sink)
	})
}

// Transaction opens a nested transaction (a savepoint) one level deeper
// than t, per spec §4.F's state diagram.
func (t *Transaction) Transaction(ctx context.Context, handler TransactionHandler) error {
	return t.withBusy(func() error {
		return t.runNested(ctx, handler)
	})
}

func (t *Transaction) runNested(ctx context.Context, handler TransactionHandler) error {
	nextDepth := t.depth + 1
	name := savepointName(nextDepth)

	if _, err := t.engine.Driver.Execute(ctx, t.connID, "SAVEPOINT "+name, nil); err != nil {
		return mapDriverError(&QueryContext{}, Query{}, err)
	}

	nested := &Transaction{engine: t.engine, connID: t.connID, id: t.id, depth: nextDepth}
	err := handler(ctx, nested)
	nested.finished = true

	if err != nil {
		if _, rbErr := t.engine.Driver.Execute(ctx, t.connID, "ROLLBACK TO SAVEPOINT "+name, nil); rbErr != nil {
			return errors.Join(err, mapDriverError(&QueryContext{}, Query{}, rbErr))
		}
		return err
	}

	if _, err := t.engine.Driver.Execute(ctx, t.connID, "RELEASE SAVEPOINT "+name, nil); err != nil {
		return mapDriverError(&QueryContext{}, Query{}, err)
	}
	return nil
}

func savepointName(depth int) string {
	return fmt.Sprintf("slonik_%d", depth)
}

// beginTopLevelTransaction runs a fresh top-level transaction to
// completion, including the class-40 retry policy from spec §4.F: a
// handler failing with a transaction-rollback-class SQLSTATE is retried
// up to transactionRetryLimit times, each attempt a fresh handler
// invocation over the same pinned connection after a clean rollback.
func beginTopLevelTransaction(ctx context.Context, engine *Engine, connID ConnectionID, handler TransactionHandler) error {
	attempts := 1 + engine.Config.TransactionRetryLimit

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if _, err := engine.Driver.Execute(ctx, connID, "START TRANSACTION", nil); err != nil {
			return mapDriverError(&QueryContext{}, Query{}, err)
		}

		tx := newTopLevelTransaction(engine, connID)
		err := handler(ctx, tx)
		tx.finished = true

		if err == nil {
			if _, commitErr := engine.Driver.Execute(ctx, connID, "COMMIT", nil); commitErr != nil {
				return mapDriverError(&QueryContext{}, Query{}, commitErr)
			}
			return nil
		}

		if _, rbErr := engine.Driver.Execute(ctx, connID, "ROLLBACK", nil); rbErr != nil {
			return errors.Join(err, mapDriverError(&QueryContext{}, Query{}, rbErr))
		}

		lastErr = err
		if !isRetryableRollback(err) {
			return err
		}
	}

	return lastErr
}

// BeginTopLevelTransaction exposes beginTopLevelTransaction to
// slonikpool.Pool.Transaction.
func BeginTopLevelTransaction(ctx context.Context, engine *Engine, connID ConnectionID, handler TransactionHandler) error {
	return beginTopLevelTransaction(ctx, engine, connID, handler)
}
