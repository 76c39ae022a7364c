// Package mockdriver is an in-memory slonik.Driver double used by the
// module's own tests, grounded on the teacher's pgmock package (an
// in-process fake of the wire protocol) but simplified to operate on
// pre-built QueryResults instead of replaying wire messages.
package mockdriver

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/lorentzlasson/slonik"
)

// Responder computes a QueryResult (or error) for one Execute call. Tests
// register one per expected SQL statement, or a catch-all via
// Driver.Handle.
type Responder func(sql string, values []slonik.PrimitiveValue) (slonik.QueryResult, error)

// Driver is a slonik.Driver that never talks to a real server: every
// Execute call is answered by a registered Responder, and every
// connection is a bookkeeping-only token.
type Driver struct {
	mu         sync.Mutex
	responders map[string]Responder
	fallback   Responder
	blocking   map[string]error
	conns      map[slonik.ConnectionID]*connState
	acquired   int64
	released   int64
	canceled   int64

	// FailAcquireTimes, set by a test, makes the next N Acquire calls fail
	// before succeeding, exercising connectionRetryLimit.
	FailAcquireTimes int32
}

type connState struct {
	noticeHandler func(slonik.Notice)
	errorHandler  func(error)
	cursors       []*cursor
	canceled      chan struct{}
}

// New returns an empty Driver; register responses with Handle before
// issuing queries.
func New() *Driver {
	return &Driver{
		responders: make(map[string]Responder),
		blocking:   make(map[string]error),
		conns:      make(map[slonik.ConnectionID]*connState),
	}
}

// Handle registers the result Execute should return for an exact SQL
// match. Tests that need to return an error should use HandleFunc.
func (d *Driver) Handle(sql string, result slonik.QueryResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.responders[sql] = func(string, []slonik.PrimitiveValue) (slonik.QueryResult, error) {
		return result, nil
	}
}

// HandleFunc registers a Responder for an exact SQL match, for tests that
// need to inspect the bound values.
func (d *Driver) HandleFunc(sql string, fn Responder) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.responders[sql] = fn
}

// Fallback registers the Responder used for any SQL with no exact match
// registered via Handle/HandleFunc. With no fallback registered, any
// unmatched statement (including transaction control statements such as
// START TRANSACTION, COMMIT, ROLLBACK, SAVEPOINT ...) gets an empty result
// whose Command is the SQL text.
func (d *Driver) Fallback(fn Responder) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallback = fn
}

// BlockUntilCanceled registers sql as a statement whose Execute call never
// returns on its own: it blocks until the connection's Cancel method is
// called, then returns err. This exercises the engine's client-side
// statementTimeout path (cancel, then await) without a real server to
// time out against.
func (d *Driver) BlockUntilCanceled(sql string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blocking[sql] = err
}

func (d *Driver) Acquire(ctx context.Context, poolID slonik.PoolID) (slonik.ConnectionID, error) {
	if atomic.LoadInt32(&d.FailAcquireTimes) > 0 {
		atomic.AddInt32(&d.FailAcquireTimes, -1)
		return "", fmt.Errorf("mockdriver: simulated acquire failure")
	}
	atomic.AddInt64(&d.acquired, 1)
	id := slonik.ConnectionID(uuid.NewString())

	d.mu.Lock()
	d.conns[id] = &connState{canceled: make(chan struct{})}
	d.mu.Unlock()
	return id, nil
}

func (d *Driver) Release(ctx context.Context, id slonik.ConnectionID, opts slonik.ReleaseOptions) {
	atomic.AddInt64(&d.released, 1)
	d.mu.Lock()
	delete(d.conns, id)
	d.mu.Unlock()
}

func (d *Driver) Execute(ctx context.Context, id slonik.ConnectionID, sql string, values []slonik.PrimitiveValue) (slonik.QueryResult, error) {
	d.mu.Lock()
	blockErr, blocks := d.blocking[sql]
	conn := d.conns[id]
	fn, ok := d.responders[sql]
	fallback := d.fallback
	d.mu.Unlock()

	if blocks {
		if conn == nil {
			return slonik.QueryResult{}, blockErr
		}
		<-conn.canceled
		return slonik.QueryResult{}, blockErr
	}

	if ok {
		return fn(sql, values)
	}
	if fallback != nil {
		return fallback(sql, values)
	}
	return slonik.QueryResult{Command: sql}, nil
}

func (d *Driver) ExecuteCursor(ctx context.Context, id slonik.ConnectionID, sql string, values []slonik.PrimitiveValue, batchSize int) (slonik.CursorIterator, error) {
	result, err := d.Execute(ctx, id, sql, values)
	if err != nil {
		return nil, err
	}
	return newCursor(result, batchSize), nil
}

func (d *Driver) CopyInBinary(ctx context.Context, id slonik.ConnectionID, sql string, columnTypes []string, tuples [][]slonik.PrimitiveValue) (slonik.CopyResult, error) {
	return slonik.CopyResult{RowCount: int64(len(tuples))}, nil
}

func (d *Driver) Cancel(ctx context.Context, id slonik.ConnectionID) error {
	atomic.AddInt64(&d.canceled, 1)
	d.mu.Lock()
	conn := d.conns[id]
	d.mu.Unlock()
	if conn != nil {
		select {
		case <-conn.canceled:
		default:
			close(conn.canceled)
		}
	}
	return nil
}

func (d *Driver) SetSessionParameters(ctx context.Context, id slonik.ConnectionID, params slonik.SessionParameters) error {
	return nil
}

func (d *Driver) OnNotice(id slonik.ConnectionID, handler func(slonik.Notice)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.conns[id]; ok {
		c.noticeHandler = handler
	}
}

func (d *Driver) OnError(id slonik.ConnectionID, handler func(error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.conns[id]; ok {
		c.errorHandler = handler
	}
}

// AcquiredCount and ReleasedCount let tests assert on pool churn.
func (d *Driver) AcquiredCount() int64 { return atomic.LoadInt64(&d.acquired) }
func (d *Driver) ReleasedCount() int64 { return atomic.LoadInt64(&d.released) }

// CancelCount lets tests assert Cancel was actually invoked, e.g. to check
// the cancel-then-await ordering behind statementTimeout.
func (d *Driver) CancelCount() int64 { return atomic.LoadInt64(&d.canceled) }

var _ slonik.Driver = (*Driver)(nil)

// cursor slices a pre-built QueryResult into batchSize-row chunks so
// ExecuteCursor callers can exercise the streaming path without a real
// server-side cursor.
type cursor struct {
	result    slonik.QueryResult
	batchSize int
	offset    int
}

func newCursor(result slonik.QueryResult, batchSize int) *cursor {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &cursor{result: result, batchSize: batchSize}
}

func (c *cursor) Next(ctx context.Context) (slonik.RowBatch, error) {
	if c.offset >= len(c.result.Rows) {
		return slonik.RowBatch{Done: true}, nil
	}

	end := c.offset + c.batchSize
	if end > len(c.result.Rows) {
		end = len(c.result.Rows)
	}

	batch := slonik.RowBatch{Rows: c.result.Rows[c.offset:end], Done: end >= len(c.result.Rows)}
	if c.offset == 0 {
		batch.Fields = c.result.Fields
	}
	c.offset = end
	return batch, nil
}

func (c *cursor) Close(ctx context.Context) error { return nil }
