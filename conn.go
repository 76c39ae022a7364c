package slonik

import (
	"context"
	"sync/atomic"
)

// ExplicitConnection is a single connection checked out of the pool and
// held for the caller's exclusive use across several calls, per spec
// §4.E's connect() escape hatch from the implicit one-connection-per-query
// pool behavior. It is released back to the pool by Close.
type ExplicitConnection struct {
	engine  *Engine
	connID  ConnectionID
	release ReleaseFunc
	closed  atomic.Bool
	busy    atomic.Bool
}

// NewExplicitConnection wraps an already-acquired connection as a pinned
// ConnectionHandle. release is called exactly once, by Close, and should
// return the connection to whatever ConnectionProvider produced it (a
// pool's Provide, or a no-op for a connection the caller owns outright).
func NewExplicitConnection(engine *Engine, connID ConnectionID, release ReleaseFunc) *ExplicitConnection {
	return &ExplicitConnection{engine: engine, connID: connID, release: release}
}

func (c *ExplicitConnection) Kind() ConnectionKind { return KindExplicitConnection }

func (c *ExplicitConnection) runner() *runner {
	return &runner{engine: c.engine, provider: pinnedProvider{id: c.connID}, kind: KindExplicitConnection}
}

func (c *ExplicitConnection) withBusy(fn func() error) error {
	if c.closed.Load() {
		return &UnexpectedStateError{Reason: "connection is closed"}
	}
	if !c.busy.CompareAndSwap(false, true) {
		return &ConcurrencyError{}
	}
	defer c.busy.Store(false)
	return fn()
}

func (c *ExplicitConnection) Query(ctx context.Context, token RawToken) ([]Row, error) {
	var rows []Row
	err := c.withBusy(func() error {
		var err error
		rows, err = c.runner().Query(ctx, token)
		return err
	})
	return rows, err
}

func (c *ExplicitConnection) One(ctx context.Context, token RawToken) (Row, error) {
	var row Row
	err := c.withBusy(func() error {
		var err error
		row, err = c.runner().One(ctx, token)
		return err
	})
	return row, err
}

func (c *ExplicitConnection) OneFirst(ctx context.Context, token RawToken) (any, error) {
	var v any
	err := c.withBusy(func() error {
		var err error
		v, err = c.runner().OneFirst(ctx, token)
		return err
	})
	return v, err
}

func (c *ExplicitConnection) MaybeOne(ctx context.Context, token RawToken) (*Row, error) {
	var row *Row
	err := c.withBusy(func() error {
		var err error
		row, err = c.runner().MaybeOne(ctx, token)
		return err
	})
	return row, err
}

func (c *ExplicitConnection) MaybeOneFirst(ctx context.Context, token RawToken) (any, error) {
	var v any
	err := c.withBusy(func() error {
		var err error
		v, err = c.runner().MaybeOneFirst(ctx, token)
		return err
	})
	return v, err
}

func (c *ExplicitConnection) Many(ctx context.Context, token RawToken) ([]Row, error) {
	var rows []Row
	err := c.withBusy(func() error {
		var err error
		rows, err = c.runner().Many(ctx, token)
		return err
	})
	return rows, err
}

func (c *ExplicitConnection) ManyFirst(ctx context.Context, token RawToken) ([]any, error) {
	var v []any
	err := c.withBusy(func() error {
		var err error
		v, err = c.runner().ManyFirst(ctx, token)
		return err
	})
	return v, err
}

func (c *ExplicitConnection) Any(ctx context.Context, token RawToken) ([]Row, error) {
	var rows []Row
	err := c.withBusy(func() error {
		var err error
		rows, err = c.runner().Any(ctx, token)
		return err
	})
	return rows, err
}

func (c *ExplicitConnection) AnyFirst(ctx context.Context, token RawToken) ([]any, error) {
	var v []any
	err := c.withBusy(func() error {
		var err error
		v, err = c.runner().AnyFirst(ctx, token)
		return err
	})
	return v, err
}

func (c *ExplicitConnection) Exists(ctx context.Context, token RawToken) (bool, error) {
	var v bool
	err := c.withBusy(func() error {
		var err error
		v, err = c.runner().Exists(ctx, token)
		return err
	})
	return v, err
}

// Stream opens a server-side cursor bound to this connection.
func (c *ExplicitConnection) Stream(ctx context.Context, token RawToken, batchSize int, sink func(Row) error) error {
	return c.withBusy(func() error {
		return StreamQuery(ctx, c.engine, KindExplicitConnection, c.connID, token, batchSize, sink)
	})
}

// CopyFromBinary streams tuples into table via COPY ... FROM STDIN BINARY.
func (c *ExplicitConnection) CopyFromBinary(ctx context.Context, table string, columns []string, columnTypes []TypeName, tuples [][]any) (CopyResult, error) {
	var result CopyResult
	err := c.withBusy(func() error {
		var err error
		result, err = CopyFromBinary(ctx, c.engine, c.connID, table, columns, columnTypes, tuples)
		return err
	})
	return result, err
}

// Transaction opens a top-level transaction over this pinned connection,
// per spec §4.F.
func (c *ExplicitConnection) Transaction(ctx context.Context, handler TransactionHandler) error {
	return c.withBusy(func() error {
		return beginTopLevelTransaction(ctx, c.engine, c.connID, handler)
	})
}

// Close releases the underlying connection back to the pool it came from.
func (c *ExplicitConnection) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.release != nil {
		c.release(ctx, ReleaseOptions{})
	}
	return nil
}

var _ ConnectionHandle = (*ExplicitConnection)(nil)
