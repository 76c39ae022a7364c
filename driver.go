package slonik

import (
	"context"
	"fmt"
	"time"
)

// ConnectionID identifies a connection handed out by a Driver. It is
// opaque to slonik; drivers are free to use whatever representation fits
// their wire implementation.
type ConnectionID string

// PoolID identifies a driver-level pool of physical connections.
type PoolID string

// PgError is the typed shape of an error reported by the PostgreSQL
// backend, modeled on the wire protocol's ErrorResponse fields. Drivers
// surface these so mapDriverError (errors.go) can classify them into the
// slonik error taxonomy.
type PgError struct {
	Severity       string
	Code           string // SQLSTATE
	Message        string
	Detail         string
	Hint           string
	SchemaName     string
	TableName      string
	ColumnName     string
	ConstraintName string
}

func (e *PgError) Error() string {
	return fmt.Sprintf("%s: %s (SQLSTATE %s)", e.Severity, e.Message, e.Code)
}

// Notice is a server notice (e.g. from RAISE NOTICE or a NOTIFY-adjacent
// warning) collected during a single driver call.
type Notice struct {
	Message string
	Detail  string
}

// FieldDescription describes one column of a QueryResult.
type FieldDescription struct {
	Name         string
	DataTypeOID  uint32
	DataTypeName string
}

// QueryResult is the raw shape a Driver returns for a non-streaming
// execute call: the command tag, the column descriptions, and the raw row
// values (already split into the correct number of columns, but not yet
// parsed by the Type Registry).
type QueryResult struct {
	Command string
	Fields  []FieldDescription
	Rows    [][]any
	Notices []Notice
}

// RowBatch is one chunk of rows fetched from a server-side cursor. Fields
// is populated on the first batch of a cursor's lifetime and nil
// thereafter, since a cursor's row description cannot change mid-stream.
type RowBatch struct {
	Fields []FieldDescription
	Rows   [][]any
	Done   bool
}

// CopyResult is returned by CopyInBinary.
type CopyResult struct {
	RowCount int64
}

// SessionParameters configures server-side session settings applied right
// after a connection is acquired.
type SessionParameters struct {
	StatementTimeout                time.Duration
	IdleInTransactionSessionTimeout time.Duration
}

// Driver is the narrow capability set the slonik core consumes. It is the
// sole boundary to the PostgreSQL wire protocol; slonik never encodes or
// decodes wire messages itself. A real implementation speaks the
// PostgreSQL v3 protocol; internal/mockdriver supplies an in-memory
// double for tests.
type Driver interface {
	// Acquire returns a connection bound to poolID, honoring
	// connectionTimeout and connectionRetryLimit via ctx and the Driver's
	// own wait queue.
	Acquire(ctx context.Context, poolID PoolID) (ConnectionID, error)

	// Release returns a connection to its pool. If opts.Destroy is true
	// the physical connection is closed rather than recycled.
	Release(ctx context.Context, id ConnectionID, opts ReleaseOptions)

	// Execute runs sql with the given positionally-bound values and
	// returns the full result set.
	Execute(ctx context.Context, id ConnectionID, sql string, values []PrimitiveValue) (QueryResult, error)

	// ExecuteCursor opens a server-side cursor for sql and returns an
	// iterator that yields batchSize rows per round trip.
	ExecuteCursor(ctx context.Context, id ConnectionID, sql string, values []PrimitiveValue, batchSize int) (CursorIterator, error)

	// CopyInBinary streams tuples into a COPY ... FROM STDIN BINARY
	// statement, one slice of values per row, each row's values already
	// in columnTypes order.
	CopyInBinary(ctx context.Context, id ConnectionID, sql string, columnTypes []string, tuples [][]PrimitiveValue) (CopyResult, error)

	// Cancel requests server-side cancellation of whatever statement id
	// is currently executing. Used to enforce client-side statementTimeout.
	Cancel(ctx context.Context, id ConnectionID) error

	// SetSessionParameters applies session-scoped settings, called once
	// right after Acquire.
	SetSessionParameters(ctx context.Context, id ConnectionID, params SessionParameters) error

	// OnNotice registers a handler invoked for every server notice on id.
	OnNotice(id ConnectionID, handler func(Notice))

	// OnError registers a handler invoked for every asynchronous
	// (connection-level) error on id.
	OnError(id ConnectionID, handler func(error))
}

// ReleaseOptions controls how a connection is returned to the pool.
type ReleaseOptions struct {
	Destroy bool
}

// CursorIterator is the lazy row-batch source returned by ExecuteCursor.
type CursorIterator interface {
	// Next fetches the next batch. A zero-length, non-done batch is
	// valid and simply means "no rows in this round trip, try again".
	Next(ctx context.Context) (RowBatch, error)
	Close(ctx context.Context) error
}
