package slonik

import (
	"errors"
	"fmt"
)

// baseError carries the fields every SlonikError in the taxonomy exposes:
// the originating query (if any), and the wrapped cause. It is embedded,
// never used directly.
type baseError struct {
	QueryID string
	SQL     string
	Values  []PrimitiveValue
	cause   error
}

func (e *baseError) Unwrap() error { return e.cause }

func (e *baseError) context() string {
	if e.QueryID == "" {
		return ""
	}
	return fmt.Sprintf(" (query %s)", e.QueryID)
}

// InvalidInputError is raised for bad user input to the SQL builder: a
// non-finite number, a circular JSON value, an UNNEST width mismatch, or a
// reserved placeholder appearing in hand-written SQL.
type InvalidInputError struct {
	baseError
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("slonik: invalid input%s: %s", e.context(), e.Reason)
}

// ConnectionError is raised when pool acquisition exceeds connectionTimeout
// or exhausts connectionRetryLimit.
type ConnectionError struct {
	baseError
	Reason string
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("slonik: connection error%s: %s", e.context(), e.Reason)
}

// PoolEndedError is raised when a query is attempted after Pool.End has
// been called.
type PoolEndedError struct {
	baseError
}

func (e *PoolEndedError) Error() string {
	return fmt.Sprintf("slonik: pool has ended%s", e.context())
}

// ConcurrencyError is raised when a pinned handle (Transaction or
// ExplicitConnection) is used by two overlapping calls.
type ConcurrencyError struct {
	baseError
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("slonik: handle is already in use for another query%s", e.context())
}

// StatementTimeoutError is raised when a query exceeds statementTimeout,
// client-side or server-side.
type StatementTimeoutError struct {
	baseError
}

func (e *StatementTimeoutError) Error() string {
	return fmt.Sprintf("slonik: statement timeout%s", e.context())
}

// IdleTransactionTimeoutError is raised when the server aborts an idle
// transaction after idleInTransactionSessionTimeout.
type IdleTransactionTimeoutError struct {
	baseError
}

func (e *IdleTransactionTimeoutError) Error() string {
	return fmt.Sprintf("slonik: idle transaction timeout%s", e.context())
}

// NotFoundError is raised by the one and many shape functions when zero
// rows are returned.
type NotFoundError struct {
	baseError
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("slonik: no rows returned%s", e.context())
}

// DataIntegrityError is raised by shape functions when the row or column
// cardinality does not match what was requested.
type DataIntegrityError struct {
	baseError
	Reason string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("slonik: data integrity error%s: %s", e.context(), e.Reason)
}

// SchemaValidationError is raised when a Raw token's RowSchema rejects a
// row.
type SchemaValidationError struct {
	baseError
	Row    Row
	Report error
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("slonik: row schema validation failed%s: %v", e.context(), e.Report)
}

func (e *SchemaValidationError) Unwrap() error { return e.Report }

// integrityViolationError is the shared shape for the four SQLSTATE-23xxx
// subcodes; exported wrappers below give each its own type per spec.
type integrityViolationError struct {
	baseError
	Constraint string
	SQLState   string
}

func (e *integrityViolationError) Error() string {
	return fmt.Sprintf("slonik: constraint %q violated (SQLSTATE %s)%s", e.Constraint, e.SQLState, e.context())
}

type UniqueIntegrityConstraintViolationError struct{ integrityViolationError }
type ForeignKeyIntegrityConstraintViolationError struct{ integrityViolationError }
type NotNullIntegrityConstraintViolationError struct{ integrityViolationError }
type CheckIntegrityConstraintViolationError struct{ integrityViolationError }

// TupleMovedToAnotherPartitionError, BackendTerminatedError,
// InputSyntaxError, and InvalidConfigurationError map specific SQLSTATEs
// that do not belong to the integrity-constraint family.
type TupleMovedToAnotherPartitionError struct{ baseError }

func (e *TupleMovedToAnotherPartitionError) Error() string {
	return fmt.Sprintf("slonik: tuple moved to another partition%s", e.context())
}

type BackendTerminatedError struct{ baseError }

func (e *BackendTerminatedError) Error() string {
	return fmt.Sprintf("slonik: backend terminated%s", e.context())
}

type InputSyntaxError struct {
	baseError
	Reason string
}

func (e *InputSyntaxError) Error() string {
	return fmt.Sprintf("slonik: input syntax error%s: %s", e.context(), e.Reason)
}

type InvalidConfigurationError struct {
	baseError
	Reason string
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("slonik: invalid server configuration%s: %s", e.context(), e.Reason)
}

// UnexpectedStateError signals a broken internal invariant -- a bug in
// slonik itself rather than in caller input or the server.
type UnexpectedStateError struct {
	baseError
	Reason string
}

func (e *UnexpectedStateError) Error() string {
	return fmt.Sprintf("slonik: unexpected internal state%s: %s", e.context(), e.Reason)
}

// SQLSTATE class prefixes relevant to error mapping and retry policy.
const (
	sqlstateClassTransactionRollback = "40"
	sqlstateClassIntegrityConstraint = "23"
)

const (
	sqlstateUniqueViolation     = "23505"
	sqlstateForeignKeyViolation = "23503"
	sqlstateNotNullViolation    = "23502"
	sqlstateCheckViolation      = "23514"

	sqlstateTupleMovedToAnotherPartition = "40P02"
	sqlstateBackendTerminated            = "57P01"
	sqlstateQueryCanceled                = "57014"
	sqlstateIdleInTransactionTimeout     = "25P03"
	sqlstateSyntaxError                  = "42601"
	sqlstateInvalidConfiguration         = "F0000"
)

// isTransactionRollbackClass reports whether sqlstate belongs to PostgreSQL
// error class 40, the sole class slonik retries automatically.
func isTransactionRollbackClass(sqlstate string) bool {
	return len(sqlstate) >= 2 && sqlstate[:2] == sqlstateClassTransactionRollback
}

// mapDriverError converts an error surfaced by the Driver into the
// taxonomy in spec §7. Errors that do not carry a PgError, or carry one
// with an unmapped SQLSTATE, are returned unchanged.
func mapDriverError(qctx *QueryContext, query Query, err error) error {
	if err == nil {
		return nil
	}

	if timeoutErr, ok := err.(*StatementTimeoutError); ok {
		return timeoutErr
	}

	base := baseError{QueryID: qctx.QueryID, SQL: query.SQL, Values: query.Values, cause: err}

	var pgErr *PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch {
	case pgErr.Code == sqlstateQueryCanceled:
		return &StatementTimeoutError{baseError: base}
	case pgErr.Code == sqlstateIdleInTransactionTimeout:
		return &IdleTransactionTimeoutError{baseError: base}
	case pgErr.Code == sqlstateTupleMovedToAnotherPartition:
		return &TupleMovedToAnotherPartitionError{baseError: base}
	case pgErr.Code == sqlstateBackendTerminated:
		return &BackendTerminatedError{baseError: base}
	case pgErr.Code == sqlstateSyntaxError:
		return &InputSyntaxError{baseError: base, Reason: pgErr.Message}
	case pgErr.Code == sqlstateInvalidConfiguration:
		return &InvalidConfigurationError{baseError: base, Reason: pgErr.Message}
	case pgErr.Code == sqlstateUniqueViolation:
		return &UniqueIntegrityConstraintViolationError{integrityViolationError{baseError: base, Constraint: pgErr.ConstraintName, SQLState: pgErr.Code}}
	case pgErr.Code == sqlstateForeignKeyViolation:
		return &ForeignKeyIntegrityConstraintViolationError{integrityViolationError{baseError: base, Constraint: pgErr.ConstraintName, SQLState: pgErr.Code}}
	case pgErr.Code == sqlstateNotNullViolation:
		return &NotNullIntegrityConstraintViolationError{integrityViolationError{baseError: base, Constraint: pgErr.ColumnName, SQLState: pgErr.Code}}
	case pgErr.Code == sqlstateCheckViolation:
		return &CheckIntegrityConstraintViolationError{integrityViolationError{baseError: base, Constraint: pgErr.ConstraintName, SQLState: pgErr.Code}}
	default:
		return err
	}
}
