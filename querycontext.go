package slonik

import (
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ConnectionKind distinguishes the three handle kinds from spec §3, which
// in turn drives which interceptor context a query runs under.
type ConnectionKind int

const (
	KindPool ConnectionKind = iota
	KindExplicitConnection
	KindTransaction
)

// InterceptorContext is the EXPLICIT/IMPLICIT_QUERY/IMPLICIT_TRANSACTION
// tag derived from a handle's ConnectionKind.
type InterceptorContext int

const (
	ContextImplicitQuery InterceptorContext = iota
	ContextExplicit
	ContextImplicitTransaction
)

func interceptorContextFor(kind ConnectionKind, inTransaction bool) InterceptorContext {
	switch {
	case kind == KindTransaction || inTransaction:
		return ContextImplicitTransaction
	case kind == KindExplicitConnection:
		return ContextExplicit
	default:
		return ContextImplicitQuery
	}
}

// QueryContext is created once per user-visible query call and passed by
// value into every interceptor hook point. Sandbox is a per-query mutable
// map interceptors may use to pass state between their own hooks (e.g.
// BeforeTransformQuery stashing a start time for AfterQueryExecution to
// read).
type QueryContext struct {
	QueryID        string
	ConnectionID   ConnectionID
	PoolID         PoolID
	SubmissionTime time.Time
	OriginalQuery  Query
	StackTrace     []string
	Sandbox        map[string]any
	TransactionID  string // empty when not running inside a transaction
	Kind           ConnectionKind
}

func newQueryContext(poolID PoolID, kind ConnectionKind, transactionID string, captureStackTrace bool) *QueryContext {
	qctx := &QueryContext{
		QueryID:        uuid.NewString(),
		PoolID:         poolID,
		SubmissionTime: time.Now(),
		Sandbox:        map[string]any{},
		TransactionID:  transactionID,
		Kind:           kind,
	}
	if captureStackTrace {
		qctx.StackTrace = captureTrimmedStack()
	}
	return qctx
}

// captureTrimmedStack grabs a short call site list, skipping the capture
// helpers' own frames and keeping at most 16 frames, the way the teacher's
// query logging trims argument payloads rather than dumping everything
// (logQueryArgs in logger.go). Frames of slonik's own pipeline above the
// helpers are kept.
func captureTrimmedStack() []string {
	const maxFrames = 16
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	out := make([]string, 0, n)
	for {
		frame, more := frames.Next()
		out = append(out, frame.Function+" "+frame.File+":"+strconv.Itoa(frame.Line))
		if !more {
			break
		}
	}
	return out
}
