package slonik

import "context"

// ConnectionHandle is the common query surface shared by DatabasePool,
// DatabaseConnection (an ExplicitConnection), and Transaction (spec §6).
// It is also the type a BeforePoolConnection interceptor hook may return
// to re-route a query to a different handle.
type ConnectionHandle interface {
	Kind() ConnectionKind

	Query(ctx context.Context, token RawToken) ([]Row, error)
	One(ctx context.Context, token RawToken) (Row, error)
	OneFirst(ctx context.Context, token RawToken) (any, error)
	MaybeOne(ctx context.Context, token RawToken) (*Row, error)
	MaybeOneFirst(ctx context.Context, token RawToken) (any, error)
	Many(ctx context.Context, token RawToken) ([]Row, error)
	ManyFirst(ctx context.Context, token RawToken) ([]any, error)
	Any(ctx context.Context, token RawToken) ([]Row, error)
	AnyFirst(ctx context.Context, token RawToken) ([]any, error)
	Exists(ctx context.Context, token RawToken) (bool, error)
}

// ConnectionProvider supplies a connection for a single query call.
// DatabasePool implements it by acquiring from its pool; Transaction and
// ExplicitConnection use pinnedProvider, which returns their
// already-pinned connection with a no-op release.
type ConnectionProvider interface {
	Provide(ctx context.Context) (ConnectionID, ReleaseFunc, error)
}

// ReleaseFunc returns a connection obtained from a ConnectionProvider.
type ReleaseFunc func(ctx context.Context, opts ReleaseOptions)

// pinnedProvider is a ConnectionProvider over an already-acquired
// connection that a Transaction or ExplicitConnection holds for its
// entire lifetime; Provide never actually releases it.
type pinnedProvider struct {
	id ConnectionID
}

func (p pinnedProvider) Provide(ctx context.Context) (ConnectionID, ReleaseFunc, error) {
	return p.id, func(context.Context, ReleaseOptions) {}, nil
}
