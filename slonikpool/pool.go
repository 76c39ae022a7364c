// Package slonikpool implements the Pool Manager component (spec §4.E):
// connection lifecycle, the maximumPoolSize limit, connectionTimeout, and
// connectionRetryLimit, built on github.com/jackc/puddle/v2 the same way
// the teacher's pgxpool package is built on puddle v1.
package slonikpool

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jackc/puddle/v2"

	"github.com/lorentzlasson/slonik"
)

// Pool is a DatabasePool (spec §3): the top-level handle most callers hold
// for the life of their program, backed by a puddle pool of connections
// acquired from the given Driver.
type Pool struct {
	engine    *slonik.Engine
	puddle    *puddle.Pool[slonik.ConnectionID]
	ended     atomic.Bool
	waiting   atomic.Int32
	closeIdle chan struct{}
	idleDone  chan struct{}
}

// New constructs a Pool that acquires connections from driver via
// config.MaximumPoolSize and config.ConnectionTimeout/ConnectionRetryLimit,
// grounded on the teacher's pgxpool.NewWithConfig wiring a puddle.Pool
// around a constructor/destructor pair.
func New(driver slonik.Driver, config slonik.ClientConfiguration, poolID slonik.PoolID) (*Pool, error) {
	engine := slonik.NewEngine(driver, config, poolID)

	p := &Pool{
		engine:    engine,
		closeIdle: make(chan struct{}),
		idleDone:  make(chan struct{}),
	}

	puddlePool, err := puddle.NewPool(&puddle.Config[slonik.ConnectionID]{
		Constructor: func(ctx context.Context) (slonik.ConnectionID, error) {
			return p.acquireWithRetry(ctx)
		},
		Destructor: func(connID slonik.ConnectionID) {
			driver.Release(context.Background(), connID, slonik.ReleaseOptions{Destroy: true})
		},
		MaxSize: int32(maxOrDefault(config.MaximumPoolSize)),
	})
	if err != nil {
		return nil, err
	}

	p.puddle = puddlePool

	if config.IdleTimeout != slonik.Disable && config.IdleTimeout > 0 {
		go p.reapIdleConnections(config.IdleTimeout)
	} else {
		close(p.idleDone)
	}

	return p, nil
}

// reapIdleConnections periodically destroys puddle resources that have sat
// idle longer than idleTimeout, the same background health check the
// teacher's pgxpool runs (see pgxpool's TestPoolBackgroundChecksMaxConnIdleTime):
// it walks AcquireAllIdle, destroys the stale ones, and releases the rest
// back unused.
func (p *Pool) reapIdleConnections(idleTimeout time.Duration) {
	defer close(p.idleDone)

	interval := idleTimeout / 2
	if interval <= 0 {
		interval = idleTimeout
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.closeIdle:
			return
		case <-ticker.C:
			for _, res := range p.puddle.AcquireAllIdle() {
				if res.IdleDuration() > idleTimeout {
					res.Destroy()
				} else {
					res.ReleaseUnused()
				}
			}
		}
	}
}

func maxOrDefault(n int) int {
	if n <= 0 {
		return 10
	}
	return n
}

// acquireWithRetry implements connectionRetryLimit: a fresh physical
// connection failing to establish is retried up to that many additional
// times before giving up, waiting with exponential backoff (10ms, doubling
// per retry) between attempts, same policy the teacher applies around
// dialing in pgconn.ConnectConfig.
func (p *Pool) acquireWithRetry(ctx context.Context) (slonik.ConnectionID, error) {
	config := p.engine.Config

	if config.ConnectionTimeout != slonik.Disable && config.ConnectionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.ConnectionTimeout)
		defer cancel()
	}

	attempts := 1 + config.ConnectionRetryLimit
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := 10 * time.Millisecond << (attempt - 1)
			select {
			case <-ctx.Done():
				return "", &slonik.ConnectionError{}
			case <-time.After(backoff):
			}
		}

		connID, err := p.engine.Driver.Acquire(ctx, p.engine.PoolID)
		if err == nil {
			sessionErr := p.engine.Driver.SetSessionParameters(ctx, connID, slonik.SessionParameters{
				StatementTimeout:                durationOrZero(config.StatementTimeout),
				IdleInTransactionSessionTimeout: durationOrZero(config.IdleInTransactionSessionTimeout),
			})
			if sessionErr != nil {
				p.engine.Driver.Release(ctx, connID, slonik.ReleaseOptions{Destroy: true})
				lastErr = sessionErr
				continue
			}

			if config.OnNotice != nil {
				p.engine.Driver.OnNotice(connID, config.OnNotice)
			}
			if config.OnConnectionError != nil {
				p.engine.Driver.OnError(connID, config.OnConnectionError)
			}

			return connID, nil
		}
		lastErr = err
	}
	_ = lastErr
	return "", &slonik.ConnectionError{}
}

func durationOrZero(d time.Duration) time.Duration {
	if d == slonik.Disable {
		return 0
	}
	return d
}

// Provide implements slonik.ConnectionProvider by acquiring a resource
// from the puddle pool. The returned ReleaseFunc returns the resource to
// puddle, destroying the physical connection when opts.Destroy is set.
func (p *Pool) Provide(ctx context.Context) (slonik.ConnectionID, slonik.ReleaseFunc, error) {
	if p.ended.Load() {
		return "", nil, &slonik.PoolEndedError{}
	}

	p.waiting.Add(1)
	res, err := p.puddle.Acquire(ctx)
	p.waiting.Add(-1)
	if err != nil {
		return "", nil, &slonik.ConnectionError{}
	}

	release := func(_ context.Context, opts slonik.ReleaseOptions) {
		if opts.Destroy {
			res.Destroy()
			return
		}
		res.Release()
	}
	return res.Value(), release, nil
}

func (p *Pool) Kind() slonik.ConnectionKind { return slonik.KindPool }

func (p *Pool) runnerHandle() slonik.ConnectionHandle {
	return slonik.NewRunner(p.engine, p, slonik.KindPool, "")
}

func (p *Pool) Query(ctx context.Context, token slonik.RawToken) ([]slonik.Row, error) {
	return p.runnerHandle().Query(ctx, token)
}

func (p *Pool) One(ctx context.Context, token slonik.RawToken) (slonik.Row, error) {
	return p.runnerHandle().One(ctx, token)
}

func (p *Pool) OneFirst(ctx context.Context, token slonik.RawToken) (any, error) {
	return p.runnerHandle().OneFirst(ctx, token)
}

func (p *Pool) MaybeOne(ctx context.Context, token slonik.RawToken) (*slonik.Row, error) {
	return p.runnerHandle().MaybeOne(ctx, token)
}

func (p *Pool) MaybeOneFirst(ctx context.Context, token slonik.RawToken) (any, error) {
	return p.runnerHandle().MaybeOneFirst(ctx, token)
}

func (p *Pool) Many(ctx context.Context, token slonik.RawToken) ([]slonik.Row, error) {
	return p.runnerHandle().Many(ctx, token)
}

func (p *Pool) ManyFirst(ctx context.Context, token slonik.RawToken) ([]any, error) {
	return p.runnerHandle().ManyFirst(ctx, token)
}

func (p *Pool) Any(ctx context.Context, token slonik.RawToken) ([]slonik.Row, error) {
	return p.runnerHandle().Any(ctx, token)
}

func (p *Pool) AnyFirst(ctx context.Context, token slonik.RawToken) ([]any, error) {
	return p.runnerHandle().AnyFirst(ctx, token)
}

func (p *Pool) Exists(ctx context.Context, token slonik.RawToken) (bool, error) {
	return p.runnerHandle().Exists(ctx, token)
}

// Connect acquires a dedicated connection from the pool, pins it to an
// ExplicitConnection for the duration of fn, and always returns it to the
// pool afterward, per spec §4.E.
func (p *Pool) Connect(ctx context.Context, fn func(ctx context.Context, conn *slonik.ExplicitConnection) error) error {
	connID, release, err := p.Provide(ctx)
	if err != nil {
		return err
	}
	conn := slonik.NewExplicitConnection(p.engine, connID, release)
	defer conn.Close(ctx)
	return fn(ctx, conn)
}

// Transaction acquires a dedicated connection and runs handler inside a
// top-level transaction over it, including the class-40 retry policy,
// per spec §4.F.
func (p *Pool) Transaction(ctx context.Context, handler slonik.TransactionHandler) error {
	connID, release, err := p.Provide(ctx)
	if err != nil {
		return err
	}
	defer release(ctx, slonik.ReleaseOptions{})
	return slonik.BeginTopLevelTransaction(ctx, p.engine, connID, handler)
}

// Stream opens a server-side cursor over a freshly acquired connection,
// releasing it once the stream completes.
func (p *Pool) Stream(ctx context.Context, token slonik.RawToken, batchSize int, sink func(slonik.Row) error) error {
	connID, release, err := p.Provide(ctx)
	if err != nil {
		return err
	}
	defer release(ctx, slonik.ReleaseOptions{})
	return slonik.StreamQuery(ctx, p.engine, slonik.KindPool, connID, token, batchSize, sink)
}

// CopyFromBinary acquires a connection and streams tuples into table via
// COPY ... FROM STDIN BINARY.
func (p *Pool) CopyFromBinary(ctx context.Context, table string, columns []string, columnTypes []slonik.TypeName, tuples [][]any) (slonik.CopyResult, error) {
	connID, release, err := p.Provide(ctx)
	if err != nil {
		return slonik.CopyResult{}, err
	}
	defer release(ctx, slonik.ReleaseOptions{})
	return slonik.CopyFromBinary(ctx, p.engine, connID, table, columns, columnTypes, tuples)
}

// End closes the pool: no further connections are acquired, and idle
// connections are destroyed. Queries attempted after End return
// PoolEndedError.
func (p *Pool) End(ctx context.Context) error {
	if !p.ended.CompareAndSwap(false, true) {
		return nil
	}
	select {
	case <-p.closeIdle:
	default:
		close(p.closeIdle)
	}
	<-p.idleDone
	p.puddle.Close()
	return nil
}

// Stat reports the current pool state, grounded on the teacher's
// pgxpool.Stat wrapper over puddle.Stat.
func (p *Pool) Stat() *Stat {
	return &Stat{s: p.puddle.Stat()}
}

// GetPoolState returns the {active, idle, waiting, ended} snapshot spec
// §3 and §4.E's getPoolState() require. It never blocks.
func (p *Pool) GetPoolState() PoolState {
	stat := p.puddle.Stat()
	return PoolState{
		Active:  stat.AcquiredResources(),
		Idle:    stat.IdleResources(),
		Waiting: p.waiting.Load(),
		Ended:   p.ended.Load(),
	}
}

var _ slonik.ConnectionHandle = (*Pool)(nil)
