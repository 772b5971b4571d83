// Package pool implements the per-node connection pool: a bounded set of
// physical connections with blocking acquire, validating release and
// background replenishment.
package pool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guileen/nodepool/config"
	"github.com/guileen/nodepool/driver"
	"github.com/guileen/nodepool/logger"
	"github.com/guileen/nodepool/metrics"
)

// Pool manages the connections of one backend node.
//
// Every physical connection is either idle, checked out (active) or
// closed. The number of checked-out connections never exceeds
// MaxConnections; callers beyond that block in Acquire until a release or
// the pool's timeout.
type Pool struct {
	cfg       config.NodeConfig
	opener    driver.Opener
	log       *slog.Logger
	collector metrics.Collector

	mu       sync.Mutex
	idle     []driver.Conn
	active   map[*PooledConn]struct{}
	sessions map[string]*PooledConn
	opening  int // opens in flight that will become active
	refills  int // opens in flight that will become idle
	waiters  int
	released chan struct{} // closed and replaced on every release
	closed   bool

	inactive atomic.Bool
	stats    counters
}

type counters struct {
	acquires        atomic.Uint64
	hits            atomic.Uint64
	misses          atomic.Uint64
	timeouts        atomic.Uint64
	discarded       atomic.Uint64
	releases        atomic.Uint64
	unknownReleases atomic.Uint64
	opened          atomic.Uint64
	openFailures    atomic.Uint64
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the pool logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.log = l
		}
	}
}

// WithCollector sets the metrics collector.
func WithCollector(c metrics.Collector) Option {
	return func(p *Pool) {
		if c != nil {
			p.collector = c
		}
	}
}

// New creates a pool and opens cfg.InitConnections connections into the
// idle set. If any of them fails to open, the ones already opened are
// closed and the open error is returned.
func New(ctx context.Context, cfg config.NodeConfig, opener driver.Opener, opts ...Option) (*Pool, error) {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = config.DefaultMaxConnections
	}
	if cfg.WaitInterval <= 0 {
		cfg.WaitInterval = config.DefaultWaitInterval
	}
	if cfg.Timeout < 0 {
		cfg.Timeout = 0
	}

	p := &Pool{
		cfg:       cfg,
		opener:    opener,
		log:       logger.With(logger.Component("pool"), logger.Node(cfg.Name)),
		collector: metrics.Noop(),
		idle:      make([]driver.Conn, 0, cfg.InitConnections),
		active:    make(map[*PooledConn]struct{}),
		sessions:  make(map[string]*PooledConn),
		released:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	for i := 0; i < cfg.InitConnections; i++ {
		conn, err := p.open(ctx)
		if err != nil {
			p.closed = true
			p.inactive.Store(true)
			p.closeConns(p.idle, "abort init")
			p.idle = nil
			p.log.Error("pool initialization failed", "opened", i, logger.ErrorField(err))
			return nil, err
		}
		p.idle = append(p.idle, conn)
	}

	p.log.Info("connection pool created",
		"init", cfg.InitConnections,
		"min", cfg.MinConnections,
		"max", cfg.MaxConnections,
		"wait_interval", cfg.WaitInterval.String(),
		"timeout", cfg.Timeout.String())
	return p, nil
}

// Node returns the node name
func (p *Pool) Node() string {
	return p.cfg.Name
}

// Config returns the node configuration the pool was built with
func (p *Pool) Config() config.NodeConfig {
	return p.cfg
}

// Acquire checks out a connection, opening a new one when no idle
// connection is usable and the pool is below capacity. At capacity it
// waits in slices of WaitInterval for a release; once the call has lasted
// longer than Timeout (if set) it gives up with ErrTimeout.
//
// Cancelling ctx while waiting only ends the current slice: the timeout
// still decides when Acquire gives up. ctx is passed to the driver when a
// new connection is opened, without its cancellation once a wait has
// absorbed it.
func (p *Pool) Acquire(ctx context.Context) (*PooledConn, error) {
	start := time.Now()
	p.stats.acquires.Add(1)

	var discarded []driver.Conn
	defer func() {
		p.closeConns(discarded, "discard invalid")
	}()

	interrupt := ctx.Done()

	p.mu.Lock()
	for {
		if p.closed {
			p.mu.Unlock()
			p.finishAcquire(start, metrics.OutcomeError)
			return nil, &ConnectionPoolError{Op: opAcquire, Node: p.cfg.Name, Err: ErrPoolClosed}
		}

		if len(p.active)+p.opening < p.cfg.MaxConnections {
			if len(p.idle) > 0 {
				conn := p.popIdleLocked()
				if !valid(conn) {
					discarded = append(discarded, conn)
					p.countDiscarded()
					continue
				}
				pc := p.checkoutLocked(ctx, conn)
				p.mu.Unlock()

				p.stats.hits.Add(1)
				p.finishAcquire(start, metrics.OutcomeIdle)
				p.logContext(ctx, logger.LevelTrace, "connection acquired", "source", "idle")
				return pc, nil
			}

			// Reserve the slot and dial without holding the lock.
			p.opening++
			p.mu.Unlock()
			conn, err := p.open(ctx)
			p.mu.Lock()
			p.opening--

			if err != nil {
				p.broadcastLocked()
				p.mu.Unlock()
				p.finishAcquire(start, metrics.OutcomeError)
				return nil, err
			}
			if p.closed {
				p.mu.Unlock()
				discarded = append(discarded, conn)
				p.finishAcquire(start, metrics.OutcomeError)
				return nil, &ConnectionPoolError{Op: opAcquire, Node: p.cfg.Name, Err: ErrPoolClosed}
			}
			pc := p.checkoutLocked(ctx, conn)
			p.mu.Unlock()

			p.stats.misses.Add(1)
			p.finishAcquire(start, metrics.OutcomeOpened)
			p.logContext(ctx, logger.LevelTrace, "connection acquired", "source", "opened")
			return pc, nil
		}

		p.logContext(ctx, logger.LevelTrace, "pool at capacity, waiting", "active", len(p.active))
		if p.waitLocked(interrupt) {
			p.logContext(ctx, slog.LevelWarn, "acquire wait interrupted", logger.ErrorField(ctx.Err()))
			interrupt = nil
			// Later opens must not fail on the absorbed cancellation.
			ctx = context.WithoutCancel(ctx)
		}

		if p.cfg.Timeout > 0 && time.Since(start) > p.cfg.Timeout {
			p.mu.Unlock()
			p.stats.timeouts.Add(1)
			p.finishAcquire(start, metrics.OutcomeTimeout)
			p.logContext(ctx, slog.LevelWarn, "acquire timed out", logger.Duration("waited", time.Since(start)))
			return nil, &ConnectionPoolError{Op: opAcquire, Node: p.cfg.Name, Err: ErrTimeout}
		}
	}
}

// Current returns the connection last acquired under ctx's session if it
// is still checked out and usable, and acquires a new one otherwise.
func (p *Pool) Current(ctx context.Context) (*PooledConn, error) {
	if id := SessionID(ctx); id != "" {
		p.mu.Lock()
		pc, ok := p.sessions[id]
		if ok {
			if _, leased := p.active[pc]; leased && valid(pc.raw) {
				p.mu.Unlock()
				return pc, nil
			}
		}
		p.mu.Unlock()
	}
	return p.Acquire(ctx)
}

// Release returns a checked-out connection. A usable connection goes back
// to the idle set; a broken one is closed and replaced by a fresh idle
// connection. Releasing a handle that is not checked out is a no-op that
// reports ErrUnknownHandle.
func (p *Pool) Release(pc *PooledConn) error {
	if pc == nil {
		return &ConnectionPoolError{Op: opRelease, Node: p.cfg.Name, Err: ErrUnknownHandle}
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return &ConnectionPoolError{Op: opRelease, Node: p.cfg.Name, Err: ErrPoolClosed}
	}
	if _, ok := p.active[pc]; !ok {
		p.mu.Unlock()
		p.stats.unknownReleases.Add(1)
		p.log.Warn("release of a connection that is not checked out", "acquired_at", pc.acquiredAt)
		return &ConnectionPoolError{Op: opRelease, Node: p.cfg.Name, Err: ErrUnknownHandle}
	}

	delete(p.active, pc)
	pc.released.Store(true)
	if pc.session != "" && p.sessions[pc.session] == pc {
		delete(p.sessions, pc.session)
	}
	p.stats.releases.Add(1)

	if valid(pc.raw) {
		p.idle = append(p.idle, pc.raw)
		p.broadcastLocked()
		p.mu.Unlock()
		p.log.Log(context.Background(), logger.LevelTrace, "connection released", logger.Duration("held", time.Since(pc.acquiredAt)))
		return nil
	}

	p.countDiscarded()
	p.refills++
	p.broadcastLocked()
	p.mu.Unlock()

	p.log.Info("released connection is broken, replacing it", logger.Operation("release"))
	p.closeConns([]driver.Conn{pc.raw}, "discard broken")
	p.refill(context.Background(), 1, "replace")
	return nil
}

// Destroy closes every idle and checked-out connection and makes the pool
// inactive. Later Acquire calls fail with ErrPoolClosed. Destroy is
// idempotent.
func (p *Pool) Destroy() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.inactive.Store(true)

	conns := make([]driver.Conn, 0, len(p.idle)+len(p.active))
	conns = append(conns, p.idle...)
	for pc := range p.active {
		pc.released.Store(true)
		conns = append(conns, pc.raw)
	}
	p.idle = nil
	p.active = make(map[*PooledConn]struct{})
	p.sessions = make(map[string]*PooledConn)
	p.broadcastLocked()
	p.mu.Unlock()

	p.closeConns(conns, "destroy")
	p.collector.SetConnections(p.cfg.Name, 0, 0)
	p.log.Info("connection pool destroyed", "closed", len(conns))
}

// Maintain tops the pool up to min(MinConnections, MaxConnections)
// connections by opening idle ones. Idle connections that are no longer
// usable are dropped first. Open failures are logged and the remaining
// connections are still attempted.
func (p *Pool) Maintain(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}

	var stale []driver.Conn
	usable := p.idle[:0]
	for _, conn := range p.idle {
		if valid(conn) {
			usable = append(usable, conn)
		} else {
			stale = append(stale, conn)
		}
	}
	clear(p.idle[len(usable):])
	p.idle = usable

	target := min(p.cfg.MinConnections, p.cfg.MaxConnections)
	shortfall := target - (len(p.idle) + len(p.active) + p.opening + p.refills)
	if shortfall > 0 {
		p.refills += shortfall
	}
	p.mu.Unlock()

	for range stale {
		p.countDiscarded()
	}
	p.closeConns(stale, "prune")

	if shortfall <= 0 {
		return
	}
	p.log.Info("replenishing idle connections", logger.Operation("maintain"), "shortfall", shortfall)
	p.refill(ctx, shortfall, "maintenance")
}

// ReportStats logs the idle and active counts and publishes them to the
// metrics collector.
func (p *Pool) ReportStats(ctx context.Context) {
	p.mu.Lock()
	idle, active := len(p.idle), len(p.active)
	p.mu.Unlock()

	p.collector.SetConnections(p.cfg.Name, idle, active)
	p.logContext(ctx, slog.LevelInfo, "pool stats", "idle", idle, "active", active)
}

// ActiveCount returns the number of checked-out connections
func (p *Pool) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// IdleCount returns the number of idle connections
func (p *Pool) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// IsActive reports whether the pool has not been destroyed
func (p *Pool) IsActive() bool {
	return !p.inactive.Load()
}

// refill opens n connections into the idle set. The caller must have
// added n to p.refills.
func (p *Pool) refill(ctx context.Context, n int, reason string) {
	for i := 0; i < n; i++ {
		conn, err := p.open(ctx)

		p.mu.Lock()
		p.refills--
		if err != nil {
			p.mu.Unlock()
			p.log.Warn("could not open connection", logger.Operation(reason), logger.ErrorField(err))
			continue
		}
		if p.closed {
			p.mu.Unlock()
			p.closeConns([]driver.Conn{conn}, reason)
			continue
		}
		p.idle = append(p.idle, conn)
		p.mu.Unlock()
	}
}

func (p *Pool) open(ctx context.Context) (driver.Conn, error) {
	conn, err := p.opener.Open(ctx, p.cfg.URL, p.cfg.User, p.cfg.Password)
	if err == nil && conn == nil {
		err = errNoConn
	}
	if err != nil {
		p.stats.openFailures.Add(1)
		p.collector.IncOpenFailure(p.cfg.Name)
		return nil, &ConnectionPoolError{Op: opOpen, Node: p.cfg.Name, Err: err}
	}
	p.stats.opened.Add(1)
	return conn, nil
}

var errNoConn = errors.New("opener returned no connection")

func (p *Pool) popIdleLocked() driver.Conn {
	conn := p.idle[0]
	p.idle[0] = nil
	p.idle = p.idle[1:]
	return conn
}

func (p *Pool) checkoutLocked(ctx context.Context, conn driver.Conn) *PooledConn {
	pc := &PooledConn{
		raw:        conn,
		pool:       p,
		session:    SessionID(ctx),
		acquiredAt: time.Now(),
	}
	p.active[pc] = struct{}{}
	if pc.session != "" {
		p.sessions[pc.session] = pc
	}
	return pc
}

// waitLocked blocks until the next release broadcast, the end of the wait
// interval, or interrupt. p.mu is released while blocked. It reports
// whether interrupt ended the wait.
func (p *Pool) waitLocked(interrupt <-chan struct{}) bool {
	signal := p.released
	p.waiters++
	p.mu.Unlock()

	timer := time.NewTimer(p.cfg.WaitInterval)
	interrupted := false
	select {
	case <-signal:
	case <-timer.C:
	case <-interrupt:
		interrupted = true
	}
	timer.Stop()

	p.mu.Lock()
	p.waiters--
	return interrupted
}

// broadcastLocked wakes every waiter.
func (p *Pool) broadcastLocked() {
	close(p.released)
	p.released = make(chan struct{})
}

// logContext logs with the session and request ids carried by ctx.
func (p *Pool) logContext(ctx context.Context, level slog.Level, msg string, args ...any) {
	p.log.Log(ctx, level, msg, append(args, logger.ExtractContextValues(ctx)...)...)
}

func (p *Pool) countDiscarded() {
	p.stats.discarded.Add(1)
	p.collector.IncDiscarded(p.cfg.Name)
}

func (p *Pool) finishAcquire(start time.Time, outcome string) {
	p.collector.IncAcquire(p.cfg.Name, outcome)
	p.collector.ObserveAcquireWait(p.cfg.Name, time.Since(start))
}

// closeConns closes physical connections, logging failures without
// stopping.
func (p *Pool) closeConns(conns []driver.Conn, reason string) {
	for _, conn := range conns {
		if conn == nil {
			continue
		}
		if err := conn.Close(); err != nil {
			p.log.Warn("failed to close connection", logger.Operation(reason), logger.ErrorField(err))
		}
	}
}

// valid reports whether a connection can be handed out. Liveness beyond
// the closed flag is up to the driver's IsClosed.
func valid(conn driver.Conn) bool {
	return conn != nil && !conn.IsClosed()
}
