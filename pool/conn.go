package pool

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	"github.com/guileen/nodepool/driver"
)

// PooledConn is a lease on a pooled connection. Close returns the
// connection to its pool instead of closing it; every other method is
// forwarded to the physical connection.
//
// A PooledConn is valid until it is released. After that, methods that
// can fail return ErrHandleReleased.
type PooledConn struct {
	raw        driver.Conn
	pool       *Pool
	session    string
	acquiredAt time.Time
	released   atomic.Bool
}

var _ driver.Conn = (*PooledConn)(nil)

// Close returns the connection to the pool.
func (pc *PooledConn) Close() error {
	return pc.pool.Release(pc)
}

// Equal reports whether other is the same lease. Two leases of the same
// physical connection are not equal.
func (pc *PooledConn) Equal(other driver.Conn) bool {
	o, ok := other.(*PooledConn)
	return ok && o == pc
}

// Node returns the name of the node the connection belongs to
func (pc *PooledConn) Node() string {
	return pc.pool.cfg.Name
}

// AcquiredAt returns when the lease was handed out
func (pc *PooledConn) AcquiredAt() time.Time {
	return pc.acquiredAt
}

// IsClosed reports whether the lease was released or the physical
// connection is no longer usable.
func (pc *PooledConn) IsClosed() bool {
	return pc.released.Load() || pc.raw.IsClosed()
}

func (pc *PooledConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if pc.released.Load() {
		return nil, ErrHandleReleased
	}
	return pc.raw.ExecContext(ctx, query, args...)
}

func (pc *PooledConn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if pc.released.Load() {
		return nil, ErrHandleReleased
	}
	return pc.raw.QueryContext(ctx, query, args...)
}

// QueryRowContext forwards to the physical connection. It has no error
// return, so it is forwarded even after release.
func (pc *PooledConn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return pc.raw.QueryRowContext(ctx, query, args...)
}

func (pc *PooledConn) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	if pc.released.Load() {
		return nil, ErrHandleReleased
	}
	return pc.raw.PrepareContext(ctx, query)
}

func (pc *PooledConn) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	if pc.released.Load() {
		return nil, ErrHandleReleased
	}
	return pc.raw.BeginTx(ctx, opts)
}

func (pc *PooledConn) PingContext(ctx context.Context) error {
	if pc.released.Load() {
		return ErrHandleReleased
	}
	return pc.raw.PingContext(ctx)
}

func (pc *PooledConn) Raw(f func(driverConn any) error) error {
	if pc.released.Load() {
		return ErrHandleReleased
	}
	return pc.raw.Raw(f)
}
