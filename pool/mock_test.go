package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/guileen/nodepool/driver"
)

var errMockBroken = errors.New("mock connection is broken")

// mockConn is an in-memory driver.Conn.
type mockConn struct {
	id     int
	closed atomic.Bool
	closes atomic.Int32
}

func (c *mockConn) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	if c.closed.Load() {
		return nil, errMockBroken
	}
	return nil, nil
}

func (c *mockConn) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	if c.closed.Load() {
		return nil, errMockBroken
	}
	return nil, nil
}

func (c *mockConn) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

func (c *mockConn) PrepareContext(context.Context, string) (*sql.Stmt, error) {
	return nil, nil
}

func (c *mockConn) BeginTx(context.Context, *sql.TxOptions) (*sql.Tx, error) {
	return nil, nil
}

func (c *mockConn) PingContext(context.Context) error {
	if c.closed.Load() {
		return errMockBroken
	}
	return nil
}

func (c *mockConn) Raw(f func(driverConn any) error) error {
	return f(c)
}

func (c *mockConn) IsClosed() bool {
	return c.closed.Load()
}

func (c *mockConn) Close() error {
	c.closes.Add(1)
	c.closed.Store(true)
	return nil
}

// breaks marks the connection unusable without going through Close.
func (c *mockConn) breaks() {
	c.closed.Store(true)
}

// mockOpener hands out mockConns. The first failCount opens fail.
type mockOpener struct {
	mu        sync.Mutex
	failCount int
	failAll   bool
	attempts  int
	conns     []*mockConn
}

func newMockOpener(failCount int) *mockOpener {
	return &mockOpener{failCount: failCount}
}

func (o *mockOpener) Open(ctx context.Context, url, user, password string) (driver.Conn, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.attempts++
	if o.failAll || o.attempts <= o.failCount {
		return nil, fmt.Errorf("mock connection failure %d", o.attempts)
	}
	c := &mockConn{id: len(o.conns) + 1}
	o.conns = append(o.conns, c)
	return c, nil
}

func (o *mockOpener) setFailAll(fail bool) {
	o.mu.Lock()
	o.failAll = fail
	o.mu.Unlock()
}

func (o *mockOpener) opened() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.conns)
}

func (o *mockOpener) all() []*mockConn {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*mockConn(nil), o.conns...)
}
