package driver

import (
	"context"
	"database/sql"
	sqldriver "database/sql/driver"
	"errors"
	"sync/atomic"
)

// SQLConn pins one physical connection of a database/sql handle that is
// limited to a single open connection, so closing it closes the socket.
type SQLConn struct {
	db     *sql.DB
	conn   *sql.Conn
	closed atomic.Bool
	broken atomic.Bool
}

// NewSQLConn dials the single connection of db. db is closed on failure.
func NewSQLConn(ctx context.Context, db *sql.DB) (*SQLConn, error) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLConn{db: db, conn: conn}, nil
}

// ExecContext executes a statement on the pinned connection
func (c *SQLConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := c.conn.ExecContext(ctx, query, args...)
	c.check(err)
	return res, err
}

// QueryContext runs a query on the pinned connection
func (c *SQLConn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := c.conn.QueryContext(ctx, query, args...)
	c.check(err)
	return rows, err
}

// QueryRowContext runs a single-row query on the pinned connection
func (c *SQLConn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.conn.QueryRowContext(ctx, query, args...)
}

// PrepareContext prepares a statement on the pinned connection
func (c *SQLConn) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	stmt, err := c.conn.PrepareContext(ctx, query)
	c.check(err)
	return stmt, err
}

// BeginTx starts a transaction on the pinned connection
func (c *SQLConn) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := c.conn.BeginTx(ctx, opts)
	c.check(err)
	return tx, err
}

// PingContext verifies the connection is alive
func (c *SQLConn) PingContext(ctx context.Context) error {
	err := c.conn.PingContext(ctx)
	c.check(err)
	return err
}

// Raw exposes the underlying driver connection
func (c *SQLConn) Raw(f func(driverConn any) error) error {
	err := c.conn.Raw(f)
	c.check(err)
	return err
}

// IsClosed reports whether Close was called or the driver flagged the
// connection as bad.
func (c *SQLConn) IsClosed() bool {
	return c.closed.Load() || c.broken.Load()
}

// Close closes the physical connection.
func (c *SQLConn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return errors.Join(c.conn.Close(), c.db.Close())
}

func (c *SQLConn) check(err error) {
	if errors.Is(err, sqldriver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		c.broken.Store(true)
	}
}
