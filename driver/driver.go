// Package driver provides the raw connection capability the pools manage:
// opening physical database connections for a configured driver id, and
// reporting whether they are still usable.
package driver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Conn is a single physical database connection.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	PingContext(ctx context.Context) error
	Raw(f func(driverConn any) error) error

	// IsClosed reports whether the connection was closed or found broken.
	IsClosed() bool
	Close() error
}

// Opener opens physical connections.
type Opener interface {
	Open(ctx context.Context, url, user, password string) (Conn, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, url, user, password string) (Conn, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context, url, user, password string) (Conn, error) {
	return f(ctx, url, user, password)
}

var (
	// ErrUnknownDriver is returned when no adapter exists for a driver id.
	ErrUnknownDriver = errors.New("unknown driver")
	// ErrNotRegistered is returned when an opener is requested before Register.
	ErrNotRegistered = errors.New("driver not registered")
)

// LoadError reports a driver id that could not be resolved.
type LoadError struct {
	Driver string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load driver %q: %v", e.Driver, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// IsLoadError checks if an error is a driver load error
func IsLoadError(err error) bool {
	var target *LoadError
	return errors.As(err, &target)
}
