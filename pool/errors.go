package pool

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrPoolClosed is returned by operations on a destroyed pool.
	ErrPoolClosed = errors.New("connection pool is closed")
	// ErrTimeout is returned when no connection became free within the
	// pool's timeout.
	ErrTimeout = errors.New("connection request timed out")
	// ErrUnknownHandle is returned when releasing a handle the pool does
	// not have checked out.
	ErrUnknownHandle = errors.New("connection is not checked out from this pool")
	// ErrHandleReleased is returned by calls on a handle after release.
	ErrHandleReleased = errors.New("connection was returned to the pool")
)

// ConnectionPoolError represents errors specific to connection pool operations
type ConnectionPoolError struct {
	Op   string
	Node string
	Err  error
}

func (e *ConnectionPoolError) Error() string {
	return fmt.Sprintf("connection pool %s error during %s: %v", e.Node, e.Op, e.Err)
}

func (e *ConnectionPoolError) Unwrap() error {
	return e.Err
}

// IsConnectionPoolError checks if an error is a connection pool error
func IsConnectionPoolError(err error) bool {
	var target *ConnectionPoolError
	return errors.As(err, &target)
}

// IsOpenError checks if an error came from opening a physical connection
func IsOpenError(err error) bool {
	var target *ConnectionPoolError
	return errors.As(err, &target) && target.Op == opOpen
}

// IsTimeoutError checks if an error is an acquire timeout
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

const (
	opOpen    = "open"
	opAcquire = "acquire"
	opRelease = "release"
)
