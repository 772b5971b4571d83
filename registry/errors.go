package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownNode is matched by every *UnknownNodeError.
	ErrUnknownNode = errors.New("unknown node")
	// ErrDuplicateNode is returned when adding a node name twice.
	ErrDuplicateNode = errors.New("node already registered")
	// ErrDestroyed is returned when adding nodes to a destroyed registry.
	ErrDestroyed = errors.New("registry is destroyed")
)

// UnknownNodeError reports a node name with no pool.
type UnknownNodeError struct {
	Node string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("no connection pool for node %q", e.Node)
}

func (e *UnknownNodeError) Unwrap() error {
	return ErrUnknownNode
}

// IsUnknownNode checks if an error reports an unknown node
func IsUnknownNode(err error) bool {
	return errors.Is(err, ErrUnknownNode)
}
