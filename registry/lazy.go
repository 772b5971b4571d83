package registry

import (
	"context"
	"sync"

	"github.com/guileen/nodepool/config"
)

// Lazy builds a Registry on first use and hands out the same instance
// afterwards. A failed build is not retried.
type Lazy struct {
	once  sync.Once
	build func(ctx context.Context) (*Registry, error)
	reg   *Registry
	err   error
}

// NewLazy wraps a build function.
func NewLazy(build func(ctx context.Context) (*Registry, error)) *Lazy {
	return &Lazy{build: build}
}

// NewLazyFromFile builds the registry from a configuration file on first
// use.
func NewLazyFromFile(path string, opts ...Option) *Lazy {
	return NewLazy(func(ctx context.Context) (*Registry, error) {
		src, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		return Build(ctx, src, opts...)
	})
}

// Get returns the registry, building it if this is the first call.
func (l *Lazy) Get(ctx context.Context) (*Registry, error) {
	l.once.Do(func() {
		l.reg, l.err = l.build(ctx)
	})
	return l.reg, l.err
}

// Destroy destroys the registry if it was built.
func (l *Lazy) Destroy() {
	l.once.Do(func() {
		l.err = ErrDestroyed
	})
	if l.reg != nil {
		l.reg.Destroy()
	}
}
