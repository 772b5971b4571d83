package driver

import (
	"context"
	"database/sql"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/guileen/nodepool/logger"
)

// Adapter turns node connection settings into a database/sql handle.
type Adapter interface {
	OpenDB(url, user, password string) (*sql.DB, error)
}

// AdapterFunc adapts a function to the Adapter interface.
type AdapterFunc func(url, user, password string) (*sql.DB, error)

// OpenDB calls f.
func (f AdapterFunc) OpenDB(url, user, password string) (*sql.DB, error) {
	return f(url, user, password)
}

// Registry resolves driver ids to adapters. A driver must be registered
// before openers for it are handed out; registering twice is a no-op.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	aliases  map[string]string
	loaded   map[string]struct{}
	log      *slog.Logger
}

// NewRegistry returns a registry with the built-in MySQL, PostgreSQL and
// SQLite adapters available.
func NewRegistry() *Registry {
	r := &Registry{
		adapters: make(map[string]Adapter),
		aliases:  make(map[string]string),
		loaded:   make(map[string]struct{}),
		log:      logger.With(logger.Component("driver")),
	}
	r.Add("mysql", AdapterFunc(openMySQL), "com.mysql.jdbc.Driver", "com.mysql.cj.jdbc.Driver")
	r.Add("pgx", AdapterFunc(openPostgres), "postgres", "postgresql", "org.postgresql.Driver")
	r.Add("sqlite3", AdapterFunc(openSQLite), "sqlite", "org.sqlite.JDBC")
	return r
}

// Add makes an adapter available under id and any aliases.
func (r *Registry) Add(id string, adapter Adapter, aliases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.adapters[id] = adapter
	for _, alias := range aliases {
		r.aliases[alias] = id
	}
}

// Register loads the driver for id. Repeated registrations are no-ops.
func (r *Registry) Register(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	canonical, ok := r.resolveLocked(id)
	if !ok {
		return &LoadError{Driver: id, Err: ErrUnknownDriver}
	}
	if _, done := r.loaded[canonical]; done {
		return nil
	}
	r.loaded[canonical] = struct{}{}
	r.log.Info("driver loaded", "driver", id, "adapter", canonical)
	return nil
}

// IsRegistered reports whether id was registered.
func (r *Registry) IsRegistered(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	canonical, ok := r.resolveLocked(id)
	if !ok {
		return false
	}
	_, done := r.loaded[canonical]
	return done
}

// Loaded returns the canonical ids of the registered drivers.
func (r *Registry) Loaded() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.loaded))
	for id := range r.loaded {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Opener returns an Opener for a registered driver id.
func (r *Registry) Opener(id string) (Opener, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	canonical, ok := r.resolveLocked(id)
	if !ok {
		return nil, &LoadError{Driver: id, Err: ErrUnknownDriver}
	}
	if _, done := r.loaded[canonical]; !done {
		return nil, &LoadError{Driver: id, Err: ErrNotRegistered}
	}
	adapter := r.adapters[canonical]
	return OpenerFunc(func(ctx context.Context, url, user, password string) (Conn, error) {
		db, err := adapter.OpenDB(url, user, password)
		if err != nil {
			return nil, err
		}
		return NewSQLConn(ctx, db)
	}), nil
}

func (r *Registry) resolveLocked(id string) (string, bool) {
	id = strings.TrimSpace(id)
	if _, ok := r.adapters[id]; ok {
		return id, true
	}
	canonical, ok := r.aliases[id]
	return canonical, ok
}
