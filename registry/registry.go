// Package registry maps node names to connection pools. It builds the
// pools from configuration, schedules their maintenance and routes
// acquire and release calls by node name.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/guileen/nodepool/config"
	"github.com/guileen/nodepool/driver"
	"github.com/guileen/nodepool/logger"
	"github.com/guileen/nodepool/metrics"
	"github.com/guileen/nodepool/pool"
	"github.com/guileen/nodepool/scheduler"
)

// Registry owns one pool per node.
type Registry struct {
	mu      sync.RWMutex
	pools   map[string]*pool.Pool
	tasks   map[string][]*scheduler.Task
	skipped map[string]error
	closed  bool

	drivers   *driver.Registry
	sched     *scheduler.Scheduler
	ownSched  bool
	schedule  config.ScheduleConfig
	collector metrics.Collector
	log       *slog.Logger
	poolLog   *slog.Logger
}

type options struct {
	drivers   *driver.Registry
	sched     *scheduler.Scheduler
	schedule  *config.ScheduleConfig
	collector metrics.Collector
	log       *slog.Logger
}

// Option configures a Registry.
type Option func(*options)

// WithDrivers sets the driver registry used to resolve driver ids.
func WithDrivers(d *driver.Registry) Option {
	return func(o *options) { o.drivers = d }
}

// WithScheduler runs pool tasks on s. The registry does not stop an
// injected scheduler on Destroy.
func WithScheduler(s *scheduler.Scheduler) Option {
	return func(o *options) { o.sched = s }
}

// WithSchedule overrides the task schedule read from configuration.
func WithSchedule(s config.ScheduleConfig) Option {
	return func(o *options) { o.schedule = &s }
}

// WithCollector sets the metrics collector handed to every pool.
func WithCollector(c metrics.Collector) Option {
	return func(o *options) { o.collector = c }
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// New creates an empty registry. Nodes are added with AddNode.
func New(opts ...Option) *Registry {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry{
		pools:     make(map[string]*pool.Pool),
		tasks:     make(map[string][]*scheduler.Task),
		skipped:   make(map[string]error),
		drivers:   o.drivers,
		sched:     o.sched,
		collector: o.collector,
		log:       o.log,
		schedule:  config.DefaultScheduleConfig(),
	}
	if r.drivers == nil {
		r.drivers = driver.NewRegistry()
	}
	if r.sched == nil {
		r.sched = scheduler.New()
		r.ownSched = true
	}
	if r.collector == nil {
		r.collector = metrics.Noop()
	}
	if r.log == nil {
		r.log = logger.With(logger.Component("registry"))
	} else {
		r.poolLog = r.log
	}
	if o.schedule != nil {
		r.schedule = *o.schedule
	}
	return r
}

// Build creates a registry with a pool for every node named in src. A node
// whose configuration, driver or initial connections fail is skipped and
// reported by Skipped; the other nodes are still built.
func Build(ctx context.Context, src *config.Source, opts ...Option) (*Registry, error) {
	if src == nil {
		return nil, errors.New("registry: nil config source")
	}
	schedule := src.Schedule()
	r := New(append([]Option{WithSchedule(schedule)}, opts...)...)

	names := src.NodeNames()
	if len(names) == 0 {
		r.log.Warn("no nodes configured")
	}

	for _, name := range names {
		cfg, err := src.Node(name)
		if err != nil {
			r.skip(name, err)
			continue
		}
		if err := r.AddNode(ctx, cfg); err != nil {
			if errors.Is(err, scheduler.ErrStopped) {
				r.Destroy()
				return nil, err
			}
			r.skip(name, err)
		}
	}

	r.log.Info("registry built", "nodes", len(r.Nodes()), "skipped", len(r.Skipped()))
	return r, nil
}

// AddNode loads the node's driver, builds its pool and schedules its
// maintenance and stats tasks.
func (r *Registry) AddNode(ctx context.Context, cfg config.NodeConfig) error {
	r.mu.RLock()
	_, exists := r.pools[cfg.Name]
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return ErrDestroyed
	}
	if exists {
		return fmt.Errorf("add node %q: %w", cfg.Name, ErrDuplicateNode)
	}

	if err := r.drivers.Register(cfg.Driver); err != nil {
		return err
	}
	opener, err := r.drivers.Opener(cfg.Driver)
	if err != nil {
		return err
	}

	poolOpts := []pool.Option{pool.WithCollector(r.collector)}
	if r.poolLog != nil {
		poolOpts = append(poolOpts, pool.WithLogger(r.poolLog.With(logger.Node(cfg.Name))))
	}
	p, err := pool.New(ctx, cfg, opener, poolOpts...)
	if err != nil {
		return err
	}

	maintain, err := r.sched.Every("maintain:"+cfg.Name, r.schedule.MaintenanceDelay, r.schedule.MaintenanceInterval, p.Maintain)
	if err != nil {
		p.Destroy()
		return err
	}
	stats, err := r.sched.Every("stats:"+cfg.Name, r.schedule.MaintenanceDelay, r.schedule.StatsInterval, p.ReportStats)
	if err != nil {
		maintain.Stop()
		p.Destroy()
		return err
	}

	r.mu.Lock()
	if r.closed || r.pools[cfg.Name] != nil {
		r.mu.Unlock()
		maintain.Stop()
		stats.Stop()
		p.Destroy()
		if r.closed {
			return ErrDestroyed
		}
		return fmt.Errorf("add node %q: %w", cfg.Name, ErrDuplicateNode)
	}
	r.pools[cfg.Name] = p
	r.tasks[cfg.Name] = []*scheduler.Task{maintain, stats}
	delete(r.skipped, cfg.Name)
	r.mu.Unlock()

	r.log.Info("node pool ready", logger.Node(cfg.Name), "driver", cfg.Driver)
	return nil
}

func (r *Registry) skip(name string, err error) {
	r.mu.Lock()
	r.skipped[name] = err
	r.mu.Unlock()
	r.log.Warn("skipping node", logger.Node(name), logger.ErrorField(err))
}

// GetConnection acquires a connection from the named node's pool.
func (r *Registry) GetConnection(ctx context.Context, node string) (*pool.PooledConn, error) {
	p, err := r.Pool(node)
	if err != nil {
		return nil, err
	}
	return p.Acquire(ctx)
}

// ReleaseConnection returns conn to the named node's pool. Releasing a
// connection that did not come from a pool reports pool.ErrUnknownHandle.
func (r *Registry) ReleaseConnection(node string, conn driver.Conn) error {
	p, err := r.Pool(node)
	if err != nil {
		return err
	}
	pc, ok := conn.(*pool.PooledConn)
	if !ok {
		r.log.Warn("release of a connection not handed out by a pool", logger.Node(node))
		return &pool.ConnectionPoolError{Op: "release", Node: node, Err: pool.ErrUnknownHandle}
	}
	return p.Release(pc)
}

// Pool returns the named node's pool.
func (r *Registry) Pool(node string) (*pool.Pool, error) {
	r.mu.RLock()
	p, ok := r.pools[node]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownNodeError{Node: node}
	}
	return p, nil
}

// Nodes returns the names of the built pools, sorted.
func (r *Registry) Nodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.pools))
	for name := range r.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Skipped returns the nodes that could not be built and why.
func (r *Registry) Skipped() map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]error, len(r.skipped))
	for name, err := range r.skipped {
		out[name] = err
	}
	return out
}

// Stats returns the statistics of every pool, sorted by node.
func (r *Registry) Stats() []pool.Stats {
	nodes := r.Nodes()
	out := make([]pool.Stats, 0, len(nodes))
	for _, node := range nodes {
		if p, err := r.Pool(node); err == nil {
			out = append(out, p.Stats())
		}
	}
	return out
}

// Destroy stops the background tasks and destroys every pool. Pools stay
// addressable by name and fail acquires with pool.ErrPoolClosed. Destroy
// is idempotent.
func (r *Registry) Destroy() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	tasks := r.tasks
	r.tasks = make(map[string][]*scheduler.Task)
	pools := make([]*pool.Pool, 0, len(r.pools))
	for _, p := range r.pools {
		pools = append(pools, p)
	}
	r.mu.Unlock()

	for _, ts := range tasks {
		for _, t := range ts {
			t.Stop()
		}
	}
	for _, p := range pools {
		p.Destroy()
	}
	if r.ownSched {
		r.sched.Stop()
	}
	r.log.Info("registry destroyed", "pools", len(pools))
}
