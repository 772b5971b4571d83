// Package scheduler runs named periodic tasks in the background. One
// Scheduler is shared by all pools of a registry.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/guileen/nodepool/logger"
)

// ErrStopped is returned when scheduling on a stopped scheduler.
var ErrStopped = errors.New("scheduler is stopped")

// Scheduler runs periodic tasks until stopped.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[*Task]struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped bool
	log     *slog.Logger
}

// Task is a scheduled periodic function.
type Task struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
	sched  *Scheduler
}

// New creates a running scheduler.
func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		tasks:  make(map[*Task]struct{}),
		ctx:    ctx,
		cancel: cancel,
		log:    logger.With(logger.Component("scheduler")),
	}
}

// Every runs fn after delay and then every period, at fixed rate. Runs of
// one task never overlap; a run that overruns its period delays the next.
func (s *Scheduler) Every(name string, delay, period time.Duration, fn func(ctx context.Context)) (*Task, error) {
	if period <= 0 {
		return nil, errors.New("scheduler: period must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil, ErrStopped
	}

	ctx, cancel := context.WithCancel(s.ctx)
	t := &Task{
		name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
		sched:  s,
	}
	s.tasks[t] = struct{}{}

	s.wg.Add(1)
	go s.run(ctx, t, delay, period, fn)

	s.log.Debug("task scheduled", "task", name, "delay", delay.String(), "period", period.String())
	return t, nil
}

func (s *Scheduler) run(ctx context.Context, t *Task, delay, period time.Duration, fn func(ctx context.Context)) {
	defer s.wg.Done()
	defer close(t.done)
	defer s.forget(t)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		s.invoke(ctx, t, fn)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// invoke runs one execution, keeping the task alive if fn panics.
func (s *Scheduler) invoke(ctx context.Context, t *Task, fn func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("task panicked", "task", t.name, "panic", r)
		}
	}()
	fn(ctx)
}

func (s *Scheduler) forget(t *Task) {
	s.mu.Lock()
	delete(s.tasks, t)
	s.mu.Unlock()
}

// Len returns the number of live tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Stop cancels every task and waits for running executions to return.
// Stop is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.log.Debug("scheduler stopped")
}

// Name returns the task name
func (t *Task) Name() string {
	return t.name
}

// Stop cancels the task and waits for a running execution to return.
func (t *Task) Stop() {
	t.cancel()
	<-t.done
}
