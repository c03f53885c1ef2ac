// Package background runs fire-and-forget tasks that must never hold up a
// request: every task gets its own timeout detached from the caller's context,
// panics are recovered, and failures are only logged.
package background

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultMaxInFlight = 100
	DefaultTimeout     = 10 * time.Second
)

// Task is a unit of background work.
type Task func(ctx context.Context) error

// Dispatcher runs tasks on goroutines with a cap on concurrent tasks.
type Dispatcher struct {
	log     *zap.Logger
	timeout time.Duration
	sema    chan struct{}
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	// OnResult, when set, is called after every task with its name and error.
	OnResult func(name string, err error)
}

func NewDispatcher(log *zap.Logger, maxInFlight int, timeout time.Duration) *Dispatcher {
	if maxInFlight < 1 {
		maxInFlight = DefaultMaxInFlight
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		log:     log.With(zap.String("component", "dispatcher")),
		timeout: timeout,
		sema:    make(chan struct{}, maxInFlight),
	}
}

// Go schedules task and returns immediately. It reports false when the task
// was dropped because the dispatcher is closed or saturated.
func (d *Dispatcher) Go(name string, task Task) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.log.Warn("Dispatcher closed, task dropped", zap.String("task", name))
		return false
	}

	select {
	case d.sema <- struct{}{}:
	default:
		d.log.Warn("Dispatcher saturated, task dropped", zap.String("task", name))
		return false
	}

	d.wg.Add(1)
	go d.run(name, task)
	return true
}

func (d *Dispatcher) run(name string, task Task) {
	var err error

	defer func() {
		if rvr := recover(); rvr != nil {
			d.log.Error("PANIC recovered in background task",
				zap.String("task", name),
				zap.Any("error", rvr),
				zap.Stack("stack"),
			)
			err = fmt.Errorf("panic: %v", rvr)
		}
		if d.OnResult != nil {
			d.OnResult(name, err)
		}
		<-d.sema
		d.wg.Done()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	start := time.Now()
	err = task(ctx)
	if err != nil {
		d.log.Error("Background task failed",
			zap.String("task", name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return
	}

	d.log.Debug("Background task done",
		zap.String("task", name),
		zap.Duration("duration", time.Since(start)),
	)
}

// Wait blocks until every scheduled task has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close stops accepting tasks and waits for in-flight ones, or for ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
