// Package eventloop runs jobs one at a time on a single goroutine. Tab
// lifecycle events and clicks share the queue, so a switch never observes a
// cache that is behind an event delivered before it.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrStopped is returned by Do after the loop has stopped.
var ErrStopped = errors.New("event loop stopped")

// Job is a unit of work run on the loop goroutine.
type Job func(ctx context.Context) error

type item struct {
	name string
	job  Job
	done chan error
}

// Loop is a single-consumer FIFO job queue. The queue is unbounded so that
// Post never blocks the caller.
type Loop struct {
	mu      sync.Mutex
	queue   []item
	wake    chan struct{}
	stopped bool
	running bool
}

func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post enqueues job without waiting for it. Errors are logged.
func (l *Loop) Post(name string, job Job) {
	l.enqueue(item{name: name, job: job})
}

// Do enqueues job and waits for its result. If ctx ends first Do returns
// ctx.Err(); the job still runs when its turn comes.
func (l *Loop) Do(ctx context.Context, name string, job Job) error {
	done := make(chan error, 1)
	if !l.enqueue(item{name: name, job: job, done: done}) {
		return ErrStopped
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued jobs.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Run processes jobs until ctx is done. Jobs still queued at that point
// fail with ErrStopped.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return errors.New("event loop already running")
	}
	l.running = true
	l.mu.Unlock()

	defer l.stop()
	for {
		it, ok := l.next()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-l.wake:
				continue
			}
		}
		if ctx.Err() != nil {
			if it.done != nil {
				it.done <- ErrStopped
			}
			return nil
		}
		err := l.run(ctx, it)
		if it.done != nil {
			it.done <- err
		} else if err != nil {
			slog.Warn("event loop job failed", "job", it.name, "error", err)
		}
	}
}

func (l *Loop) run(ctx context.Context, it item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", it.name, r)
		}
	}()
	return it.job(ctx)
}

func (l *Loop) enqueue(it item) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		if it.done == nil {
			slog.Debug("event loop stopped, dropping job", "job", it.name)
		}
		return false
	}
	l.queue = append(l.queue, it)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

func (l *Loop) next() (item, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return item{}, false
	}
	it := l.queue[0]
	l.queue[0] = item{}
	l.queue = l.queue[1:]
	return it, true
}

func (l *Loop) stop() {
	l.mu.Lock()
	l.stopped = true
	pending := l.queue
	l.queue = nil
	l.mu.Unlock()
	for _, it := range pending {
		if it.done != nil {
			it.done <- ErrStopped
		}
	}
}
