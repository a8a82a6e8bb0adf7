// Package scheduler runs large sets of independent tasks with a fixed
// concurrency ceiling, an optional delay between successive launches, and
// observer hooks for progress reporting.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStopped marks tasks that were never launched because the pool's stop
// signal was raised (or the context ended) before their turn.
var ErrStopped = errors.New("scheduler stopped before launch")

// Result carries one task's outcome. Index is the task's position in the
// input list; Label is the task's progress label.
type Result[T any] struct {
	Index int
	Label string
	Value T
	Err   error
}

// Task is one unit of schedulable work.
type Task[T any] struct {
	Label string
	Run   func(ctx context.Context) (T, error)
}

// Pool bounds concurrent task execution. The stop signal is cooperative:
// once raised no new task launches, but in-flight tasks run to completion
// so downstream writes are never torn.
type Pool struct {
	limit       int
	launchDelay time.Duration
	onStart     func(label string)
	onFinish    func(label string, err error)

	stopOnce sync.Once
	stopped  chan struct{}
}

// Option configures a Pool.
type Option func(*Pool)

// WithLaunchDelay inserts a fixed delay between successive task launches
// (not completions) for outbound rate limiting.
func WithLaunchDelay(d time.Duration) Option {
	return func(p *Pool) { p.launchDelay = d }
}

// WithObservers installs start/finish hooks. Either may be nil. Hooks are
// invoked from task goroutines and must be safe for concurrent use.
func WithObservers(onStart func(label string), onFinish func(label string, err error)) Option {
	return func(p *Pool) {
		p.onStart = onStart
		p.onFinish = onFinish
	}
}

// New creates a pool with the given concurrency ceiling. A limit below 1
// is treated as 1.
func New(limit int, opts ...Option) *Pool {
	if limit < 1 {
		limit = 1
	}
	p := &Pool{
		limit:   limit,
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stop raises the cooperative stop signal. Idempotent.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopped) })
}

// Stopping reports whether the stop signal has been raised.
func (p *Pool) Stopping() bool {
	select {
	case <-p.stopped:
		return true
	default:
		return false
	}
}

// RunOrdered executes all tasks with at most the pool's limit in flight
// and returns results positionally aligned with the input list regardless
// of completion order. Tasks never launched carry ErrStopped.
func RunOrdered[T any](ctx context.Context, p *Pool, tasks []Task[T]) []Result[T] {
	results := make([]Result[T], len(tasks))
	var wg sync.WaitGroup

	launchLoop(ctx, p, tasks, &wg, func(res Result[T]) {
		results[res.Index] = res
	})

	wg.Wait()
	return results
}

// RunCompleted executes all tasks with at most the pool's limit in flight
// and returns results in completion order. Tasks never launched are
// omitted from the returned slice.
func RunCompleted[T any](ctx context.Context, p *Pool, tasks []Task[T]) []Result[T] {
	var (
		mu      sync.Mutex
		results []Result[T]
	)
	var wg sync.WaitGroup

	launchLoop(ctx, p, tasks, &wg, func(res Result[T]) {
		if errors.Is(res.Err, ErrStopped) {
			return
		}
		mu.Lock()
		results = append(results, res)
		mu.Unlock()
	})

	wg.Wait()
	return results
}

// launchLoop drives the shared launch loop. The semaphore is acquired before
// launch so the stop signal is honored between launches, and the optional
// launch delay separates successive acquisitions.
func launchLoop[T any](ctx context.Context, p *Pool, tasks []Task[T], wg *sync.WaitGroup, emit func(Result[T])) {
	sem := make(chan struct{}, p.limit)

	for i, task := range tasks {
		if p.Stopping() || ctx.Err() != nil {
			emit(Result[T]{Index: i, Label: task.Label, Err: ErrStopped})
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-p.stopped:
			emit(Result[T]{Index: i, Label: task.Label, Err: ErrStopped})
			continue
		case <-ctx.Done():
			emit(Result[T]{Index: i, Label: task.Label, Err: ErrStopped})
			continue
		}

		wg.Add(1)
		go func(idx int, t Task[T]) {
			defer wg.Done()
			defer func() { <-sem }()

			if p.onStart != nil {
				p.onStart(t.Label)
			}
			value, err := t.Run(ctx)
			if p.onFinish != nil {
				p.onFinish(t.Label, err)
			}
			emit(Result[T]{Index: idx, Label: t.Label, Value: value, Err: err})
		}(i, task)

		if p.launchDelay > 0 && i < len(tasks)-1 {
			delaySleep(ctx, p, p.launchDelay)
		}
	}
}

// delaySleep waits for the launch delay, cut short by stop or context end.
func delaySleep(ctx context.Context, p *Pool, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-p.stopped:
	case <-ctx.Done():
	}
}
