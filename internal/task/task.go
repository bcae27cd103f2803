// Package task provides a handle for long-running operations: it tracks state
// and progress, supports cancellation, and delivers a single terminal result.
package task

import (
	"context"
	"errors"
	"sync"
)

// State describes where a task is in its lifecycle.
type State int

const (
	// StatePending - created, not yet started
	StatePending State = iota
	// StateRunning - work in progress
	StateRunning
	// StateSucceeded - finished with a result
	StateSucceeded
	// StateFailed - finished with an error
	StateFailed
	// StateCancelled - stopped by the caller before finishing
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// ErrCancelled is the error a cancelled task reports from Wait.
var ErrCancelled = errors.New("task cancelled")

// Task is the handle for one asynchronous operation producing a T.
//
// All methods are safe for concurrent use. A task settles exactly once: the
// first of Complete, Fail, or Cancel wins and later calls are no-ops.
type Task[T any] struct {
	mu       sync.Mutex
	state    State
	progress int
	result   T
	err      error

	done   chan struct{}
	cancel context.CancelFunc
}

// Run starts fn in its own goroutine and returns its handle. fn observes
// cancellation through its context; its return value settles the task unless
// the task was cancelled first.
func Run[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Task[T] {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task[T]{
		state:  StateRunning,
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer cancel()
		result, err := fn(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				t.settle(StateCancelled, result, ErrCancelled)
			} else {
				t.settle(StateFailed, result, err)
			}
			return
		}
		t.settle(StateSucceeded, result, nil)
	}()

	return t
}

// New returns an unstarted task to be settled manually by a driver (used by
// the poller, which owns its own goroutine).
func New[T any](cancel context.CancelFunc) *Task[T] {
	return &Task[T]{
		state:  StatePending,
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

func (t *Task[T]) settle(state State, result T, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() {
		return
	}
	t.state = state
	t.result = result
	t.err = err
	if state == StateSucceeded {
		t.progress = 100
	}
	close(t.done)
}

// Start moves a pending task to running.
func (t *Task[T]) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StatePending {
		t.state = StateRunning
	}
}

// Complete settles the task successfully.
func (t *Task[T]) Complete(result T) {
	t.settle(StateSucceeded, result, nil)
}

// Fail settles the task with err.
func (t *Task[T]) Fail(err error) {
	var zero T
	t.settle(StateFailed, zero, err)
}

// Cancel stops the task. It is distinct from failure: Wait returns
// ErrCancelled and State reports StateCancelled. Cancelling a settled task
// has no effect.
func (t *Task[T]) Cancel() {
	var zero T
	t.settle(StateCancelled, zero, ErrCancelled)
	if t.cancel != nil {
		t.cancel()
	}
}

// State returns the current lifecycle state.
func (t *Task[T]) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Progress returns the last reported completion percentage, 0-100.
func (t *Task[T]) Progress() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

// SetProgress records a completion percentage. Values outside 0-100 are
// clamped; settled tasks ignore updates.
func (t *Task[T]) SetProgress(p int) {
	if p < 0 {
		p = 0
	} else if p > 100 {
		p = 100
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() {
		return
	}
	t.progress = p
}

// Done returns a channel closed when the task settles.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task settles or ctx expires. On success it returns
// the result; a cancelled task returns ErrCancelled.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}
