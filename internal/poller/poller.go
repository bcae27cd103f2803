// Package poller drives server-side jobs to completion by probing a status
// endpoint at a fixed interval.
package poller

import (
	"context"
	"time"

	"github.com/cloudpan/pan115/internal/constants"
	"github.com/cloudpan/pan115/internal/task"
)

// Probe inspects a remote job once. done=true with a nil error settles the
// task with result; a non-nil error fails it. While done is false, progress
// (0-100) is published on the task and polling continues.
type Probe[T any] func(ctx context.Context) (done bool, progress int, result T, err error)

// Start launches a poller for probe and returns its task handle. Probes never
// overlap: the next probe is scheduled interval after the previous one
// returns. interval <= 0 uses the default.
//
// Cancelling the task (or ctx) stops polling before the next probe fires; the
// remote job itself keeps running server-side.
func Start[T any](ctx context.Context, interval time.Duration, probe Probe[T]) *task.Task[T] {
	if interval <= 0 {
		interval = constants.PollInterval
	}

	ctx, cancel := context.WithCancel(ctx)
	t := task.New[T](cancel)
	t.Start()

	go func() {
		defer cancel()

		timer := time.NewTimer(0) // first probe immediately
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				t.Cancel()
				return
			case <-t.Done():
				return
			case <-timer.C:
			}

			done, progress, result, err := probe(ctx)
			if err != nil {
				if ctx.Err() != nil {
					t.Cancel()
				} else {
					t.Fail(err)
				}
				return
			}
			if done {
				t.Complete(result)
				return
			}

			t.SetProgress(progress)
			timer.Reset(interval)
		}
	}()

	return t
}
