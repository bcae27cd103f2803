package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudpan/pan115/internal/task"
)

func TestPollsUntilDone(t *testing.T) {
	var calls atomic.Int32
	tk := Start(context.Background(), time.Millisecond, func(ctx context.Context) (bool, int, string, error) {
		n := calls.Add(1)
		if n < 3 {
			return false, int(n) * 30, "", nil
		}
		return true, 100, "tree.txt", nil
	})

	got, err := tk.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got != "tree.txt" {
		t.Errorf("result = %q, want tree.txt", got)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("probe calls = %d, want 3", n)
	}

	// Terminal task must not be probed again.
	time.Sleep(10 * time.Millisecond)
	if n := calls.Load(); n != 3 {
		t.Errorf("probe ran after completion: %d calls", n)
	}
}

func TestProbeErrorFailsTask(t *testing.T) {
	boom := errors.New("unzip failed")
	tk := Start(context.Background(), time.Millisecond, func(ctx context.Context) (bool, int, int, error) {
		return false, 0, 0, boom
	})

	_, err := tk.Wait(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Wait err = %v, want probe error", err)
	}
	if tk.State() != task.StateFailed {
		t.Errorf("state = %v, want failed", tk.State())
	}
}

func TestCancelStopsPolling(t *testing.T) {
	var calls atomic.Int32
	blocked := make(chan struct{})
	tk := Start(context.Background(), time.Millisecond, func(ctx context.Context) (bool, int, string, error) {
		if calls.Add(1) == 1 {
			close(blocked)
		}
		return false, 10, "", nil
	})

	<-blocked
	tk.Cancel()

	_, err := tk.Wait(context.Background())
	if !errors.Is(err, task.ErrCancelled) {
		t.Fatalf("Wait err = %v, want ErrCancelled", err)
	}

	after := calls.Load()
	time.Sleep(10 * time.Millisecond)
	// At most one probe may have been in flight at cancel time.
	if calls.Load() > after+1 {
		t.Errorf("probing continued after cancel: %d -> %d", after, calls.Load())
	}
}

func TestProgressPublished(t *testing.T) {
	step := make(chan struct{})
	tk := Start(context.Background(), time.Millisecond, func(ctx context.Context) (bool, int, string, error) {
		select {
		case <-step:
			return true, 100, "done", nil
		default:
			return false, 55, "", nil
		}
	})

	deadline := time.After(time.Second)
	for tk.Progress() != 55 {
		select {
		case <-deadline:
			t.Fatalf("progress never reached 55, got %d", tk.Progress())
		case <-time.After(time.Millisecond):
		}
	}
	close(step)

	if _, err := tk.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}
