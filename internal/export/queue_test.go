package export

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// blockQueue occupies q with a job that runs until the returned func is
// called.
func blockQueue(t *testing.T, q *Queue) (release func(), done <-chan error) {
	t.Helper()
	gate := make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		errc <- q.Do(context.Background(), "blocker", func(ctx context.Context) error {
			<-gate
			return nil
		})
	}()
	waitFor(t, "blocker to run", func() bool { return q.Snapshot().Running != nil })
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }, errc
}

func TestQueueRunsOneJobAtATime(t *testing.T) {
	q := NewQueue(0, 0)
	var active, peak atomic.Int32

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = q.Do(context.Background(), "job", func(ctx context.Context) error {
				n := active.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				active.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("job %d: %v", i, err)
		}
	}
	if p := peak.Load(); p != 1 {
		t.Errorf("peak concurrency = %d, want 1", p)
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d after all jobs", q.Len())
	}
	if got := len(q.Snapshot().Recent); got != 5 {
		t.Errorf("recent = %d", got)
	}
}

func TestQueueRunsInArrivalOrder(t *testing.T) {
	q := NewQueue(0, 0)
	release, blocker := blockQueue(t, q)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Do(context.Background(), "job", func(ctx context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		waitFor(t, "job to enqueue", func() bool { return q.Len() == i+2 })
	}

	release()
	wg.Wait()
	if err := <-blocker; err != nil {
		t.Fatalf("blocker: %v", err)
	}
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Errorf("order = %v", order)
	}
}

func TestQueueFailureReleasesSlot(t *testing.T) {
	q := NewQueue(0, 0)
	boom := errors.New("boom")

	if err := q.Do(context.Background(), "fails", func(ctx context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if err := q.Do(context.Background(), "panics", func(ctx context.Context) error { panic("kapot") }); err == nil {
		t.Fatal("panic should surface as an error")
	}
	ran := false
	if err := q.Do(context.Background(), "next", func(ctx context.Context) error { ran = true; return nil }); err != nil || !ran {
		t.Fatalf("next job: ran=%v err=%v", ran, err)
	}

	recent := q.Snapshot().Recent
	if recent[0].Status != JobStatusCompleted || recent[1].Status != JobStatusFailed || recent[2].Status != JobStatusFailed {
		t.Errorf("statuses = %s %s %s", recent[0].Status, recent[1].Status, recent[2].Status)
	}
}

func TestQueueCancelWaitingJob(t *testing.T) {
	q := NewQueue(0, 0)
	release, blocker := blockQueue(t, q)
	defer release()

	errc := make(chan error, 1)
	ran := atomic.Bool{}
	go func() {
		errc <- q.Do(context.Background(), "waiting", func(ctx context.Context) error {
			ran.Store(true)
			return nil
		})
	}()
	waitFor(t, "job to wait", func() bool { return len(q.Snapshot().Waiting) == 1 })

	id := q.Snapshot().Waiting[0].ID
	if err := q.Cancel(id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := <-errc; !errors.Is(err, ErrJobCancelled) {
		t.Errorf("err = %v, want ErrJobCancelled", err)
	}

	snap := q.Snapshot()
	if len(snap.Waiting) != 0 || snap.Recent[0].ID != id || snap.Recent[0].Status != JobStatusCancelled {
		t.Errorf("snapshot = %+v", snap)
	}

	release()
	if err := <-blocker; err != nil {
		t.Fatal(err)
	}
	if ran.Load() {
		t.Error("cancelled job ran")
	}
}

func TestQueueCancelRunningJob(t *testing.T) {
	q := NewQueue(0, 0)
	started := make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		errc <- q.Do(context.Background(), "running", func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})
	}()
	<-started

	if err := q.Cancel(q.Snapshot().Running.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := <-errc; !errors.Is(err, ErrJobCancelled) {
		t.Errorf("err = %v, want ErrJobCancelled", err)
	}
	if err := q.Do(context.Background(), "after", func(ctx context.Context) error { return nil }); err != nil {
		t.Errorf("next job: %v", err)
	}
}

func TestQueueCancelUnknownJob(t *testing.T) {
	if err := NewQueue(0, 0).Cancel("nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestQueueWaitTimeout(t *testing.T) {
	q := NewQueue(30*time.Millisecond, 0)
	release, blocker := blockQueue(t, q)

	err := q.Do(context.Background(), "late", func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrQueueTimeout) {
		t.Errorf("err = %v, want ErrQueueTimeout", err)
	}
	if n := len(q.Snapshot().Waiting); n != 0 {
		t.Errorf("timed-out job still waiting: %d", n)
	}

	release()
	if err := <-blocker; err != nil {
		t.Fatal(err)
	}
}

func TestQueueJobTimeout(t *testing.T) {
	q := NewQueue(0, 20*time.Millisecond)

	err := q.Do(context.Background(), "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, ErrJobTimeout) {
		t.Fatalf("err = %v, want ErrJobTimeout", err)
	}
	if s := q.Snapshot().Recent[0].Status; s != JobStatusFailed {
		t.Errorf("status = %s", s)
	}
	if err := q.Do(context.Background(), "next", func(ctx context.Context) error { return nil }); err != nil {
		t.Errorf("next job: %v", err)
	}
}

func TestQueueCallerContextCancelled(t *testing.T) {
	q := NewQueue(0, 0)
	release, blocker := blockQueue(t, q)
	defer func() {
		release()
		<-blocker
	}()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- q.Do(ctx, "client gone", func(ctx context.Context) error { return nil })
	}()
	waitFor(t, "job to wait", func() bool { return len(q.Snapshot().Waiting) == 1 })
	cancel()

	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
