package export

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current state of a PDF job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job is a point-in-time copy of a queued job.
type Job struct {
	ID         string    `json:"id"`
	Label      string    `json:"label,omitempty"`
	Status     JobStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// QueueSnapshot describes the queue at one instant.
type QueueSnapshot struct {
	Running *Job  `json:"running"`
	Waiting []Job `json:"waiting"`
	Recent  []Job `json:"recent"`
}

type queuedJob struct {
	info            Job
	ready           chan struct{}
	cancel          context.CancelFunc
	cancelRequested bool
}

// Queue runs jobs one at a time in arrival order. A job starts only after
// every earlier job has settled, whether it succeeded, failed or was
// cancelled.
type Queue struct {
	mu      sync.Mutex
	running *queuedJob
	waiting []*queuedJob
	recent  []Job

	maxWait    time.Duration
	jobTimeout time.Duration
	keep       int
	now        func() time.Time
}

// NewQueue creates a queue. maxWait bounds the time a job may wait for its
// turn and jobTimeout the time it may run; zero disables either bound.
func NewQueue(maxWait, jobTimeout time.Duration) *Queue {
	return &Queue{maxWait: maxWait, jobTimeout: jobTimeout, keep: 20, now: time.Now}
}

// Do enqueues fn under label and blocks until it has run or left the queue.
// fn receives a context that is cancelled on Cancel, on the job timeout and
// when ctx ends.
func (q *Queue) Do(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	j := &queuedJob{
		info:   Job{ID: uuid.New().String(), Label: label, Status: JobStatusPending, EnqueuedAt: q.now()},
		ready:  make(chan struct{}),
		cancel: cancel,
	}

	q.mu.Lock()
	if q.running == nil {
		q.start(j)
	} else {
		q.waiting = append(q.waiting, j)
	}
	q.mu.Unlock()

	var expired <-chan time.Time
	if q.maxWait > 0 {
		timer := time.NewTimer(q.maxWait)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-j.ready:
	case <-jobCtx.Done():
		if q.leave(j, JobStatusCancelled, jobCtx.Err()) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrJobCancelled
		}
	case <-expired:
		err := fmt.Errorf("%w after %s", ErrQueueTimeout, q.maxWait)
		if q.leave(j, JobStatusFailed, err) {
			return err
		}
	}

	// j owns the slot from here on.
	return q.run(jobCtx, j, fn)
}

func (q *Queue) run(ctx context.Context, j *queuedJob, fn func(ctx context.Context) error) (err error) {
	runCtx := ctx
	if q.jobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, q.jobTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("export job panicked: %v", r)
		}
		err = q.finish(j, runCtx, err)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(runCtx)
}

// start marks j running. Callers hold q.mu.
func (q *Queue) start(j *queuedJob) {
	j.info.Status = JobStatusRunning
	j.info.StartedAt = q.now()
	q.running = j
	close(j.ready)
}

// leave removes a waiting job. It reports false when j was promoted to
// running in the meantime, in which case the caller must run it.
func (q *Queue) leave(j *queuedJob, status JobStatus, cause error) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch j.info.Status {
	case JobStatusRunning:
		return false
	case JobStatusPending:
		q.removeWaiting(j)
		q.settle(j, status, cause)
	}
	return true
}

// finish settles the running job and hands the slot to the next in line.
func (q *Queue) finish(j *queuedJob, runCtx context.Context, err error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	status := JobStatusCompleted
	switch {
	case err != nil && j.cancelRequested:
		status = JobStatusCancelled
		err = ErrJobCancelled
	case err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded):
		status = JobStatusFailed
		err = fmt.Errorf("%w after %s: %v", ErrJobTimeout, q.jobTimeout, err)
	case err != nil && errors.Is(runCtx.Err(), context.Canceled):
		status = JobStatusCancelled
	case err != nil:
		status = JobStatusFailed
	}
	q.settle(j, status, err)

	q.running = nil
	if len(q.waiting) > 0 {
		next := q.waiting[0]
		q.waiting = q.waiting[1:]
		q.start(next)
	}
	return err
}

// settle records the final state of j. Callers hold q.mu.
func (q *Queue) settle(j *queuedJob, status JobStatus, err error) {
	j.info.Status = status
	j.info.FinishedAt = q.now()
	if err != nil {
		j.info.Error = err.Error()
	}
	q.recent = append([]Job{j.info}, q.recent...)
	if len(q.recent) > q.keep {
		q.recent = q.recent[:q.keep]
	}
}

func (q *Queue) removeWaiting(j *queuedJob) {
	for i, w := range q.waiting {
		if w == j {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			return
		}
	}
}

// Cancel stops the job with the given id. A waiting job leaves the queue at
// once; a running job has its context cancelled, which closes its page.
func (q *Queue) Cancel(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running != nil && q.running.info.ID == id {
		q.running.cancelRequested = true
		q.running.cancel()
		return nil
	}
	for _, w := range q.waiting {
		if w.info.ID == id {
			q.removeWaiting(w)
			q.settle(w, JobStatusCancelled, ErrJobCancelled)
			w.cancel()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrJobNotFound, id)
}

// Snapshot returns the running job, the waiting jobs in start order and the
// most recently settled jobs, newest first.
func (q *Queue) Snapshot() QueueSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	snap := QueueSnapshot{
		Waiting: make([]Job, 0, len(q.waiting)),
		Recent:  append([]Job{}, q.recent...),
	}
	if q.running != nil {
		running := q.running.info
		snap.Running = &running
	}
	for _, w := range q.waiting {
		snap.Waiting = append(snap.Waiting, w.info)
	}
	return snap
}

// Len returns the number of jobs running or waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.waiting)
	if q.running != nil {
		n++
	}
	return n
}
