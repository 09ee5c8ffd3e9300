package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/commercebridge/visearch/internal/cache"
	"github.com/commercebridge/visearch/pkg/models"
)

// ErrShuttingDown is returned by Enqueue after Stop has been called.
var ErrShuttingDown = errors.New("job pool shutting down")

// statusTTL bounds how long the Redis status mirror outlives a job.
const statusTTL = 30 * time.Minute

// ProgressFunc reports task progress in [0,100]. The pool clamps values so a
// poller never observes a decrease; the -1 failure sentinel is emitted by the
// pool itself on task failure.
type ProgressFunc func(progress int, message string)

// Task is the body of one asynchronous job. The returned value is marshaled
// to JSON and attached to the job as its result. Any error (or panic) turns
// the job into a terminal failed state; tasks are never retried.
type Task func(ctx context.Context, report ProgressFunc) (any, error)

type task struct {
	id uuid.UUID
	fn Task
}

// Pool executes jobs on a fixed set of workers consuming a buffered queue.
// Submission only ever enqueues; execution always happens on a worker
// goroutine, never on the caller's.
type Pool struct {
	registry    *Registry
	cache       cache.Cache
	queue       chan task
	workers     int
	progressTTL time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewPool(registry *Registry, c cache.Cache, workers, queueSize int, progressTTL time.Duration) *Pool {
	return &Pool{
		registry:    registry,
		cache:       c,
		queue:       make(chan task, queueSize),
		workers:     workers,
		progressTTL: progressTTL,
	}
}

// Start launches the worker goroutines. ctx is the process lifetime context
// handed to every task.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for t := range p.queue {
				p.run(ctx, t)
			}
		}()
	}
}

// Stop closes the queue and waits for in-flight jobs to finish. Jobs still
// queued are executed before the workers exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Enqueue creates a pending job, hands it to the workers, and returns the job
// id immediately. It blocks only while the queue is full; ctx cancellation
// during that wait fails the job and returns the context error.
func (p *Pool) Enqueue(ctx context.Context, jobType string, fn Task) (uuid.UUID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return uuid.Nil, ErrShuttingDown
	}
	id := p.registry.create(jobType)

	select {
	case p.queue <- task{id: id, fn: fn}:
		p.mirrorStatus(ctx, id, models.JobStatusPending)
		return id, nil
	case <-ctx.Done():
		p.registry.fail(id, "submission cancelled before execution")
		return uuid.Nil, ctx.Err()
	}
}

// run executes one job end to end on a worker goroutine. It recovers from
// panics and always leaves the job in a terminal state.
func (p *Pool) run(ctx context.Context, t task) {
	report := p.reporter(t.id)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in job", "job_id", t.id, "error", r)
			p.finishFailed(ctx, t.id, fmt.Sprintf("panic: %v", r), report)
		}
	}()

	p.registry.markRunning(t.id)
	p.mirrorStatus(ctx, t.id, models.JobStatusRunning)

	result, err := t.fn(ctx, report)
	if err != nil {
		p.finishFailed(ctx, t.id, err.Error(), report)
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		p.finishFailed(ctx, t.id, fmt.Sprintf("encoding result: %v", err), report)
		return
	}

	p.registry.complete(t.id, payload)
	p.mirrorStatus(ctx, t.id, models.JobStatusCompleted)
}

func (p *Pool) finishFailed(ctx context.Context, id uuid.UUID, message string, report ProgressFunc) {
	report(models.ProgressFailed, "Error: "+message)
	p.registry.fail(id, message)
	p.mirrorStatus(ctx, id, models.JobStatusFailed)
}

// reporter returns a ProgressFunc bound to one job. Values are clamped to
// [0,100] and forced monotonically non-decreasing; only the -1 sentinel may
// follow a higher value. Writes to Redis are best effort.
func (p *Pool) reporter(id uuid.UUID) ProgressFunc {
	last := 0
	return func(progress int, message string) {
		if progress != models.ProgressFailed {
			if progress > 100 {
				progress = 100
			}
			if progress < last {
				progress = last
			}
			last = progress
		}
		rec := models.Progress{
			JobID:     id.String(),
			Progress:  progress,
			Message:   message,
			Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		}
		if err := p.cache.SetProgress(context.Background(), rec, p.progressTTL); err != nil {
			slog.Debug("progress write skipped", "job_id", id, "error", err)
		}
	}
}

// Job returns the current state of a job. Ids unknown to this process are
// looked up in the Redis status mirror, so a poller that lands on another
// instance still sees the job's status. Only the status survives the mirror;
// results and timestamps stay with the process that ran the job.
func (p *Pool) Job(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job, err := p.registry.Get(id)
	if err == nil {
		return job, nil
	}

	status, found, mirrorErr := p.cache.GetJobStatus(ctx, id.String())
	if mirrorErr != nil || !found {
		return nil, err
	}
	return &models.Job{ID: id, Status: status}, nil
}

// Progress returns the latest progress record for a job. It never fails:
// when no record exists (not yet written, expired, or Redis unavailable) it
// synthesizes an estimate from the job's registry state.
func (p *Pool) Progress(ctx context.Context, id uuid.UUID) models.Progress {
	if rec, found, err := p.cache.GetProgress(ctx, id.String()); err == nil && found {
		return rec
	} else if err != nil {
		slog.Debug("progress read skipped", "job_id", id, "error", err)
	}

	rec := models.Progress{
		JobID:     id.String(),
		Progress:  0,
		Message:   "Job queued",
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
	}

	job, err := p.registry.Get(id)
	if err != nil {
		return rec
	}
	switch job.Status {
	case models.JobStatusRunning:
		rec.Progress = 10
		rec.Message = "Job started"
	case models.JobStatusCompleted:
		rec.Progress = 100
		rec.Message = "Job completed"
	case models.JobStatusFailed:
		rec.Progress = models.ProgressFailed
		rec.Message = "Job failed"
		if job.ErrorMessage != nil {
			rec.Message = "Job failed: " + *job.ErrorMessage
		}
	}
	return rec
}

// mirrorStatus copies job status into Redis so pollers on other processes can
// see it. Failures are logged only; Redis being down never fails a job.
func (p *Pool) mirrorStatus(ctx context.Context, id uuid.UUID, status string) {
	if err := p.cache.SetJobStatus(ctx, id.String(), status, statusTTL); err != nil {
		slog.Debug("job status mirror skipped", "job_id", id, "error", err)
	}
}
