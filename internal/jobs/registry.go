package jobs

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/commercebridge/visearch/pkg/models"
)

// ErrNotFound is returned when a job id is unknown to the registry.
var ErrNotFound = errors.New("job not found")

// Registry tracks job lifecycle state in memory. Jobs live for the lifetime
// of the process, like a Celery-style ephemeral result backend; terminal
// states are immutable.
type Registry struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*models.Job
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[uuid.UUID]*models.Job)}
}

// Get returns a copy of the job, or ErrNotFound for unknown ids.
func (r *Registry) Get(id uuid.UUID) (*models.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *job
	return &copied, nil
}

// create allocates a fresh pending job and returns its id.
func (r *Registry) create(jobType string) uuid.UUID {
	job := &models.Job{
		ID:        uuid.New(),
		Type:      jobType,
		Status:    models.JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	return job.ID
}

func (r *Registry) markRunning(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Terminal() {
		return
	}
	now := time.Now().UTC()
	job.Status = models.JobStatusRunning
	job.StartedAt = &now
}

// complete publishes a fully-formed result and transitions to completed.
// The payload is attached before the status flips so a concurrent reader
// never observes a completed job without its result.
func (r *Registry) complete(id uuid.UUID, result json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Terminal() {
		return
	}
	now := time.Now().UTC()
	job.Result = result
	job.CompletedAt = &now
	job.Status = models.JobStatusCompleted
}

func (r *Registry) fail(id uuid.UUID, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Terminal() {
		return
	}
	now := time.Now().UTC()
	job.ErrorMessage = &message
	job.CompletedAt = &now
	job.Status = models.JobStatusFailed
}
