package registry

import (
	"context"
	"sync"
	"time"

	"github.com/sitescope/sitescope-be/internal/pipeline"
)

// MemoryRegistry is the in-process job table. Jobs are stored as deep copies
// so readers always see a consistent snapshot of the last committed state,
// never a job mid-mutation. Suitable for single-process deployments and
// tests; retention is caller-defined via Delete or Sweep.
type MemoryRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*pipeline.Job
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		jobs: make(map[string]*pipeline.Job),
	}
}

// Create registers a new job record.
func (r *MemoryRegistry) Create(_ context.Context, job *pipeline.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; exists {
		return pipeline.ErrJobExists
	}
	r.jobs[job.ID] = job.Clone()
	return nil
}

// Get returns a snapshot of the job's last committed state.
func (r *MemoryRegistry) Get(_ context.Context, jobID string) (*pipeline.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, pipeline.ErrJobNotFound
	}
	return job.Clone(), nil
}

// Update commits a new job state. A cancellation request raced in by another
// caller stays sticky across commits from the (cancel-unaware) writer.
func (r *MemoryRegistry) Update(_ context.Context, job *pipeline.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.jobs[job.ID]
	if !ok {
		return pipeline.ErrJobNotFound
	}

	next := job.Clone()
	next.CancelRequested = next.CancelRequested || existing.CancelRequested
	r.jobs[job.ID] = next
	return nil
}

// Delete evicts the job record.
func (r *MemoryRegistry) Delete(_ context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[jobID]; !ok {
		return pipeline.ErrJobNotFound
	}
	delete(r.jobs, jobID)
	return nil
}

// RequestCancel marks the job for cancellation at the next stage boundary.
func (r *MemoryRegistry) RequestCancel(_ context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return pipeline.ErrJobNotFound
	}
	if job.Terminal() {
		return pipeline.ErrJobTerminal
	}
	job.CancelRequested = true
	return nil
}

// Sweep evicts terminal jobs whose last update is older than the retention
// window and returns how many were removed.
func (r *MemoryRegistry) Sweep(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, job := range r.jobs {
		if job.Terminal() && job.UpdatedAt.Before(cutoff) {
			delete(r.jobs, id)
			removed++
		}
	}
	return removed
}
