package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitescope/sitescope-be/internal/pipeline"
)

func newJob(id string) *pipeline.Job {
	now := time.Now()
	return &pipeline.Job{
		ID:        id,
		MainURL:   "https://main.test",
		Status:    pipeline.StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryRegistry_CreateAndGet(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, newJob("job-1")))

	got, err := r.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "https://main.test", got.MainURL)

	assert.ErrorIs(t, r.Create(ctx, newJob("job-1")), pipeline.ErrJobExists)

	_, err = r.Get(ctx, "missing")
	assert.ErrorIs(t, err, pipeline.ErrJobNotFound)
}

func TestMemoryRegistry_SnapshotIsolation(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	job := newJob("job-1")
	require.NoError(t, r.Create(ctx, job))

	// Mutating the submitted job must not leak into the stored copy.
	job.Status = pipeline.StatusFailed
	job.AppendError("local mutation")

	stored, err := r.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusQueued, stored.Status)
	assert.Empty(t, stored.Errors)

	// Same for snapshots handed out by Get.
	stored.Status = pipeline.StatusCanceled
	again, err := r.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusQueued, again.Status)
}

func TestMemoryRegistry_Update(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, newJob("job-1")))

	job, err := r.Get(ctx, "job-1")
	require.NoError(t, err)
	job.Status = pipeline.StatusRunning
	job.Progress = 25
	require.NoError(t, r.Update(ctx, job))

	stored, err := r.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusRunning, stored.Status)
	assert.Equal(t, 25, stored.Progress)

	assert.ErrorIs(t, r.Update(ctx, newJob("missing")), pipeline.ErrJobNotFound)
}

func TestMemoryRegistry_CancelStickyAcrossUpdate(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, newJob("job-1")))

	// The writer took its snapshot before cancellation was requested.
	stale, err := r.Get(ctx, "job-1")
	require.NoError(t, err)

	require.NoError(t, r.RequestCancel(ctx, "job-1"))

	stale.Status = pipeline.StatusRunning
	require.NoError(t, r.Update(ctx, stale))

	stored, err := r.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, stored.CancelRequested, "cancel flag must survive a commit from a cancel-unaware writer")
}

func TestMemoryRegistry_RequestCancel(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	assert.ErrorIs(t, r.RequestCancel(ctx, "missing"), pipeline.ErrJobNotFound)

	done := newJob("done")
	done.Status = pipeline.StatusCompleted
	require.NoError(t, r.Create(ctx, done))
	assert.ErrorIs(t, r.RequestCancel(ctx, "done"), pipeline.ErrJobTerminal)
}

func TestMemoryRegistry_Delete(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, newJob("job-1")))
	require.NoError(t, r.Delete(ctx, "job-1"))

	_, err := r.Get(ctx, "job-1")
	assert.ErrorIs(t, err, pipeline.ErrJobNotFound)
	assert.ErrorIs(t, r.Delete(ctx, "job-1"), pipeline.ErrJobNotFound)
}

func TestMemoryRegistry_Sweep(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	old := newJob("old-terminal")
	old.Status = pipeline.StatusCompleted
	old.UpdatedAt = time.Now().Add(-48 * time.Hour)
	require.NoError(t, r.Create(ctx, old))

	fresh := newJob("fresh-terminal")
	fresh.Status = pipeline.StatusFailed
	require.NoError(t, r.Create(ctx, fresh))

	running := newJob("old-running")
	running.Status = pipeline.StatusRunning
	running.UpdatedAt = time.Now().Add(-48 * time.Hour)
	require.NoError(t, r.Create(ctx, running))

	removed := r.Sweep(24 * time.Hour)
	assert.Equal(t, 1, removed)

	_, err := r.Get(ctx, "old-terminal")
	assert.ErrorIs(t, err, pipeline.ErrJobNotFound)

	_, err = r.Get(ctx, "fresh-terminal")
	assert.NoError(t, err)

	// Non-terminal jobs are never swept, however old.
	_, err = r.Get(ctx, "old-running")
	assert.NoError(t, err)
}
