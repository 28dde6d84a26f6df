package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sitescope/sitescope-be/internal/pipeline"
)

// RedisRegistry stores job snapshots as JSON values in Redis so the API
// service can poll jobs driven by a separate worker process. Retention is
// the key TTL. The single-writer-per-job discipline still applies: only the
// state machine driving a job calls Update for it.
type RedisRegistry struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisRegistry initializes a Redis-backed job registry.
func NewRedisRegistry(client *redis.Client, prefix string, ttl time.Duration) *RedisRegistry {
	return &RedisRegistry{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *RedisRegistry) key(jobID string) string {
	return r.prefix + jobID
}

// Create registers a new job record.
func (r *RedisRegistry) Create(ctx context.Context, job *pipeline.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.key(job.ID), payload, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store job: %w", err)
	}
	if !ok {
		return pipeline.ErrJobExists
	}
	return nil
}

// Get returns the job's last committed snapshot.
func (r *RedisRegistry) Get(ctx context.Context, jobID string) (*pipeline.Job, error) {
	val, err := r.client.Get(ctx, r.key(jobID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, pipeline.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to read job: %w", err)
	}

	var job pipeline.Job
	if err := json.Unmarshal([]byte(val), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// Update commits a new job state, keeping a raced-in cancellation request
// sticky.
func (r *RedisRegistry) Update(ctx context.Context, job *pipeline.Job) error {
	existing, err := r.Get(ctx, job.ID)
	if err != nil {
		return err
	}

	next := job.Clone()
	next.CancelRequested = next.CancelRequested || existing.CancelRequested

	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := r.client.Set(ctx, r.key(next.ID), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store job: %w", err)
	}
	return nil
}

// Delete evicts the job record.
func (r *RedisRegistry) Delete(ctx context.Context, jobID string) error {
	removed, err := r.client.Del(ctx, r.key(jobID)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if removed == 0 {
		return pipeline.ErrJobNotFound
	}
	return nil
}

// RequestCancel marks the job for cancellation at the next stage boundary.
func (r *RedisRegistry) RequestCancel(ctx context.Context, jobID string) error {
	job, err := r.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Terminal() {
		return pipeline.ErrJobTerminal
	}

	job.CancelRequested = true
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return r.client.Set(ctx, r.key(jobID), payload, r.ttl).Err()
}
