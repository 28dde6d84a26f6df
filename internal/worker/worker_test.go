package worker

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitescope/sitescope-be/internal/pipeline"
)

func TestDecodeSubmission(t *testing.T) {
	t.Run("valid submission", func(t *testing.T) {
		msg, err := decodeSubmission([]byte(`{"job_id":"11111111-2222-3333-4444-555555555555"}`))
		require.NoError(t, err)
		assert.Equal(t, "11111111-2222-3333-4444-555555555555", msg.JobID)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		_, err := decodeSubmission([]byte(`{"job_id":`))
		assert.Error(t, err)
	})

	t.Run("job_id not a UUID", func(t *testing.T) {
		_, err := decodeSubmission([]byte(`{"job_id":"analysis-42"}`))
		assert.Error(t, err)
	})

	t.Run("missing job_id", func(t *testing.T) {
		_, err := decodeSubmission([]byte(`{}`))
		assert.Error(t, err)
	})
}

func TestShouldRequeueJob(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"job not found", pipeline.ErrJobNotFound, false},
		{"wrapped job not found", fmt.Errorf("load: %w", pipeline.ErrJobNotFound), false},
		{"retryable commit failure", pipeline.NewRetryableError(errors.New("registry down")), true},
		{"wrapped retryable", fmt.Errorf("run: %w", pipeline.NewRetryableError(errors.New("timeout"))), true},
		{"unknown error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldRequeueJob(tt.err))
		})
	}
}
