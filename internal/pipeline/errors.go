package pipeline

import "errors"

var (
	// ErrJobNotFound is returned when a job id has no entry in the registry
	ErrJobNotFound = errors.New("job not found")

	// ErrJobExists is returned when creating a job whose id is already registered
	ErrJobExists = errors.New("job already exists")

	// ErrJobTerminal is returned when advancing a job that already finished
	ErrJobTerminal = errors.New("job is in a terminal state")

	// ErrMainURLRequired is returned when a submission has an empty main URL
	ErrMainURLRequired = errors.New("main URL is required")

	// ErrInvalidURL is returned when a submitted URL cannot be parsed or has
	// no http(s) scheme
	ErrInvalidURL = errors.New("invalid URL")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
