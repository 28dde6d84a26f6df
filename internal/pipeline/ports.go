package pipeline

import (
	"context"

	"github.com/sitescope/sitescope-be/internal/analysis"
)

// CaptureProvider runs browser-driven measurement for one URL. It must not
// panic on network failure: a per-tool failure is encoded as an unsuccessful
// MetricSample, and a returned error means the URL could not be measured at
// all (the primary collector failed).
type CaptureProvider interface {
	CaptureMetrics(ctx context.Context, url string) ([]analysis.MetricSample, error)
	CaptureScreenshot(ctx context.Context, url, jobID string) (*analysis.ScreenshotResult, error)
}

// RecommendationGenerator produces optimization recommendations from
// aggregated data. Implementations degrade to a deterministic rule-based
// list rather than blocking indefinitely; the state machine bounds the call
// with a timeout regardless.
type RecommendationGenerator interface {
	Generate(ctx context.Context, mainURL string, metrics analysis.AggregatedMetrics) ([]analysis.Recommendation, error)
}

// ReportRenderer renders the full cumulative job state into a downloadable
// artifact. The job argument is a snapshot and must be treated read-only.
type ReportRenderer interface {
	Render(ctx context.Context, job *Job) (ReportInfo, error)
}

// Registry tracks job lifecycle. Implementations must give readers a
// consistent snapshot while the single writer (the state machine driving the
// job) commits stage results.
type Registry interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, jobID string) (*Job, error)
	Update(ctx context.Context, job *Job) error
	Delete(ctx context.Context, jobID string) error

	// RequestCancel marks a job for cancellation; the state machine honors
	// it at the next stage boundary.
	RequestCancel(ctx context.Context, jobID string) error
}
