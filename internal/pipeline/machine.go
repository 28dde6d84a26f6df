package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sitescope/sitescope-be/internal/analysis"
)

// Config holds state machine dependencies
type Config struct {
	Registry         Registry
	Capture          CaptureProvider
	Recommender      RecommendationGenerator
	Renderer         ReportRenderer
	Logger           *slog.Logger
	RecommendTimeout time.Duration
}

// Machine drives one job at a time through the fixed stage sequence. A
// single Machine may run many jobs concurrently; each job is mutated only by
// the goroutine driving it.
type Machine struct {
	registry         Registry
	capture          CaptureProvider
	recommender      RecommendationGenerator
	renderer         ReportRenderer
	logger           *slog.Logger
	recommendTimeout time.Duration
}

// NewMachine creates a new state machine instance
func NewMachine(cfg *Config) *Machine {
	timeout := cfg.RecommendTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Machine{
		registry:         cfg.Registry,
		capture:          cfg.Capture,
		recommender:      cfg.Recommender,
		renderer:         cfg.Renderer,
		logger:           cfg.Logger,
		recommendTimeout: timeout,
	}
}

// Submit validates the request, creates the job record in the registry and
// returns it in QUEUED state. Malformed URLs are rejected here; no job is
// created for invalid input.
func (m *Machine) Submit(ctx context.Context, mainURL string, competitorURLs []string) (*Job, error) {
	if mainURL == "" {
		return nil, ErrMainURLRequired
	}
	if err := validateURL(mainURL); err != nil {
		return nil, err
	}
	for _, u := range competitorURLs {
		if err := validateURL(u); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	job := &Job{
		ID:             uuid.New().String(),
		MainURL:        mainURL,
		CompetitorURLs: append([]string(nil), competitorURLs...),
		Status:         StatusQueued,
		Progress:       0,
		Errors:         []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := m.registry.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to register job: %w", err)
	}

	m.logger.Info("Job submitted",
		slog.String("job_id", job.ID),
		slog.String("main_url", mainURL),
		slog.Int("competitors", len(competitorURLs)),
	)

	return job, nil
}

// Advance runs exactly the next stage of the job and commits the updated
// state. Per-URL failures inside a stage are appended to the job's errors
// and do not abort it; a stage-fatal failure transitions the job to FAILED
// with progress frozen at the last completed checkpoint. The returned error
// reports registry trouble only, never stage outcomes.
func (m *Machine) Advance(ctx context.Context, job *Job) error {
	if job.Terminal() {
		return ErrJobTerminal
	}

	// Cancellation takes effect at stage boundaries: a stage already started
	// runs to completion first.
	if canceled, err := m.cancelRequested(ctx, job); err == nil && canceled {
		job.Status = StatusCanceled
		m.logger.Info("Job canceled", slog.String("job_id", job.ID), slog.String("stage", string(job.Stage)))
		return m.commit(ctx, job)
	}

	stage := nextStage(job)
	job.Status = StatusRunning
	job.Stage = stage

	m.logger.Info("Running stage",
		slog.String("job_id", job.ID),
		slog.String("stage", string(stage)),
	)

	switch stage {
	case StageInit:
		// Nothing to prepare beyond marking the run started.
	case StageCapture:
		m.runCapture(ctx, job)
	case StageScreenshot:
		m.runScreenshot(ctx, job)
	case StageAnalyze:
		m.runAnalyze(ctx, job)
	case StageReport:
		m.runReport(ctx, job)
	}

	if job.Status != StatusFailed {
		job.Progress = stageCheckpoints[stage]
		if stage == StageReport {
			job.Status = StatusCompleted
		}
	}

	return m.commit(ctx, job)
}

// Run drives the job from its current state to a terminal one.
func (m *Machine) Run(ctx context.Context, jobID string) (*Job, error) {
	job, err := m.registry.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	for !job.Terminal() {
		if err := m.Advance(ctx, job); err != nil {
			return job, err
		}
	}

	m.logger.Info("Job finished",
		slog.String("job_id", job.ID),
		slog.String("status", job.Status),
		slog.Int("progress", job.Progress),
		slog.Int("errors", len(job.Errors)),
	)

	return job, nil
}

func (m *Machine) cancelRequested(ctx context.Context, job *Job) (bool, error) {
	if ctx.Err() != nil {
		return true, nil
	}
	fresh, err := m.registry.Get(ctx, job.ID)
	if err != nil {
		return false, err
	}
	return fresh.CancelRequested, nil
}

// runCapture fans metric capture out over all URLs. Results are collected
// per URL in isolation and appended in submission order, so concurrent work
// for one URL can never leak into another's reduction.
func (m *Machine) runCapture(ctx context.Context, job *Job) {
	urls := job.AllURLs()
	samples := make([][]analysis.MetricSample, len(urls))
	failures := make([]string, len(urls))

	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			s, err := m.capture.CaptureMetrics(ctx, u)
			if err != nil {
				failures[i] = fmt.Sprintf("Lighthouse error for %s: %v", u, err)
				return
			}
			samples[i] = s
		}(i, u)
	}
	wg.Wait()

	now := time.Now()
	for i, u := range urls {
		if failures[i] != "" {
			job.AppendError(failures[i])
			m.logger.Warn("Metric capture failed",
				slog.String("job_id", job.ID),
				slog.String("url", u),
			)
			continue
		}
		for _, sample := range samples[i] {
			sample := sample
			result := analysis.StageResult{
				URL:        u,
				IsMain:     u == job.MainURL,
				CapturedAt: now,
				Sample:     &sample,
			}
			switch sample.Tool {
			case analysis.ToolLighthouse:
				job.LighthouseResults = append(job.LighthouseResults, result)
			case analysis.ToolWebPageTest:
				job.WebPageTestResults = append(job.WebPageTestResults, result)
			case analysis.ToolGTmetrix:
				job.GTmetrixResults = append(job.GTmetrixResults, result)
			}
		}
	}
}

// runScreenshot fans screenshot capture out over all URLs; a failed URL gets
// an errors entry and no StageResult.
func (m *Machine) runScreenshot(ctx context.Context, job *Job) {
	urls := job.AllURLs()
	shots := make([]*analysis.ScreenshotResult, len(urls))
	failures := make([]string, len(urls))

	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			shot, err := m.capture.CaptureScreenshot(ctx, u, job.ID)
			if err != nil {
				failures[i] = fmt.Sprintf("Screenshot error for %s: %v", u, err)
				return
			}
			shots[i] = shot
		}(i, u)
	}
	wg.Wait()

	now := time.Now()
	for i, u := range urls {
		if failures[i] != "" {
			job.AppendError(failures[i])
			continue
		}
		job.Screenshots = append(job.Screenshots, analysis.StageResult{
			URL:        u,
			IsMain:     u == job.MainURL,
			CapturedAt: now,
			Screenshot: shots[i],
		})
	}
}

// runAnalyze reduces the captured samples through the pure
// aggregate -> compare -> summarize chain, then asks the recommendation
// generator for suggestions. Generator failure is recoverable: the verdict
// stands, the failure is recorded.
func (m *Machine) runAnalyze(ctx context.Context, job *Job) {
	agg := analysis.Aggregate(job.LighthouseResults, job.WebPageTestResults, job.GTmetrixResults)
	agg.Comparisons = analysis.Compare(agg.MainSite, agg.Competitors)
	agg.Summary = analysis.Summarize(agg.MainSite, agg.Comparisons)
	job.Aggregated = &agg

	rctx, cancel := context.WithTimeout(ctx, m.recommendTimeout)
	defer cancel()

	recs, err := m.recommender.Generate(rctx, job.MainURL, agg)
	if err != nil {
		job.AppendError(fmt.Sprintf("Analysis error: %v", err))
		m.logger.Warn("Recommendation generation failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	job.Recommendations = recs
}

// runReport renders the cumulative state. Rendering failure is stage-fatal:
// no usable output can exist, so the job fails with progress frozen.
func (m *Machine) runReport(ctx context.Context, job *Job) {
	info, err := m.renderer.Render(ctx, job.Clone())
	if err != nil {
		job.AppendError(fmt.Sprintf("Report generation error: %v", err))
		job.Status = StatusFailed
		m.logger.Error("Report rendering failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	job.Report = &info
}

func (m *Machine) commit(ctx context.Context, job *Job) error {
	job.UpdatedAt = time.Now()
	if err := m.registry.Update(context.WithoutCancel(ctx), job); err != nil {
		return NewRetryableError(fmt.Errorf("failed to commit job state: %w", err))
	}
	return nil
}

// nextStage consults the transition table for the stage following the job's
// last committed one. A queued job starts at the first stage.
func nextStage(job *Job) Stage {
	if job.Status == StatusQueued || job.Stage == "" {
		return stageOrder[0]
	}
	for i, s := range stageOrder[:len(stageOrder)-1] {
		if s == job.Stage {
			return stageOrder[i+1]
		}
	}
	return stageOrder[len(stageOrder)-1]
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return nil
}
