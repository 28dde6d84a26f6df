package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitescope/sitescope-be/internal/analysis"
	"github.com/sitescope/sitescope-be/internal/pipeline"
	"github.com/sitescope/sitescope-be/internal/registry"
)

type fakeCapture struct {
	metricErrs     map[string]error
	screenshotErrs map[string]error
}

func (f *fakeCapture) CaptureMetrics(_ context.Context, url string) ([]analysis.MetricSample, error) {
	if err := f.metricErrs[url]; err != nil {
		return nil, err
	}
	metrics := map[string]float64{
		analysis.MetricFCP:              1200,
		analysis.MetricLCP:              2200,
		analysis.MetricPerformanceScore: 80,
	}
	return []analysis.MetricSample{
		{Tool: analysis.ToolLighthouse, URL: url, Metrics: metrics, Success: true},
		{Tool: analysis.ToolWebPageTest, URL: url, Metrics: map[string]float64{}, Success: true, Fallback: true},
	}, nil
}

func (f *fakeCapture) CaptureScreenshot(_ context.Context, url, jobID string) (*analysis.ScreenshotResult, error) {
	if err := f.screenshotErrs[url]; err != nil {
		return nil, err
	}
	return &analysis.ScreenshotResult{
		Success:     true,
		DesktopPath: "/tmp/" + jobID + "/desktop.png",
		TabletPath:  "/tmp/" + jobID + "/tablet.png",
		MobilePath:  "/tmp/" + jobID + "/mobile.png",
	}, nil
}

type fakeRecommender struct {
	err error
}

func (f *fakeRecommender) Generate(_ context.Context, _ string, _ analysis.AggregatedMetrics) ([]analysis.Recommendation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []analysis.Recommendation{
		{Priority: "medium", Category: "Optimization", Title: "Implement Caching Strategy"},
	}, nil
}

type fakeRenderer struct {
	err      error
	rendered *pipeline.Job
}

func (f *fakeRenderer) Render(_ context.Context, job *pipeline.Job) (pipeline.ReportInfo, error) {
	f.rendered = job
	if f.err != nil {
		return pipeline.ReportInfo{}, f.err
	}
	return pipeline.ReportInfo{
		Path:        "/tmp/reports/performance_report_" + job.ID + ".html",
		Size:        1024,
		GeneratedAt: time.Now(),
	}, nil
}

type fixture struct {
	machine  *pipeline.Machine
	registry *registry.MemoryRegistry
	capture  *fakeCapture
	renderer *fakeRenderer
}

func newFixture() *fixture {
	reg := registry.NewMemoryRegistry()
	capture := &fakeCapture{
		metricErrs:     map[string]error{},
		screenshotErrs: map[string]error{},
	}
	renderer := &fakeRenderer{}
	machine := pipeline.NewMachine(&pipeline.Config{
		Registry:    reg,
		Capture:     capture,
		Recommender: &fakeRecommender{},
		Renderer:    renderer,
		Logger:      slog.New(slog.DiscardHandler),
	})
	return &fixture{machine: machine, registry: reg, capture: capture, renderer: renderer}
}

func TestMachine_Submit(t *testing.T) {
	t.Run("valid submission is queued", func(t *testing.T) {
		f := newFixture()

		job, err := f.machine.Submit(context.Background(), "https://main.test", []string{"https://a.test"})
		require.NoError(t, err)

		assert.Equal(t, pipeline.StatusQueued, job.Status)
		assert.Equal(t, 0, job.Progress)

		stored, err := f.registry.Get(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.MainURL, stored.MainURL)
	})

	t.Run("empty main URL rejected without creating a job", func(t *testing.T) {
		f := newFixture()

		_, err := f.machine.Submit(context.Background(), "", nil)
		assert.ErrorIs(t, err, pipeline.ErrMainURLRequired)
	})

	t.Run("malformed URLs rejected", func(t *testing.T) {
		f := newFixture()

		_, err := f.machine.Submit(context.Background(), "ftp://main.test", nil)
		assert.ErrorIs(t, err, pipeline.ErrInvalidURL)

		_, err = f.machine.Submit(context.Background(), "https://main.test", []string{"not a url"})
		assert.ErrorIs(t, err, pipeline.ErrInvalidURL)
	})
}

func TestMachine_Run_HappyPath(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	job, err := f.machine.Submit(ctx, "https://main.test", []string{"https://a.test"})
	require.NoError(t, err)

	done, err := f.machine.Run(ctx, job.ID)
	require.NoError(t, err)

	assert.Equal(t, pipeline.StatusCompleted, done.Status)
	assert.Equal(t, 100, done.Progress)
	assert.Empty(t, done.Errors)
	assert.Len(t, done.LighthouseResults, 2)
	assert.Len(t, done.Screenshots, 2)
	require.NotNil(t, done.Aggregated)
	assert.Equal(t, "https://main.test", done.Aggregated.MainSite.URL)
	assert.NotEmpty(t, done.Recommendations)
	require.NotNil(t, done.Report)
	assert.Contains(t, done.Report.Path, done.ID)

	// Fallback samples are recorded but filtered from aggregation.
	assert.Len(t, done.WebPageTestResults, 2)
	assert.NotContains(t, done.Aggregated.MainSite.Tools, analysis.ToolWebPageTest)

	// The registry holds the final snapshot.
	stored, err := f.registry.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusCompleted, stored.Status)
}

func TestMachine_Advance_ProgressCheckpoints(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	job, err := f.machine.Submit(ctx, "https://main.test", nil)
	require.NoError(t, err)

	want := []int{5, 25, 70, 85, 100}
	var got []int
	for !job.Terminal() {
		require.NoError(t, f.machine.Advance(ctx, job))
		got = append(got, job.Progress)
	}

	assert.Equal(t, want, got)

	// Terminal jobs cannot advance further.
	assert.ErrorIs(t, f.machine.Advance(ctx, job), pipeline.ErrJobTerminal)
}

func TestMachine_Run_ScreenshotFailureIsRecoverable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.capture.screenshotErrs["https://b.test"] = errors.New("browser crashed")

	job, err := f.machine.Submit(ctx, "https://main.test", []string{"https://a.test", "https://b.test"})
	require.NoError(t, err)

	done, err := f.machine.Run(ctx, job.ID)
	require.NoError(t, err)

	assert.Equal(t, pipeline.StatusCompleted, done.Status)
	require.Len(t, done.Errors, 1)
	assert.Contains(t, done.Errors[0], "https://b.test")

	// The failed URL has no screenshot result; the others survive.
	assert.Len(t, done.Screenshots, 2)
	for _, shot := range done.Screenshots {
		assert.NotEqual(t, "https://b.test", shot.URL)
	}

	// The renderer saw the partial screenshot set.
	require.NotNil(t, f.renderer.rendered)
	assert.Len(t, f.renderer.rendered.Screenshots, 2)
}

func TestMachine_Run_PrimaryCaptureFailureIsRecoverable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.capture.metricErrs["https://a.test"] = errors.New("connection refused")

	job, err := f.machine.Submit(ctx, "https://main.test", []string{"https://a.test"})
	require.NoError(t, err)

	done, err := f.machine.Run(ctx, job.ID)
	require.NoError(t, err)

	assert.Equal(t, pipeline.StatusCompleted, done.Status)
	require.Len(t, done.Errors, 1)
	assert.Contains(t, done.Errors[0], "Lighthouse error for https://a.test")

	// The failed URL never enters the aggregation universe.
	require.NotNil(t, done.Aggregated)
	assert.Empty(t, done.Aggregated.Competitors)
}

func TestMachine_Run_RendererFailureIsFatal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.renderer.err = errors.New("template exploded")

	job, err := f.machine.Submit(ctx, "https://main.test", nil)
	require.NoError(t, err)

	done, err := f.machine.Run(ctx, job.ID)
	require.NoError(t, err)

	assert.Equal(t, pipeline.StatusFailed, done.Status)
	// Progress frozen at the last completed checkpoint.
	assert.Equal(t, 85, done.Progress)
	assert.Nil(t, done.Report)
	require.NotEmpty(t, done.Errors)
	assert.Contains(t, done.Errors[len(done.Errors)-1], "Report generation error")
}

func TestMachine_CancelTakesEffectAtStageBoundary(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	job, err := f.machine.Submit(ctx, "https://main.test", nil)
	require.NoError(t, err)

	// Run the first two stages, then request cancellation.
	require.NoError(t, f.machine.Advance(ctx, job))
	require.NoError(t, f.machine.Advance(ctx, job))
	require.NoError(t, f.registry.RequestCancel(ctx, job.ID))

	require.NoError(t, f.machine.Advance(ctx, job))

	assert.Equal(t, pipeline.StatusCanceled, job.Status)
	assert.Equal(t, 25, job.Progress)
	// Captured results from completed stages are kept.
	assert.NotEmpty(t, job.LighthouseResults)
	assert.Empty(t, job.Screenshots)
}

func TestMachine_Run_RecommenderFailureIsRecoverable(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	renderer := &fakeRenderer{}
	machine := pipeline.NewMachine(&pipeline.Config{
		Registry: reg,
		Capture: &fakeCapture{
			metricErrs:     map[string]error{},
			screenshotErrs: map[string]error{},
		},
		Recommender: &fakeRecommender{err: fmt.Errorf("backend down")},
		Renderer:    renderer,
		Logger:      slog.New(slog.DiscardHandler),
	})
	ctx := context.Background()

	job, err := machine.Submit(ctx, "https://main.test", nil)
	require.NoError(t, err)

	done, err := machine.Run(ctx, job.ID)
	require.NoError(t, err)

	assert.Equal(t, pipeline.StatusCompleted, done.Status)
	assert.Empty(t, done.Recommendations)
	require.NotEmpty(t, done.Errors)
	assert.Contains(t, done.Errors[0], "Analysis error")
}
