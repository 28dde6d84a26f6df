package report

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitescope/sitescope-be/internal/analysis"
	"github.com/sitescope/sitescope-be/internal/pipeline"
)

func completedJob() *pipeline.Job {
	return &pipeline.Job{
		ID:             "11111111-2222-3333-4444-555555555555",
		MainURL:        "https://main.test",
		CompetitorURLs: []string{"https://comp.test"},
		Status:         pipeline.StatusRunning,
		Progress:       85,
		Aggregated: &analysis.AggregatedMetrics{
			MainSite: analysis.AggregatedSite{
				URL:      "https://main.test",
				Averages: map[string]float64{analysis.MetricFCP: 1800, analysis.MetricPerformanceScore: 75},
			},
			Competitors: []analysis.AggregatedSite{
				{URL: "https://comp.test", Averages: map[string]float64{analysis.MetricPerformanceScore: 80}},
			},
			Comparisons: analysis.ComparisonResult{
				Rank:       2,
				TotalSites: 2,
				WorseThan:  []analysis.SiteDelta{{URL: "https://comp.test", Score: 80, Difference: 5}},
			},
			Summary: analysis.Summary{
				Overall:    "Good - Your site performs well with room for optimization.",
				Ranking:    "Ranked 2 out of 2 sites",
				KeyMetrics: "FCP: 1800ms (needs improvement)",
			},
		},
		Recommendations: []analysis.Recommendation{
			{Priority: "high", Category: "Performance", Title: "Improve First Contentful Paint", Description: "Reduce server response time.", Impact: "Faster paint"},
		},
		Screenshots: []analysis.StageResult{
			{
				URL: "https://main.test",
				Screenshot: &analysis.ScreenshotResult{
					Success:     true,
					DesktopPath: "/tmp/shots/desktop.png",
				},
			},
		},
		Errors:    []string{"GTmetrix error for https://comp.test: credentials missing"},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestRenderer_Render(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer(&Config{Dir: dir}, slog.New(slog.DiscardHandler))

	job := completedJob()
	info, err := r.Render(context.Background(), job)
	require.NoError(t, err)

	wantPath := filepath.Join(dir, "performance_report_"+job.ID+".html")
	assert.Equal(t, wantPath, info.Path)
	assert.False(t, info.GeneratedAt.IsZero())

	content, err := os.ReadFile(wantPath)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), info.Size)

	html := string(content)
	assert.Contains(t, html, "https://main.test")
	assert.Contains(t, html, "Ranked 2 out of 2 sites")
	assert.Contains(t, html, "Improve First Contentful Paint")
	assert.Contains(t, html, "/tmp/shots/desktop.png")
	assert.Contains(t, html, "GTmetrix error for https://comp.test")
}

func TestRenderer_Render_SparseJob(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer(&Config{Dir: dir}, slog.New(slog.DiscardHandler))

	// A job with no aggregation, screenshots or recommendations still renders.
	job := &pipeline.Job{ID: "sparse-job", MainURL: "https://main.test"}

	info, err := r.Render(context.Background(), job)
	require.NoError(t, err)
	assert.Positive(t, info.Size)

	content, err := os.ReadFile(info.Path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "Competitor Comparison")
	assert.NotContains(t, string(content), "Partial Failures")
}

func TestRenderer_Render_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")
	r := NewRenderer(&Config{Dir: dir}, slog.New(slog.DiscardHandler))

	_, err := r.Render(context.Background(), completedJob())
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
