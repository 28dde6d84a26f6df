// Package capture adapts external measurement services behind the narrow
// provider port the pipeline consumes. Adapters never panic on network
// failure: tool trouble becomes an unsuccessful sample or a returned error.
package capture

import (
	"context"
	"log/slog"

	"github.com/sitescope/sitescope-be/internal/analysis"
)

// Collector measures one URL with one tool.
type Collector interface {
	Tool() analysis.Tool
	Collect(ctx context.Context, url string) (analysis.MetricSample, error)
}

// Screenshotter captures page screenshots for one URL.
type Screenshotter interface {
	Capture(ctx context.Context, url, jobID string) (*analysis.ScreenshotResult, error)
}

// Provider composes the configured collectors into the pipeline's capture
// port. The primary collector defines the URL universe: its failure fails
// the whole URL. Secondary collectors fail soft, producing unsuccessful
// samples that aggregation filters out.
type Provider struct {
	primary       Collector
	secondary     []Collector
	screenshotter Screenshotter
	logger        *slog.Logger
}

// NewProvider creates a capture provider from a primary collector, a
// screenshotter and any number of secondary collectors.
func NewProvider(primary Collector, screenshotter Screenshotter, logger *slog.Logger, secondary ...Collector) *Provider {
	return &Provider{
		primary:       primary,
		secondary:     secondary,
		screenshotter: screenshotter,
		logger:        logger,
	}
}

// CaptureMetrics measures the URL with every configured tool.
func (p *Provider) CaptureMetrics(ctx context.Context, url string) ([]analysis.MetricSample, error) {
	sample, err := p.primary.Collect(ctx, url)
	if err != nil {
		return nil, err
	}

	samples := []analysis.MetricSample{sample}
	for _, c := range p.secondary {
		s, err := c.Collect(ctx, url)
		if err != nil {
			p.logger.Warn("Secondary collector failed",
				slog.String("tool", string(c.Tool())),
				slog.String("url", url),
				slog.String("error", err.Error()),
			)
			s = analysis.MetricSample{
				Tool:    c.Tool(),
				URL:     url,
				Metrics: map[string]float64{},
				Success: false,
				Error:   err.Error(),
			}
		}
		samples = append(samples, s)
	}

	return samples, nil
}

// CaptureScreenshot captures screenshots for the URL under the job's
// artifact directory.
func (p *Provider) CaptureScreenshot(ctx context.Context, url, jobID string) (*analysis.ScreenshotResult, error) {
	return p.screenshotter.Capture(ctx, url, jobID)
}
