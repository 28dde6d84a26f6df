package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sitescope/sitescope-be/internal/analysis"
)

// LighthouseConfig holds lighthouse collector settings
type LighthouseConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// LighthouseCollector talks to the headless-browser lighthouse service that
// runs the actual page load. It is the primary collector: its results decide
// which URLs exist downstream.
type LighthouseCollector struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewLighthouseCollector creates a lighthouse service client.
func NewLighthouseCollector(cfg *LighthouseConfig, logger *slog.Logger) *LighthouseCollector {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &LighthouseCollector{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Tool identifies the collector.
func (c *LighthouseCollector) Tool() analysis.Tool {
	return analysis.ToolLighthouse
}

type lighthouseResponse struct {
	Success bool               `json:"success"`
	Error   string             `json:"error,omitempty"`
	Metrics map[string]float64 `json:"metrics"`
}

// Collect runs a lighthouse analysis for the URL and returns the sample with
// derived scores merged in.
func (c *LighthouseCollector) Collect(ctx context.Context, url string) (analysis.MetricSample, error) {
	c.logger.Debug("Running lighthouse analysis", slog.String("url", url))

	body, err := json.Marshal(map[string]string{"url": url})
	if err != nil {
		return analysis.MetricSample{}, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/analyze", bytes.NewReader(body))
	if err != nil {
		return analysis.MetricSample{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return analysis.MetricSample{}, fmt.Errorf("lighthouse request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return analysis.MetricSample{}, fmt.Errorf("lighthouse service returned status %d", resp.StatusCode)
	}

	var parsed lighthouseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return analysis.MetricSample{}, fmt.Errorf("failed to decode lighthouse response: %w", err)
	}
	if !parsed.Success {
		return analysis.MetricSample{}, fmt.Errorf("lighthouse analysis failed: %s", parsed.Error)
	}

	metrics := make(map[string]float64, len(parsed.Metrics)+5)
	for name, value := range parsed.Metrics {
		metrics[name] = value
	}
	for name, value := range analysis.LighthouseScores(metrics) {
		metrics[name] = value
	}

	return analysis.MetricSample{
		Tool:    analysis.ToolLighthouse,
		URL:     url,
		Metrics: metrics,
		Success: true,
	}, nil
}
