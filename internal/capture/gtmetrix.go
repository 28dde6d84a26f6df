package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sitescope/sitescope-be/internal/analysis"
)

// GTmetrixConfig holds GTmetrix API v2 client settings
type GTmetrixConfig struct {
	APIKey       string
	APIUsername  string
	BaseURL      string
	PollInterval time.Duration
	MaxWait      time.Duration
}

// GTmetrixClient runs tests through the GTmetrix API v2. Without credentials
// it degrades to a flagged placeholder sample that aggregation excludes.
type GTmetrixClient struct {
	apiKey       string
	apiUsername  string
	baseURL      string
	pollInterval time.Duration
	maxWait      time.Duration
	client       *http.Client
	breaker      *gobreaker.CircuitBreaker
	logger       *slog.Logger
}

// NewGTmetrixClient creates a GTmetrix API client.
func NewGTmetrixClient(cfg *GTmetrixConfig, logger *slog.Logger) *GTmetrixClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://gtmetrix.com/api/2.0"
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = 180 * time.Second
	}

	return &GTmetrixClient{
		apiKey:       cfg.APIKey,
		apiUsername:  cfg.APIUsername,
		baseURL:      baseURL,
		pollInterval: pollInterval,
		maxWait:      maxWait,
		client:       &http.Client{Timeout: 30 * time.Second},
		breaker:      newAPIBreaker("gtmetrix"),
		logger:       logger,
	}
}

// Tool identifies the collector.
func (c *GTmetrixClient) Tool() analysis.Tool {
	return analysis.ToolGTmetrix
}

// Collect submits a test and polls its state until completed.
func (c *GTmetrixClient) Collect(ctx context.Context, pageURL string) (analysis.MetricSample, error) {
	if c.apiKey == "" || c.apiUsername == "" {
		c.logger.Warn("GTmetrix API credentials not configured, using fallback mode",
			slog.String("url", pageURL),
		)
		return fallbackSample(analysis.ToolGTmetrix, pageURL), nil
	}

	testID, err := c.submitTest(ctx, pageURL)
	if err != nil {
		return analysis.MetricSample{}, fmt.Errorf("gtmetrix submission failed: %w", err)
	}

	metrics, err := c.waitForResults(ctx, testID)
	if err != nil {
		return analysis.MetricSample{}, fmt.Errorf("gtmetrix test %s failed: %w", testID, err)
	}

	return analysis.MetricSample{
		Tool:    analysis.ToolGTmetrix,
		URL:     pageURL,
		Metrics: metrics,
		Success: true,
	}, nil
}

type gtmetrixTestResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			State                  string  `json:"state"`
			Error                  string  `json:"error"`
			PerformanceScore       float64 `json:"performance_score"`
			FullyLoadedTime        float64 `json:"fully_loaded_time"`
			PageBytes              float64 `json:"page_bytes"`
			PageElements           float64 `json:"page_elements"`
			SpeedIndex             float64 `json:"speed_index"`
			TimeToFirstByte        float64 `json:"time_to_first_byte"`
			FirstContentfulPaint   float64 `json:"first_contentful_paint"`
			LargestContentfulPaint float64 `json:"largest_contentful_paint"`
		} `json:"attributes"`
	} `json:"data"`
}

func (c *GTmetrixClient) submitTest(ctx context.Context, pageURL string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"url":      pageURL,
		"location": "default",
		"browser":  "chrome",
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	var parsed gtmetrixTestResponse
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/tests", payload, &parsed); err != nil {
		return "", err
	}
	return parsed.Data.ID, nil
}

func (c *GTmetrixClient) waitForResults(ctx context.Context, testID string) (map[string]float64, error) {
	deadline := time.Now().Add(c.maxWait)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		var parsed gtmetrixTestResponse
		if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/tests/"+testID, nil, &parsed); err != nil {
			return nil, err
		}

		attrs := parsed.Data.Attributes
		switch attrs.State {
		case "completed":
			return map[string]float64{
				analysis.MetricPerformanceScore: attrs.PerformanceScore,
				analysis.MetricLoadTime:         attrs.FullyLoadedTime,
				analysis.MetricPageSize:         attrs.PageBytes,
				analysis.MetricRequests:         attrs.PageElements,
				analysis.MetricSpeedIndex:       attrs.SpeedIndex,
				analysis.MetricTTFB:             attrs.TimeToFirstByte,
				analysis.MetricFCP:              attrs.FirstContentfulPaint,
				analysis.MetricLCP:              attrs.LargestContentfulPaint,
			}, nil
		case "error":
			return nil, fmt.Errorf("test failed: %s", attrs.Error)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("test timeout after %s", c.maxWait)
		}
	}
}

func (c *GTmetrixClient) doJSON(ctx context.Context, method, rawURL string, payload []byte, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		var body *bytes.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		} else {
			body = bytes.NewReader(nil)
		}

		req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(c.apiUsername, c.apiKey)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return nil, nil
	})
	return err
}
