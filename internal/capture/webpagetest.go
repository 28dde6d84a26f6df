package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sitescope/sitescope-be/internal/analysis"
)

// WebPageTestConfig holds WebPageTest API client settings
type WebPageTestConfig struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	MaxWait      time.Duration
}

// WebPageTestClient runs tests through the WebPageTest API. Without an API
// key it degrades to a flagged placeholder sample that aggregation excludes.
type WebPageTestClient struct {
	apiKey       string
	baseURL      string
	pollInterval time.Duration
	maxWait      time.Duration
	client       *http.Client
	breaker      *gobreaker.CircuitBreaker
	logger       *slog.Logger
}

// NewWebPageTestClient creates a WebPageTest API client.
func NewWebPageTestClient(cfg *WebPageTestConfig, logger *slog.Logger) *WebPageTestClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://www.webpagetest.org"
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = 180 * time.Second
	}

	return &WebPageTestClient{
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		pollInterval: pollInterval,
		maxWait:      maxWait,
		client:       &http.Client{Timeout: 30 * time.Second},
		breaker:      newAPIBreaker("webpagetest"),
		logger:       logger,
	}
}

// Tool identifies the collector.
func (c *WebPageTestClient) Tool() analysis.Tool {
	return analysis.ToolWebPageTest
}

// Collect submits a test and polls for its result.
func (c *WebPageTestClient) Collect(ctx context.Context, pageURL string) (analysis.MetricSample, error) {
	if c.apiKey == "" {
		c.logger.Warn("WebPageTest API key not configured, using fallback mode",
			slog.String("url", pageURL),
		)
		return fallbackSample(analysis.ToolWebPageTest, pageURL), nil
	}

	testID, err := c.submitTest(ctx, pageURL)
	if err != nil {
		return analysis.MetricSample{}, fmt.Errorf("webpagetest submission failed: %w", err)
	}

	metrics, err := c.waitForResults(ctx, testID)
	if err != nil {
		return analysis.MetricSample{}, fmt.Errorf("webpagetest test %s failed: %w", testID, err)
	}

	return analysis.MetricSample{
		Tool:    analysis.ToolWebPageTest,
		URL:     pageURL,
		Metrics: metrics,
		Success: true,
	}, nil
}

type wptSubmitResponse struct {
	StatusCode int    `json:"statusCode"`
	StatusText string `json:"statusText"`
	Data       struct {
		TestID string `json:"testId"`
	} `json:"data"`
}

func (c *WebPageTestClient) submitTest(ctx context.Context, pageURL string) (string, error) {
	params := url.Values{}
	params.Set("url", pageURL)
	params.Set("k", c.apiKey)
	params.Set("f", "json")
	params.Set("location", "Dulles:Chrome")
	params.Set("runs", "1")
	params.Set("fvonly", "1")
	params.Set("lighthouse", "1")

	var parsed wptSubmitResponse
	if err := c.getJSON(ctx, c.baseURL+"/runtest.php?"+params.Encode(), &parsed); err != nil {
		return "", err
	}
	if parsed.StatusCode != http.StatusOK {
		return "", fmt.Errorf("test submission failed: %s", parsed.StatusText)
	}
	return parsed.Data.TestID, nil
}

type wptResultResponse struct {
	StatusCode int    `json:"statusCode"`
	StatusText string `json:"statusText"`
	Data       struct {
		Runs map[string]struct {
			FirstView map[string]json.RawMessage `json:"firstView"`
		} `json:"runs"`
	} `json:"data"`
}

func (c *WebPageTestClient) waitForResults(ctx context.Context, testID string) (map[string]float64, error) {
	params := url.Values{}
	params.Set("test", testID)
	params.Set("k", c.apiKey)
	resultURL := c.baseURL + "/jsonResult.php?" + params.Encode()

	deadline := time.Now().Add(c.maxWait)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		var parsed wptResultResponse
		if err := c.getJSON(ctx, resultURL, &parsed); err != nil {
			return nil, err
		}

		switch {
		case parsed.StatusCode == http.StatusOK:
			return parseWPTMetrics(parsed), nil
		case parsed.StatusCode >= 400:
			return nil, fmt.Errorf("test failed: %s", parsed.StatusText)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("test timeout after %s", c.maxWait)
		}
	}
}

func parseWPTMetrics(parsed wptResultResponse) map[string]float64 {
	firstView := parsed.Data.Runs["1"].FirstView

	num := func(key string) float64 {
		raw, ok := firstView[key]
		if !ok {
			return 0
		}
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return 0
		}
		return v
	}

	return map[string]float64{
		analysis.MetricLoadTime:   num("loadTime"),
		analysis.MetricTTFB:       num("TTFB"),
		analysis.MetricSpeedIndex: num("SpeedIndex"),
		analysis.MetricFCP:        num("firstContentfulPaint"),
		analysis.MetricRequests:   num("requests"),
	}
}

func (c *WebPageTestClient) getJSON(ctx context.Context, rawURL string, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		body := json.NewDecoder(resp.Body)
		if err := body.Decode(out); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return nil, nil
	})
	return err
}

// fallbackSample is the placeholder a credential-less tool emits. Aggregation
// excludes it from both the tool subsets and the averages.
func fallbackSample(tool analysis.Tool, pageURL string) analysis.MetricSample {
	return analysis.MetricSample{
		Tool:     tool,
		URL:      pageURL,
		Metrics:  map[string]float64{},
		Success:  true,
		Fallback: true,
	}
}

// newAPIBreaker builds the circuit breaker shared by the measurement API
// clients: trips after 60% failures over at least 3 requests.
func newAPIBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
	})
}
