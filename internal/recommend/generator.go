// Package recommend produces optimization recommendations from aggregated
// metrics. A generative backend is optional: without one, or whenever the
// backend times out or returns something unparseable, the deterministic rule
// set below is used instead.
package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/sitescope/sitescope-be/internal/analysis"
)

// Config holds recommendation generator settings
type Config struct {
	// Endpoint is an OpenAI-compatible chat completions base URL. Empty
	// means rule-based only.
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// Generator generates recommendations, preferring the configured generative
// backend and falling back to fixed rules.
type Generator struct {
	endpoint string
	apiKey   string
	model    string
	timeout  time.Duration
	client   *http.Client
	logger   *slog.Logger
}

// NewGenerator creates a recommendation generator.
func NewGenerator(cfg *Config, logger *slog.Logger) *Generator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Generator{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Generate returns recommendations for the main site. It never fails: any
// backend trouble degrades to the rule-based list.
func (g *Generator) Generate(ctx context.Context, mainURL string, metrics analysis.AggregatedMetrics) ([]analysis.Recommendation, error) {
	if g.endpoint == "" {
		return RuleBased(metrics), nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	recs, err := g.generateFromBackend(ctx, mainURL, metrics)
	if err != nil {
		g.logger.Warn("Generative backend failed, falling back to rules",
			slog.String("url", mainURL),
			slog.String("error", err.Error()),
		)
		return RuleBased(metrics), nil
	}
	return recs, nil
}

// RuleBased is the deterministic fallback rule set: slow FCP and LCP each
// trigger a high-priority recommendation, and a caching recommendation is
// always present.
func RuleBased(metrics analysis.AggregatedMetrics) []analysis.Recommendation {
	var recs []analysis.Recommendation
	lighthouse := metrics.MainSite.Tools[analysis.ToolLighthouse]

	if lighthouse[analysis.MetricFCP] > 3000 {
		recs = append(recs, analysis.Recommendation{
			Priority:    "high",
			Category:    "Performance",
			Title:       "Improve First Contentful Paint",
			Description: "Reduce server response time, eliminate render-blocking resources, and optimize critical rendering path.",
			Impact:      "Users will see content faster, improving perceived performance",
		})
	}

	if lighthouse[analysis.MetricLCP] > 4000 {
		recs = append(recs, analysis.Recommendation{
			Priority:    "high",
			Category:    "Performance",
			Title:       "Optimize Largest Contentful Paint",
			Description: "Optimize images, use CDN, implement lazy loading, and prioritize above-the-fold content.",
			Impact:      "Faster visual completion and better user experience",
		})
	}

	recs = append(recs, analysis.Recommendation{
		Priority:    "medium",
		Category:    "Optimization",
		Title:       "Implement Caching Strategy",
		Description: "Use browser caching, CDN caching, and server-side caching to reduce load times.",
		Impact:      "Faster repeat visits and reduced server load",
	})

	return recs
}

const systemPrompt = "You are a senior web performance consultant. Provide specific, " +
	"technical, actionable recommendations focused on Core Web Vitals (FCP, LCP, CLS, TTFB). " +
	"Respond with a JSON array of objects with fields priority (high|medium|low), category, " +
	"title, description and impact."

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

var jsonArrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

func (g *Generator) generateFromBackend(ctx context.Context, mainURL string, metrics analysis.AggregatedMetrics) ([]analysis.Recommendation, error) {
	promptContext, err := json.Marshal(map[string]any{
		"url":         mainURL,
		"metrics":     metrics.MainSite,
		"comparisons": metrics.Comparisons,
		"summary":     metrics.Summary,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode context: %w", err)
	}

	payload, err := json.Marshal(chatRequest{
		Model:       g.model,
		Temperature: 0.3,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Analyze these performance metrics and provide 8-12 prioritized recommendations:\n" + string(promptContext)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("backend returned no choices")
	}

	raw := jsonArrayPattern.FindString(parsed.Choices[0].Message.Content)
	if raw == "" {
		return nil, fmt.Errorf("no JSON array in backend output")
	}

	var recs []analysis.Recommendation
	if err := json.Unmarshal([]byte(raw), &recs); err != nil {
		return nil, fmt.Errorf("malformed recommendations: %w", err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("backend returned empty recommendations")
	}
	return recs, nil
}
