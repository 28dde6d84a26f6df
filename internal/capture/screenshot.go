package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sitescope/sitescope-be/internal/analysis"
)

// ScreenshotConfig holds screenshot service client settings
type ScreenshotConfig struct {
	Endpoint string
	Dir      string
	Timeout  time.Duration
}

// viewport is one device profile captured per URL.
type viewport struct {
	name   string
	width  int
	height int
}

var viewports = []viewport{
	{"desktop", 1920, 1080},
	{"tablet", 768, 1024},
	{"mobile", 375, 812},
}

// ScreenshotClient captures page screenshots through the headless-browser
// screenshot service and stores them under a per-job directory.
type ScreenshotClient struct {
	endpoint string
	dir      string
	client   *http.Client
	logger   *slog.Logger
}

// NewScreenshotClient creates a screenshot service client.
func NewScreenshotClient(cfg *ScreenshotConfig, logger *slog.Logger) *ScreenshotClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ScreenshotClient{
		endpoint: cfg.Endpoint,
		dir:      cfg.Dir,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Capture grabs desktop, tablet and mobile screenshots for the URL.
func (c *ScreenshotClient) Capture(ctx context.Context, url, jobID string) (*analysis.ScreenshotResult, error) {
	jobDir := filepath.Join(c.dir, jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	paths := make(map[string]string, len(viewports))
	for _, vp := range viewports {
		path, err := c.captureViewport(ctx, url, jobDir, vp)
		if err != nil {
			return nil, fmt.Errorf("failed to capture %s screenshot: %w", vp.name, err)
		}
		paths[vp.name] = path
	}

	c.logger.Debug("Screenshots captured",
		slog.String("url", url),
		slog.String("job_id", jobID),
	)

	return &analysis.ScreenshotResult{
		Success:     true,
		DesktopPath: paths["desktop"],
		TabletPath:  paths["tablet"],
		MobilePath:  paths["mobile"],
	}, nil
}

func (c *ScreenshotClient) captureViewport(ctx context.Context, url, jobDir string, vp viewport) (string, error) {
	body, err := json.Marshal(map[string]any{
		"url":    url,
		"width":  vp.width,
		"height": vp.height,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/screenshot", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("screenshot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("screenshot service returned status %d", resp.StatusCode)
	}

	path := filepath.Join(jobDir, vp.name+".png")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create screenshot file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}

	return path, nil
}
