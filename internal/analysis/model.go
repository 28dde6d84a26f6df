package analysis

import "time"

// Tool identifies a measurement tool contributing metric samples.
type Tool string

const (
	ToolLighthouse  Tool = "lighthouse"
	ToolWebPageTest Tool = "webpagetest"
	ToolGTmetrix    Tool = "gtmetrix"
)

// Canonical metric names shared across tools. Tool adapters normalize their
// native names to these so cross-tool averages line up.
const (
	MetricFCP              = "fcp"
	MetricLCP              = "lcp"
	MetricCLS              = "cls"
	MetricTTFB             = "ttfb"
	MetricPerformanceScore = "performance_score"
	MetricLoadTime         = "load_time"
	MetricSpeedIndex       = "speed_index"
	MetricPageSize         = "page_size"
	MetricRequests         = "requests"
)

// MetricSample is one tool's measurement for one URL. Immutable once
// produced. An empty Metrics map means the tool produced no usable data.
type MetricSample struct {
	Tool    Tool               `json:"tool"`
	URL     string             `json:"url"`
	Metrics map[string]float64 `json:"metrics"`
	Success bool               `json:"success"`
	// Fallback marks placeholder data emitted when the tool's credentials
	// are absent. Fallback samples are excluded from aggregation.
	Fallback bool   `json:"fallback,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ScreenshotResult is the outcome payload of the screenshot stage for one
// URL. Paths point at captured artifacts on disk.
type ScreenshotResult struct {
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
	DesktopPath string `json:"desktop_path,omitempty"`
	TabletPath  string `json:"tablet_path,omitempty"`
	MobilePath  string `json:"mobile_path,omitempty"`
}

// StageResult attaches one stage's outcome to a URL. Exactly one of Sample
// and Screenshot is set depending on the producing stage. A missing
// StageResult for a (stage, URL) pair means that stage failed for that URL
// and is reflected in the job's errors list.
type StageResult struct {
	URL        string            `json:"url"`
	IsMain     bool              `json:"is_main"`
	CapturedAt time.Time         `json:"captured_at"`
	Sample     *MetricSample     `json:"sample,omitempty"`
	Screenshot *ScreenshotResult `json:"screenshot,omitempty"`
}

/// AggregatedSite holds the reduced metrics for one URL: the per-tool metric
// subsets that passed the inclusion filter, plus cross-tool averages
// computed only from contributing tools.
type AggregatedSite struct {
	URL      string                      `json:"url"`
	Tools    map[Tool]map[string]float64 `json:"tools"`
	Averages map[string]float64          `json:"averages"`
}

// SiteDelta compares one competitor's score against the main site's.
type SiteDelta struct {
	URL        string  `json:"url"`
	Score      float64 `json:"score"`
	Difference float64 `json:"difference"`
}

// ComparisonResult ranks the main site against its competitors. Rank is
// 1-based; 1 means no competitor scored strictly higher.
type ComparisonResult struct {
	Rank       int         `json:"rank"`
	TotalSites int         `json:"total_sites"`
	BetterThan []SiteDelta `json:"better_than"`
	WorseThan  []SiteDelta `json:"worse_than"`
	// ScoreMissing is set when the main site has no measured performance
	// average and 0 was substituted for comparison.
	ScoreMissing bool `json:"score_missing,omitempty"`
}

// Summary is the deterministic textual verdict derived from aggregated and
// ranked data.
type Summary struct {
	Overall    string `json:"overall"`
	Ranking    string `json:"ranking"`
	KeyMetrics string `json:"key_metrics"`
}

// Recommendation is a single optimization suggestion. The core only threads
// this structure; wording comes from the recommendation generator.
type Recommendation struct {
	Priority    string `json:"priority"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Impact      string `json:"impact,omitempty"`
}

// AggregatedMetrics is the full output of the analyze stage.
type AggregatedMetrics struct {
	MainSite    AggregatedSite   `json:"main_site"`
	Competitors []AggregatedSite `json:"competitors"`
	Comparisons ComparisonResult `json:"comparisons"`
	Summary     Summary          `json:"summary"`
}
