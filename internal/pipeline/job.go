package pipeline

import (
	"time"

	"github.com/sitescope/sitescope-be/internal/analysis"
)

// Job status constants
const (
	StatusQueued    = "QUEUED"
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
	StatusCanceled  = "CANCELED"
)

// Stage is one step of the fixed analysis pipeline.
type Stage string

const (
	StageInit       Stage = "init"
	StageCapture    Stage = "capture"
	StageScreenshot Stage = "screenshot"
	StageAnalyze    Stage = "analyze"
	StageReport     Stage = "report"
)

// stageOrder is the explicit transition table. Stages run strictly in this
// order with no branching and no retries between stages.
var stageOrder = []Stage{StageInit, StageCapture, StageScreenshot, StageAnalyze, StageReport}

// stageCheckpoints maps each stage to the progress value committed when the
// stage completes. A stage that fails entirely leaves progress at the last
// completed checkpoint.
var stageCheckpoints = map[Stage]int{
	StageInit:       5,
	StageCapture:    25,
	StageScreenshot: 70,
	StageAnalyze:    85,
	StageReport:     100,
}

// ReportInfo describes a rendered report artifact.
type ReportInfo struct {
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Job is the cumulative state of one analysis run. It is created on
// submission and mutated only by the state machine driving it; all other
// parties read snapshots through the registry.
type Job struct {
	ID             string   `json:"job_id"`
	MainURL        string   `json:"main_url"`
	CompetitorURLs []string `json:"competitor_urls"`

	Status   string `json:"status"`
	Stage    Stage  `json:"stage,omitempty"`
	Progress int    `json:"progress"`

	// Per-stage result collections. Stages commit by appending, never by
	// replacing, so a replayed stage cannot drop earlier data.
	LighthouseResults  []analysis.StageResult `json:"lighthouse_results"`
	WebPageTestResults []analysis.StageResult `json:"webpagetest_results"`
	GTmetrixResults    []analysis.StageResult `json:"gtmetrix_results"`
	Screenshots        []analysis.StageResult `json:"screenshots"`

	Aggregated      *analysis.AggregatedMetrics `json:"aggregated_metrics,omitempty"`
	Recommendations []analysis.Recommendation   `json:"recommendations,omitempty"`
	Report          *ReportInfo                 `json:"report,omitempty"`

	// Errors is append-only; per-URL failures land here without aborting
	// the job.
	Errors []string `json:"errors"`

	CancelRequested bool `json:"cancel_requested,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether the job reached a final state.
func (j *Job) Terminal() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// AllURLs returns the main URL followed by the competitors, in submission
// order. URLs may repeat.
func (j *Job) AllURLs() []string {
	urls := make([]string, 0, len(j.CompetitorURLs)+1)
	urls = append(urls, j.MainURL)
	urls = append(urls, j.CompetitorURLs...)
	return urls
}

// AppendError records a recoverable failure description.
func (j *Job) AppendError(msg string) {
	j.Errors = append(j.Errors, msg)
}

// Clone returns a deep copy of the job so registry readers get a consistent
// snapshot that later stage commits cannot mutate.
func (j *Job) Clone() *Job {
	c := *j
	c.CompetitorURLs = append([]string(nil), j.CompetitorURLs...)
	c.LighthouseResults = cloneResults(j.LighthouseResults)
	c.WebPageTestResults = cloneResults(j.WebPageTestResults)
	c.GTmetrixResults = cloneResults(j.GTmetrixResults)
	c.Screenshots = cloneResults(j.Screenshots)
	c.Errors = append([]string(nil), j.Errors...)
	c.Recommendations = append([]analysis.Recommendation(nil), j.Recommendations...)
	if j.Report != nil {
		r := *j.Report
		c.Report = &r
	}
	if j.Aggregated != nil {
		a := *j.Aggregated
		c.Aggregated = &a
	}
	return &c
}

func cloneResults(results []analysis.StageResult) []analysis.StageResult {
	if results == nil {
		return nil
	}
	out := make([]analysis.StageResult, len(results))
	copy(out, results)
	return out
}
