// Package report renders the cumulative job state into a downloadable HTML
// document.
package report

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sitescope/sitescope-be/internal/pipeline"
)

// Config holds report renderer settings
type Config struct {
	Dir string
}

// Renderer writes one HTML report per job under the configured directory.
type Renderer struct {
	dir    string
	tmpl   *template.Template
	logger *slog.Logger
}

// NewRenderer creates a report renderer.
func NewRenderer(cfg *Config, logger *slog.Logger) *Renderer {
	return &Renderer{
		dir:    cfg.Dir,
		tmpl:   template.Must(template.New("report").Parse(reportTemplate)),
		logger: logger,
	}
}

type reportData struct {
	Job         *pipeline.Job
	GeneratedAt time.Time
}

// Render writes the report and returns its location. The job snapshot is
// read-only.
func (r *Renderer) Render(_ context.Context, job *pipeline.Job) (pipeline.ReportInfo, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return pipeline.ReportInfo{}, fmt.Errorf("failed to create reports directory: %w", err)
	}

	path := filepath.Join(r.dir, fmt.Sprintf("performance_report_%s.html", job.ID))
	f, err := os.Create(path)
	if err != nil {
		return pipeline.ReportInfo{}, fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	data := reportData{Job: job, GeneratedAt: time.Now()}
	if err := r.tmpl.Execute(f, data); err != nil {
		os.Remove(path)
		return pipeline.ReportInfo{}, fmt.Errorf("failed to render report: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		return pipeline.ReportInfo{}, fmt.Errorf("failed to stat report: %w", err)
	}

	r.logger.Info("Report generated",
		slog.String("job_id", job.ID),
		slog.String("path", path),
		slog.Int64("size", stat.Size()),
	)

	return pipeline.ReportInfo{
		Path:        path,
		Size:        stat.Size(),
		GeneratedAt: data.GeneratedAt,
	}, nil
}

const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Performance Report - {{.Job.MainURL}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; margin: 2rem auto; max-width: 900px; color: #1a2b4a; }
h1 { border-bottom: 3px solid #1a2b4a; padding-bottom: .5rem; }
h2 { color: #2c4a7c; margin-top: 2rem; }
table { border-collapse: collapse; width: 100%; margin: 1rem 0; }
th, td { border: 1px solid #ccd4e0; padding: .5rem .75rem; text-align: left; }
th { background: #eef2f8; }
.verdict { background: #f5f8fc; border-left: 4px solid #2c4a7c; padding: 1rem; }
.priority-high { color: #b02a2a; font-weight: bold; }
.priority-medium { color: #b07a2a; font-weight: bold; }
.priority-low { color: #2a7a4a; font-weight: bold; }
.errors { color: #b02a2a; }
footer { margin-top: 3rem; font-size: .8rem; color: #6b7a94; }
</style>
</head>
<body>
<h1>Website Performance Report</h1>
<p><strong>Site:</strong> {{.Job.MainURL}}<br>
<strong>Job:</strong> {{.Job.ID}}<br>
<strong>Generated:</strong> {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}}</p>

{{with .Job.Aggregated}}
<h2>Executive Summary</h2>
<div class="verdict">
<p>{{.Summary.Overall}}</p>
<p>{{.Summary.Ranking}}</p>
<p>{{.Summary.KeyMetrics}}</p>
</div>

<h2>Cross-Tool Averages</h2>
<table>
<tr><th>Metric</th><th>Value</th></tr>
{{range $name, $value := .MainSite.Averages}}<tr><td>{{$name}}</td><td>{{printf "%.2f" $value}}</td></tr>
{{end}}
</table>

{{if .Competitors}}
<h2>Competitor Comparison</h2>
<p>Ranked {{.Comparisons.Rank}} of {{.Comparisons.TotalSites}} sites.</p>
<table>
<tr><th>Competitor</th><th>Score</th><th>Delta</th></tr>
{{range .Comparisons.BetterThan}}<tr><td>{{.URL}}</td><td>{{printf "%.1f" .Score}}</td><td>+{{printf "%.1f" .Difference}}</td></tr>
{{end}}
{{range .Comparisons.WorseThan}}<tr><td>{{.URL}}</td><td>{{printf "%.1f" .Score}}</td><td>-{{printf "%.1f" .Difference}}</td></tr>
{{end}}
</table>
{{end}}
{{end}}

{{if .Job.Recommendations}}
<h2>Recommendations</h2>
<table>
<tr><th>Priority</th><th>Category</th><th>Recommendation</th><th>Impact</th></tr>
{{range .Job.Recommendations}}<tr>
<td class="priority-{{.Priority}}">{{.Priority}}</td>
<td>{{.Category}}</td>
<td><strong>{{.Title}}</strong><br>{{.Description}}</td>
<td>{{.Impact}}</td>
</tr>
{{end}}
</table>
{{end}}

{{if .Job.Screenshots}}
<h2>Screenshots</h2>
<table>
<tr><th>URL</th><th>Desktop</th><th>Tablet</th><th>Mobile</th></tr>
{{range .Job.Screenshots}}<tr>
<td>{{.URL}}</td>
<td>{{with .Screenshot}}{{.DesktopPath}}{{end}}</td>
<td>{{with .Screenshot}}{{.TabletPath}}{{end}}</td>
<td>{{with .Screenshot}}{{.MobilePath}}{{end}}</td>
</tr>
{{end}}
</table>
{{end}}

{{if .Job.Errors}}
<h2>Partial Failures</h2>
<ul class="errors">
{{range .Job.Errors}}<li>{{.}}</li>
{{end}}
</ul>
{{end}}

<footer>Report generated by sitescope for job {{.Job.ID}}.</footer>
</body>
</html>
`
