package analysis

import (
	"fmt"
	"strings"
)

// Rating thresholds for the overall verdict. Boundary values belong to the
// higher bucket.
const (
	excellentThreshold = 90
	goodThreshold      = 75
	fairThreshold      = 50
)

// Summarize renders the deterministic textual verdict for the main site from
// its aggregated metrics and competitive ranking.
func Summarize(main AggregatedSite, cmp ComparisonResult) Summary {
	ranking := fmt.Sprintf("Ranked %d out of %d sites", cmp.Rank, cmp.TotalSites)
	if cmp.ScoreMissing {
		ranking += " (no measured performance score for the main site)"
	}

	return Summary{
		Overall:    performanceRating(main.Averages[MetricPerformanceScore]),
		Ranking:    ranking,
		KeyMetrics: summarizeKeyMetrics(main.Averages),
	}
}

func performanceRating(score float64) string {
	switch {
	case score >= excellentThreshold:
		return "Excellent - Your site has outstanding performance!"
	case score >= goodThreshold:
		return "Good - Your site performs well with room for optimization."
	case score >= fairThreshold:
		return "Fair - Your site needs performance improvements."
	default:
		return "Poor - Your site has significant performance issues."
	}
}

func summarizeKeyMetrics(averages map[string]float64) string {
	var parts []string

	if fcp, ok := averages[MetricFCP]; ok {
		parts = append(parts, fmt.Sprintf("FCP: %.0fms (%s)", fcp, fcpRating(fcp)))
	}
	if lcp, ok := averages[MetricLCP]; ok {
		parts = append(parts, fmt.Sprintf("LCP: %.0fms (%s)", lcp, lcpRating(lcp)))
	}

	if len(parts) == 0 {
		return "Metrics unavailable"
	}
	return strings.Join(parts, ", ")
}

func fcpRating(fcp float64) string {
	switch {
	case fcp < 1800:
		return "good"
	case fcp < 3000:
		return "needs improvement"
	default:
		return "poor"
	}
}

func lcpRating(lcp float64) string {
	switch {
	case lcp < 2500:
		return "good"
	case lcp < 4000:
		return "needs improvement"
	default:
		return "poor"
	}
}
