package analysis

// LighthouseScores derives 0-100 scores from raw lighthouse metrics. Missing
// metrics are scored as 0 (instant), matching the collector's behavior of
// reporting unmeasured timings as zero.
func LighthouseScores(metrics map[string]float64) map[string]float64 {
	scores := map[string]float64{
		"fcp_score":  fcpScore(metrics[MetricFCP]),
		"lcp_score":  lcpScore(metrics[MetricLCP]),
		"cls_score":  clsScore(metrics[MetricCLS]),
		"ttfb_score": ttfbScore(metrics[MetricTTFB]),
	}

	// Weighted overall score. The 0.4 remainder covers metrics the collector
	// does not measure and is held at the midpoint.
	scores[MetricPerformanceScore] = scores["fcp_score"]*0.1 +
		scores["lcp_score"]*0.25 +
		scores["cls_score"]*0.15 +
		scores["ttfb_score"]*0.1 +
		50*0.4

	return scores
}

func fcpScore(fcp float64) float64 {
	switch {
	case fcp < 1800:
		return 100
	case fcp < 3000:
		return 100 - ((fcp - 1800) / 1200 * 50)
	default:
		return max(0, 50-((fcp-3000)/3000*50))
	}
}

func lcpScore(lcp float64) float64 {
	switch {
	case lcp < 2500:
		return 100
	case lcp < 4000:
		return 100 - ((lcp - 2500) / 1500 * 50)
	default:
		return max(0, 50-((lcp-4000)/4000*50))
	}
}

func clsScore(cls float64) float64 {
	switch {
	case cls < 0.1:
		return 100
	case cls < 0.25:
		return 100 - ((cls - 0.1) / 0.15 * 50)
	default:
		return max(0, 50-((cls-0.25)/0.25*50))
	}
}

func ttfbScore(ttfb float64) float64 {
	switch {
	case ttfb < 800:
		return 100
	case ttfb < 1800:
		return 100 - ((ttfb - 800) / 1000 * 50)
	default:
		return max(0, 50-((ttfb-1800)/1800*50))
	}
}
