package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult(tool Tool, url string, isMain bool, metrics map[string]float64) StageResult {
	return StageResult{
		URL:    url,
		IsMain: isMain,
		Sample: &MetricSample{
			Tool:    tool,
			URL:     url,
			Metrics: metrics,
			Success: true,
		},
	}
}

func TestAggregate_AveragesOverContributingToolsOnly(t *testing.T) {
	lighthouse := []StageResult{
		sampleResult(ToolLighthouse, "https://main.test", true, map[string]float64{
			MetricFCP: 1000,
			MetricLCP: 2000,
		}),
	}
	gtmetrix := []StageResult{
		sampleResult(ToolGTmetrix, "https://main.test", true, map[string]float64{
			MetricFCP: 3000,
		}),
	}

	agg := Aggregate(lighthouse, nil, gtmetrix)

	// fcp averaged over both tools, lcp over lighthouse only
	assert.InDelta(t, 2000, agg.MainSite.Averages[MetricFCP], 0.001)
	assert.InDelta(t, 2000, agg.MainSite.Averages[MetricLCP], 0.001)
}

func TestAggregate_FailedSampleDoesNotChangeAverages(t *testing.T) {
	lighthouse := []StageResult{
		sampleResult(ToolLighthouse, "https://main.test", true, map[string]float64{
			MetricFCP: 1500,
		}),
	}

	base := Aggregate(lighthouse, nil, nil)

	failed := []StageResult{
		{
			URL:    "https://main.test",
			IsMain: true,
			Sample: &MetricSample{
				Tool:    ToolWebPageTest,
				URL:     "https://main.test",
				Metrics: map[string]float64{MetricFCP: 99999},
				Success: false,
				Error:   "timeout",
			},
		},
	}

	withFailure := Aggregate(lighthouse, failed, nil)

	assert.Equal(t, base.MainSite.Averages, withFailure.MainSite.Averages)
	assert.NotContains(t, withFailure.MainSite.Tools, ToolWebPageTest)
}

func TestAggregate_FallbackSampleExcluded(t *testing.T) {
	lighthouse := []StageResult{
		sampleResult(ToolLighthouse, "https://main.test", true, map[string]float64{
			MetricFCP: 1500,
		}),
	}
	fallback := []StageResult{
		{
			URL:    "https://main.test",
			IsMain: true,
			Sample: &MetricSample{
				Tool:     ToolGTmetrix,
				URL:      "https://main.test",
				Metrics:  map[string]float64{},
				Success:  true,
				Fallback: true,
			},
		},
	}

	agg := Aggregate(lighthouse, nil, fallback)

	assert.NotContains(t, agg.MainSite.Tools, ToolGTmetrix)
	assert.InDelta(t, 1500, agg.MainSite.Averages[MetricFCP], 0.001)
}

func TestAggregate_OmitsMetricsWithNoContributors(t *testing.T) {
	lighthouse := []StageResult{
		sampleResult(ToolLighthouse, "https://main.test", true, map[string]float64{
			MetricFCP: 1500,
		}),
	}

	agg := Aggregate(lighthouse, nil, nil)

	_, hasLCP := agg.MainSite.Averages[MetricLCP]
	assert.False(t, hasLCP, "unreported metric must be omitted, not zeroed")
}

func TestAggregate_CompetitorOrderAndMainSelection(t *testing.T) {
	lighthouse := []StageResult{
		sampleResult(ToolLighthouse, "https://main.test", true, map[string]float64{MetricFCP: 1}),
		sampleResult(ToolLighthouse, "https://a.test", false, map[string]float64{MetricFCP: 2}),
		sampleResult(ToolLighthouse, "https://b.test", false, map[string]float64{MetricFCP: 3}),
	}

	agg := Aggregate(lighthouse, nil, nil)

	require.Len(t, agg.Competitors, 2)
	assert.Equal(t, "https://main.test", agg.MainSite.URL)
	assert.Equal(t, "https://a.test", agg.Competitors[0].URL)
	assert.Equal(t, "https://b.test", agg.Competitors[1].URL)
}

func TestAggregate_EmptyInput(t *testing.T) {
	agg := Aggregate(nil, nil, nil)

	assert.Empty(t, agg.MainSite.URL)
	assert.Empty(t, agg.Competitors)
}

func TestAggregate_Idempotent(t *testing.T) {
	lighthouse := []StageResult{
		sampleResult(ToolLighthouse, "https://main.test", true, map[string]float64{
			MetricFCP: 1200,
			MetricLCP: 2400,
		}),
		sampleResult(ToolLighthouse, "https://a.test", false, map[string]float64{
			MetricFCP: 900,
		}),
	}
	webpagetest := []StageResult{
		sampleResult(ToolWebPageTest, "https://main.test", true, map[string]float64{
			MetricFCP: 1400,
		}),
	}

	first := Aggregate(lighthouse, webpagetest, nil)
	second := Aggregate(lighthouse, webpagetest, nil)

	assert.Equal(t, first, second)
}
