package analysis

// Aggregate reduces per-tool stage results into one AggregatedSite per URL.
//
// The lighthouse result list determines which URLs exist and the competitor
// order (first seen wins); results from other tools are joined onto it by
// URL match. A tool's metric subset is included only if its sample succeeded
// and is not fallback placeholder data. Averages are computed per metric
// name over the tools that contributed that metric; a metric no contributing
// tool reported is omitted rather than defaulted to zero.
func Aggregate(lighthouse, webpagetest, gtmetrix []StageResult) AggregatedMetrics {
	agg := AggregatedMetrics{Competitors: []AggregatedSite{}}

	wptByURL := indexByURL(webpagetest)
	gtmByURL := indexByURL(gtmetrix)

	mainSeen := false
	for _, lh := range lighthouse {
		if lh.IsMain {
			// At most one entry seeds the main site; first wins.
			if !mainSeen {
				agg.MainSite = aggregateSite(lh.URL, lh.Sample, wptByURL[lh.URL], gtmByURL[lh.URL])
				mainSeen = true
			}
			continue
		}
		agg.Competitors = append(agg.Competitors, aggregateSite(lh.URL, lh.Sample, wptByURL[lh.URL], gtmByURL[lh.URL]))
	}

	return agg
}

func indexByURL(results []StageResult) map[string]*MetricSample {
	index := make(map[string]*MetricSample, len(results))
	for _, r := range results {
		if _, seen := index[r.URL]; !seen {
			index[r.URL] = r.Sample
		}
	}
	return index
}

func aggregateSite(url string, samples ...*MetricSample) AggregatedSite {
	site := AggregatedSite{
		URL:      url,
		Tools:    map[Tool]map[string]float64{},
		Averages: map[string]float64{},
	}

	for _, sample := range samples {
		if sample == nil || !sample.Success || sample.Fallback {
			continue
		}
		subset := make(map[string]float64, len(sample.Metrics))
		for name, value := range sample.Metrics {
			subset[name] = value
		}
		site.Tools[sample.Tool] = subset
	}

	sums := map[string]float64{}
	counts := map[string]int{}
	for _, subset := range site.Tools {
		for name, value := range subset {
			sums[name] += value
			counts[name]++
		}
	}
	for name, sum := range sums {
		site.Averages[name] = sum / float64(counts[name])
	}

	return site
}
