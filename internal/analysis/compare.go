package analysis

// Compare ranks the main site against its competitors by averaged
// performance score. An empty competitor list yields the neutral result
// (rank 1 of 1) and is not an error.
//
// Rank increases by one for every competitor whose score strictly exceeds
// the main site's; ties count toward BetterThan and do not penalize rank.
// A main site with no measured performance average is compared as 0 and the
// result is flagged so callers can surface a caveat.
func Compare(main AggregatedSite, competitors []AggregatedSite) ComparisonResult {
	result := ComparisonResult{
		Rank:       1,
		TotalSites: len(competitors) + 1,
		BetterThan: []SiteDelta{},
		WorseThan:  []SiteDelta{},
	}

	mainScore, ok := main.Averages[MetricPerformanceScore]
	if !ok {
		result.ScoreMissing = true
		mainScore = 0
	}

	for _, comp := range competitors {
		compScore := comp.Averages[MetricPerformanceScore]

		if compScore > mainScore {
			result.WorseThan = append(result.WorseThan, SiteDelta{
				URL:        comp.URL,
				Score:      compScore,
				Difference: compScore - mainScore,
			})
			result.Rank++
			continue
		}

		result.BetterThan = append(result.BetterThan, SiteDelta{
			URL:        comp.URL,
			Score:      compScore,
			Difference: mainScore - compScore,
		})
	}

	return result
}
