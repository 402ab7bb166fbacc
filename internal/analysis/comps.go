package analysis

import (
	"sort"
	"time"

	"github.com/david/propscore/internal/rentcast"
)

// CompsSummary aggregates a set of comparables for scoring and display.
// Averages are over records that report the field; an empty input yields a
// zero-valued summary.
type CompsSummary struct {
	Count               int     `json:"count"`
	AverageCorrelation  float64 `json:"average_correlation"`
	AverageDistance     float64 `json:"average_distance"`
	MedianDaysOnMarket  float64 `json:"median_days_on_market"`
	AverageDaysOnMarket float64 `json:"average_days_on_market"`
	ActiveCount         int     `json:"active_count"`
}

// FilterBySize keeps comparables whose square footage falls within
// tolerancePct percent of the target, boundaries inclusive. An empty result
// means "no comps", not an error.
func FilterBySize(comps []rentcast.Comparable, targetSqft int, tolerancePct float64) []rentcast.Comparable {
	if targetSqft <= 0 {
		return nil
	}

	minSqft := float64(targetSqft) * (1 - tolerancePct/100)
	maxSqft := float64(targetSqft) * (1 + tolerancePct/100)

	var filtered []rentcast.Comparable
	for _, c := range comps {
		sqft := float64(c.SquareFootage)
		if sqft >= minSqft && sqft <= maxSqft {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// FilterRecent keeps comparables last seen within withinDays of now.
// Records with an absent or unparsable lastSeenDate are excluded.
func FilterRecent(comps []rentcast.Comparable, withinDays int, now time.Time) []rentcast.Comparable {
	cutoff := now.AddDate(0, 0, -withinDays)

	var recent []rentcast.Comparable
	for _, c := range comps {
		if c.LastSeenDate == "" {
			continue
		}
		seen, err := time.Parse(time.RFC3339, c.LastSeenDate)
		if err != nil {
			continue
		}
		if seen.After(cutoff) {
			recent = append(recent, c)
		}
	}
	return recent
}

// Summarize computes aggregate statistics over a comparable set.
func Summarize(comps []rentcast.Comparable) CompsSummary {
	summary := CompsSummary{Count: len(comps)}

	var corrSum, distSum float64
	var corrN, distN int
	var doms []int
	var domSum int

	for _, c := range comps {
		if c.Correlation != nil {
			corrSum += *c.Correlation
			corrN++
		}
		if c.Distance != nil {
			distSum += *c.Distance
			distN++
		}
		if c.DaysOnMarket != nil {
			doms = append(doms, *c.DaysOnMarket)
			domSum += *c.DaysOnMarket
		}
		if c.Active() {
			summary.ActiveCount++
		}
	}

	if corrN > 0 {
		summary.AverageCorrelation = corrSum / float64(corrN)
	}
	if distN > 0 {
		summary.AverageDistance = distSum / float64(distN)
	}
	if len(doms) > 0 {
		summary.MedianDaysOnMarket = median(doms)
		summary.AverageDaysOnMarket = float64(domSum) / float64(len(doms))
	}

	return summary
}

// CloseRateWithin returns the fraction of comparables that closed (have a
// removedDate) with daysOnMarket below windowDays, over the FULL comparable
// set. Closed records without a reported daysOnMarket are not counted, so the
// rate undercounts in that case; this mirrors the product's 180-day close
// rate as shipped.
func CloseRateWithin(comps []rentcast.Comparable, windowDays int) float64 {
	if len(comps) == 0 {
		return 0
	}

	closed := 0
	for _, c := range comps {
		if c.Active() {
			continue
		}
		if c.DaysOnMarket != nil && *c.DaysOnMarket < windowDays {
			closed++
		}
	}
	return float64(closed) / float64(len(comps))
}

// RankBySimilarity sorts comparables by correlation, highest first, without
// mutating the input. Absent correlation sorts as 0. The sort is stable so
// ties keep provider order.
func RankBySimilarity(comps []rentcast.Comparable) []rentcast.Comparable {
	ranked := make([]rentcast.Comparable, len(comps))
	copy(ranked, comps)

	sort.SliceStable(ranked, func(i, j int) bool {
		return correlationOf(ranked[i]) > correlationOf(ranked[j])
	})
	return ranked
}

func correlationOf(c rentcast.Comparable) float64 {
	if c.Correlation == nil {
		return 0
	}
	return *c.Correlation
}

func median(values []int) float64 {
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}
