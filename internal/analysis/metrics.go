package analysis

import (
	"math"
	"sort"

	"github.com/david/propscore/internal/rentcast"
)

// expenseRatio is the assumed share of rent left after operating expenses
// (40% expense load). It stands in for a true NOI calculation and is an
// intentional policy constant, not a market input.
const expenseRatio = 0.6

// closeWindowDays is the 1031 exchange closing window.
const closeWindowDays = 180

// IncomeMetrics holds the income-property derivations. A zero value for a
// ratio means the metric was unavailable (missing or zero denominator).
type IncomeMetrics struct {
	MonthlyRent    float64 `json:"monthly_rent"`
	AnnualRent     float64 `json:"annual_rent"`
	GRM            float64 `json:"grm"`
	CapRatePct     float64 `json:"cap_rate_pct"`
	GrossYieldPct  float64 `json:"gross_yield_pct"`
	ValueSpreadPct float64 `json:"value_spread_pct"`
	RentSpreadPct  float64 `json:"rent_spread_pct"`
	PricePerSqft   float64 `json:"price_per_sqft"`
	SqftPercentile float64 `json:"sqft_percentile"`
	StabilityScore float64 `json:"stability_score"`
	LiquidityScore float64 `json:"liquidity_score"`
}

// ExchangeMetrics holds the 1031 exchange timeline derivations.
type ExchangeMetrics struct {
	AvailableProperties int     `json:"available_properties"`
	MedianDaysToClose   float64 `json:"median_days_to_close"`
	AverageDaysOnMarket float64 `json:"average_days_on_market"`
	CloseRatePct        float64 `json:"close_rate_pct"`
	TimelineRisk        string  `json:"timeline_risk"`
	LikeKindStatus      string  `json:"like_kind_status"`
}

// TaxTrends summarizes a property's assessment history.
type TaxTrends struct {
	Years                  []string  `json:"years"`
	TotalValues            []float64 `json:"total_values"`
	LandValues             []float64 `json:"land_values"`
	ImprovementValues      []float64 `json:"improvement_values"`
	AnnualAppreciationPct  *float64  `json:"annual_appreciation_pct,omitempty"`
	ValueToAssessmentRatio *float64  `json:"value_to_assessment_ratio,omitempty"`
}

// ApplyValueRatio records the estimated market value against the most recent
// assessed value. Safe on a nil receiver; a no-op when either side is missing.
func (t *TaxTrends) ApplyValueRatio(estimatedValue float64) {
	if t == nil || estimatedValue <= 0 || len(t.TotalValues) == 0 {
		return
	}
	latest := t.TotalValues[len(t.TotalValues)-1]
	if latest <= 0 {
		return
	}
	ratio := estimatedValue / latest
	t.ValueToAssessmentRatio = &ratio
}

// PriceBand buckets a considered price for display and filtering.
// Boundaries are left-inclusive.
func PriceBand(price float64) string {
	switch {
	case price < 100000:
		return "Under 100K"
	case price < 200000:
		return "100K-200K"
	case price < 500000:
		return "200K-500K"
	default:
		return "Over 500K"
	}
}

// TimelineRisk grades market velocity against the 1031 exchange deadlines.
func TimelineRisk(medianDOM float64) string {
	switch {
	case medianDOM < 45:
		return "Low"
	case medianDOM < 90:
		return "Medium"
	default:
		return "High"
	}
}

// LikeKindStatus is a policy stub, not a legal determination: only the exact
// "Single Family" property type auto-qualifies, everything else needs review.
func LikeKindStatus(propertyType string) string {
	if propertyType == "Single Family" {
		return "Qualified"
	}
	return "Review Needed"
}

// DeriveIncomeMetrics computes the income-property metrics from value and
// rent estimates. Missing estimates or zero denominators leave the affected
// metrics at zero rather than failing.
func DeriveIncomeMetrics(value *rentcast.ValueEstimate, rent *rentcast.RentEstimate, subjectSqft int) IncomeMetrics {
	var m IncomeMetrics

	if rent != nil {
		m.MonthlyRent = rent.Rent
		m.AnnualRent = rent.Rent * 12
		if rent.Rent > 0 {
			m.RentSpreadPct = (rent.RentRangeHigh - rent.RentRangeLow) / rent.Rent * 100
		}
	}

	if value != nil && value.Price > 0 {
		m.ValueSpreadPct = (value.PriceRangeHigh - value.PriceRangeLow) / value.Price * 100
		if subjectSqft > 0 {
			m.PricePerSqft = value.Price / float64(subjectSqft)
		}
		if m.AnnualRent > 0 {
			m.GRM = value.Price / m.AnnualRent
			m.CapRatePct = (m.AnnualRent * expenseRatio) / value.Price * 100
			m.GrossYieldPct = m.AnnualRent / value.Price * 100
		}
		m.SqftPercentile = pricePerSqftPercentile(value, subjectSqft)
	}

	if value != nil && rent != nil {
		m.StabilityScore = 100 - (m.ValueSpreadPct/2 + m.RentSpreadPct/2)
	}

	if value != nil {
		summary := Summarize(value.Comparables)
		if summary.AverageDaysOnMarket > 0 {
			m.LiquidityScore = math.Max(0, 100-summary.AverageDaysOnMarket/2)
		}
	}

	return m
}

// pricePerSqftPercentile positions the subject's $/sqft against the value
// comps: the share of comps cheaper per square foot, as a percentage.
func pricePerSqftPercentile(value *rentcast.ValueEstimate, subjectSqft int) float64 {
	if subjectSqft <= 0 || len(value.Comparables) == 0 {
		return 0
	}

	subject := value.Price / float64(subjectSqft)
	var ppsf []float64
	for _, c := range value.Comparables {
		if c.SquareFootage > 0 {
			ppsf = append(ppsf, c.Price/float64(c.SquareFootage))
		}
	}
	if len(ppsf) == 0 {
		return 0
	}

	below := 0
	for _, p := range ppsf {
		if p < subject {
			below++
		}
	}
	return float64(below) / float64(len(ppsf)) * 100
}

// DeriveExchangeMetrics computes the 1031 timeline metrics from the value
// comparables.
func DeriveExchangeMetrics(propertyType string, comps []rentcast.Comparable) ExchangeMetrics {
	summary := Summarize(comps)

	return ExchangeMetrics{
		AvailableProperties: summary.ActiveCount,
		MedianDaysToClose:   summary.MedianDaysOnMarket,
		AverageDaysOnMarket: summary.AverageDaysOnMarket,
		CloseRatePct:        CloseRateWithin(comps, closeWindowDays) * 100,
		TimelineRisk:        TimelineRisk(summary.MedianDaysOnMarket),
		LikeKindStatus:      LikeKindStatus(propertyType),
	}
}

// TaxAssessmentTrends orders a property's assessment history by year and
// computes compound annual appreciation when two or more years are present.
// Returns nil when there is no history.
func TaxAssessmentTrends(assessments map[string]rentcast.TaxAssessment) *TaxTrends {
	if len(assessments) == 0 {
		return nil
	}

	years := make([]string, 0, len(assessments))
	for y := range assessments {
		years = append(years, y)
	}
	sort.Strings(years)

	trends := &TaxTrends{Years: years}
	for _, y := range years {
		a := assessments[y]
		trends.TotalValues = append(trends.TotalValues, a.Value)
		trends.LandValues = append(trends.LandValues, a.Land)
		trends.ImprovementValues = append(trends.ImprovementValues, a.Improvements)
	}

	first := assessments[years[0]]
	last := assessments[years[len(years)-1]]
	span := float64(yearNumber(years[len(years)-1]) - yearNumber(years[0]))
	if span > 0 && first.Value > 0 {
		appreciation := (math.Pow(last.Value/first.Value, 1/span) - 1) * 100
		trends.AnnualAppreciationPct = &appreciation
	}

	return trends
}

func yearNumber(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0
		}
		n = n*10 + int(s[i]-'0')
	}
	return n
}
