package analysis

import (
	"math"
	"testing"

	"github.com/david/propscore/internal/rentcast"
)

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestPriceBand(t *testing.T) {
	tests := []struct {
		price    float64
		expected string
	}{
		{99999.99, "Under 100K"},
		{100000, "100K-200K"},
		{199999, "100K-200K"},
		{200000, "200K-500K"},
		{499999, "200K-500K"},
		{500000, "Over 500K"},
	}

	for _, tt := range tests {
		if got := PriceBand(tt.price); got != tt.expected {
			t.Errorf("PriceBand(%v) = %q, want %q", tt.price, got, tt.expected)
		}
	}
}

func TestTimelineRisk(t *testing.T) {
	tests := []struct {
		dom      float64
		expected string
	}{
		{0, "Low"},
		{44.9, "Low"},
		{45, "Medium"},
		{89.9, "Medium"},
		{90, "High"},
		{200, "High"},
	}

	for _, tt := range tests {
		if got := TimelineRisk(tt.dom); got != tt.expected {
			t.Errorf("TimelineRisk(%v) = %q, want %q", tt.dom, got, tt.expected)
		}
	}
}

func TestLikeKindStatus(t *testing.T) {
	if got := LikeKindStatus("Single Family"); got != "Qualified" {
		t.Errorf("got %q", got)
	}
	for _, pt := range []string{"Condo", "single family", "Single Family Residence", ""} {
		if got := LikeKindStatus(pt); got != "Review Needed" {
			t.Errorf("LikeKindStatus(%q) = %q, want Review Needed", pt, got)
		}
	}
}

func TestDeriveIncomeMetrics(t *testing.T) {
	value := &rentcast.ValueEstimate{
		Price:          300000,
		PriceRangeLow:  280000,
		PriceRangeHigh: 320000,
	}
	rent := &rentcast.RentEstimate{
		Rent:          2000,
		RentRangeLow:  1900,
		RentRangeHigh: 2100,
	}

	m := DeriveIncomeMetrics(value, rent, 1500)

	approx(t, "AnnualRent", m.AnnualRent, 24000)
	approx(t, "GRM", m.GRM, 12.5)
	approx(t, "CapRatePct", m.CapRatePct, 4.8)
	approx(t, "GrossYieldPct", m.GrossYieldPct, 8)
	approx(t, "ValueSpreadPct", m.ValueSpreadPct, 13.333333333333334)
	approx(t, "RentSpreadPct", m.RentSpreadPct, 10)
	approx(t, "PricePerSqft", m.PricePerSqft, 200)
	approx(t, "StabilityScore", m.StabilityScore, 100-(13.333333333333334/2+10.0/2))
}

func TestDeriveIncomeMetrics_MissingRent(t *testing.T) {
	value := &rentcast.ValueEstimate{Price: 300000, PriceRangeLow: 290000, PriceRangeHigh: 310000}

	m := DeriveIncomeMetrics(value, nil, 1500)
	if m.GRM != 0 || m.CapRatePct != 0 || m.GrossYieldPct != 0 {
		t.Errorf("rent ratios must stay zero without a rent estimate: %+v", m)
	}
	if m.ValueSpreadPct == 0 {
		t.Error("value spread should still be derived from the value estimate alone")
	}
	if m.StabilityScore != 0 {
		t.Error("stability needs both estimates")
	}
}

func TestDeriveIncomeMetrics_NilEverything(t *testing.T) {
	m := DeriveIncomeMetrics(nil, nil, 0)
	if m != (IncomeMetrics{}) {
		t.Errorf("expected zero metrics, got %+v", m)
	}
}

func TestDeriveIncomeMetrics_SqftPercentile(t *testing.T) {
	value := &rentcast.ValueEstimate{
		Price: 200000, // subject $/sqft = 200
		Comparables: []rentcast.Comparable{
			{Price: 150000, SquareFootage: 1000}, // 150
			{Price: 180000, SquareFootage: 1000}, // 180
			{Price: 250000, SquareFootage: 1000}, // 250
			{Price: 260000, SquareFootage: 0},    // no sqft, ignored
		},
	}

	m := DeriveIncomeMetrics(value, nil, 1000)
	approx(t, "SqftPercentile", m.SqftPercentile, 2.0/3.0*100)
}

func TestDeriveExchangeMetrics(t *testing.T) {
	closed := "2025-01-01T00:00:00Z"
	comps := []rentcast.Comparable{
		{DaysOnMarket: iptr(20)},
		{DaysOnMarket: iptr(40), RemovedDate: closed},
		{DaysOnMarket: iptr(60), RemovedDate: closed},
		{DaysOnMarket: iptr(300), RemovedDate: closed},
	}

	m := DeriveExchangeMetrics("Single Family", comps)

	if m.AvailableProperties != 1 {
		t.Errorf("available = %d, want 1", m.AvailableProperties)
	}
	approx(t, "MedianDaysToClose", m.MedianDaysToClose, 50)
	approx(t, "AverageDaysOnMarket", m.AverageDaysOnMarket, 105)
	approx(t, "CloseRatePct", m.CloseRatePct, 50)
	if m.TimelineRisk != "Medium" {
		t.Errorf("timeline risk = %q, want Medium", m.TimelineRisk)
	}
	if m.LikeKindStatus != "Qualified" {
		t.Errorf("like-kind = %q, want Qualified", m.LikeKindStatus)
	}
}

func TestTaxAssessmentTrends(t *testing.T) {
	if got := TaxAssessmentTrends(nil); got != nil {
		t.Fatalf("expected nil for empty history, got %+v", got)
	}

	trends := TaxAssessmentTrends(map[string]rentcast.TaxAssessment{
		"2023": {Value: 133100, Land: 40000, Improvements: 93100},
		"2020": {Value: 100000, Land: 30000, Improvements: 70000},
	})
	if trends == nil {
		t.Fatal("expected trends")
	}
	if trends.Years[0] != "2020" || trends.Years[1] != "2023" {
		t.Errorf("years not ordered: %v", trends.Years)
	}
	if trends.TotalValues[0] != 100000 || trends.TotalValues[1] != 133100 {
		t.Errorf("values not aligned with years: %v", trends.TotalValues)
	}
	if trends.AnnualAppreciationPct == nil {
		t.Fatal("expected appreciation with two years of history")
	}
	approx(t, "AnnualAppreciationPct", *trends.AnnualAppreciationPct, 10)
}

func TestTaxTrends_ApplyValueRatio(t *testing.T) {
	var nilTrends *TaxTrends
	nilTrends.ApplyValueRatio(300000) // must not panic

	trends := &TaxTrends{TotalValues: []float64{100000, 150000}}
	trends.ApplyValueRatio(0)
	if trends.ValueToAssessmentRatio != nil {
		t.Error("non-positive value must not set a ratio")
	}

	trends.ApplyValueRatio(300000)
	if trends.ValueToAssessmentRatio == nil {
		t.Fatal("expected a ratio")
	}
	approx(t, "ValueToAssessmentRatio", *trends.ValueToAssessmentRatio, 2)
}

func TestTaxAssessmentTrends_SingleYear(t *testing.T) {
	trends := TaxAssessmentTrends(map[string]rentcast.TaxAssessment{
		"2024": {Value: 250000},
	})
	if trends == nil || trends.AnnualAppreciationPct != nil {
		t.Errorf("single year must report values but no appreciation: %+v", trends)
	}
}
