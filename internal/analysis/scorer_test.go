package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/david/propscore/internal/rentcast"
)

type fakeSource struct {
	property *rentcast.PropertyRecord
	value    *rentcast.ValueEstimate
	rent     *rentcast.RentEstimate
	market   *rentcast.MarketStats

	propertyErr error
	valueErr    error
	rentErr     error
	marketErr   error

	calls int
}

func (f *fakeSource) Property(ctx context.Context, address string) (*rentcast.PropertyRecord, error) {
	f.calls++
	return f.property, f.propertyErr
}

func (f *fakeSource) ValueEstimate(ctx context.Context, address string, hint *rentcast.PropertyRecord) (*rentcast.ValueEstimate, error) {
	f.calls++
	return f.value, f.valueErr
}

func (f *fakeSource) RentEstimate(ctx context.Context, address string, hint *rentcast.PropertyRecord) (*rentcast.RentEstimate, error) {
	f.calls++
	return f.rent, f.rentErr
}

func (f *fakeSource) MarketStats(ctx context.Context, zipCode string) (*rentcast.MarketStats, error) {
	f.calls++
	return f.market, f.marketErr
}

type fakeNarrator struct {
	text string
	err  error
}

func (f *fakeNarrator) Generate(ctx context.Context, kind NarrativeKind, data NarrativeData) (string, error) {
	return f.text, f.err
}

func fullSource() *fakeSource {
	return &fakeSource{
		property: &rentcast.PropertyRecord{
			FormattedAddress: "1000 E 5th St, Austin, TX 78702",
			PropertyType:     "Single Family",
			Bedrooms:         3,
			Bathrooms:        2,
			SquareFootage:    1800,
			YearBuilt:        1995,
			ZipCode:          "78702",
			Features: rentcast.Features{
				GarageSpaces: 2,
				CoolingType:  "Central",
				HeatingType:  "Central",
				FloorCount:   2,
				Pool:         true,
			},
		},
		value: &rentcast.ValueEstimate{
			Price:          300000,
			PriceRangeLow:  280000,
			PriceRangeHigh: 320000,
			Comparables: []rentcast.Comparable{
				{FormattedAddress: "c1", Correlation: fptr(0.8), Price: 290000, SquareFootage: 1700},
				{FormattedAddress: "c2", Correlation: fptr(0.95), Price: 310000, SquareFootage: 1850},
				{FormattedAddress: "c3", Correlation: fptr(0.9), Price: 305000, SquareFootage: 1800},
			},
		},
		rent: &rentcast.RentEstimate{Rent: 2000, RentRangeLow: 1900, RentRangeHigh: 2100},
		market: &rentcast.MarketStats{
			AveragePrice:              310000,
			AveragePricePerSquareFoot: 170,
			TotalListings:             120,
			AverageSquareFootage:      1750,
			AverageDaysOnMarket:       25,
		},
	}
}

func TestScore_InvalidInput(t *testing.T) {
	source := &fakeSource{}
	scorer := NewScorer(source, &fakeNarrator{text: "ok"})

	if _, err := scorer.Score(context.Background(), "   ", 100000); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank address: expected ErrInvalidInput, got %v", err)
	}
	if _, err := scorer.Score(context.Background(), "1000 E 5th St, Austin, TX 78702", 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("zero price: expected ErrInvalidInput, got %v", err)
	}
	if _, err := scorer.Score(context.Background(), "1000 E 5th St, Austin, TX 78702", -1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative price: expected ErrInvalidInput, got %v", err)
	}
	if source.calls != 0 {
		t.Errorf("validation must reject before any provider call, got %d calls", source.calls)
	}
}

func TestScore_PropertyNotFound(t *testing.T) {
	source := &fakeSource{propertyErr: rentcast.ErrNoResults}
	scorer := NewScorer(source, &fakeNarrator{text: "ok"})

	result, err := scorer.Score(context.Background(), "123 Nowhere Ln, Austin, TX 78702", 250000)
	if err != nil {
		t.Fatalf("missing property is a reported outcome, not an error: %v", err)
	}

	b := result.Breakdown
	if b.TotalScore != 0 || b.ValueScore != 0 || b.LocationScore != 0 || b.FeatureScore != 0 {
		t.Errorf("expected zero scores, got %+v", b)
	}
	if b.Confidence != "low" {
		t.Errorf("confidence = %q, want low", b.Confidence)
	}
	if len(b.Factors) == 0 {
		t.Error("expected an explanatory factor")
	}
	if b.PriceBand != "200K-500K" {
		t.Errorf("price band should still be set, got %q", b.PriceBand)
	}
}

func TestScore_FullPipeline(t *testing.T) {
	source := fullSource()
	scorer := NewScorer(source, &fakeNarrator{text: "solid buy"})

	result, err := scorer.Score(context.Background(), "1000 E 5th St, Austin, TX 78702", 300000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b := result.Breakdown
	if b.ValueScore != 40 {
		t.Errorf("value score = %d, want 40", b.ValueScore)
	}
	if b.LocationScore != 30 {
		t.Errorf("location score = %d, want 30", b.LocationScore)
	}
	if b.FeatureScore != 30 {
		t.Errorf("feature score = %d, want 30", b.FeatureScore)
	}
	if b.TotalScore != 100 {
		t.Errorf("total score = %d, want 100", b.TotalScore)
	}
	if b.Confidence != "high" {
		t.Errorf("confidence = %q, want high", b.Confidence)
	}
	if b.AIAnalysis != "solid buy" || result.ExchangeAnalysis != "solid buy" {
		t.Errorf("narratives not propagated: %q / %q", b.AIAnalysis, result.ExchangeAnalysis)
	}

	if len(b.ValidationExamples) != 3 {
		t.Fatalf("expected 3 validation examples, got %d", len(b.ValidationExamples))
	}
	if b.ValidationExamples[0].FormattedAddress != "c2" || b.ValidationExamples[1].FormattedAddress != "c3" {
		t.Errorf("examples not ranked by correlation: %+v", b.ValidationExamples)
	}

	if result.Income.GRM == 0 || result.Exchange.LikeKindStatus != "Qualified" {
		t.Errorf("derived sections missing: %+v %+v", result.Income, result.Exchange)
	}
	if result.ZipCode != "78702" {
		t.Errorf("zip = %q", result.ZipCode)
	}
}

func TestScore_ValidationExamplesCapped(t *testing.T) {
	source := fullSource()
	for i := 0; i < 10; i++ {
		source.value.Comparables = append(source.value.Comparables, rentcast.Comparable{Correlation: fptr(0.5)})
	}
	scorer := NewScorer(source, &fakeNarrator{text: "ok"})

	result, err := scorer.Score(context.Background(), "1000 E 5th St, Austin, TX 78702", 300000)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Breakdown.ValidationExamples) != 5 {
		t.Errorf("expected 5 examples, got %d", len(result.Breakdown.ValidationExamples))
	}
}

func TestScore_ZeroPriceEstimateTreatedAsAbsent(t *testing.T) {
	source := fullSource()
	source.value = &rentcast.ValueEstimate{Price: 0, Comparables: source.value.Comparables}

	scorer := NewScorer(source, &fakeNarrator{text: "ok"})
	result, err := scorer.Score(context.Background(), "1000 E 5th St, Austin, TX 78702", 300000)
	if err != nil {
		t.Fatal(err)
	}

	b := result.Breakdown
	if b.ValueScore != 0 {
		t.Errorf("value score = %d, want 0 for a priceless estimate", b.ValueScore)
	}
	if b.Confidence != "medium" {
		t.Errorf("confidence = %q, want medium with market data only", b.Confidence)
	}
	if b.ValueAnalysis != (ValueAnalysis{}) {
		t.Errorf("value analysis should stay empty: %+v", b.ValueAnalysis)
	}
	if len(b.ValidationExamples) != 0 {
		t.Errorf("no examples without a usable estimate, got %d", len(b.ValidationExamples))
	}
	for _, factor := range b.Factors {
		if strings.Contains(factor, "Inf") || strings.Contains(factor, "NaN") {
			t.Errorf("garbage factor: %q", factor)
		}
	}
}

func TestScore_Confidence(t *testing.T) {
	unavailable := errors.New("provider unavailable")

	tests := []struct {
		name      string
		valueErr  error
		marketErr error
		expected  string
	}{
		{"Both sources", nil, nil, "high"},
		{"Value only", nil, unavailable, "medium"},
		{"Market only", unavailable, nil, "medium"},
		{"Neither", unavailable, unavailable, "low"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := fullSource()
			source.valueErr = tt.valueErr
			source.marketErr = tt.marketErr
			if tt.valueErr != nil {
				source.value = nil
			}
			if tt.marketErr != nil {
				source.market = nil
			}

			scorer := NewScorer(source, &fakeNarrator{text: "ok"})
			result, err := scorer.Score(context.Background(), "1000 E 5th St, Austin, TX 78702", 300000)
			if err != nil {
				t.Fatal(err)
			}
			if result.Breakdown.Confidence != tt.expected {
				t.Errorf("confidence = %q, want %q", result.Breakdown.Confidence, tt.expected)
			}
		})
	}
}

func TestScore_NarrativeFailureKeepsNumbers(t *testing.T) {
	ok, err := NewScorer(fullSource(), &fakeNarrator{text: "fine"}).
		Score(context.Background(), "1000 E 5th St, Austin, TX 78702", 300000)
	if err != nil {
		t.Fatal(err)
	}

	failed, err := NewScorer(fullSource(), &fakeNarrator{err: errors.New("model offline")}).
		Score(context.Background(), "1000 E 5th St, Austin, TX 78702", 300000)
	if err != nil {
		t.Fatal(err)
	}

	if failed.Breakdown.TotalScore != ok.Breakdown.TotalScore ||
		failed.Breakdown.ValueScore != ok.Breakdown.ValueScore ||
		failed.Breakdown.LocationScore != ok.Breakdown.LocationScore ||
		failed.Breakdown.FeatureScore != ok.Breakdown.FeatureScore {
		t.Error("narrative failure must not change numeric scores")
	}
	if failed.Breakdown.AIAnalysis != PlaceholderNarrative {
		t.Errorf("expected placeholder, got %q", failed.Breakdown.AIAnalysis)
	}
	if failed.ExchangeAnalysis != PlaceholderNarrative {
		t.Errorf("expected placeholder exchange narrative, got %q", failed.ExchangeAnalysis)
	}
}

func TestValueScore(t *testing.T) {
	tests := []struct {
		name     string
		price    float64
		value    float64
		expected int
	}{
		{"Exact match", 300000, 300000, 40},
		{"Lower aligned boundary", 270000, 300000, 40},
		{"Upper aligned boundary", 330000, 300000, 40},
		{"Just below aligned band", 269999, 300000, 35},
		{"Reasonable low boundary", 240000, 300000, 35},
		{"Just below reasonable band", 239999, 300000, 30},
		{"Reasonable high boundary", 360000, 300000, 35},
		{"Deep discount", 150000, 300000, 30},
		{"Significantly above", 400000, 300000, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, factors := valueScore(tt.price, tt.value, nil)
			if score != tt.expected {
				t.Errorf("valueScore(%v/%v) = %d, want %d", tt.price, tt.value, score, tt.expected)
			}
			if len(factors) == 0 {
				t.Error("expected at least one factor")
			}
		})
	}
}

func TestFeatureScore(t *testing.T) {
	all := rentcast.Features{GarageSpaces: 2, CoolingType: "Central", HeatingType: "Central", FloorCount: 2, Pool: true}
	if score, _ := featureScore(all, nil); score != 30 {
		t.Errorf("all features = %d, want 30", score)
	}

	if score, factors := featureScore(rentcast.Features{GarageSpaces: 1, FloorCount: 1}, nil); score != 0 || len(factors) != 0 {
		t.Errorf("bare property = %d with %v, want 0 and no factors", score, factors)
	}

	if score, _ := featureScore(rentcast.Features{CoolingType: "Window", HeatingType: "Baseboard"}, nil); score != 0 {
		t.Errorf("non-central systems must not score, got %d", score)
	}
}

func TestLocationScore(t *testing.T) {
	tests := []struct {
		name     string
		sqft     int
		market   rentcast.MarketStats
		expected int
	}{
		{"Aligned size, fast market", 1800, rentcast.MarketStats{AverageSquareFootage: 1800, AverageDaysOnMarket: 25}, 30},
		{"Aligned size, moderate market", 1800, rentcast.MarketStats{AverageSquareFootage: 1800, AverageDaysOnMarket: 60}, 25},
		{"Reasonable size, slow market", 1200, rentcast.MarketStats{AverageSquareFootage: 1800, AverageDaysOnMarket: 90}, 15},
		{"Unusual size, fast market", 400, rentcast.MarketStats{AverageSquareFootage: 1800, AverageDaysOnMarket: 10}, 20},
		{"No market sqft skips size points", 1800, rentcast.MarketStats{AverageDaysOnMarket: 25}, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, _ := locationScore(tt.sqft, &tt.market, nil)
			if score != tt.expected {
				t.Errorf("locationScore = %d, want %d", score, tt.expected)
			}
		})
	}
}
