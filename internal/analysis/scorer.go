package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/david/propscore/internal/rentcast"
)

// ErrInvalidInput marks validation failures detected before any provider
// call. Wrap with context, check with errors.Is.
var ErrInvalidInput = errors.New("invalid input")

const (
	maxValidationExamples = 5

	defaultSizeTolerancePct = 30
	defaultRecencyDays      = 180
)

// Scorer orchestrates provider lookups, comparable aggregation, and the
// weighted composite score. Zero-valued tuning fields fall back to defaults.
type Scorer struct {
	Source   DataSource
	Narrator NarrativeGenerator

	SizeTolerancePct float64
	RecencyDays      int

	// Now is overridable for tests.
	Now func() time.Time
}

func NewScorer(source DataSource, narrator NarrativeGenerator) *Scorer {
	return &Scorer{
		Source:           source,
		Narrator:         narrator,
		SizeTolerancePct: defaultSizeTolerancePct,
		RecencyDays:      defaultRecencyDays,
		Now:              time.Now,
	}
}

// Score runs the full analysis pipeline for one address. It returns an error
// only for invalid input; provider gaps degrade the result instead (a missing
// property record yields a zero-score breakdown with an explanatory factor,
// missing estimates lower confidence, a narrative failure substitutes the
// placeholder text).
func (s *Scorer) Score(ctx context.Context, address string, consideredPrice float64) (*Result, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: address is required", ErrInvalidInput)
	}
	if consideredPrice <= 0 {
		return nil, fmt.Errorf("%w: considered price must be positive", ErrInvalidInput)
	}

	result := &Result{
		Address:         address,
		ConsideredPrice: consideredPrice,
		Breakdown: ScoreBreakdown{
			Confidence: "low",
			Factors:    []string{},
			PriceBand:  PriceBand(consideredPrice),
		},
	}

	property, err := s.Source.Property(ctx, address)
	if err != nil {
		log.Printf("scorer: property lookup failed for %q: %v", address, err)
		result.Breakdown.Factors = append(result.Breakdown.Factors, "Property data unavailable - score could not be computed")
		result.Breakdown.AIAnalysis = PlaceholderNarrative
		result.ExchangeAnalysis = PlaceholderNarrative
		return result, nil
	}
	result.Property = property
	result.FormattedAddress = property.FormattedAddress
	result.ZipCode = property.ZipCode

	value, rent, market := s.fetchEstimates(ctx, address, property)

	// A priceless estimate is no estimate: scoring it would divide by zero.
	if value != nil && value.Price <= 0 {
		log.Printf("scorer: value estimate for %q has no price, treating as absent", address)
		value = nil
	}

	b := &result.Breakdown
	if value != nil {
		b.ValueAnalysis = ValueAnalysis{
			EstimatedValue: value.Price,
			ValueRangeLow:  value.PriceRangeLow,
			ValueRangeHigh: value.PriceRangeHigh,
		}
		b.ValueScore, b.Factors = valueScore(consideredPrice, value.Price, b.Factors)
	}

	if market != nil {
		b.MarketContext = MarketContext{
			AvgValue:        market.AveragePrice,
			AvgPriceSqft:    market.AveragePricePerSquareFoot,
			TotalProperties: market.TotalListings,
			AvgSqft:         market.AverageSquareFootage,
			AvgDaysOnMarket: market.AverageDaysOnMarket,
		}
		b.LocationScore, b.Factors = locationScore(property.SquareFootage, market, b.Factors)
	}

	b.FeatureScore, b.Factors = featureScore(property.Features, b.Factors)
	b.TotalScore = b.ValueScore + b.LocationScore + b.FeatureScore

	switch {
	case value != nil && market != nil:
		b.Confidence = "high"
	case value != nil || market != nil:
		b.Confidence = "medium"
	}

	var comps []rentcast.Comparable
	if value != nil {
		comps = value.Comparables
		ranked := RankBySimilarity(comps)
		if len(ranked) > maxValidationExamples {
			ranked = ranked[:maxValidationExamples]
		}
		b.ValidationExamples = ranked
	}

	result.Comps = Summarize(comps)
	result.SimilarSizeCount = len(FilterBySize(comps, property.SquareFootage, s.sizeTolerance()))
	result.RecentSalesCount = len(FilterRecent(comps, s.recencyDays(), s.now()))
	result.Income = DeriveIncomeMetrics(value, rent, property.SquareFootage)
	result.Exchange = DeriveExchangeMetrics(property.PropertyType, comps)
	result.TaxTrends = TaxAssessmentTrends(property.TaxAssessments)
	if value != nil {
		result.TaxTrends.ApplyValueRatio(value.Price)
	}

	data := NarrativeData{
		PropertyType:  property.PropertyType,
		Bedrooms:      property.Bedrooms,
		Bathrooms:     property.Bathrooms,
		SquareFootage: property.SquareFootage,
		YearBuilt:     property.YearBuilt,
		Value:         value,
		Rent:          rent,
		Income:        result.Income,
		Exchange:      result.Exchange,
		Comps:         result.Comps,
	}
	b.AIAnalysis = s.narrative(ctx, NarrativeInvestment, data)
	result.ExchangeAnalysis = s.narrative(ctx, NarrativeExchange, data)

	return result, nil
}

// fetchEstimates runs the three independent provider lookups concurrently.
// Each failure is logged and leaves its slot nil.
func (s *Scorer) fetchEstimates(ctx context.Context, address string, property *rentcast.PropertyRecord) (*rentcast.ValueEstimate, *rentcast.RentEstimate, *rentcast.MarketStats) {
	var (
		wg     sync.WaitGroup
		value  *rentcast.ValueEstimate
		rent   *rentcast.RentEstimate
		market *rentcast.MarketStats
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		v, err := s.Source.ValueEstimate(ctx, address, property)
		if err != nil {
			log.Printf("scorer: value estimate unavailable for %q: %v", address, err)
			return
		}
		value = v
	}()
	go func() {
		defer wg.Done()
		r, err := s.Source.RentEstimate(ctx, address, property)
		if err != nil {
			log.Printf("scorer: rent estimate unavailable for %q: %v", address, err)
			return
		}
		rent = r
	}()
	go func() {
		defer wg.Done()
		m, err := s.Source.MarketStats(ctx, property.ZipCode)
		if err != nil {
			log.Printf("scorer: market stats unavailable for zip %q: %v", property.ZipCode, err)
			return
		}
		market = m
	}()
	wg.Wait()

	return value, rent, market
}

func (s *Scorer) narrative(ctx context.Context, kind NarrativeKind, data NarrativeData) string {
	if s.Narrator == nil {
		return PlaceholderNarrative
	}
	text, err := s.Narrator.Generate(ctx, kind, data)
	if err != nil || strings.TrimSpace(text) == "" {
		log.Printf("scorer: %s narrative generation failed: %v", kind, err)
		return PlaceholderNarrative
	}
	return text
}

// valueScore awards up to 40 points by the ratio of considered price to
// estimated value. Band checks run in order, so the boundary ratios 0.8 and
// 1.2 land in the 35-point band even though 0.8 also satisfies "below 0.9".
func valueScore(consideredPrice, estimatedValue float64, factors []string) (int, []string) {
	ratio := consideredPrice / estimatedValue

	var score int
	switch {
	case ratio >= 0.9 && ratio <= 1.1:
		score = 40
		factors = append(factors, "Purchase price aligns well with estimated value")
	case ratio >= 0.8 && ratio <= 1.2:
		score = 35
		factors = append(factors, "Purchase price reasonably aligned with estimated value")
	case ratio < 0.9:
		score = 30
		factors = append(factors, "Potential value opportunity - below estimated value")
	default:
		score = 20
		factors = append(factors, "Purchase price significantly above estimated value")
	}

	diffPct := math.Abs(consideredPrice-estimatedValue) / estimatedValue * 100
	if consideredPrice > estimatedValue {
		factors = append(factors, fmt.Sprintf("Consider negotiating - asking price is %.1f%% above estimated value", diffPct))
	} else if consideredPrice < estimatedValue {
		factors = append(factors, fmt.Sprintf("Potential equity - asking price is %.1f%% below estimated value", diffPct))
	}
	return score, factors
}

// locationScore awards up to 30 points: 15 for size fit against the market
// average and 15 for market velocity.
func locationScore(subjectSqft int, market *rentcast.MarketStats, factors []string) (int, []string) {
	score := 0

	if subjectSqft > 0 && market.AverageSquareFootage > 0 {
		sizeRatio := float64(subjectSqft) / market.AverageSquareFootage
		switch {
		case sizeRatio >= 0.8 && sizeRatio <= 1.2:
			score += 15
			factors = append(factors, "Property size aligns with market average")
		case sizeRatio >= 0.6 && sizeRatio <= 1.4:
			score += 10
			factors = append(factors, "Property size reasonable for market")
		default:
			score += 5
			factors = append(factors, "Unusual size for market")
		}
	}

	switch dom := market.AverageDaysOnMarket; {
	case dom <= 30:
		score += 15
		factors = append(factors, "High-demand market area")
	case dom <= 60:
		score += 10
		factors = append(factors, "Moderate market activity")
	default:
		score += 5
		factors = append(factors, "Slower market activity")
	}

	return score, factors
}

// featureScore awards up to 30 points for property amenities (8+6+6+5+5).
func featureScore(features rentcast.Features, factors []string) (int, []string) {
	score := 0

	if features.GarageSpaces > 1 {
		score += 8
		factors = append(factors, "Multiple garage spaces add value")
	}
	if features.CoolingType == "Central" {
		score += 6
		factors = append(factors, "Central cooling system")
	}
	if features.HeatingType == "Central" {
		score += 6
		factors = append(factors, "Central heating system")
	}
	if features.FloorCount > 1 {
		score += 5
		factors = append(factors, "Multiple floors")
	}
	if features.Pool {
		score += 5
		factors = append(factors, "Pool adds value")
	}

	return score, factors
}

func (s *Scorer) sizeTolerance() float64 {
	if s.SizeTolerancePct <= 0 {
		return defaultSizeTolerancePct
	}
	return s.SizeTolerancePct
}

func (s *Scorer) recencyDays() int {
	if s.RecencyDays <= 0 {
		return defaultRecencyDays
	}
	return s.RecencyDays
}

func (s *Scorer) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
