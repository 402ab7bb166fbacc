package analysis

import (
	"context"

	"github.com/david/propscore/internal/rentcast"
)

// DataSource is the slice of the property data provider the scorer needs.
// Implementations return rentcast.ErrNoResults (or any error) when data is
// unavailable; the scorer degrades instead of failing.
type DataSource interface {
	Property(ctx context.Context, address string) (*rentcast.PropertyRecord, error)
	ValueEstimate(ctx context.Context, address string, hint *rentcast.PropertyRecord) (*rentcast.ValueEstimate, error)
	RentEstimate(ctx context.Context, address string, hint *rentcast.PropertyRecord) (*rentcast.RentEstimate, error)
	MarketStats(ctx context.Context, zipCode string) (*rentcast.MarketStats, error)
}

// NarrativeKind selects which analysis narrative to generate.
type NarrativeKind string

const (
	NarrativeInvestment NarrativeKind = "investment"
	NarrativeExchange   NarrativeKind = "exchange"
)

// NarrativeData is the structured metrics handed to the narrative generator.
type NarrativeData struct {
	PropertyType  string
	Bedrooms      float64
	Bathrooms     float64
	SquareFootage int
	YearBuilt     int

	Value    *rentcast.ValueEstimate
	Rent     *rentcast.RentEstimate
	Income   IncomeMetrics
	Exchange ExchangeMetrics
	Comps    CompsSummary
}

// NarrativeGenerator produces a natural-language analysis from structured
// metrics. It may fail; callers substitute PlaceholderNarrative.
type NarrativeGenerator interface {
	Generate(ctx context.Context, kind NarrativeKind, data NarrativeData) (string, error)
}

// PlaceholderNarrative is returned in place of a narrative whenever
// generation fails. Numeric results are never affected by that failure.
const PlaceholderNarrative = "Unable to generate analysis at this time. Please try again later."

// ValueAnalysis echoes the provider's value estimate inside the breakdown.
type ValueAnalysis struct {
	EstimatedValue float64 `json:"estimated_value"`
	ValueRangeLow  float64 `json:"value_range_low"`
	ValueRangeHigh float64 `json:"value_range_high"`
}

// MarketContext echoes the zip-level sale statistics inside the breakdown.
type MarketContext struct {
	AvgValue        float64 `json:"avg_value"`
	AvgPriceSqft    float64 `json:"avg_price_sqft"`
	TotalProperties int     `json:"total_properties"`
	AvgSqft         float64 `json:"avg_sqft"`
	AvgDaysOnMarket float64 `json:"avg_days_on_market"`
}

// ScoreBreakdown is the scorer's primary output. Field names and ranges are
// the contract consumed by the API and the CLI tools.
type ScoreBreakdown struct {
	TotalScore         int                   `json:"total_score"`
	ValueScore         int                   `json:"value_score"`
	LocationScore      int                   `json:"location_score"`
	FeatureScore       int                   `json:"feature_score"`
	Confidence         string                `json:"confidence"`
	Factors            []string              `json:"factors"`
	PriceBand          string                `json:"price_band"`
	MarketContext      MarketContext         `json:"market_context"`
	ValidationExamples []rentcast.Comparable `json:"validation_examples"`
	ValueAnalysis      ValueAnalysis         `json:"value_analysis"`
	AIAnalysis         string                `json:"ai_analysis"`
}

// Result is a complete analysis: the breakdown plus the derived income,
// exchange, and tax sections and the exchange narrative.
type Result struct {
	Address          string
	FormattedAddress string
	ZipCode          string
	ConsideredPrice  float64

	Property  *rentcast.PropertyRecord
	Breakdown ScoreBreakdown
	Income    IncomeMetrics
	Exchange  ExchangeMetrics
	Comps     CompsSummary
	TaxTrends *TaxTrends

	// Comparable-set counts under the configured filters.
	SimilarSizeCount int
	RecentSalesCount int

	ExchangeAnalysis string
}
