package models

import (
	"time"

	"github.com/google/uuid"
)

// Analysis is a persisted property analysis: the inputs, the score
// breakdown, and the derived metric sections as stored in the analyses table.
type Analysis struct {
	ID               uuid.UUID `json:"id"`
	Address          string    `json:"address"`
	FormattedAddress string    `json:"formatted_address"`
	ZipCode          string    `json:"zip_code"`
	PropertyType     string    `json:"property_type"`
	ConsideredPrice  float64   `json:"considered_price"`
	PriceBand        string    `json:"price_band"`

	TotalScore    int    `json:"total_score"`
	ValueScore    int    `json:"value_score"`
	LocationScore int    `json:"location_score"`
	FeatureScore  int    `json:"feature_score"`
	Confidence    string `json:"confidence"`

	EstimatedValue float64 `json:"estimated_value"`
	MonthlyRent    float64 `json:"monthly_rent"`
	GRM            float64 `json:"grm"`
	CapRatePct     float64 `json:"cap_rate_pct"`
	TimelineRisk   string  `json:"timeline_risk"`
	LikeKindStatus string  `json:"like_kind_status"`

	Factors          []string               `json:"factors"`
	Breakdown        map[string]interface{} `json:"breakdown"`
	AIAnalysis       string                 `json:"ai_analysis"`
	ExchangeAnalysis string                 `json:"exchange_analysis"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
