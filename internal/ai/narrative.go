package ai

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/david/propscore/internal/analysis"
)

// Narrator generates investment and exchange narratives from structured
// metrics using a local LLM. It satisfies analysis.NarrativeGenerator.
type Narrator struct {
	Client *OllamaClient
}

func NewNarrator(client *OllamaClient) *Narrator {
	return &Narrator{Client: client}
}

func (n *Narrator) Generate(ctx context.Context, kind analysis.NarrativeKind, data analysis.NarrativeData) (string, error) {
	var prompt string
	switch kind {
	case analysis.NarrativeExchange:
		prompt = exchangePrompt(data)
	default:
		prompt = investmentPrompt(data)
	}

	text, err := n.Client.GenerateCompletion(ctx, prompt, false)
	if err != nil {
		return "", fmt.Errorf("narrative generation failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func investmentPrompt(d analysis.NarrativeData) string {
	var b strings.Builder

	b.WriteString("You are an expert real estate investment analyst. Analyze this property data and provide actionable insights for an income property investor.\n\n")

	b.WriteString("Property Details:\n")
	fmt.Fprintf(&b, "- Type: %s\n", d.PropertyType)
	fmt.Fprintf(&b, "- Configuration: %g beds, %g baths, %d sqft\n", d.Bedrooms, d.Bathrooms, d.SquareFootage)
	fmt.Fprintf(&b, "- Year Built: %d\n\n", d.YearBuilt)

	b.WriteString("Valuation:\n")
	if d.Value != nil {
		fmt.Fprintf(&b, "- Estimated Value: %s\n", usd(d.Value.Price))
		fmt.Fprintf(&b, "- Value Range: %s to %s\n\n", usd(d.Value.PriceRangeLow), usd(d.Value.PriceRangeHigh))
	} else {
		b.WriteString("- No value estimate available\n\n")
	}

	b.WriteString("Income Metrics:\n")
	fmt.Fprintf(&b, "- Monthly Rent: %s\n", usd(d.Income.MonthlyRent))
	fmt.Fprintf(&b, "- Gross Rent Multiplier: %.1fx\n", d.Income.GRM)
	fmt.Fprintf(&b, "- Est. Cap Rate: %.1f%%\n\n", d.Income.CapRatePct)

	b.WriteString("Market Metrics:\n")
	fmt.Fprintf(&b, "- Median Days on Market: %.0f\n", d.Comps.MedianDaysOnMarket)
	fmt.Fprintf(&b, "- Average Comp Correlation: %.1f%%\n\n", d.Comps.AverageCorrelation*100)

	b.WriteString(`Provide a detailed investment analysis following this structure using markdown:

# Investment Opportunity Overview
Provide a concise summary of the investment opportunity, highlighting the most compelling aspects.

## Valuation Analysis
Analyze the property's value proposition, price positioning, and negotiation opportunities.

## Income Potential
Evaluate the rental income potential, market positioning, and income stability factors.

## Market Position
Assess how this property compares to market comps and its competitive advantages/disadvantages.

## Risk Assessment
Identify key risks and mitigating factors.

## Strategic Recommendations
1. Outline specific action items for due diligence
2. Suggest negotiation strategy
3. Recommend property improvements that could enhance value

Format numbers with commas for thousands and use proper currency formatting (e.g., $1,000,000). Focus on actionable insights that would help an investor make a decision. Be direct about both opportunities and concerns.`)

	return b.String()
}

func exchangePrompt(d analysis.NarrativeData) string {
	var b strings.Builder

	b.WriteString("You are a 1031 exchange specialist. Analyze this property data and provide insights specific to 1031 exchange considerations.\n\n")

	b.WriteString("Property Details:\n")
	fmt.Fprintf(&b, "- Type: %s\n", d.PropertyType)
	if d.Value != nil {
		fmt.Fprintf(&b, "- Value: %s\n", usd(d.Value.Price))
	}
	fmt.Fprintf(&b, "- Market Days: %.0f\n\n", d.Comps.MedianDaysOnMarket)

	b.WriteString("Timeline Metrics:\n")
	fmt.Fprintf(&b, "- Available Properties: %d\n", d.Exchange.AvailableProperties)
	fmt.Fprintf(&b, "- Median Days to Close: %.0f\n", d.Exchange.MedianDaysToClose)
	fmt.Fprintf(&b, "- 180-Day Close Rate: %.0f%%\n", d.Exchange.CloseRatePct)
	fmt.Fprintf(&b, "- Like-Kind Status: %s\n\n", d.Exchange.LikeKindStatus)

	b.WriteString(`Provide a 1031-focused analysis following this structure using markdown:

# 1031 Exchange Suitability Analysis

## Timeline Feasibility
Evaluate the likelihood of meeting 45-day identification and 180-day closing requirements based on market metrics.

## Like-Kind Qualification
Assess property's qualification as like-kind replacement and any potential concerns.

## Value Match Analysis
Analyze value adequacy for exchange purposes and equity preservation.

## Market Liquidity Risk
Evaluate market conditions affecting transaction timeline feasibility.

## Critical Recommendations
1. Specific action items for the 45-day period
2. Risk mitigation strategies
3. Timeline management recommendations

Format numbers with commas for thousands and use proper currency formatting (e.g., $1,000,000). Focus on exchange-specific considerations and timeline-critical factors. Be direct about feasibility concerns and mitigation strategies.`)

	return b.String()
}

// usd formats a dollar amount with thousands separators, no cents.
func usd(amount float64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}

	s := strconv.FormatFloat(amount, 'f', 0, 64)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, digit := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	return b.String()
}
