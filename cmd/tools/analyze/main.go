package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"

	"github.com/david/propscore/internal/ai"
	"github.com/david/propscore/internal/analysis"
	"github.com/david/propscore/internal/config"
	"github.com/david/propscore/internal/rentcast"
)

func main() {
	address := flag.String("address", "", "property address, e.g. \"1000 E 5th St, Austin, TX 78702\"")
	price := flag.Float64("price", 0, "considered purchase price")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall timeout")
	flag.Parse()

	if *address == "" || *price <= 0 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, err := config.Load("internal/config/config/app.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	provider := rentcast.NewClient(cfg.Provider.BaseURL, cfg.Provider.APIKey)
	provider.MaxRetries = cfg.Provider.MaxRetries
	narrator := ai.NewNarrator(ai.NewOllamaClient(cfg.Ollama.BaseURL, cfg.Ollama.EmbedModel, cfg.Ollama.GenModel))

	scorer := analysis.NewScorer(provider, narrator)
	scorer.SizeTolerancePct = cfg.Comps.SizeTolerancePct
	scorer.RecencyDays = cfg.Comps.RecencyDays

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := scorer.Score(ctx, *address, *price)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	printBreakdown(result)
	printIncome(result)
	printExchange(result)
	printExamples(result)

	fmt.Println("\n--- Investment Analysis ---")
	fmt.Println(result.Breakdown.AIAnalysis)
	fmt.Println("\n--- 1031 Exchange Analysis ---")
	fmt.Println(result.ExchangeAnalysis)
}

func printBreakdown(result *analysis.Result) {
	b := result.Breakdown

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(result.FormattedAddress)
	t.AppendHeader(table.Row{"Total", "Value", "Location", "Features", "Confidence", "Price Band"})
	t.AppendRow(table.Row{b.TotalScore, b.ValueScore, b.LocationScore, b.FeatureScore, b.Confidence, b.PriceBand})
	t.Render()

	for _, factor := range b.Factors {
		fmt.Printf("  - %s\n", factor)
	}
}

func printIncome(result *analysis.Result) {
	m := result.Income

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Income Metrics")
	t.AppendHeader(table.Row{"Monthly Rent", "GRM", "Cap Rate", "Gross Yield", "$/sqft", "Stability", "Liquidity"})
	t.AppendRow(table.Row{
		fmt.Sprintf("$%.0f", m.MonthlyRent),
		fmt.Sprintf("%.1fx", m.GRM),
		fmt.Sprintf("%.1f%%", m.CapRatePct),
		fmt.Sprintf("%.1f%%", m.GrossYieldPct),
		fmt.Sprintf("$%.0f", m.PricePerSqft),
		fmt.Sprintf("%.0f", m.StabilityScore),
		fmt.Sprintf("%.0f", m.LiquidityScore),
	})
	t.Render()
}

func printExchange(result *analysis.Result) {
	m := result.Exchange

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("1031 Exchange")
	t.AppendHeader(table.Row{"Available", "Median Close", "Avg DOM", "180d Close Rate", "Timeline Risk", "Like-Kind"})
	t.AppendRow(table.Row{
		m.AvailableProperties,
		fmt.Sprintf("%.0f days", m.MedianDaysToClose),
		fmt.Sprintf("%.0f days", m.AverageDaysOnMarket),
		fmt.Sprintf("%.0f%%", m.CloseRatePct),
		m.TimelineRisk,
		m.LikeKindStatus,
	})
	t.Render()
}

func printExamples(result *analysis.Result) {
	if len(result.Breakdown.ValidationExamples) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Top Comparables")
	t.AppendHeader(table.Row{"Address", "Sqft", "Beds", "Baths", "Price", "Correlation"})
	for _, comp := range result.Breakdown.ValidationExamples {
		correlation := "-"
		if comp.Correlation != nil {
			correlation = fmt.Sprintf("%.2f", *comp.Correlation)
		}
		t.AppendRow(table.Row{comp.FormattedAddress, comp.SquareFootage, comp.Bedrooms, comp.Bathrooms, fmt.Sprintf("$%.0f", comp.Price), correlation})
	}
	t.Render()
}
