package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/propscore/internal/db"
	"github.com/david/propscore/internal/rentcast"
)

func main() {
	limit := flag.Int("limit", 10, "number of recent analyses to show")
	zip := flag.String("zip", "", "filter by zip code")
	address := flag.String("address", "", "show the latest analysis for one address")
	flag.Parse()

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	store := db.NewStore(pool)

	if *address != "" {
		a, err := store.GetLatestByAddress(ctx, rentcast.FormatAddress(*address))
		if err != nil {
			log.Fatalf("No analysis found for %q: %v", *address, err)
		}
		fmt.Printf("%s  score=%d (%s)  GRM=%.1f  cap=%.1f%%  analyzed %s\n",
			a.FormattedAddress, a.TotalScore, a.Confidence, a.GRM, a.CapRatePct,
			a.CreatedAt.Format("2006-01-02 15:04"))
		for _, factor := range a.Factors {
			fmt.Printf("  - %s\n", factor)
		}
		return
	}
	result, err := store.ListAnalyses(ctx, db.ListParams{
		ZipCode: *zip,
		SortBy:  "newest",
		Limit:   *limit,
	})
	if err != nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Address", "Price", "Score", "Confidence", "GRM", "Cap Rate", "Risk", "Analyzed At"})

	for _, a := range result.Analyses {
		t.AppendRow(table.Row{
			a.FormattedAddress,
			a.ConsideredPrice,
			a.TotalScore,
			a.Confidence,
			a.GRM,
			a.CapRatePct,
			a.TimelineRisk,
			a.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	t.Render()
}
