package db

import (
	"strings"
	"testing"
)

func TestBuildListFilter_Empty(t *testing.T) {
	where, args, argIdx := buildListFilter(ListParams{})

	if where != "WHERE 1=1" {
		t.Errorf("unexpected clause: %s", where)
	}
	if len(args) != 0 || argIdx != 1 {
		t.Errorf("expected no args, got %v (next index %d)", args, argIdx)
	}
}

func TestBuildListFilter_AllFilters(t *testing.T) {
	params := ListParams{
		Query:        "austin bungalow",
		ZipCode:      "78702",
		PriceBand:    "200K-500K",
		Confidence:   "high",
		TimelineRisk: "Low",
		PropertyType: "Single Family",
		MinScore:     70,
		MinPrice:     100000,
		MaxPrice:     400000,
	}

	where, args, argIdx := buildListFilter(params)

	mustContain := []string{
		"search_vector @@ plainto_tsquery",
		"zip_code = $2",
		"price_band = $3",
		"confidence = $4",
		"timeline_risk = $5",
		"property_type = $6",
		"total_score >= $7",
		"considered_price >= $8",
		"considered_price <= $9",
	}
	for _, token := range mustContain {
		if !strings.Contains(where, token) {
			t.Errorf("clause missing %q: %s", token, where)
		}
	}

	if len(args) != 9 {
		t.Errorf("expected 9 args, got %d: %v", len(args), args)
	}
	if argIdx != 10 {
		t.Errorf("next placeholder index = %d, want 10", argIdx)
	}
}

func TestBuildListFilter_PlaceholdersStayAligned(t *testing.T) {
	// Skipping the query must shift every later placeholder down.
	where, args, _ := buildListFilter(ListParams{ZipCode: "78702", MinScore: 50})

	if !strings.Contains(where, "zip_code = $1") || !strings.Contains(where, "total_score >= $2") {
		t.Errorf("placeholders misaligned: %s", where)
	}
	if len(args) != 2 {
		t.Errorf("expected 2 args, got %v", args)
	}
}
