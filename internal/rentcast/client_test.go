package rentcast

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFormatAddress(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected string
	}{
		{
			name:     "Full address is reformatted",
			in:       "4190  Sunrise Creek Dr,  San Antonio, tx 78244",
			expected: "4190 Sunrise Creek Dr, San Antonio, TX 78244",
		},
		{
			name:     "Missing zip passes through",
			in:       "1000 E 5th St, Austin, TX",
			expected: "1000 E 5th St, Austin, TX",
		},
		{
			name:     "Too few components passes through",
			in:       "1000 E 5th St 78702",
			expected: "1000 E 5th St 78702",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatAddress(tt.in); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestValidZip(t *testing.T) {
	valid := []string{"78702", "00501"}
	invalid := []string{"", "7870", "787021", "78a02", "78702 "}

	for _, z := range valid {
		if !ValidZip(z) {
			t.Errorf("expected %q to be valid", z)
		}
	}
	for _, z := range invalid {
		if ValidZip(z) {
			t.Errorf("expected %q to be invalid", z)
		}
	}
}

func TestProperty_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	_, err := client.Property(context.Background(), "123 Nowhere Ln, Austin, TX 78702")
	if !errors.Is(err, ErrNoResults) {
		t.Fatalf("expected ErrNoResults, got %v", err)
	}
}

func TestProperty_EmptyListIsNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	_, err := client.Property(context.Background(), "123 Nowhere Ln, Austin, TX 78702")
	if !errors.Is(err, ErrNoResults) {
		t.Fatalf("expected ErrNoResults, got %v", err)
	}
}

func TestProperty_Found(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Api-Key"); got != "test-key" {
			t.Errorf("expected api key header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{
			"formattedAddress": "1000 E 5th St, Austin, TX 78702",
			"propertyType": "Single Family",
			"bedrooms": 3,
			"bathrooms": 2,
			"squareFootage": 1800,
			"yearBuilt": 1995,
			"zipCode": "78702",
			"features": {"garageSpaces": 2, "coolingType": "Central", "pool": true}
		}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	rec, err := client.Property(context.Background(), "1000 E 5th St, Austin, TX 78702")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.SquareFootage != 1800 || rec.ZipCode != "78702" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Features.GarageSpaces != 2 || !rec.Features.Pool {
		t.Errorf("features not decoded: %+v", rec.Features)
	}
}

func TestMarketStats_RentalOnlyFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("zipCode"); got != "78702" {
			t.Errorf("expected zipCode param, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rentalData": {"totalListings": 42, "averageSquareFootage": 1500, "averageDaysOnMarket": 28}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	stats, err := client.MarketStats(context.Background(), "78702")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalListings != 42 || stats.AverageDaysOnMarket != 28 {
		t.Errorf("fallback stats wrong: %+v", stats)
	}
	if stats.AveragePrice != 0 {
		t.Errorf("rental fallback must not invent sale prices, got %v", stats.AveragePrice)
	}
}

func TestMarketStats_RejectsBadZip(t *testing.T) {
	client := NewClient("http://example.invalid", "test-key")
	if _, err := client.MarketStats(context.Background(), "787"); err == nil {
		t.Fatal("expected error for short zip")
	}
}

func TestGet_RetriesOn503(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"price": 300000, "priceRangeLow": 280000, "priceRangeHigh": 320000}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	est, err := client.ValueEstimate(context.Background(), "1000 E 5th St, Austin, TX 78702", nil)
	if err != nil {
		t.Fatalf("unexpected error after retries: %v", err)
	}
	if est.Price != 300000 {
		t.Errorf("unexpected estimate: %+v", est)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}
