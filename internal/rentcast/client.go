package rentcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrNoResults means the provider has no record for the requested address or
// zip code (HTTP 404 or an empty result list). Callers must treat this as a
// reported outcome, not a failure.
var ErrNoResults = errors.New("rentcast: no results")

const defaultBaseURL = "https://api.rentcast.io/v1"

// compCount is the number of comparables requested from the AVM endpoints.
const compCount = 20

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client

	MaxRetries int
}

func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTP:       &http.Client{Timeout: 15 * time.Second},
		MaxRetries: 2,
	}
}

// get performs a GET with retries on timeouts and retryable status codes,
// decoding the JSON body into out. A 404 maps to ErrNoResults.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	reqURL := c.BaseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 0.5s, 1s + jitter
			backoff := time.Duration(500*(1<<uint(attempt-1))) * time.Millisecond
			jitter := time.Duration(rand.Intn(100)) * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff + jitter):
			}
		}

		req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Api-Key", c.APIKey)

		resp, err := c.HTTP.Do(req)
		if err != nil {
			lastErr = err
			if shouldRetry(err, 0) {
				continue
			}
			return fmt.Errorf("rentcast request failed: %w", err)
		}

		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			return ErrNoResults
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("status code %d", resp.StatusCode)
			if shouldRetry(nil, resp.StatusCode) {
				continue
			}
			return fmt.Errorf("rentcast returned status: %d", resp.StatusCode)
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func shouldRetry(err error, statusCode int) bool {
	if err != nil {
		if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
			return true
		}
		return false
	}

	retryStatusCodes := map[int]bool{
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
	}
	return retryStatusCodes[statusCode]
}

// Property looks up the subject property record for an address.
func (c *Client) Property(ctx context.Context, address string) (*PropertyRecord, error) {
	formatted := FormatAddress(address)

	params := url.Values{}
	params.Set("address", formatted)

	var records []PropertyRecord
	if err := c.get(ctx, "/properties", params, &records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoResults
	}

	rec := records[0]
	if rec.SquareFootage <= 0 || rec.ZipCode == "" {
		return nil, fmt.Errorf("rentcast: property record missing required fields")
	}
	return &rec, nil
}

// ValueEstimate fetches the AVM sale-value estimate, using the property
// record as a hint to improve comparable selection.
func (c *Client) ValueEstimate(ctx context.Context, address string, hint *PropertyRecord) (*ValueEstimate, error) {
	params := avmParams(address, hint)

	var est ValueEstimate
	if err := c.get(ctx, "/avm/value", params, &est); err != nil {
		return nil, err
	}
	if est.Price <= 0 {
		return nil, ErrNoResults
	}
	return &est, nil
}

// RentEstimate fetches the AVM long-term rent estimate.
func (c *Client) RentEstimate(ctx context.Context, address string, hint *PropertyRecord) (*RentEstimate, error) {
	params := avmParams(address, hint)

	var est RentEstimate
	if err := c.get(ctx, "/avm/rent/long-term", params, &est); err != nil {
		return nil, err
	}
	if est.Rent <= 0 {
		return nil, ErrNoResults
	}
	return &est, nil
}

// MarketStats fetches sale statistics for a zip code. Zips that only report
// rental activity get minimal sale stats synthesized from the rental side so
// downstream velocity metrics still work.
func (c *Client) MarketStats(ctx context.Context, zipCode string) (*MarketStats, error) {
	if !ValidZip(zipCode) {
		return nil, fmt.Errorf("rentcast: invalid zip code %q", zipCode)
	}

	params := url.Values{}
	params.Set("zipCode", zipCode)
	params.Set("dataType", "All")
	params.Set("historyRange", "12")

	var resp marketResponse
	if err := c.get(ctx, "/markets", params, &resp); err != nil {
		return nil, err
	}

	if resp.SaleData != nil {
		return resp.SaleData, nil
	}
	if resp.RentalData != nil {
		return &MarketStats{
			TotalListings:        resp.RentalData.TotalListings,
			AverageSquareFootage: resp.RentalData.AverageSquareFootage,
			AverageDaysOnMarket:  resp.RentalData.AverageDaysOnMarket,
		}, nil
	}
	return nil, ErrNoResults
}

func avmParams(address string, hint *PropertyRecord) url.Values {
	params := url.Values{}
	params.Set("address", FormatAddress(address))
	params.Set("compCount", strconv.Itoa(compCount))
	if hint == nil {
		return params
	}

	propertyType := hint.PropertyType
	if propertyType == "" {
		propertyType = "Single Family"
	}
	params.Set("propertyType", propertyType)
	if hint.Bedrooms > 0 {
		params.Set("bedrooms", strconv.FormatFloat(hint.Bedrooms, 'f', -1, 64))
	}
	if hint.Bathrooms > 0 {
		params.Set("bathrooms", strconv.FormatFloat(hint.Bathrooms, 'f', -1, 64))
	}
	if hint.SquareFootage > 0 {
		params.Set("squareFootage", strconv.Itoa(hint.SquareFootage))
	}
	return params
}

var zipRe = regexp.MustCompile(`\b\d{5}\b`)

// ValidZip reports whether s is exactly a 5-digit zip code.
func ValidZip(s string) bool {
	return s != "" && zipRe.FindString(s) == s
}

// ExtractZip returns the first 5-digit zip found in an address string.
func ExtractZip(address string) string {
	return zipRe.FindString(address)
}

// FormatAddress normalizes an address into the "Street, City, ST ZIP" shape
// the provider expects. Inputs it cannot decompose pass through with only
// whitespace collapsed.
func FormatAddress(address string) string {
	address = strings.Join(strings.Fields(address), " ")

	zip := zipRe.FindString(address)
	if zip == "" {
		return address
	}

	parts := strings.Split(address, ",")
	if len(parts) < 3 {
		return address
	}

	street := strings.TrimSpace(parts[0])
	city := strings.TrimSpace(parts[1])
	stateParts := strings.Fields(strings.TrimSpace(parts[2]))
	if len(stateParts) < 2 {
		return address
	}
	state := strings.ToUpper(stateParts[0])

	return fmt.Sprintf("%s, %s, %s %s", street, city, state, zip)
}
