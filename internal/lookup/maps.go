package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/relief-network/coordinator/internal/models"
	"github.com/relief-network/coordinator/internal/observability"
)

// Maps resolves addresses with the Google Geocoding API.
type Maps struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewMaps creates a geocoding client.
func NewMaps(apiKey, baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Maps {
	return &Maps{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		logger:     logger.With("component", "maps"),
	}
}

// Geocode returns the coordinates of the first result for address.
// A non-OK API status or an empty result list yields ErrNoResults.
func (m *Maps) Geocode(ctx context.Context, address string) (coords models.Coordinates, err error) {
	start := time.Now()
	defer func() { observe(m.metrics, "maps", start, err) }()

	params := url.Values{
		"address": {address},
		"key":     {m.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := do(m.httpClient, req, "maps")
	if err != nil {
		return models.Coordinates{}, err
	}
	defer resp.Body.Close()

	var out geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.Coordinates{}, fmt.Errorf("decode geocode response: %w", err)
	}

	if out.Status != "OK" || len(out.Results) == 0 {
		m.logger.InfoContext(ctx, "geocoding found nothing",
			"address", address, "status", out.Status, "error_message", out.ErrorMessage)
		return models.Coordinates{}, fmt.Errorf("%q: status %s: %w", address, out.Status, ErrNoResults)
	}

	loc := out.Results[0].Geometry.Location
	return models.Coordinates{Lat: loc.Lat, Lng: loc.Lng}, nil
}

// Geocoding API response types.

type geocodeResponse struct {
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message"`
	Results      []geocodeResult `json:"results"`
}

type geocodeResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}
