package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/relief-network/coordinator/internal/lookup"
	"github.com/relief-network/coordinator/internal/models"
)

// TextGenerator answers a text prompt
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Geocoder resolves an address to coordinates. It returns an error wrapping
// lookup.ErrNoResults when nothing matches.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (models.Coordinates, error)
}

// LocationNotFoundError reports a location phrase that geocoding could not resolve
type LocationNotFoundError struct {
	Location string
}

func (e *LocationNotFoundError) Error() string {
	return fmt.Sprintf("could not find coordinates for %q", e.Location)
}

func (e *LocationNotFoundError) Is(target error) bool {
	return target == models.ErrNotFound
}

// GeocodeService turns free-text descriptions into coordinates
type GeocodeService struct {
	cache    Fetcher
	llm      TextGenerator
	geocoder Geocoder
	ttl      time.Duration
	logger   *slog.Logger
}

// NewGeocodeService creates a new geocode service caching results for ttl
func NewGeocodeService(cache Fetcher, llm TextGenerator, geocoder Geocoder, ttl time.Duration, logger *slog.Logger) *GeocodeService {
	return &GeocodeService{
		cache:    cache,
		llm:      llm,
		geocoder: geocoder,
		ttl:      ttl,
		logger:   logger.With("component", "geocode"),
	}
}

// Geocode extracts a location from description and resolves it. The JSON of
// a models.GeocodeResult is returned; only successful results are cached.
func (s *GeocodeService) Geocode(ctx context.Context, description string) (json.RawMessage, error) {
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", models.ErrValidation)
	}

	return s.cache.Fetch(ctx, GeocodeCacheKey(description), s.ttl, func(ctx context.Context) (any, error) {
		location, err := s.llm.GenerateText(ctx, extractLocationPrompt(description))
		if err != nil {
			return nil, fmt.Errorf("%w: extract location: %w", models.ErrUpstream, err)
		}
		if location == "" {
			return nil, fmt.Errorf("%w: no location extracted from description", models.ErrUpstream)
		}

		coords, err := s.geocoder.Geocode(ctx, location)
		if errors.Is(err, lookup.ErrNoResults) {
			s.logger.InfoContext(ctx, "extracted location did not geocode", "location", location)
			return nil, &LocationNotFoundError{Location: location}
		}
		if err != nil {
			return nil, fmt.Errorf("%w: geocode %q: %w", models.ErrUpstream, location, err)
		}

		return models.GeocodeResult{ExtractedLocation: location, Coordinates: coords}, nil
	})
}

// GeocodeCacheKey derives the cache key of a description: every whitespace
// rune becomes an underscore and the result is lowercased.
func GeocodeCacheKey(description string) string {
	normalized := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, description)
	return "geocode:" + strings.ToLower(normalized)
}

func extractLocationPrompt(description string) string {
	return "Extract the most specific city, state, or well-known location from the following text. " +
		"Respond with only the location name and nothing else. " +
		`For example, for "flooding near the Eiffel Tower in Paris", respond "Eiffel Tower, Paris". ` +
		fmt.Sprintf(`Text: "%s"`, description)
}
