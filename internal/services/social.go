package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/relief-network/coordinator/internal/models"
)

// FeedSource produces the social-media posts about a disaster
type FeedSource interface {
	Posts(ctx context.Context, disasterID uuid.UUID) ([]models.SocialPost, error)
}

// MockFeed returns a fixed set of earthquake posts for any disaster
type MockFeed struct{}

func (MockFeed) Posts(context.Context, uuid.UUID) ([]models.SocialPost, error) {
	return []models.SocialPost{
		{User: "citizen_jane", Post: "Just felt a huge tremor near downtown! Everyone okay? #earthquake"},
		{User: "helper_bot", Post: "Official Update: An earthquake of magnitude 5.8 has been reported. Stay clear of damaged structures."},
		{User: "local_news", Post: "We're getting reports of power outages in the western suburbs following the quake."},
		{User: "concerned_sam", Post: "My building was shaking like crazy. Is there a shelter nearby? Need info!"},
	}, nil
}

// SocialMediaService serves cached social-media feeds
type SocialMediaService struct {
	cache  Fetcher
	source FeedSource
	ttl    time.Duration
}

// NewSocialMediaService creates a new social media service caching feeds for ttl
func NewSocialMediaService(cache Fetcher, source FeedSource, ttl time.Duration) *SocialMediaService {
	return &SocialMediaService{cache: cache, source: source, ttl: ttl}
}

// Feed returns the JSON feed for a disaster. Calls within the cache window
// return the same bytes without consulting the source.
func (s *SocialMediaService) Feed(ctx context.Context, disasterID uuid.UUID) (json.RawMessage, error) {
	return s.cache.Fetch(ctx, SocialMediaCacheKey(disasterID), s.ttl, func(ctx context.Context) (any, error) {
		return s.source.Posts(ctx, disasterID)
	})
}

// SocialMediaCacheKey derives the cache key of a disaster's feed
func SocialMediaCacheKey(disasterID uuid.UUID) string {
	return "social-media:" + disasterID.String()
}
