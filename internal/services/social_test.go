package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relief-network/coordinator/internal/models"
)

type countingFeed struct {
	calls int
	err   error
}

func (c *countingFeed) Posts(ctx context.Context, id uuid.UUID) ([]models.SocialPost, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return MockFeed{}.Posts(ctx, id)
}

func TestSocialMediaService_FeedIsCached(t *testing.T) {
	f := newFixture()
	source := &countingFeed{}
	svc := NewSocialMediaService(f.cache, source, 5*time.Minute)
	ctx := context.Background()
	id := uuid.New()

	first, err := svc.Feed(ctx, id)
	require.NoError(t, err)

	f.clock.Advance(4*time.Minute + 59*time.Second)
	second, err := svc.Feed(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, first, second, "byte-identical within the window")
	assert.Equal(t, 1, source.calls)

	var posts []models.SocialPost
	require.NoError(t, json.Unmarshal(first, &posts))
	require.Len(t, posts, 4)
	assert.Equal(t, "citizen_jane", posts[0].User)

	f.clock.Advance(time.Second)
	_, err = svc.Feed(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)

	_, err = svc.Feed(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 3, source.calls, "feeds are keyed per disaster")
}

func TestSocialMediaService_SourceError(t *testing.T) {
	f := newFixture()
	boom := errors.New("feed unavailable")
	svc := NewSocialMediaService(f.cache, &countingFeed{err: boom}, 5*time.Minute)

	_, err := svc.Feed(context.Background(), uuid.New())
	assert.ErrorIs(t, err, boom)
}

func TestSocialMediaCacheKey(t *testing.T) {
	id := uuid.MustParse("7d4b3a0e-8c39-4b1e-9b8a-3f1e2d7c6a51")
	assert.Equal(t, "social-media:7d4b3a0e-8c39-4b1e-9b8a-3f1e2d7c6a51", SocialMediaCacheKey(id))
}
