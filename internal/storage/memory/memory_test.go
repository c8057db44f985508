package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relief-network/coordinator/internal/models"
)

func newDisaster(title string, tags ...string) *models.Disaster {
	return &models.Disaster{
		ID:         uuid.New(),
		Title:      title,
		OwnerID:    "netrunnerX",
		Tags:       tags,
		AuditTrail: []models.AuditEntry{{Action: models.AuditActionCreate, UserID: "netrunnerX"}},
	}
}

func TestStore_ListDisasters_NewestFirstAndTagFilter(t *testing.T) {
	ctx := context.Background()
	s := New(clockwork.NewFakeClock())

	flood := newDisaster("Flood", "flood", "urgent")
	fire := newDisaster("Fire", "fire")
	require.NoError(t, s.InsertDisaster(ctx, flood))
	require.NoError(t, s.InsertDisaster(ctx, fire))

	all, err := s.ListDisasters(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, fire.ID, all[0].ID)
	assert.Equal(t, flood.ID, all[1].ID)

	tagged, err := s.ListDisasters(ctx, "urgent")
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, flood.ID, tagged[0].ID)
}

func TestStore_UpdateDisaster_VersionCheck(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	d := newDisaster("Flood")
	require.NoError(t, s.InsertDisaster(ctx, d))

	title := "Flood (updated)"
	trail := append(d.AuditTrail, models.AuditEntry{Action: models.AuditActionUpdate, UserID: "a"})

	_, err := s.UpdateDisaster(ctx, d.ID, models.DisasterPatch{Title: &title}, trail, 0)
	assert.ErrorIs(t, err, models.ErrConflict)

	got, err := s.UpdateDisaster(ctx, d.ID, models.DisasterPatch{Title: &title}, trail, 1)
	require.NoError(t, err)
	assert.Equal(t, title, got.Title)
	assert.Len(t, got.AuditTrail, 2)

	_, err = s.UpdateDisaster(ctx, uuid.New(), models.DisasterPatch{}, trail, 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	d := newDisaster("Flood", "flood")
	require.NoError(t, s.InsertDisaster(ctx, d))

	got, err := s.GetDisaster(ctx, d.ID)
	require.NoError(t, err)
	got.Tags[0] = "mutated"
	got.AuditTrail[0].UserID = "mutated"

	again, err := s.GetDisaster(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "flood", again.Tags[0])
	assert.Equal(t, "netrunnerX", again.AuditTrail[0].UserID)
}

func TestStore_DeleteDisasterCascadesReports(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	d := newDisaster("Flood")
	require.NoError(t, s.InsertDisaster(ctx, d))

	r := &models.Report{ID: uuid.New(), DisasterID: d.ID, Content: "water rising", VerificationStatus: models.VerificationPending}
	require.NoError(t, s.InsertReport(ctx, r))

	require.NoError(t, s.DeleteDisaster(ctx, d.ID))
	_, err := s.GetReport(ctx, r.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, s.DeleteDisaster(ctx, d.ID), models.ErrNotFound)
}

func TestStore_InsertReportRequiresDisaster(t *testing.T) {
	s := New(nil)
	r := &models.Report{ID: uuid.New(), DisasterID: uuid.New(), Content: "x"}
	assert.ErrorIs(t, s.InsertReport(context.Background(), r), models.ErrNotFound)
}

func TestStore_CacheExpiry(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	s := New(clock)

	entry := models.CacheEntry{Key: "k", Value: json.RawMessage(`{"a":1}`), ExpiresAt: clock.Now().Add(time.Minute)}
	require.NoError(t, s.UpsertCacheEntry(ctx, entry))

	got, err := s.GetCacheEntry(ctx, "k", clock.Now())
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(got.Value))

	_, err = s.GetCacheEntry(ctx, "k", clock.Now().Add(time.Minute))
	assert.ErrorIs(t, err, models.ErrNotFound, "entry is invalid once now reaches expiry")

	n, err := s.PurgeExpiredCache(ctx, clock.Now().Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.ErrorIs(t, s.UpsertCacheEntry(ctx, models.CacheEntry{Key: "bad", Value: []byte("{")}), models.ErrValidation)
}
