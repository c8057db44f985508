//go:build integration

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/relief-network/coordinator/internal/models"
)

var (
	once      sync.Once
	sharedDSN string
	initErr   error
)

// setupDB starts one PostgreSQL container for the whole run, applies the
// embedded migrations and returns a connected DB with empty tables.
func setupDB(t *testing.T) *DB {
	t.Helper()

	once.Do(func() {
		sharedDSN, initErr = startContainer()
	})
	if initErr != nil {
		t.Fatalf("failed to set up test database: %v", initErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := New(ctx, sharedDSN)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(""))
	_, err = db.Pool.Exec(ctx, "TRUNCATE disasters, reports, cache CASCADE")
	require.NoError(t, err)
	return db
}

func startContainer() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "relief",
				"POSTGRES_PASSWORD": "relief",
				"POSTGRES_DB":       "relief_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return "", fmt.Errorf("start container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return "", fmt.Errorf("get mapped port: %w", err)
	}

	return fmt.Sprintf("postgres://relief:relief@%s:%s/relief_test?sslmode=disable", host, port.Port()), nil
}

func newDisaster(title string, tags ...string) *models.Disaster {
	return &models.Disaster{
		ID:         uuid.New(),
		Title:      title,
		OwnerID:    "netrunnerX",
		Tags:       tags,
		AuditTrail: []models.AuditEntry{{Action: models.AuditActionCreate, UserID: "netrunnerX", Timestamp: time.Now().UTC()}},
	}
}

func TestPostgres_Disasters(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	flood := newDisaster("Flood", "flood", "urgent")
	require.NoError(t, db.InsertDisaster(ctx, flood))
	time.Sleep(5 * time.Millisecond)
	fire := newDisaster("Fire")
	require.NoError(t, db.InsertDisaster(ctx, fire))
	assert.False(t, flood.CreatedAt.IsZero())

	all, err := db.ListDisasters(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, fire.ID, all[0].ID)
	assert.Equal(t, []string{}, all[0].Tags)

	urgent, err := db.ListDisasters(ctx, "urgent")
	require.NoError(t, err)
	require.Len(t, urgent, 1)
	assert.Equal(t, flood.ID, urgent[0].ID)

	_, err = db.GetDisaster(ctx, uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)

	err = db.InsertDisaster(ctx, &models.Disaster{ID: uuid.New(), OwnerID: "x"})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestPostgres_UpdateDisasterVersionCheck(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	d := newDisaster("Flood")
	require.NoError(t, db.InsertDisaster(ctx, d))

	trail, err := db.GetAuditTrail(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)

	title := "Flood v2"
	extended := append(trail, models.AuditEntry{
		Action: models.AuditActionUpdate, UserID: "alice", Timestamp: time.Now().UTC(),
		Changes: map[string]any{"title": title},
	})

	_, err = db.UpdateDisaster(ctx, d.ID, models.DisasterPatch{Title: &title}, extended, 0)
	assert.ErrorIs(t, err, models.ErrConflict)

	got, err := db.UpdateDisaster(ctx, d.ID, models.DisasterPatch{Title: &title}, extended, 1)
	require.NoError(t, err)
	assert.Equal(t, title, got.Title)
	require.Len(t, got.AuditTrail, 2)
	assert.Equal(t, "alice", got.AuditTrail[1].UserID)
	assert.Equal(t, map[string]any{"title": title}, got.AuditTrail[1].Changes)

	_, err = db.UpdateDisaster(ctx, uuid.New(), models.DisasterPatch{}, extended, 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPostgres_ReportsCascade(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	d := newDisaster("Flood")
	require.NoError(t, db.InsertDisaster(ctx, d))

	url := "http://img.example/flood.jpg"
	r := &models.Report{ID: uuid.New(), DisasterID: d.ID, UserID: "citizen1", Content: "water", ImageURL: &url, VerificationStatus: models.VerificationPending}
	require.NoError(t, db.InsertReport(ctx, r))

	orphan := &models.Report{ID: uuid.New(), DisasterID: uuid.New(), Content: "x", VerificationStatus: models.VerificationPending}
	assert.ErrorIs(t, db.InsertReport(ctx, orphan), models.ErrNotFound)

	updated, err := db.SetVerificationStatus(ctx, r.ID, models.VerificationFake)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationFake, updated.VerificationStatus)

	list, err := db.ListReports(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, url, *list[0].ImageURL)

	require.NoError(t, db.DeleteDisaster(ctx, d.ID))
	_, err = db.GetReport(ctx, r.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, db.DeleteDisaster(ctx, d.ID), models.ErrNotFound)
}

func TestPostgres_CacheRoundTripIsByteIdentical(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	now := time.Now()

	value := json.RawMessage(`{"user":"citizen_jane",  "post":"tremor","n":1.50}`)
	require.NoError(t, db.UpsertCacheEntry(ctx, models.CacheEntry{Key: "social-media:1", Value: value, ExpiresAt: now.Add(time.Minute)}))

	got, err := db.GetCacheEntry(ctx, "social-media:1", now)
	require.NoError(t, err)
	assert.Equal(t, string(value), string(got.Value))

	_, err = db.GetCacheEntry(ctx, "social-media:1", now.Add(time.Minute))
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, db.UpsertCacheEntry(ctx, models.CacheEntry{Key: "social-media:1", Value: json.RawMessage(`[]`), ExpiresAt: now.Add(time.Hour)}))
	got, err = db.GetCacheEntry(ctx, "social-media:1", now)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got.Value))

	require.NoError(t, db.UpsertCacheEntry(ctx, models.CacheEntry{Key: "stale", Value: json.RawMessage(`1`), ExpiresAt: now.Add(-time.Minute)}))
	n, err := db.PurgeExpiredCache(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
