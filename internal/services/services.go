// Package services implements the coordinator's operations on top of the
// store, the lookup cache, the external lookup clients and the notifier.
package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/relief-network/coordinator/internal/cache"
	"github.com/relief-network/coordinator/internal/models"
)

// DisasterStore is the persistence used by DisasterService.
type DisasterStore interface {
	InsertDisaster(ctx context.Context, d *models.Disaster) error
	ListDisasters(ctx context.Context, tag string) ([]models.Disaster, error)
	GetDisaster(ctx context.Context, id uuid.UUID) (*models.Disaster, error)
	GetAuditTrail(ctx context.Context, id uuid.UUID) ([]models.AuditEntry, error)
	UpdateDisaster(ctx context.Context, id uuid.UUID, patch models.DisasterPatch, trail []models.AuditEntry, baseLen int) (*models.Disaster, error)
	DeleteDisaster(ctx context.Context, id uuid.UUID) error
}

// ReportStore is the persistence used by ReportService.
type ReportStore interface {
	GetDisaster(ctx context.Context, id uuid.UUID) (*models.Disaster, error)
	InsertReport(ctx context.Context, r *models.Report) error
	GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error)
	ListReports(ctx context.Context, disasterID uuid.UUID) ([]models.Report, error)
	SetVerificationStatus(ctx context.Context, id uuid.UUID, status models.VerificationStatus) (*models.Report, error)
}

// Fetcher runs a producer behind the lookup cache. *cache.Cache implements it.
type Fetcher interface {
	Fetch(ctx context.Context, key string, ttl time.Duration, produce cache.Producer) (json.RawMessage, error)
}
