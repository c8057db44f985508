package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/relief-network/coordinator/internal/models"
	"github.com/relief-network/coordinator/internal/notify"
	"github.com/relief-network/coordinator/internal/observability"
)

// maxUpdateAttempts bounds the read-append-write cycle when concurrent
// updates keep moving the audit trail underneath us.
const maxUpdateAttempts = 3

// CreateDisasterInput holds the fields accepted on create
type CreateDisasterInput struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	LocationName string   `json:"location_name"`
	Tags         []string `json:"tags"`
	OwnerID      string   `json:"owner_id"`
}

// DisasterService handles disaster records and their audit trail
type DisasterService struct {
	store        DisasterStore
	notifier     notify.Notifier
	clock        clockwork.Clock
	defaultActor string
	metrics      *observability.Metrics
	logger       *slog.Logger
}

// NewDisasterService creates a new disaster service. defaultActor is recorded
// for updates made without an identity; empty rejects such updates.
func NewDisasterService(store DisasterStore, notifier notify.Notifier, clock clockwork.Clock, defaultActor string, metrics *observability.Metrics, logger *slog.Logger) *DisasterService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &DisasterService{
		store:        store,
		notifier:     notifier,
		clock:        clock,
		defaultActor: defaultActor,
		metrics:      metrics,
		logger:       logger.With("component", "disasters"),
	}
}

// Create stores a new disaster whose trail holds a single create entry by the owner
func (s *DisasterService) Create(ctx context.Context, in CreateDisasterInput) (*models.Disaster, error) {
	if in.Title == "" || in.OwnerID == "" {
		return nil, fmt.Errorf("%w: title and owner_id are required", models.ErrValidation)
	}

	d := &models.Disaster{
		ID:           uuid.New(),
		Title:        in.Title,
		Description:  in.Description,
		LocationName: in.LocationName,
		Tags:         slices.Clone(in.Tags),
		OwnerID:      in.OwnerID,
		AuditTrail: []models.AuditEntry{{
			Action:    models.AuditActionCreate,
			UserID:    in.OwnerID,
			Timestamp: s.clock.Now().UTC(),
		}},
	}
	if err := s.store.InsertDisaster(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to create disaster: %w", err)
	}

	s.logger.InfoContext(ctx, "disaster created", "id", d.ID, "owner", d.OwnerID)
	s.changed(ctx, models.AuditActionCreate, d)
	return d, nil
}

// List returns disasters newest first, optionally only those tagged with tag
func (s *DisasterService) List(ctx context.Context, tag string) ([]models.Disaster, error) {
	return s.store.ListDisasters(ctx, tag)
}

// Get retrieves a disaster by ID
func (s *DisasterService) Get(ctx context.Context, id uuid.UUID) (*models.Disaster, error) {
	return s.store.GetDisaster(ctx, id)
}

// Update applies patch and appends an update entry recording actor and the
// submitted changes. Both are written together; a concurrent update that lands
// in between forces a re-read, and the call gives up with models.ErrConflict
// after maxUpdateAttempts. An unknown id is reported before invalid input.
func (s *DisasterService) Update(ctx context.Context, id uuid.UUID, actor string, patch models.DisasterPatch, changes map[string]any) (*models.Disaster, error) {
	if actor == "" {
		actor = s.defaultActor
	}

	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		trail, err := s.store.GetAuditTrail(ctx, id)
		if err != nil {
			return nil, err
		}
		if actor == "" {
			return nil, fmt.Errorf("%w: an acting user is required", models.ErrValidation)
		}
		if patch.Title != nil && *patch.Title == "" {
			return nil, fmt.Errorf("%w: title must not be empty", models.ErrValidation)
		}

		entry := models.AuditEntry{
			Action:    models.AuditActionUpdate,
			UserID:    actor,
			Timestamp: s.clock.Now().UTC(),
			Changes:   changes,
		}
		extended := append(slices.Clip(trail), entry)

		d, err := s.store.UpdateDisaster(ctx, id, patch, extended, len(trail))
		if errors.Is(err, models.ErrConflict) {
			s.logger.WarnContext(ctx, "audit trail moved during update, retrying", "id", id, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update disaster: %w", err)
		}

		s.logger.InfoContext(ctx, "disaster updated", "id", id, "actor", actor)
		s.changed(ctx, models.AuditActionUpdate, d)
		return d, nil
	}

	return nil, fmt.Errorf("disaster %s: %w after %d attempts", id, models.ErrConflict, maxUpdateAttempts)
}

// Delete removes a disaster and its reports. Only the admin role may delete.
func (s *DisasterService) Delete(ctx context.Context, id uuid.UUID, role string) error {
	if role != models.RoleAdmin {
		return fmt.Errorf("%w: only admins can delete disasters", models.ErrForbidden)
	}
	if err := s.store.DeleteDisaster(ctx, id); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "disaster deleted", "id", id)
	s.changed(ctx, models.AuditActionDelete, map[string]string{"id": id.String()})
	return nil
}

func (s *DisasterService) changed(ctx context.Context, action models.AuditAction, data any) {
	s.metrics.Mutations.WithLabelValues("disaster", string(action)).Inc()
	s.notifier.Broadcast(ctx, notify.EventDisasterUpdated, models.DisasterEvent{Action: action, Data: data})
}
