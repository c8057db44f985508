// Package memory is an in-process store with the same contract as the
// PostgreSQL store. It backs tests and `relief serve --store memory`.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/relief-network/coordinator/internal/models"
)

// Store keeps disasters, reports and cache rows in maps guarded by one mutex.
// Every value handed out is a deep copy.
type Store struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	disasters map[uuid.UUID]models.Disaster
	reports   map[uuid.UUID]models.Report
	cache     map[string]models.CacheEntry

	// seq records insertion order; listings are newest first by it.
	seq  map[uuid.UUID]uint64
	next uint64
}

// New creates an empty store. A nil clock uses real time.
func New(clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		clock:     clock,
		disasters: make(map[uuid.UUID]models.Disaster),
		reports:   make(map[uuid.UUID]models.Report),
		cache:     make(map[string]models.CacheEntry),
		seq:       make(map[uuid.UUID]uint64),
	}
}

// Ping always succeeds
func (s *Store) Ping(context.Context) error { return nil }

// InsertDisaster stores a disaster and fills in its creation time
func (s *Store) InsertDisaster(_ context.Context, d *models.Disaster) error {
	if d.Title == "" || d.OwnerID == "" {
		return fmt.Errorf("disaster %s: %w: title and owner_id must be set", d.ID, models.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if d.Tags == nil {
		d.Tags = []string{}
	}
	d.CreatedAt = s.clock.Now().UTC()
	s.disasters[d.ID] = copyDisaster(*d)
	s.stamp(d.ID)
	return nil
}

// ListDisasters returns disasters newest first, optionally only those carrying tag
func (s *Store) ListDisasters(_ context.Context, tag string) ([]models.Disaster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Disaster{}
	for _, d := range s.disasters {
		if tag != "" && !slices.Contains(d.Tags, tag) {
			continue
		}
		out = append(out, copyDisaster(d))
	}
	sort.Slice(out, func(i, j int) bool {
		return s.seq[out[i].ID] > s.seq[out[j].ID]
	})
	return out, nil
}

// GetDisaster retrieves a disaster by ID
func (s *Store) GetDisaster(_ context.Context, id uuid.UUID) (*models.Disaster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.disasters[id]
	if !ok {
		return nil, fmt.Errorf("disaster %s: %w", id, models.ErrNotFound)
	}
	out := copyDisaster(d)
	return &out, nil
}

// GetAuditTrail retrieves only the audit trail of a disaster
func (s *Store) GetAuditTrail(_ context.Context, id uuid.UUID) ([]models.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.disasters[id]
	if !ok {
		return nil, fmt.Errorf("disaster %s: %w", id, models.ErrNotFound)
	}
	return copyTrail(d.AuditTrail), nil
}

// UpdateDisaster applies patch and replaces the trail while the stored trail
// still has baseLen entries; otherwise it fails with models.ErrConflict
func (s *Store) UpdateDisaster(_ context.Context, id uuid.UUID, patch models.DisasterPatch, trail []models.AuditEntry, baseLen int) (*models.Disaster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.disasters[id]
	if !ok {
		return nil, fmt.Errorf("disaster %s: %w", id, models.ErrNotFound)
	}
	if len(d.AuditTrail) != baseLen {
		return nil, fmt.Errorf("disaster %s: %w", id, models.ErrConflict)
	}

	if patch.Title != nil {
		d.Title = *patch.Title
	}
	if patch.Description != nil {
		d.Description = *patch.Description
	}
	if patch.LocationName != nil {
		d.LocationName = *patch.LocationName
	}
	if patch.Tags != nil {
		d.Tags = slices.Clone(*patch.Tags)
		if d.Tags == nil {
			d.Tags = []string{}
		}
	}
	d.AuditTrail = copyTrail(trail)
	s.disasters[id] = d

	out := copyDisaster(d)
	return &out, nil
}

// DeleteDisaster removes a disaster together with its reports
func (s *Store) DeleteDisaster(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.disasters[id]; !ok {
		return fmt.Errorf("disaster %s: %w", id, models.ErrNotFound)
	}
	delete(s.disasters, id)
	delete(s.seq, id)
	for rid, r := range s.reports {
		if r.DisasterID == id {
			delete(s.reports, rid)
			delete(s.seq, rid)
		}
	}
	return nil
}

// InsertReport stores a report. A missing parent disaster yields models.ErrNotFound.
func (s *Store) InsertReport(_ context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.disasters[r.DisasterID]; !ok {
		return fmt.Errorf("report %s: disaster %s: %w", r.ID, r.DisasterID, models.ErrNotFound)
	}
	r.CreatedAt = s.clock.Now().UTC()
	s.reports[r.ID] = copyReport(*r)
	s.stamp(r.ID)
	return nil
}

// GetReport retrieves a report by ID
func (s *Store) GetReport(_ context.Context, id uuid.UUID) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, fmt.Errorf("report %s: %w", id, models.ErrNotFound)
	}
	out := copyReport(r)
	return &out, nil
}

// ListReports retrieves the reports of a disaster, newest first
func (s *Store) ListReports(_ context.Context, disasterID uuid.UUID) ([]models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Report{}
	for _, r := range s.reports {
		if r.DisasterID == disasterID {
			out = append(out, copyReport(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return s.seq[out[i].ID] > s.seq[out[j].ID]
	})
	return out, nil
}

// SetVerificationStatus stores the verification outcome of a report
func (s *Store) SetVerificationStatus(_ context.Context, id uuid.UUID, status models.VerificationStatus) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, fmt.Errorf("report %s: %w", id, models.ErrNotFound)
	}
	r.VerificationStatus = status
	s.reports[id] = r
	out := copyReport(r)
	return &out, nil
}

// GetCacheEntry returns the entry for key if it has not expired at now
func (s *Store) GetCacheEntry(_ context.Context, key string, now time.Time) (*models.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.cache[key]
	if !ok || !now.Before(e.ExpiresAt) {
		return nil, fmt.Errorf("cache entry %s: %w", key, models.ErrNotFound)
	}
	e.Value = slices.Clone(e.Value)
	return &e, nil
}

// UpsertCacheEntry writes or replaces the entry for its key
func (s *Store) UpsertCacheEntry(_ context.Context, entry models.CacheEntry) error {
	if !json.Valid(entry.Value) {
		return fmt.Errorf("cache entry %s: %w: value is not JSON", entry.Key, models.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry.Value = slices.Clone(entry.Value)
	s.cache[entry.Key] = entry
	return nil
}

// PurgeExpiredCache deletes entries that expired at or before now
func (s *Store) PurgeExpiredCache(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, e := range s.cache {
		if !now.Before(e.ExpiresAt) {
			delete(s.cache, k)
			n++
		}
	}
	return n, nil
}

func (s *Store) stamp(id uuid.UUID) {
	s.next++
	s.seq[id] = s.next
}

func copyDisaster(d models.Disaster) models.Disaster {
	d.Tags = slices.Clone(d.Tags)
	if d.Tags == nil {
		d.Tags = []string{}
	}
	d.AuditTrail = copyTrail(d.AuditTrail)
	return d
}

// copyTrail clones entries and their change maps one level deep; nested
// change values are never mutated after append.
func copyTrail(trail []models.AuditEntry) []models.AuditEntry {
	out := make([]models.AuditEntry, len(trail))
	for i, e := range trail {
		if e.Changes != nil {
			changes := make(map[string]any, len(e.Changes))
			for k, v := range e.Changes {
				changes[k] = v
			}
			e.Changes = changes
		}
		out[i] = e
	}
	return out
}

func copyReport(r models.Report) models.Report {
	if r.ImageURL != nil {
		url := *r.ImageURL
		r.ImageURL = &url
	}
	return r
}
