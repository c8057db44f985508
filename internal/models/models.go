package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction tags an audit trail entry
type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
)

// VerificationStatus is the classification of a report image
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationFake     VerificationStatus = "fake"
	VerificationUnclear  VerificationStatus = "unclear"
)

// RoleAdmin is the only role allowed to delete disasters
const RoleAdmin = "admin"

// AuditEntry records one change to a disaster. Entries are never modified after append.
type AuditEntry struct {
	Action    AuditAction    `json:"action"`
	UserID    string         `json:"user_id"`
	Timestamp time.Time      `json:"timestamp"`
	Changes   map[string]any `json:"changes,omitempty"`
}

// Disaster represents a tracked disaster
type Disaster struct {
	ID           uuid.UUID    `db:"id" json:"id"`
	Title        string       `db:"title" json:"title"`
	Description  string       `db:"description" json:"description"`
	LocationName string       `db:"location_name" json:"location_name"`
	Tags         []string     `db:"tags" json:"tags"`
	OwnerID      string       `db:"owner_id" json:"owner_id"`
	AuditTrail   []AuditEntry `db:"audit_trail" json:"audit_trail"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// DisasterPatch holds the substantive fields of an update; nil fields are left unchanged
type DisasterPatch struct {
	Title        *string   `json:"title"`
	Description  *string   `json:"description"`
	LocationName *string   `json:"location_name"`
	Tags         *[]string `json:"tags"`
}

// Report represents a situation report attached to a disaster
type Report struct {
	ID                 uuid.UUID          `db:"id" json:"id"`
	DisasterID         uuid.UUID          `db:"disaster_id" json:"disaster_id"`
	UserID             string             `db:"user_id" json:"user_id"`
	Content            string             `db:"content" json:"content"`
	ImageURL           *string            `db:"image_url" json:"image_url"`
	VerificationStatus VerificationStatus `db:"verification_status" json:"verification_status"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
}

// CacheEntry is a persisted lookup result, valid while now < ExpiresAt
type CacheEntry struct {
	Key       string          `db:"key" json:"key"`
	Value     json.RawMessage `db:"value" json:"value"`
	ExpiresAt time.Time       `db:"expires_at" json:"expires_at"`
}

// DisasterEvent is the payload of a disaster_updated push event
type DisasterEvent struct {
	Action AuditAction `json:"action"`
	Data   any         `json:"data"`
}

// SocialPost is a single social-media post in a disaster feed
type SocialPost struct {
	User string `json:"user"`
	Post string `json:"post"`
}

// Coordinates is a WGS84 point
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GeocodeResult pairs the location phrase extracted from free text with its coordinates
type GeocodeResult struct {
	ExtractedLocation string      `json:"extractedLocation"`
	Coordinates       Coordinates `json:"coordinates"`
}
