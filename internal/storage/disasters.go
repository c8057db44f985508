package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/relief-network/coordinator/internal/models"
)

var disasterColumns = []string{
	"id", "title", "description", "location_name", "tags", "owner_id", "audit_trail", "created_at",
}

// InsertDisaster inserts a disaster and fills in its creation time
func (db *DB) InsertDisaster(ctx context.Context, d *models.Disaster) error {
	trail, err := encodeTrail(d.AuditTrail)
	if err != nil {
		return err
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}

	err = db.Pool.QueryRow(ctx,
		`INSERT INTO disasters (id, title, description, location_name, tags, owner_id, audit_trail)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		d.ID, d.Title, d.Description, d.LocationName, d.Tags, d.OwnerID, trail).Scan(&d.CreatedAt)
	if err != nil {
		return mapError(err, "disaster", d.ID.String())
	}
	return nil
}

// ListDisasters returns disasters newest first, optionally only those carrying tag
func (db *DB) ListDisasters(ctx context.Context, tag string) ([]models.Disaster, error) {
	query := psql.Select(disasterColumns...).From("disasters").OrderBy("created_at DESC")
	if tag != "" {
		query = query.Where(sq.Expr("tags @> ?", []string{tag}))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build disaster query: %w", err)
	}

	rows, err := db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list disasters: %w", err)
	}
	defer rows.Close()

	disasters := []models.Disaster{}
	for rows.Next() {
		d, err := scanDisaster(rows)
		if err != nil {
			return nil, err
		}
		disasters = append(disasters, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list disasters: %w", err)
	}
	return disasters, nil
}

// GetDisaster retrieves a disaster by ID
func (db *DB) GetDisaster(ctx context.Context, id uuid.UUID) (*models.Disaster, error) {
	row := db.Pool.QueryRow(ctx,
		"SELECT "+strings.Join(disasterColumns, ", ")+" FROM disasters WHERE id = $1", id)
	d, err := scanDisaster(row)
	if err != nil {
		return nil, mapError(err, "disaster", id.String())
	}
	return d, nil
}

// GetAuditTrail retrieves only the audit trail of a disaster
func (db *DB) GetAuditTrail(ctx context.Context, id uuid.UUID) ([]models.AuditEntry, error) {
	var raw []byte
	err := db.Pool.QueryRow(ctx, "SELECT audit_trail FROM disasters WHERE id = $1", id).Scan(&raw)
	if err != nil {
		return nil, mapError(err, "disaster", id.String())
	}

	var trail []models.AuditEntry
	if err := json.Unmarshal(raw, &trail); err != nil {
		return nil, fmt.Errorf("disaster %s: failed to decode audit trail: %w", id, err)
	}
	return trail, nil
}

// UpdateDisaster writes the patched fields and the extended trail in one statement.
// The write only applies while the stored trail still has baseLen entries; otherwise
// it fails with models.ErrConflict.
func (db *DB) UpdateDisaster(ctx context.Context, id uuid.UUID, patch models.DisasterPatch, trail []models.AuditEntry, baseLen int) (*models.Disaster, error) {
	encoded, err := encodeTrail(trail)
	if err != nil {
		return nil, err
	}

	set := map[string]any{"audit_trail": encoded}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.LocationName != nil {
		set["location_name"] = *patch.LocationName
	}
	if patch.Tags != nil {
		tags := *patch.Tags
		if tags == nil {
			tags = []string{}
		}
		set["tags"] = tags
	}

	sql, args, err := psql.Update("disasters").
		SetMap(set).
		Where(sq.Eq{"id": id}).
		Where("jsonb_array_length(audit_trail) = ?", baseLen).
		Suffix("RETURNING " + strings.Join(disasterColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build disaster update: %w", err)
	}

	d, err := scanDisaster(db.Pool.QueryRow(ctx, sql, args...))
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, mapError(err, "disaster", id.String())
	}

	var exists bool
	if err := db.Pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM disasters WHERE id = $1)", id).Scan(&exists); err != nil {
		return nil, mapError(err, "disaster", id.String())
	}
	if !exists {
		return nil, fmt.Errorf("disaster %s: %w", id, models.ErrNotFound)
	}
	return nil, fmt.Errorf("disaster %s: %w", id, models.ErrConflict)
}

// DeleteDisaster deletes a disaster and, by cascade, its reports
func (db *DB) DeleteDisaster(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, "DELETE FROM disasters WHERE id = $1", id)
	if err != nil {
		return mapError(err, "disaster", id.String())
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("disaster %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func scanDisaster(row pgx.Row) (*models.Disaster, error) {
	var d models.Disaster
	var trail []byte
	if err := row.Scan(&d.ID, &d.Title, &d.Description, &d.LocationName, &d.Tags, &d.OwnerID, &trail, &d.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(trail, &d.AuditTrail); err != nil {
		return nil, fmt.Errorf("disaster %s: failed to decode audit trail: %w", d.ID, err)
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	return &d, nil
}

func encodeTrail(trail []models.AuditEntry) ([]byte, error) {
	if trail == nil {
		trail = []models.AuditEntry{}
	}
	data, err := json.Marshal(trail)
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit trail: %w", err)
	}
	return data, nil
}
