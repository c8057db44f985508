package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/relief-network/coordinator/internal/models"
)

const reportColumns = "id, disaster_id, user_id, content, image_url, verification_status, created_at"

// InsertReport inserts a report. A missing parent disaster yields models.ErrNotFound.
func (db *DB) InsertReport(ctx context.Context, r *models.Report) error {
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO reports (id, disaster_id, user_id, content, image_url, verification_status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		r.ID, r.DisasterID, r.UserID, r.Content, r.ImageURL, r.VerificationStatus).Scan(&r.CreatedAt)
	if err != nil {
		return mapError(err, "report", r.ID.String())
	}
	return nil
}

// GetReport retrieves a report by ID
func (db *DB) GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	r, err := scanReport(db.Pool.QueryRow(ctx,
		"SELECT "+reportColumns+" FROM reports WHERE id = $1", id))
	if err != nil {
		return nil, mapError(err, "report", id.String())
	}
	return r, nil
}

// ListReports retrieves the reports of a disaster, newest first
func (db *DB) ListReports(ctx context.Context, disasterID uuid.UUID) ([]models.Report, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT "+reportColumns+" FROM reports WHERE disaster_id = $1 ORDER BY created_at DESC",
		disasterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := []models.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}

// SetVerificationStatus stores the verification outcome of a report
func (db *DB) SetVerificationStatus(ctx context.Context, id uuid.UUID, status models.VerificationStatus) (*models.Report, error) {
	r, err := scanReport(db.Pool.QueryRow(ctx,
		"UPDATE reports SET verification_status = $1 WHERE id = $2 RETURNING "+reportColumns,
		status, id))
	if err != nil {
		return nil, mapError(err, "report", id.String())
	}
	return r, nil
}

func scanReport(row pgx.Row) (*models.Report, error) {
	var r models.Report
	var status string
	if err := row.Scan(&r.ID, &r.DisasterID, &r.UserID, &r.Content, &r.ImageURL, &status, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.VerificationStatus = models.VerificationStatus(status)
	return &r, nil
}
