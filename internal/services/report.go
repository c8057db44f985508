package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/relief-network/coordinator/internal/models"
	"github.com/relief-network/coordinator/internal/notify"
	"github.com/relief-network/coordinator/internal/observability"
)

const verifyPrompt = "Analyze this image. Is it a real photo of a disaster (like a flood, fire, earthquake)? " +
	"Does it show signs of being AI-generated or digitally manipulated? " +
	"Please respond with a single word based on your analysis: 'verified', 'fake', or 'unclear'."

// ImageFetcher downloads the image a report points at
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// ImageClassifier asks a vision model about an image
type ImageClassifier interface {
	ClassifyImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// CreateReportInput holds the fields accepted on report create
type CreateReportInput struct {
	DisasterID uuid.UUID `json:"disaster_id"`
	UserID     string    `json:"user_id"`
	Content    string    `json:"content"`
	ImageURL   *string   `json:"image_url"`
}

// ReportService handles situation reports and image verification
type ReportService struct {
	store      ReportStore
	images     ImageFetcher
	classifier ImageClassifier
	notifier   notify.Notifier
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewReportService creates a new report service
func NewReportService(store ReportStore, images ImageFetcher, classifier ImageClassifier, notifier notify.Notifier, metrics *observability.Metrics, logger *slog.Logger) *ReportService {
	return &ReportService{
		store:      store,
		images:     images,
		classifier: classifier,
		notifier:   notifier,
		metrics:    metrics,
		logger:     logger.With("component", "reports"),
	}
}

// Create stores a pending report against an existing disaster
func (s *ReportService) Create(ctx context.Context, in CreateReportInput) (*models.Report, error) {
	if in.DisasterID == uuid.Nil || in.Content == "" {
		return nil, fmt.Errorf("%w: disaster_id and content are required", models.ErrValidation)
	}
	if in.ImageURL != nil && *in.ImageURL == "" {
		in.ImageURL = nil
	}

	r := &models.Report{
		ID:                 uuid.New(),
		DisasterID:         in.DisasterID,
		UserID:             in.UserID,
		Content:            in.Content,
		ImageURL:           in.ImageURL,
		VerificationStatus: models.VerificationPending,
	}
	if err := s.store.InsertReport(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	s.logger.InfoContext(ctx, "report created", "id", r.ID, "disaster_id", r.DisasterID)
	s.metrics.Mutations.WithLabelValues("report", "create").Inc()
	s.notifier.Broadcast(ctx, notify.EventNewReport, r)
	return r, nil
}

// Get retrieves a report by ID
func (s *ReportService) Get(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	return s.store.GetReport(ctx, id)
}

// ListByDisaster returns the reports of an existing disaster, newest first
func (s *ReportService) ListByDisaster(ctx context.Context, disasterID uuid.UUID) ([]models.Report, error) {
	if _, err := s.store.GetDisaster(ctx, disasterID); err != nil {
		return nil, err
	}
	return s.store.ListReports(ctx, disasterID)
}

// Verify classifies the report's image and stores the outcome. A report may
// be verified again; the latest outcome wins.
func (s *ReportService) Verify(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	r, err := s.store.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.ImageURL == nil || *r.ImageURL == "" {
		return nil, fmt.Errorf("report %s has no image url: %w", id, models.ErrNotFound)
	}

	image, mimeType, err := s.images.Fetch(ctx, *r.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch image: %w", models.ErrUpstream, err)
	}

	answer, err := s.classifier.ClassifyImage(ctx, verifyPrompt, image, mimeType)
	if err != nil {
		return nil, fmt.Errorf("%w: classify image: %w", models.ErrUpstream, err)
	}

	status := ClassifyVerification(answer)
	updated, err := s.store.SetVerificationStatus(ctx, id, status)
	if err != nil {
		return nil, fmt.Errorf("failed to store verification: %w", err)
	}

	s.logger.InfoContext(ctx, "report verified", "id", id, "status", status)
	s.metrics.Mutations.WithLabelValues("report", "verify").Inc()
	return updated, nil
}

// ClassifyVerification maps a model answer to a status. "verified" is checked
// before "fake", so an answer containing both counts as verified.
func ClassifyVerification(answer string) models.VerificationStatus {
	answer = strings.ToLower(answer)
	switch {
	case strings.Contains(answer, "verified"):
		return models.VerificationVerified
	case strings.Contains(answer, "fake"):
		return models.VerificationFake
	default:
		return models.VerificationUnclear
	}
}
