package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relief-network/coordinator/internal/models"
	"github.com/relief-network/coordinator/internal/notify"
)

type stubImages struct {
	calls int
	err   error
}

func (s *stubImages) Fetch(context.Context, string) ([]byte, string, error) {
	s.calls++
	if s.err != nil {
		return nil, "", s.err
	}
	return []byte("jpeg"), "image/jpeg", nil
}

type stubClassifier struct {
	answer string
	err    error
	prompt string
}

func (s *stubClassifier) ClassifyImage(_ context.Context, prompt string, _ []byte, _ string) (string, error) {
	s.prompt = prompt
	return s.answer, s.err
}

func (f *fixture) reports(images ImageFetcher, classifier ImageClassifier) *ReportService {
	return NewReportService(f.store, images, classifier, f.notifier, f.metrics, f.logger)
}

func (f *fixture) seedDisaster(t *testing.T) *models.Disaster {
	t.Helper()
	d, err := f.disasters().Create(context.Background(), CreateDisasterInput{Title: "Flood", OwnerID: "a"})
	require.NoError(t, err)
	return d
}

func TestReportService_Create(t *testing.T) {
	f := newFixture()
	d := f.seedDisaster(t)
	svc := f.reports(&stubImages{}, &stubClassifier{})
	ctx := context.Background()

	r, err := svc.Create(ctx, CreateReportInput{DisasterID: d.ID, UserID: "citizen1", Content: "water rising"})
	require.NoError(t, err)
	assert.Equal(t, models.VerificationPending, r.VerificationStatus)

	events := f.notifier.all()
	require.Len(t, events, 2)
	assert.Equal(t, notify.EventNewReport, events[1].event)
	assert.Equal(t, r.ID, events[1].payload.(*models.Report).ID)

	_, err = svc.Create(ctx, CreateReportInput{DisasterID: d.ID})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.Create(ctx, CreateReportInput{Content: "x"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.Create(ctx, CreateReportInput{DisasterID: uuid.New(), Content: "x"})
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.Len(t, f.notifier.all(), 2, "failed creates do not broadcast")
}

func TestReportService_ListByDisaster(t *testing.T) {
	f := newFixture()
	d := f.seedDisaster(t)
	svc := f.reports(&stubImages{}, &stubClassifier{})
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateReportInput{DisasterID: d.ID, Content: "one"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, CreateReportInput{DisasterID: d.ID, Content: "two"})
	require.NoError(t, err)

	list, err := svc.ListByDisaster(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	_, err = svc.ListByDisaster(ctx, uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestReportService_Verify(t *testing.T) {
	f := newFixture()
	d := f.seedDisaster(t)
	ctx := context.Background()
	classifier := &stubClassifier{answer: "This looks fake to me"}
	svc := f.reports(&stubImages{}, classifier)

	r, err := svc.Create(ctx, CreateReportInput{DisasterID: d.ID, Content: "photo", ImageURL: strPtr("https://img.example/flood.jpg")})
	require.NoError(t, err)

	verified, err := svc.Verify(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationFake, verified.VerificationStatus)
	assert.Equal(t, verifyPrompt, classifier.prompt)

	classifier.answer = "Verified."
	again, err := svc.Verify(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationVerified, again.VerificationStatus, "re-verification overwrites")

	stored, err := svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationVerified, stored.VerificationStatus)
}

func TestReportService_VerifyFailures(t *testing.T) {
	f := newFixture()
	d := f.seedDisaster(t)
	ctx := context.Background()

	images := &stubImages{}
	svc := f.reports(images, &stubClassifier{answer: "verified"})

	noImage, err := svc.Create(ctx, CreateReportInput{DisasterID: d.ID, Content: "text only", ImageURL: strPtr("")})
	require.NoError(t, err)
	assert.Nil(t, noImage.ImageURL)

	_, err = svc.Verify(ctx, noImage.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Zero(t, images.calls)

	_, err = svc.Verify(ctx, uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)

	withImage, err := svc.Create(ctx, CreateReportInput{DisasterID: d.ID, Content: "photo", ImageURL: strPtr("https://img.example/x.jpg")})
	require.NoError(t, err)

	images.err = errors.New("connection refused")
	_, err = svc.Verify(ctx, withImage.ID)
	assert.ErrorIs(t, err, models.ErrUpstream)

	images.err = nil
	failing := f.reports(images, &stubClassifier{err: errors.New("model overloaded")})
	_, err = failing.Verify(ctx, withImage.ID)
	assert.ErrorIs(t, err, models.ErrUpstream)

	stored, err := svc.Get(ctx, withImage.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationPending, stored.VerificationStatus)
}

func TestClassifyVerification(t *testing.T) {
	tests := []struct {
		answer string
		want   models.VerificationStatus
	}{
		{"verified", models.VerificationVerified},
		{"VERIFIED", models.VerificationVerified},
		{"This looks fake to me", models.VerificationFake},
		{"Fake.", models.VerificationFake},
		{"verified, not fake", models.VerificationVerified},
		{"I cannot tell", models.VerificationUnclear},
		{"", models.VerificationUnclear},
	}

	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyVerification(tt.answer))
		})
	}
}
