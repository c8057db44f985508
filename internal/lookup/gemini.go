package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/relief-network/coordinator/internal/observability"
)

// ErrNotConfigured is returned by Gemini calls when no API key was supplied.
var ErrNotConfigured = errors.New("gemini api key is not configured")

// Gemini asks a Gemini model for text replies, optionally about an image.
type Gemini struct {
	client  *genai.Client
	model   string
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewGemini creates a Gemini client for model. An empty baseURL uses the
// public endpoint. Without an apiKey the client is still returned, and every
// call fails with ErrNotConfigured.
func NewGemini(ctx context.Context, apiKey, model, baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) (*Gemini, error) {
	g := &Gemini{
		model:   model,
		metrics: metrics,
		logger:  logger.With("component", "gemini"),
	}
	if apiKey == "" {
		return g, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Timeout: timeout},
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	g.client = client
	return g, nil
}

// GenerateText sends a text-only prompt and returns the trimmed reply.
func (g *Gemini) GenerateText(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, "text", genai.NewPartFromText(prompt))
}

// ClassifyImage sends prompt together with an inline image and returns the trimmed reply.
func (g *Gemini) ClassifyImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	return g.generate(ctx, "vision", genai.NewPartFromText(prompt), genai.NewPartFromBytes(image, mimeType))
}

func (g *Gemini) generate(ctx context.Context, kind string, parts ...*genai.Part) (text string, err error) {
	start := time.Now()
	defer func() { observe(g.metrics, "gemini_"+kind, start, err) }()

	if g.client == nil {
		return "", ErrNotConfigured
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}

	text, err = firstText(resp)
	if err != nil {
		g.logger.WarnContext(ctx, "unusable gemini response", "kind", kind, "error", err)
		return "", err
	}
	return text, nil
}

func firstText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini response has no candidate text")
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("gemini response has no candidate text")
	}
	return text, nil
}
