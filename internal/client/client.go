// Package client is a Go client for the coordinator HTTP API, plus a Watcher
// that keeps a disaster list current from the push channel.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/relief-network/coordinator/internal/models"
)

// APIError is a non-2xx answer from the API
type APIError struct {
	StatusCode int
	Message    string
	Location   string
}

func (e *APIError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("api error %d: %s (location %q)", e.StatusCode, e.Message, e.Location)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Client calls the coordinator API
type Client struct {
	baseURL    string
	httpClient *http.Client
	userID     string
	role       string
	token      string
}

// Option configures a Client
type Option func(*Client)

// WithIdentity sends the identity headers on every request
func WithIdentity(userID, role string) Option {
	return func(c *Client) {
		c.userID = userID
		c.role = role
	}
}

// WithToken sends a bearer token on every request
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the server at baseURL, e.g. http://localhost:3001
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server address the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListDisasters lists disasters, newest first; an empty tag lists all
func (c *Client) ListDisasters(ctx context.Context, tag string) ([]models.Disaster, error) {
	path := "/api/disasters"
	if tag != "" {
		path += "?" + url.Values{"tag": {tag}}.Encode()
	}
	var out []models.Disaster
	return out, c.do(ctx, http.MethodGet, path, nil, &out)
}

// GetDisaster fetches one disaster
func (c *Client) GetDisaster(ctx context.Context, id uuid.UUID) (*models.Disaster, error) {
	var out models.Disaster
	if err := c.do(ctx, http.MethodGet, "/api/disasters/"+id.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateDisasterRequest is the body of a disaster create
type CreateDisasterRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	LocationName string   `json:"location_name,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	OwnerID      string   `json:"owner_id"`
}

// CreateDisaster creates a disaster
func (c *Client) CreateDisaster(ctx context.Context, req CreateDisasterRequest) (*models.Disaster, error) {
	var out models.Disaster
	if err := c.do(ctx, http.MethodPost, "/api/disasters", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateDisaster sends changes as the update body; they are also what the
// audit entry records
func (c *Client) UpdateDisaster(ctx context.Context, id uuid.UUID, changes map[string]any) (*models.Disaster, error) {
	var out models.Disaster
	if err := c.do(ctx, http.MethodPut, "/api/disasters/"+id.String(), changes, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteDisaster deletes a disaster; the server requires the admin role
func (c *Client) DeleteDisaster(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/disasters/"+id.String(), nil, nil)
}

// SocialMedia fetches the social-media feed of a disaster
func (c *Client) SocialMedia(ctx context.Context, id uuid.UUID) ([]models.SocialPost, error) {
	var out []models.SocialPost
	return out, c.do(ctx, http.MethodGet, "/api/disasters/"+id.String()+"/social-media", nil, &out)
}

// ListReports lists the reports of a disaster
func (c *Client) ListReports(ctx context.Context, disasterID uuid.UUID) ([]models.Report, error) {
	var out []models.Report
	return out, c.do(ctx, http.MethodGet, "/api/disasters/"+disasterID.String()+"/reports", nil, &out)
}

// CreateReportRequest is the body of a report create
type CreateReportRequest struct {
	DisasterID uuid.UUID `json:"disaster_id"`
	UserID     string    `json:"user_id,omitempty"`
	Content    string    `json:"content"`
	ImageURL   string    `json:"image_url,omitempty"`
}

// CreateReport submits a report
func (c *Client) CreateReport(ctx context.Context, req CreateReportRequest) (*models.Report, error) {
	var out models.Report
	if err := c.do(ctx, http.MethodPost, "/api/reports", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetReport fetches one report
func (c *Client) GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	var out models.Report
	if err := c.do(ctx, http.MethodGet, "/api/reports/"+id.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyReport runs image verification on a report
func (c *Client) VerifyReport(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	var out models.Report
	if err := c.do(ctx, http.MethodPost, "/api/reports/"+id.String()+"/verify", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Geocode resolves a free-text description to coordinates
func (c *Client) Geocode(ctx context.Context, description string) (*models.GeocodeResult, error) {
	var out models.GeocodeResult
	if err := c.do(ctx, http.MethodPost, "/api/services/geocode", map[string]string{"description": description}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error    string `json:"error"`
			Location string `json:"location"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if json.Unmarshal(data, &apiErr) != nil || apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(data))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error, Location: apiErr.Location}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(h http.Header) {
	if c.userID != "" {
		h.Set("X-User-ID", c.userID)
	}
	if c.role != "" {
		h.Set("X-User-Role", c.role)
	}
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
}
