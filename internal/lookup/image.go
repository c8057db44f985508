package lookup

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/relief-network/coordinator/internal/observability"
)

const (
	defaultImageType = "image/jpeg"
	maxImageBytes    = 20 << 20
)

// ImageFetcher downloads report images for classification.
type ImageFetcher struct {
	httpClient *http.Client
	metrics    *observability.Metrics
}

// NewImageFetcher creates an image downloader.
func NewImageFetcher(timeout time.Duration, metrics *observability.Metrics) *ImageFetcher {
	return &ImageFetcher{
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
	}
}

// Fetch returns the image bytes at url and their media type. The type falls
// back to image/jpeg when the server does not name an image type.
func (f *ImageFetcher) Fetch(ctx context.Context, url string) (data []byte, mimeType string, err error) {
	start := time.Now()
	defer func() { observe(f.metrics, "image", start, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	resp, err := do(f.httpClient, req, "image")
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err = io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, "", fmt.Errorf("image at %s exceeds %d bytes", url, maxImageBytes)
	}

	return data, imageType(resp.Header.Get("Content-Type")), nil
}

func imageType(header string) string {
	mt, _, err := mime.ParseMediaType(header)
	if err != nil || !strings.HasPrefix(mt, "image/") {
		return defaultImageType
	}
	return mt
}
