// Package lookup holds the clients for the external services the coordinator
// depends on: the Gemini model API, Google geocoding and report image hosts.
package lookup

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/relief-network/coordinator/internal/observability"
)

// ErrNoResults is returned by Maps.Geocode when the address resolves to nothing.
var ErrNoResults = errors.New("no geocoding results")

// maxErrorBody bounds how much of a failed response is kept for the error message.
const maxErrorBody = 1 << 10

// observe records the outcome and latency of one external call.
func observe(m *observability.Metrics, service string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.ExternalRequests.WithLabelValues(service, outcome).Inc()
	m.ExternalDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
}

// do sends req and returns the response when it carries a 200 status.
// The caller must close the body.
func do(httpc *http.Client, req *http.Request, service string) (*http.Response, error) {
	resp, err := httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", service, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%s API error: status %d: %s", service, resp.StatusCode, body)
	}
	return resp, nil
}
