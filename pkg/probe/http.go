package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPChecker performs HTTP-based synthetic checks
type HTTPChecker struct {
	// URL is the full HTTP URL to check (e.g., "https://svc.example.com/healthz")
	URL string

	// Method is the HTTP method to use (default: GET)
	Method string

	// Headers are custom HTTP headers to include in the request
	Headers map[string]string

	// ExpectedStatusMin is the minimum acceptable HTTP status code (default: 200)
	ExpectedStatusMin int

	// ExpectedStatusMax is the maximum acceptable HTTP status code (default: 299)
	ExpectedStatusMax int

	// Client is the HTTP client to use (allows custom configuration)
	Client *http.Client
}

// NewHTTPChecker creates a new HTTP prober. The default timeout is short:
// probes gate traffic decisions and must fail fast rather than hang.
func NewHTTPChecker(url string) *HTTPChecker {
	return &HTTPChecker{
		URL:               url,
		Method:            http.MethodGet,
		Headers:           make(map[string]string),
		ExpectedStatusMin: 200,
		ExpectedStatusMax: 299,
		Client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Check performs one HTTP probe
func (h *HTTPChecker) Check(ctx context.Context) Sample {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, h.Method, h.URL, nil)
	if err != nil {
		return Sample{
			Success:   false,
			Message:   fmt.Sprintf("failed to create request: %v", err),
			CheckedAt: start,
			Latency:   time.Since(start),
		}
	}

	for key, value := range h.Headers {
		req.Header.Set(key, value)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return Sample{
			Success:   false,
			Message:   fmt.Sprintf("request failed: %v", err),
			CheckedAt: start,
			Latency:   time.Since(start),
		}
	}
	defer resp.Body.Close()

	success := resp.StatusCode >= h.ExpectedStatusMin && resp.StatusCode <= h.ExpectedStatusMax

	message := fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	if !success {
		message = fmt.Sprintf("%s (expected %d-%d)", message, h.ExpectedStatusMin, h.ExpectedStatusMax)
	}

	return Sample{
		Success:   success,
		Message:   message,
		CheckedAt: start,
		Latency:   time.Since(start),
	}
}

// Kind returns the probe kind
func (h *HTTPChecker) Kind() Kind {
	return KindHTTP
}

// WithMethod sets the HTTP method
func (h *HTTPChecker) WithMethod(method string) *HTTPChecker {
	h.Method = method
	return h
}

// WithHeader adds a custom HTTP header
func (h *HTTPChecker) WithHeader(key, value string) *HTTPChecker {
	h.Headers[key] = value
	return h
}

// WithStatusRange sets the expected status code range
func (h *HTTPChecker) WithStatusRange(min, max int) *HTTPChecker {
	h.ExpectedStatusMin = min
	h.ExpectedStatusMax = max
	return h
}

// WithTimeout sets the HTTP client timeout
func (h *HTTPChecker) WithTimeout(timeout time.Duration) *HTTPChecker {
	h.Client.Timeout = timeout
	return h
}
