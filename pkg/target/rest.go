package target

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shiftgate/shiftgate/pkg/types"
)

// RESTClient is a Client adapter for platforms exposing a revision-based
// HTTP API. One RESTClient is scoped to a single service on the platform.
type RESTClient struct {
	baseURL string
	service string
	client  *http.Client
}

// NewRESTClient creates a REST adapter for the given platform API base
// URL and service name
func NewRESTClient(baseURL, service string) *RESTClient {
	return &RESTClient{
		baseURL: baseURL,
		service: service,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithTimeout sets the per-call timeout for platform requests
func (c *RESTClient) WithTimeout(timeout time.Duration) *RESTClient {
	c.client.Timeout = timeout
	return c
}

func (c *RESTClient) serviceURL(parts ...string) string {
	u := fmt.Sprintf("%s/v1/services/%s", c.baseURL, url.PathEscape(c.service))
	for _, p := range parts {
		u += "/" + p
	}
	return u
}

// do issues one platform request and decodes the JSON response into out
// (when out is non-nil). Transport failures map to ErrTargetUnreachable.
func (c *RESTClient) do(ctx context.Context, method, u string, body, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTargetUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("%w: invalid response body: %v", ErrTargetUnreachable, err)
		}
	}
	return resp.StatusCode, nil
}

type trafficPayload struct {
	Split types.TrafficSplit `json:"split"`
}

// CurrentTraffic queries the live traffic split
func (c *RESTClient) CurrentTraffic(ctx context.Context) (types.TrafficSplit, error) {
	var payload trafficPayload
	status, err := c.do(ctx, http.MethodGet, c.serviceURL("traffic"), nil, &payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: traffic query returned HTTP %d", ErrTargetUnreachable, status)
	}
	return payload.Split, nil
}

type publishRequest struct {
	Revision string   `json:"revision"`
	Metadata Metadata `json:"metadata"`
}

// PublishCandidate deploys the revision at zero traffic
func (c *RESTClient) PublishCandidate(ctx context.Context, revision string, meta Metadata) (*RevisionHandle, error) {
	var handle RevisionHandle
	status, err := c.do(ctx, http.MethodPost, c.serviceURL("revisions"),
		publishRequest{Revision: revision, Metadata: meta}, &handle)
	if err != nil {
		return nil, err
	}
	switch {
	case status >= 200 && status < 300:
		return &handle, nil
	case status >= 400 && status < 500:
		return nil, fmt.Errorf("%w: HTTP %d for revision %s", ErrPublish, status, revision)
	default:
		return nil, fmt.Errorf("%w: publish returned HTTP %d", ErrTargetUnreachable, status)
	}
}

// ShiftTraffic atomically replaces the full traffic split. Invalid splits
// are rejected locally before any platform call.
func (c *RESTClient) ShiftTraffic(ctx context.Context, split types.TrafficSplit) error {
	if err := split.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrTrafficUpdate, err)
	}

	status, err := c.do(ctx, http.MethodPut, c.serviceURL("traffic"), trafficPayload{Split: split}, nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrTrafficUpdate, status)
	}
	return nil
}

type endpointPayload struct {
	URL string `json:"url"`
}

// ServiceEndpoint returns the aggregate endpoint, or the revision-pinned
// endpoint when a handle is supplied
func (c *RESTClient) ServiceEndpoint(ctx context.Context, handle *RevisionHandle) (string, error) {
	if handle != nil && handle.URL != "" {
		return handle.URL, nil
	}

	u := c.serviceURL("endpoint")
	if handle != nil {
		u += "?revision=" + url.QueryEscape(handle.Revision)
	}

	var payload endpointPayload
	status, err := c.do(ctx, http.MethodGet, u, nil, &payload)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("%w: endpoint query returned HTTP %d", ErrTargetUnreachable, status)
	}
	return payload.URL, nil
}

// Retire removes a revision from the platform
func (c *RESTClient) Retire(ctx context.Context, revision string) error {
	status, err := c.do(ctx, http.MethodDelete, c.serviceURL("revisions", url.PathEscape(revision)), nil, nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		// Already gone; retire is idempotent
		return nil
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("%w: retire returned HTTP %d", ErrTargetUnreachable, status)
	}
	return nil
}
