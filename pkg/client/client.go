package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shiftgate/shiftgate/pkg/api"
	"github.com/shiftgate/shiftgate/pkg/types"
)

// Client talks to a running engine over its HTTP API
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the engine at baseURL
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("engine unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("engine returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("engine returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// StartRollout submits a rollout and returns the attempt id
func (c *Client) StartRollout(ctx context.Context, req api.StartRolloutRequest) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/rollouts", req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// GetRollout fetches one attempt record and whether it is still running
func (c *Client) GetRollout(ctx context.Context, id string) (*types.DeploymentAttempt, bool, error) {
	var resp api.RolloutResponse
	if err := c.do(ctx, http.MethodGet, "/v1/rollouts/"+id, nil, &resp); err != nil {
		return nil, false, err
	}
	return resp.Attempt, resp.Running, nil
}

// ListRollouts fetches all persisted attempt records
func (c *Client) ListRollouts(ctx context.Context) ([]*types.DeploymentAttempt, error) {
	var resp struct {
		Attempts []*types.DeploymentAttempt `json:"attempts"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/rollouts", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Attempts, nil
}

// AbortRollout asks the engine to abort a running attempt
func (c *Client) AbortRollout(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/v1/rollouts/"+id+"/abort", nil, nil)
}
