// Package matchclient calls the external matching/settlement computation
// service. The orchestrator treats it as a pure function of a locked round's
// bid set and never persists anything on its behalf.
package matchclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"tdrlane/services/orchestrator/internal/engine"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTP: &http.Client{}}
}

func (c *Client) ComputeMatching(ctx context.Context, in engine.ComputeInput) (map[string]any, error) {
	return c.post(ctx, "/compute/matching", in)
}

func (c *Client) ComputeSettlement(ctx context.Context, in engine.ComputeInput) (map[string]any, error) {
	return c.post(ctx, "/compute/settlement", in)
}

func (c *Client) post(ctx context.Context, path string, in engine.ComputeInput) (map[string]any, error) {
	b, _ := json.Marshal(in)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("content-type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("matcher returned %d", resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
