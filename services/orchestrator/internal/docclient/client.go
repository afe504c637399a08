// Package docclient queries the external document/consent store for the
// existence signals the slum workflow gates on. Document content never
// crosses this boundary.
package docclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTP: &http.Client{}}
}

func (c *Client) ConsentGiven(ctx context.Context, projectID, participantID string) (bool, error) {
	var out struct {
		Given bool `json:"given"`
	}
	err := c.get(ctx, fmt.Sprintf("%s/projects/%s/participants/%s/consent", c.BaseURL, projectID, participantID), &out)
	if err != nil {
		return false, err
	}
	return out.Given, nil
}

func (c *Client) DocumentCount(ctx context.Context, projectID, participantID string) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	err := c.get(ctx, fmt.Sprintf("%s/projects/%s/participants/%s/documents/count", c.BaseURL, projectID, participantID), &out)
	if err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("docstore returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
