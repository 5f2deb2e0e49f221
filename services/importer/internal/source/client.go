package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// maxPayloadBytes caps a single dataset download.
const maxPayloadBytes = 512 << 20

// Client downloads raw marker datasets published as "<base>/<id>.json".
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient returns a client for the feed rooted at baseURL.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{http: httpClient, baseURL: baseURL}
}

// URL returns the download location of a dataset.
func (c *Client) URL(id string) string {
	return c.baseURL + "/" + id + ".json"
}

// FetchDataset retrieves the raw JSON of one dataset.
func (c *Client) FetchDataset(ctx context.Context, id string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(id), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request dataset %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("dataset %s: unexpected status %s", id, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", id, err)
	}
	if len(data) > maxPayloadBytes {
		return nil, fmt.Errorf("dataset %s exceeds %d bytes", id, maxPayloadBytes)
	}
	return data, nil
}
