package api

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
)

// DefaultAPIURL is where pollbot serves its admin API by default
const DefaultAPIURL = "http://127.0.0.1:9877"

// Client is the HTTP client for the admin API, used by pollctl and poll-mcp
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListPolls lists every active poll
func (c *Client) ListPolls(ctx context.Context) ([]PollView, error) {
	var result struct {
		Polls []PollView `json:"polls"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/polls", nil, &result); err != nil {
		return nil, err
	}
	return result.Polls, nil
}

// GetPoll gets one poll by its message ID
func (c *Client) GetPoll(ctx context.Context, id string) (*PollView, error) {
	var view PollView
	if err := c.do(ctx, http.MethodGet, "/api/polls/"+url.PathEscape(id), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// CreatePoll creates and announces a poll
func (c *Client) CreatePoll(ctx context.Context, req *CreatePollRequest) (*PollView, error) {
	var view PollView
	if err := c.do(ctx, http.MethodPost, "/api/polls", req, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, errorMessage(respBody))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// errorMessage extracts {"error": "..."} bodies, falling back to the raw text
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
