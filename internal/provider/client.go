// Package provider is a client for the third-party marketplace data provider
// used for sources that cannot be fetched directly.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrEmptyResult is returned when the provider answered but found nothing.
var ErrEmptyResult = errors.New("provider returned no results")

// Item is one record returned by the provider.
type Item struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Emails      []string `json:"emails"`
}

// APIError is a non-2xx provider response.
type APIError struct {
	Code int
	Body string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with status code %d", e.Code)
}

func (e *APIError) StatusCode() int { return e.Code }

type searchRequest struct {
	Platform string `json:"platform"`
	Query    string `json:"query"`
}

type searchResponse struct {
	Items []Item `json:"items"`
}

// Client calls the provider's search endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Configured reports whether a provider endpoint was set.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// Search looks up query on the given platform. It returns ErrEmptyResult
// when the provider found no items.
func (c *Client) Search(ctx context.Context, platform, query string) ([]Item, error) {
	if !c.Configured() {
		return nil, errors.New("provider endpoint not configured")
	}

	body, err := json.Marshal(searchRequest{Platform: platform, Query: query})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &APIError{Code: resp.StatusCode, Body: string(snippet)}
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, ErrEmptyResult
	}
	return out.Items, nil
}
