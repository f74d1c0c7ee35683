// Package segmind is a minimal client for Segmind's text-to-video endpoint.
// The vendor responds with an mp4 body, which the caller streams through.
package segmind

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrMissingAPIKey marks a misconfigured client.
var ErrMissingAPIKey = errors.New("segmind: API key is missing")

type Options struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://api.segmind.com/v1/luma-txt-2-video"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient: client,
		baseURL:    base,
		apiKey:     strings.TrimSpace(opts.APIKey),
	}
}

type videoRequest struct {
	Prompt    string `json:"prompt"`
	Dimension string `json:"dimension,omitempty"`
}

// GenerateVideo submits the prompt and returns the vendor's mp4 stream. The
// caller owns the returned body and must close it.
func (c *Client) GenerateVideo(ctx context.Context, prompt, dimension string) (io.ReadCloser, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	body, err := json.Marshal(videoRequest{Prompt: prompt, Dimension: dimension})
	if err != nil {
		return nil, fmt.Errorf("segmind: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("segmind: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "video/mp4")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("segmind: sending request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		resp.Body.Close()
		return nil, fmt.Errorf("segmind: generation failed (status %d): %s", resp.StatusCode, string(detail))
	}

	return resp.Body, nil
}
