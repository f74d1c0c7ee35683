// Package huggingface is a minimal client for the HuggingFace inference API's
// text-to-image models. Responses are raw image bytes.
package huggingface

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
var ErrMissingAPIKey = errors.New("huggingface: API key is missing")

type Options struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://api-inference.huggingface.co"
	}
	model := opts.Model
	if model == "" {
		model = "runwayml/stable-diffusion-v1-5"
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
		model:      model,
	}
}

type inferenceRequest struct {
	Inputs string `json:"inputs"`
}

// GenerateImage runs one diffusion inference and returns the PNG bytes.
func (c *Client) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	body, err := json.Marshal(inferenceRequest{Inputs: prompt})
	if err != nil {
		return nil, fmt.Errorf("huggingface: encoding request: %w", err)
	}

	endpoint := c.baseURL + "/models/" + c.model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("huggingface: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("huggingface: sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("huggingface: inference failed (status %d): %s", resp.StatusCode, string(detail))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("huggingface: reading image bytes: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("huggingface: empty image response")
	}
	return data, nil
}
