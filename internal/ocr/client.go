// Package ocr extracts text from uploaded policy documents via an
// external OCR service, and parses policy fields out of the raw text.
package ocr

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

// Client errors.
var (
	ErrNotConfigured = errors.New("ocr endpoint not configured")
	ErrEmptyText     = errors.New("ocr returned no text")
)

// ExtractRequest identifies the stored object to run OCR against. The
// OCR service fetches the bytes itself from the given URL (typically a
// short-lived presigned GET).
type ExtractRequest struct {
	SourceURL   string `json:"source_url"`
	ContentType string `json:"content_type"`
}

type extractResponse struct {
	Text string `json:"text"`
}

// Client calls an external OCR HTTP service.
type Client struct {
	endpoint string
	client   *http.Client
}

// NewClient creates an OCR client for the given endpoint. An empty
// endpoint yields a client whose Extract always fails with
// ErrNotConfigured, so callers can treat OCR as optional.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		client: &http.Client{
			// OCR on a 25MB scan can take a while.
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// Configured reports whether an endpoint is set.
func (c *Client) Configured() bool {
	return c.endpoint != ""
}

// Extract sends the document to the OCR service and returns the raw
// extracted text.
func (c *Client) Extract(ctx context.Context, req ExtractRequest) (string, error) {
	if c.endpoint == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode ocr request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create ocr request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to call ocr service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Bounded read so a misbehaving service cannot flood logs.
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ocr service returned status %d: %s", resp.StatusCode, string(msg))
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode ocr response: %w", err)
	}
	if out.Text == "" {
		return "", ErrEmptyText
	}
	return out.Text, nil
}
