// Package jsonclient is the HTTP transport shared by the promotions and loyalty
// collaborators. Every call is bounded by the configured timeout and failures
// are mapped onto the models error kinds.
package jsonclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"restaurant-pos/internal/models"
)

type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: timeout,
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Do sends in as a JSON body (nil for none) and decodes the response into out.
func (c *Client) Do(ctx context.Context, method, path string, in, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %v: %w", method, path, err, models.ErrExternalService)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %v: %w", method, path, err, models.ErrExternalService)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %s: %w", method, path, message(raw), models.ErrNotFound)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return models.NewValidationError(fieldFor(path), "%s", message(raw))
	case resp.StatusCode >= 300:
		return fmt.Errorf("%s %s: status %d: %w", method, path, resp.StatusCode, models.ErrExternalService)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %v: %w", method, path, err, models.ErrExternalService)
	}
	return nil
}

func message(raw []byte) string {
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil {
		if eb.Error != "" {
			return eb.Error
		}
		if eb.Message != "" {
			return eb.Message
		}
	}
	return strings.TrimSpace(string(raw))
}

// fieldFor names the rejected input after the first path segment
func fieldFor(path string) string {
	seg := strings.Trim(path, "/")
	if i := strings.IndexByte(seg, '/'); i >= 0 {
		seg = seg[:i]
	}
	return seg
}
