// Package api is the HTTP transport to the document and chat backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/docchat/cli/internal/logger"
)

// Client wraps backend API interactions
type Client struct {
	baseURL    string
	httpClient *http.Client
	// streamClient has no overall deadline; timeout bounds only the wait for
	// response headers so a long answer is not cut off mid-stream
	streamClient *http.Client
	logger       *logger.Logger
}

// NewClient creates a new API client
func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	streamTransport := http.DefaultTransport.(*http.Transport).Clone()
	streamTransport.ResponseHeaderTimeout = timeout
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		streamClient: &http.Client{
			Transport: streamTransport,
		},
		logger: log.With("component", "api"),
	}
}

// BaseURL returns the server root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do executes a request and returns the response for 2xx statuses. Any
// other status is consumed and turned into a *ConflictError (409) or a
// *StatusError.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	return c.roundTrip(ctx, c.httpClient, method, path, body, contentType)
}

func (c *Client) roundTrip(ctx context.Context, hc *http.Client, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := hc.Do(req)
	if err != nil {
		c.logger.Warn("request failed", "method", method, "path", path, "error", err)
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}
	c.logger.Debug("request", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode == http.StatusConflict {
		var conflict ConflictError
		if err := json.Unmarshal(data, &conflict); err == nil && conflict.Code != "" {
			c.logger.Info("conflict", "method", method, "path", path, "code", conflict.Code)
			return nil, &conflict
		}
	}
	return nil, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
}

// errorMessage pulls "message" out of a JSON error body, falling back to
// the raw text.
func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return strings.TrimSpace(string(data))
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeBody(resp.Body, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out interface{}) error {
	jsonData, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	resp, err := c.do(ctx, method, path, bytes.NewReader(jsonData), "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	return decodeBody(resp.Body, out)
}

func decodeBody(r io.Reader, out interface{}) error {
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return &TransportError{Op: "decode response", Err: err}
	}
	return nil
}
