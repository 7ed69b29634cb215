// Package http provides an HTTP client with retries, timeouts, and logging
// capabilities, shared by the Tinybird store and Slack response_url posts.
package http

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"
)

// ClientOptions configures the HTTP client behavior
type ClientOptions struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	MaxBackoff     time.Duration
	RequestLogger  func(method, url string, body []byte)
	ResponseLogger func(statusCode int, body []byte, err error)
}

// DefaultOptions returns sensible default client options
func DefaultOptions() ClientOptions {
	return ClientOptions{
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		RetryBackoff:   500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		RequestLogger:  func(_, _ string, _ []byte) {},
		ResponseLogger: func(_ int, _ []byte, _ error) {},
	}
}

// Client is a wrapper around http.Client with retries and logging
type Client struct {
	client  *http.Client
	options ClientOptions
}

// NewClient creates a new HTTP client with the given options
func NewClient(options ClientOptions) *Client {
	return &Client{
		client: &http.Client{
			Timeout: options.Timeout,
		},
		options: options,
	}
}

// DoRequest performs an HTTP request with retries and logging. A non-nil body
// is marshalled to JSON.
func (c *Client) DoRequest(ctx context.Context, method, url string, body interface{}, headers map[string]string) ([]byte, int, error) {
	var bodyBytes []byte
	var err error

	if body != nil {
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		if headers == nil {
			headers = map[string]string{}
		}
		if _, ok := headers["Content-Type"]; !ok {
			headers["Content-Type"] = "application/json"
		}
	}

	c.options.RequestLogger(method, url, bodyBytes)

	return c.DoRawRequest(ctx, method, url, bodyBytes, headers)
}

// DoRawRequest performs an HTTP request with a pre-encoded body, retrying
// transient failures with exponential backoff.
func (c *Client) DoRawRequest(ctx context.Context, method, url string, bodyBytes []byte, headers map[string]string) ([]byte, int, error) {
	var statusCode int
	var responseBytes []byte
	var err error

	backoff := c.options.RetryBackoff

	for attempt := 0; attempt <= c.options.MaxRetries; attempt++ {
		if err = c.applyBackoffDelay(ctx, attempt, &backoff); err != nil {
			return nil, 0, err
		}

		responseBytes, statusCode, err = c.executeRequest(ctx, method, url, bodyBytes, headers)

		if !c.shouldRetryRequest(statusCode, err) {
			break
		}
	}

	c.options.ResponseLogger(statusCode, responseBytes, err)

	if statusCode < 200 || statusCode >= 300 {
		return responseBytes, statusCode, fmt.Errorf("request failed with status %d: %s", statusCode, string(responseBytes))
	}

	return responseBytes, statusCode, err
}

// DoJSONRequest performs an HTTP request and unmarshals the response into the target
func (c *Client) DoJSONRequest(ctx context.Context, method, url string, requestBody, responseTarget interface{}, headers map[string]string) (int, error) {
	respBody, statusCode, err := c.DoRequest(ctx, method, url, requestBody, headers)
	if err != nil {
		return statusCode, err
	}

	if responseTarget != nil {
		if err := json.Unmarshal(respBody, responseTarget); err != nil {
			return statusCode, fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return statusCode, nil
}

func (c *Client) applyBackoffDelay(ctx context.Context, attempt int, backoff *time.Duration) error {
	if attempt <= 0 {
		return nil
	}

	// Jitter spreads out retries from concurrent workers hitting the same
	// upstream.
	maxJitter := int64(*backoff) / 2
	randomBig, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
	if err != nil {
		return fmt.Errorf("failed to generate random jitter: %w", err)
	}
	sleepTime := *backoff + time.Duration(randomBig.Int64())

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(sleepTime):
	}

	*backoff *= 2
	if *backoff > c.options.MaxBackoff {
		*backoff = c.options.MaxBackoff
	}

	return nil
}

func (c *Client) executeRequest(ctx context.Context, method, url string, bodyBytes []byte, headers map[string]string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, 0, err
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}

	statusCode := resp.StatusCode
	responseBytes, err := io.ReadAll(resp.Body)

	if closeErr := resp.Body.Close(); closeErr != nil {
		return nil, statusCode, fmt.Errorf("failed to close response body: %w", closeErr)
	}

	return responseBytes, statusCode, err
}

func (c *Client) shouldRetryRequest(statusCode int, err error) bool {
	if err != nil {
		return true
	}

	// 4xx is permanent except for rate limiting.
	if statusCode >= 400 && statusCode < 500 && statusCode != 429 {
		return false
	}

	if statusCode >= 200 && statusCode < 300 {
		return false
	}

	return true
}
