// Package apiclient talks to the operator API of a running authkeep.
package apiclient

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

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultRetryFor = 5 * time.Second
	requestIDHeader = "X-Request-Id"
)

// Client is safe for concurrent use. Its With methods return copies.
type Client struct {
	baseURL  string
	http     *http.Client
	token    string
	retryFor time.Duration
}

// New returns a client for the API at baseURL, e.g. http://localhost:8080.
func New(baseURL string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: defaultTimeout},
		retryFor: defaultRetryFor,
	}
}

// WithToken returns a copy that authenticates with an operator token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// WithRetry returns a copy that retries idempotent requests for up to d
// while the server is unreachable or answers 502-504. Zero disables it.
func (c *Client) WithRetry(d time.Duration) *Client {
	cp := *c
	cp.retryFor = d
	return &cp
}

// do sends one request and decodes a JSON answer into result. GET requests
// are retried with exponential backoff, writes never are.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	requestID := uuid.NewString()

	attempt := func() ([]byte, error) {
		raw, err := c.send(ctx, method, path, requestID, payload)
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.retryable() {
			return nil, backoff.Permanent(err)
		}
		return raw, err
	}

	var raw []byte
	var err error
	if method == http.MethodGet && c.retryFor > 0 {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 100 * time.Millisecond
		b.MaxElapsedTime = c.retryFor
		raw, err = backoff.RetryWithData(attempt, backoff.WithContext(b, ctx))
	} else {
		raw, err = c.send(ctx, method, path, requestID, payload)
	}
	if err != nil {
		return err
	}

	if result == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path, requestID string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, decodeError(resp.StatusCode, raw)
	}
	return raw, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

func (c *Client) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}
