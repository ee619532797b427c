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

	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
)

// Client sends rate-limited JSON requests to one provider's HTTP API.
type Client struct {
	name    string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	header  http.Header
}

// NewClient creates a client for the API at baseURL. header is sent with every
// request, typically the credentials. rps of zero disables rate limiting.
func NewClient(name, baseURL string, timeout time.Duration, rps float64, header http.Header) *Client {
	if header == nil {
		header = http.Header{}
	}
	return &Client{
		name:    name,
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		limiter: NewLimiter(rps),
		header:  header,
	}
}

// BearerHeader returns the Authorization header for a bearer token.
func BearerHeader(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}

// PostJSON posts in to path and decodes the response body into out.
// Non-2xx responses become StatusError. Context cancellation is returned unwrapped.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	if err := Wait(ctx, c.limiter); err != nil {
		return err
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", c.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", c.name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.name, err)
	}
	return nil
}

// Ping issues a GET against path, usually a model listing that validates
// credentials without running inference.
func (c *Client) Ping(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("%s: create ping request: %w", c.name, err)
	}
	_, err = c.do(ctx, req)
	return err
}

func (c *Client) do(ctx context.Context, req *http.Request) ([]byte, error) {
	for k, v := range c.header {
		req.Header[k] = v
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s: send request: %w", c.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", c.name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, StatusError(c.name, resp.StatusCode, body)
	}
	return body, nil
}

// GenerationError marks a failed LLM call with domain.ErrGenerationFailed.
// Cancellation and deadline errors pass through so callers can tell them apart.
func GenerationError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
}
