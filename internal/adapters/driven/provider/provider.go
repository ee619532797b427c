// Package provider holds helpers shared by the remote AI adapters.
package provider

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
)

// maxErrorBody caps how much of a failed response body ends up in an error.
const maxErrorBody = 512

// NewLimiter returns a limiter allowing rps requests per second with a burst of one
// second's worth. Returns nil when rps is not positive, which disables limiting.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	burst := max(int(rps), 1)
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// Wait blocks until the limiter admits one request or ctx is done.
// A nil limiter never blocks.
func Wait(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return ctx.Err()
	}
	return l.Wait(ctx)
}

// StatusError converts a non-2xx response into an error.
// 429 responses match domain.ErrRateLimited.
func StatusError(name string, status int, body []byte) error {
	msg := string(body)
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}
	if status == http.StatusTooManyRequests {
		return fmt.Errorf("%s: %w (status %d): %s", name, domain.ErrRateLimited, status, msg)
	}
	return fmt.Errorf("%s error (status %d): %s", name, status, msg)
}
