package fetch

import (
	"fmt"
	"time"
)

// Kind classifies a fetch failure for the caller's skip/retry decision.
type Kind string

const (
	KindRateLimited Kind = "rate_limited" // HTTP 429, retries exhausted
	KindServerError Kind = "server_error" // HTTP 5xx or open circuit, retries exhausted
	KindNetwork     Kind = "network"      // transport-level failure
	KindTimeout     Kind = "timeout"      // deadline exceeded
	KindClientError Kind = "client_error" // non-429 4xx, never retried
	KindCanceled    Kind = "canceled"     // context canceled, never retried
)

// Error is a terminal fetch failure after the retry policy has run its
// course. Transient kinds cost retry budget; KindClientError surfaces
// immediately.
type Error struct {
	Service    string
	Kind       Kind
	StatusCode int
	Err        error

	// retryAfter carries an upstream Retry-After hint into the backoff
	// schedule. Zero means no hint was given.
	retryAfter time.Duration
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: %s (HTTP %d): %v", e.Service, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.Service, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure was of a retryable class. By the time
// an Error surfaces the retry budget is already spent; this only informs the
// caller's skip reason.
func (e *Error) Transient() bool {
	return e.Kind != KindClientError && e.Kind != KindCanceled
}
