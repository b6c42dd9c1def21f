package overfast

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimitExceeded matches a *RateLimitError via errors.Is
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrMalformedJSON is wrapped in a *RequestError when a 2xx body is not JSON
	ErrMalformedJSON = errors.New("malformed JSON body")
)

// RequestError covers network failures, non-2xx responses other than 429,
// and unparseable bodies. No retry is attempted for any of them.
type RequestError struct {
	URL        string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("request to %s failed with status %d: %v", e.URL, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("request to %s failed with status %d", e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
	}
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// RateLimitError is returned once every attempt came back 429
type RateLimitError struct {
	URL      string
	Attempts int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("429 Too Many Requests (gave up after %d retries): %s", e.Attempts, e.URL)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}
