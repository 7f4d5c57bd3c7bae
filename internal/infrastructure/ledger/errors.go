package ledger

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// StatusError is a non-2xx answer from the ledger API.
type StatusError struct {
	Op         string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Error implements error.
func (e *StatusError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s: ledger responded %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: ledger responded %d: %s", e.Op, e.StatusCode, body)
}

// RateLimited reports a 429 answer.
func (e *StatusError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// RetryAfter parses the Retry-After header when it holds delay-seconds.
// HTTP-date values are ignored and left to the exponential schedule.
func (e *StatusError) RetryAfter() (time.Duration, bool) {
	if e.Header == nil {
		return 0, false
	}
	raw := strings.TrimSpace(e.Header.Get("Retry-After"))
	if raw == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// AsStatusError extracts a StatusError from the chain.
func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
