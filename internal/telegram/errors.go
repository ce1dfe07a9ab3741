package telegram

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

var (
	ErrMissingToken    = errors.New("telegram bot token is not set")
	ErrInvalidEnvelope = errors.New("unexpected api response")
)

// APIError is a reply with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
	// RetryAfter is set by the Bot API on 429 replies, in seconds.
	RetryAfter int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// TransportError is a request that never produced an API reply: a network
// failure, a timeout or a body that is not a Bot API envelope.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("telegram %s: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransient reports whether retrying the same request may succeed.
func IsTransient(err error) bool {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return false
}
