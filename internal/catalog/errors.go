package catalog

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError reports a non-2xx response from the remote API. The import
// engine branches on the 429 case; everything else is treated as "no data"
// by local policy.
type StatusError struct {
	Code int
	URL  string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("remote returned %d for %s", e.Code, e.URL)
}

// RateLimited reports whether the failure is the 429 throttle response.
func (e *StatusError) RateLimited() bool {
	return e.Code == http.StatusTooManyRequests
}

// IsRateLimited reports whether err is (or wraps) a 429 StatusError.
func IsRateLimited(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.RateLimited()
}
