package api

import (
	"errors"
	"fmt"
)

// ErrRequestFailed is the generic condition every task API failure
// unwraps to.
var ErrRequestFailed = errors.New("request failed")

// RequestError describes a failed task API call. Status is zero for
// transport failures.
type RequestError struct {
	Method string
	Path   string
	Status int
	Body   string
	Err    error
}

func (e *RequestError) Error() string {
	switch {
	case e.Status != 0 && e.Err == nil:
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Status)
	case e.Status != 0:
		return fmt.Sprintf("%s %s: status %d: %v", e.Method, e.Path, e.Status, e.Err)
	default:
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
}

// Unwrap exposes both ErrRequestFailed and the underlying cause.
func (e *RequestError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRequestFailed}
	}
	return []error{ErrRequestFailed, e.Err}
}

// IsTransport reports whether the request never produced an HTTP response.
func (e *RequestError) IsTransport() bool {
	return e.Status == 0
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Status
	}
	return 0
}
