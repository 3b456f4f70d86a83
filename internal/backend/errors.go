package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport wraps network-level failures reaching the backend.
	ErrTransport = errors.New("backend transport failure")
	// ErrMalformedResponse is returned when a response body cannot be normalised.
	ErrMalformedResponse = errors.New("malformed backend response")
)

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s returned status %d", e.Endpoint, e.StatusCode)
}
