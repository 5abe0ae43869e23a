package collabsdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx or success=false response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d: %s", e.StatusCode, e.Message)
}

// Transient reports whether repeating the request may succeed.
func (e *APIError) Transient() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}
	return e.StatusCode >= 500
}

// TransportError is a failure to complete the HTTP exchange.
type TransportError struct {
	Method   string
	URL      string
	Err      error
	canceled bool
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Transient is false when the caller's context ended the request.
func (e *TransportError) Transient() bool {
	return !e.canceled && !errors.Is(e.Err, context.Canceled)
}

// IsTransient reports whether err is worth retrying. Errors that do not
// classify themselves are permanent.
func IsTransient(err error) bool {
	var t interface{ Transient() bool }
	if errors.As(err, &t) {
		return t.Transient()
	}
	return false
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
