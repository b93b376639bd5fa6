package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Every gateway intent fails with exactly one of these kinds, whatever the
// underlying cause (rejected credentials, server error, unreachable host).
var (
	ErrAuth   = errors.New("login failed")
	ErrFetch  = errors.New("failed to load history")
	ErrUpload = errors.New("upload failed")
	ErrReport = errors.New("report download failed")
)

// StatusError is a non-2xx backend response. It stays wrapped inside the
// intent error so callers that care can still inspect it.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "authentication failed. Check your credentials"
	case http.StatusNotFound:
		if e.Message != "" {
			return fmt.Sprintf("resource not found: %s", e.Message)
		}
		return "resource not found"
	case http.StatusBadRequest:
		return fmt.Sprintf("invalid request: %s", e.Message)
	case http.StatusServiceUnavailable:
		return "backend service unavailable"
	default:
		if e.Message != "" {
			return fmt.Sprintf("server error: %s", e.Message)
		}
		return fmt.Sprintf("server error (status %d)", e.StatusCode)
	}
}

// IsUnauthorized reports whether err carries a 401/403 backend response.
func IsUnauthorized(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden
}
