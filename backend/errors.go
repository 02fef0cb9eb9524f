package backend

import (
	"errors"
	"fmt"
)

// Sentinel errors for backend failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrNotFound indicates the requested resource does not exist (404).
	ErrNotFound = errors.New("not found")

	// ErrAuth indicates the backend rejected the credentials (401/403).
	ErrAuth = errors.New("authentication failed")

	// ErrNetwork indicates a transport-level failure reaching the backend.
	ErrNetwork = errors.New("network error")

	// ErrNoToken indicates an operation ran before any client identified
	// itself, so no token is available.
	ErrNoToken = errors.New("no token obtained")
)

// StatusError wraps a non-2xx backend response with its HTTP status code.
// Handlers surface Code on the response header's status extension.
type StatusError struct {
	// Op is the backend operation that failed (e.g. "get_user_stats").
	Op string
	// Code is the HTTP status code returned by the backend.
	Code int
	// Err is the underlying error, if any.
	Err error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.Code)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *StatusError) Unwrap() error { return e.Err }

// Is maps well-known status codes onto the matching sentinels.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Code == 404
	case ErrAuth:
		return e.Code == 401 || e.Code == 403
	}
	return false
}

// StatusCode extracts the HTTP status code from a backend error chain.
// Returns 0 when the error carries no status (transport failures).
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
