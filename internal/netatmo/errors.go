package netatmo

import (
	"fmt"
)

// AuthError indicates the token is invalid and could not be refreshed. The
// caller must hand this to the host's re-authentication flow; retrying
// locally will not help.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// TransportError indicates a network or HTTP failure. Safe to retry on the
// next poll tick.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
