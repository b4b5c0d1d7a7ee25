package jira

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized indicates the remote service rejected the session
	// credential. The gateway has already cleared its session and emitted
	// EventSessionInvalid by the time a caller sees this.
	ErrUnauthorized = errors.New("authorization expired")

	// ErrNoSession indicates a request was attempted before any session
	// was installed.
	ErrNoSession = errors.New("no active session: login required")
)

// APIError is a non-401 error response from the remote service.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}
