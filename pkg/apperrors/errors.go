package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	ErrUnauthorized = errors.New("authentication rejected")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("service unavailable")
)

// AuthError reports a failed login or an expired session. The message comes
// from the server and is surfaced to the user verbatim.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return ErrUnauthorized
}

// PermissionError reports a resource-scoped action attempted without a
// sufficient role. It is returned to the caller, never swallowed.
type PermissionError struct {
	Action string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("You do not have permission to %s", e.Action)
}

func (e *PermissionError) Unwrap() error {
	return ErrForbidden
}

// ValidationError maps field names to messages. It is produced by client-side
// required-field checks before any network call is made.
type ValidationError map[string]string

func (e ValidationError) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + ": " + e[f]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// APIError is a classified failure from the remote API. It unwraps to the
// sentinel matching its HTTP status so callers can branch with errors.Is.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case 0:
		return ErrUnavailable
	}
	return nil
}

// FromStatus converts an HTTP status and server-provided message into an
// APIError. A status of 0 means the request never reached the server.
func FromStatus(status int, message string) error {
	return &APIError{Status: status, Message: message}
}

// IsExpected reports whether err is one of the expected, recoverable failure
// kinds (validation, permission, conflict) rather than a collaborator fault.
func IsExpected(err error) bool {
	var ve ValidationError
	var pe *PermissionError
	return errors.As(err, &ve) || errors.As(err, &pe) || errors.Is(err, ErrConflict)
}
