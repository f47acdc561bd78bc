package aitypes

import (
	"errors"
	"fmt"
	"strings"
)

// InvalidParameterError reports a caller-supplied value that cannot be used.
type InvalidParameterError struct {
	// Field names the offending parameter (e.g. "provider", "config_index", "api_type")
	Field string

	// Value is the rejected value rendered as text
	Value string

	// Message describes what is wrong
	Message string

	// Cause is the underlying error, if any
	Cause error
}

// Error implements the error interface.
func (e *InvalidParameterError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *InvalidParameterError) Unwrap() error {
	return e.Cause
}

// AuthenticationError reports a missing, empty or remotely rejected credential.
type AuthenticationError struct {
	Provider    string
	ConfigIndex int

	// Reason describes the failure
	Reason string

	// StatusCode is the HTTP status returned by the remote (0 when detected locally)
	StatusCode int

	Cause error
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("authentication failed for %s[%d] (status %d): %s", e.Provider, e.ConfigIndex, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("authentication failed for %s[%d]: %s", e.Provider, e.ConfigIndex, e.Reason)
}

// Unwrap returns the underlying error for error chain support.
func (e *AuthenticationError) Unwrap() error {
	return e.Cause
}

// UnsupportedAPITypeError reports an API type with no usable adapter or catalogue entry.
type UnsupportedAPITypeError struct {
	APIType APIType

	// Supported lists the tags that would have been accepted
	Supported []APIType
}

// Error implements the error interface.
func (e *UnsupportedAPITypeError) Error() string {
	if len(e.Supported) == 0 {
		return fmt.Sprintf("unsupported API type %q", e.APIType)
	}
	names := make([]string, len(e.Supported))
	for i, s := range e.Supported {
		names[i] = string(s)
	}
	return fmt.Sprintf("unsupported API type %q (supported: %s)", e.APIType, strings.Join(names, ", "))
}

// ResponseConversionError reports a reply that could not be turned into text.
type ResponseConversionError struct {
	APIType APIType

	// Raw holds a truncated copy of the offending payload
	Raw string

	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ResponseConversionError) Error() string {
	return fmt.Sprintf("%s response conversion failed: %s", e.APIType, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *ResponseConversionError) Unwrap() error {
	return e.Cause
}

// ConnectionError reports a transport failure, timeout or non-success HTTP status.
type ConnectionError struct {
	Endpoint string

	// StatusCode is the HTTP status (0 when no response was received)
	StatusCode int

	// Timeout is true when the request exceeded a configured timeout
	Timeout bool

	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("request to %s timed out: %s", e.Endpoint, e.Message)
	case e.StatusCode > 0:
		return fmt.Sprintf("request to %s failed (HTTP %d): %s", e.Endpoint, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("request to %s failed: %s", e.Endpoint, e.Message)
	}
}

// Unwrap returns the underlying error for error chain support.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// StateError reports an operation attempted in the wrong lifecycle state.
type StateError struct {
	Op    string
	State string
}

// Error implements the error interface.
func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s: %s", e.Op, e.State)
}

// DuplicateSessionError reports a session id that is already registered.
type DuplicateSessionError struct {
	SessionID string
}

// Error implements the error interface.
func (e *DuplicateSessionError) Error() string {
	return fmt.Sprintf("session %q already exists", e.SessionID)
}

// CatalogueError reports an unknown provider, an out-of-range index or a malformed catalogue.
type CatalogueError struct {
	Provider    string
	ConfigIndex int
	Message     string
	Cause       error
}

// Error implements the error interface.
func (e *CatalogueError) Error() string {
	if e.Provider == "" {
		return "catalogue: " + e.Message
	}
	return fmt.Sprintf("catalogue %s: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *CatalogueError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether err is a transport-level failure that a caller may retry.
// The library itself never retries.
func IsRetryable(err error) bool {
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		return false
	}
	return connErr.Timeout || connErr.StatusCode == 0 || connErr.StatusCode == 429 || connErr.StatusCode >= 500
}
