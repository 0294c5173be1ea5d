// Package errors defines common error types used throughout the Bluesky API wrapper.
package errors

import (
	"fmt"
	"strings"
)

// ConfigError indicates a problem with the client configuration.
type ConfigError struct {
	// Field contains the name of the configuration field that caused the error
	Field string
	// Message contains the detailed error message
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// AuthError indicates an authentication failure.
type AuthError struct {
	// StatusCode is the HTTP status code (if from an HTTP response)
	StatusCode int
	// Message contains the detailed error message
	Message string
	// Body contains the raw response body (if available)
	Body string
	// Err contains the underlying error if available
	Err error
}

func (e *AuthError) Error() string {
	var parts []string
	parts = append(parts, "auth error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status code %d", e.StatusCode))
	}

	if e.Body != "" {
		parts = append(parts, fmt.Sprintf("body: %q", e.Body))
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.Err != nil {
		parts = append(parts, fmt.Sprintf("err: %v", e.Err))
	}

	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + ": " + strings.Join(parts[1:], ", ")
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// StateError indicates an operation was attempted while the client or a
// session manager is in the wrong state. It reports caller misuse, never a
// network condition, and is raised before any request is dispatched.
type StateError struct {
	// Operation is the name of the operation that was attempted
	Operation string
	// Message contains the detailed error message
	Message string
}

func (e *StateError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("state error during %s: %s", e.Operation, e.Message)
	}
	return fmt.Sprintf("state error: %s", e.Message)
}

// RequestError indicates the HTTP request itself failed: connectivity,
// timeout, or cancellation. The call never produced a meaningful server
// response, which distinguishes it from APIError.
type RequestError struct {
	// Operation is the name of the API operation that failed
	Operation string
	// URL is the URL that was being accessed
	URL string
	// Message contains the detailed error message
	Message string
	// Err contains the underlying error if available
	Err error
}

func (e *RequestError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}

	if e.Operation != "" && e.URL != "" {
		return fmt.Sprintf("request error during %s to %s: %s", e.Operation, e.URL, msg)
	} else if e.Operation != "" {
		return fmt.Sprintf("request error during %s: %s", e.Operation, msg)
	}
	return fmt.Sprintf("request error: %s", msg)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// APIError represents a non-success response from an XRPC endpoint.
// StatusCode is always populated. Kind and Message are filled when the
// response carried a well-formed {"error","message"} body; otherwise Body
// retains whatever the server sent.
type APIError struct {
	// StatusCode is the HTTP status code
	StatusCode int
	// Kind is the machine-readable error name from the server (if available)
	Kind string
	// Message is the human-readable error message from the server
	Message string
	// Body contains the raw response body when it could not be decoded
	Body string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("API error (status %d, kind %s): %s", e.StatusCode, e.Kind, e.Message)
	}
	if e.Body != "" {
		return fmt.Sprintf("API request failed with status %d: %q", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("API request failed with status %d", e.StatusCode)
}
