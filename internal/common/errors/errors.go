// Package errors defines the error values and helpers shared across the
// application, including the mapping from upstream service failures to
// user-facing Slack messages.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Standard errors that can be compared directly
var (
	// ErrNotFound indicates that a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized indicates that the request lacks valid authentication
	ErrUnauthorized = errors.New("unauthorized request")

	// ErrBadRequest indicates that the request was invalid
	ErrBadRequest = errors.New("bad request")

	// ErrTimeout indicates that the operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrUnavailable indicates that the service is currently unavailable
	ErrUnavailable = errors.New("service unavailable")

	// ErrNoChannelConfig indicates that a channel has no stored Tinybird configuration
	ErrNoChannelConfig = errors.New("no configuration stored for channel")
)

// ServiceError represents an error from a specific upstream service
type ServiceError struct {
	Service   string
	Message   string
	Code      string
	Retryable bool
	Cause     error
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s service error: %s (code: %s): %v",
			e.Service, e.Message, e.Code, e.Cause)
	}
	return fmt.Sprintf("%s service error: %s (code: %s)",
		e.Service, e.Message, e.Code)
}

// Unwrap implements the errors.Unwrap interface
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// NewSlackError creates a new error specific to the Slack Web API
func NewSlackError(message string, code string, cause error) error {
	return &ServiceError{
		Service:   "slack",
		Message:   message,
		Code:      code,
		Retryable: code == "rate_limited" || code == "server_error",
		Cause:     cause,
	}
}

// NewTinybirdError creates a new error specific to the Tinybird API
func NewTinybirdError(message string, code string, cause error) error {
	return &ServiceError{
		Service:   "tinybird",
		Message:   message,
		Code:      code,
		Retryable: code == "timeout" || code == "unavailable",
		Cause:     cause,
	}
}

// NewAgentError creates a new error specific to the agent collaborator
func NewAgentError(message string, code string, cause error) error {
	return &ServiceError{
		Service:   "agent",
		Message:   message,
		Code:      code,
		Retryable: false,
		Cause:     cause,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is is a convenience function that wraps errors.Is
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience function that wraps errors.As
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// UserMessage converts an upstream failure into the message shown in the
// Slack thread. Classification is by error text because upstream failures
// arrive flattened through several layers (agent, MCP transport, Tinybird).
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, ErrNoChannelConfig) {
		return "❌ No configuration found for this channel. Please use `/birdwatcher-config` to set up the agent first."
	}

	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "504") || strings.Contains(text, "gateway timeout"):
		return "❌ *Gateway Timeout*: the request to Tinybird timed out. The query is likely taking too long to execute; try a simpler question."
	case strings.Contains(text, "502") || strings.Contains(text, "503") ||
		strings.Contains(text, "bad gateway") || strings.Contains(text, "service unavailable"):
		return "❌ *Service Unavailable*: Tinybird is currently experiencing issues. Please try again in a few minutes."
	case strings.Contains(text, "401") || strings.Contains(text, "403") ||
		strings.Contains(text, "unauthorized") || strings.Contains(text, "forbidden"):
		return "❌ *Authentication Error*: your Tinybird token appears to be invalid or expired. Please reconfigure using `/birdwatcher-config`."
	case strings.Contains(text, "timeout") || strings.Contains(text, "deadline exceeded"):
		return "❌ *Request Timeout*: the request took too long to complete. Please try a simpler question or try again later."
	default:
		return fmt.Sprintf("Sorry, I encountered an error processing your request: %v", err)
	}
}
