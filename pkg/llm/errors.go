package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrorType classifies what went wrong with a generation call.
type ErrorType string

const (
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeModel      ErrorType = "model"
	ErrorTypeEndpoint   ErrorType = "endpoint"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeOverloaded ErrorType = "overloaded"
	ErrorTypeRequest    ErrorType = "request"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// Error represents a structured generation-backend error with classification.
type Error struct {
	Type       ErrorType // Classification of the error
	Message    string    // Human-readable message
	Retryable  bool      // Whether the operation can be retried
	Cause      error     // Underlying error
	StatusCode int       // HTTP status code if applicable
	Model      string    // Model name if known
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	parts = append(parts, string(e.Type))

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}

	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable implements the retry.RetryableError interface.
// This allows the retry package to check retryability without importing llm.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewError creates a new structured generation error.
func NewError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{
		Type:      errType,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

// ClassifyError categorizes an error from either provider SDK and returns
// a structured Error. Status codes are read from typed SDK errors when
// available; string matching is the fallback for transport-level failures.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	// Already classified
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	statusCode := 0
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		statusCode = apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if statusCode == 0 && errors.As(err, &reqErr) {
		statusCode = reqErr.HTTPStatusCode
	}

	lower := strings.ToLower(err.Error())
	if statusCode == 0 {
		for _, code := range []int{400, 401, 403, 404, 429, 500, 502, 503, 504, 529} {
			if strings.Contains(lower, fmt.Sprintf("%d", code)) {
				statusCode = code
				break
			}
		}
	}

	classified := func(t ErrorType, msg string, retryable bool) *Error {
		e := NewError(t, msg, retryable, err)
		e.StatusCode = statusCode
		return e
	}

	switch {
	// Authentication (not retryable)
	case statusCode == 401 || statusCode == 403 ||
		strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid api key") ||
		strings.Contains(lower, "incorrect api key"):
		return classified(ErrorTypeAuth, "authentication failed", false)

	// Model not found (not retryable without config change)
	case strings.Contains(lower, "model") &&
		(strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist")):
		return classified(ErrorTypeModel, "model not found", false)

	// Endpoint not found (not retryable without config change)
	case statusCode == 404:
		return classified(ErrorTypeEndpoint, "endpoint not found", false)

	// Malformed request rejected by the provider (not retryable)
	case statusCode == 400 || strings.Contains(lower, "invalid_request_error"):
		return classified(ErrorTypeRequest, "request rejected", false)

	// Rate limiting (retryable after backoff)
	case statusCode == 429 || strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "too many requests"):
		return classified(ErrorTypeRateLimit, "rate limited", true)

	// Provider overload, including Anthropic's 529 (retryable)
	case statusCode == 529 || strings.Contains(lower, "overloaded"):
		return classified(ErrorTypeOverloaded, "provider overloaded", true)

	// Connection failures (retryable)
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "connection reset") || strings.Contains(lower, "broken pipe"):
		return classified(ErrorTypeEndpoint, "connection failed", true)

	// Timeouts (retryable)
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return classified(ErrorTypeEndpoint, "request timeout", true)

	// 5xx server errors (retryable)
	case statusCode >= 500:
		return classified(ErrorTypeEndpoint, "server error", true)
	}

	// Unknown: assume transient, a confused backend deserves another try.
	return classified(ErrorTypeUnknown, "generation error", true)
}

// GetErrorType extracts the ErrorType from an error.
func GetErrorType(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}
