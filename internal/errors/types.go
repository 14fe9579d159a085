package errors

import (
	"fmt"
	"strings"
)

// Category classifies a failed request. Callers branch on Category, never on
// raw status codes.
type Category string

const (
	CategoryCredentialExpired  Category = "credential_expired"
	CategoryForbidden          Category = "forbidden"
	CategoryNotFound           Category = "not_found"
	CategoryConflict           Category = "conflict"
	CategoryValidationFailed   Category = "validation_failed"
	CategoryRateLimited        Category = "rate_limited"
	CategoryServerError        Category = "server_error"
	CategoryNetworkError       Category = "network_error"
	CategorySessionExpired     Category = "session_expired"
	CategoryInvalidCredentials Category = "invalid_credentials"
	CategoryUnknown            Category = "unknown_error"
)

// FieldError is one entry of a 422 validation payload.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is the error surfaced by the request pipeline.
type APIError struct {
	HTTPStatus  int
	Category    Category
	Code        string
	Message     string
	FieldErrors []FieldError
	Details     map[string]interface{}

	// Episode is the refresh episode that produced a session_expired error.
	Episode uint64
	// Subsumed marks a session_expired error delivered to a queued waiter.
	// Only the episode's terminal failure is reported to the user; subsumed
	// errors must not raise their own notification.
	Subsumed bool

	Err error
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(string(e.Category))
	if e.HTTPStatus > 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.HTTPStatus)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
