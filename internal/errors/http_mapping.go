package errors

import (
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"taskboard-go/internal/constants"
)

// MapHTTPError maps a failed response status and body to a categorized error.
// A 401 always maps to credential_expired here; callers that target
// authentication-bootstrap endpoints must use MapBootstrapError instead.
func MapHTTPError(statusCode int, body []byte) *APIError {
	msg := extractMessage(body)

	switch statusCode {
	case http.StatusUnauthorized:
		return New(statusCode, CategoryCredentialExpired, "credential_expired", firstNonEmpty(msg, "Access credential expired"))
	case http.StatusForbidden:
		return New(statusCode, CategoryForbidden, "permission_denied", firstNonEmpty(msg, "Permission denied"))
	case http.StatusNotFound:
		return New(statusCode, CategoryNotFound, "not_found", firstNonEmpty(msg, "Resource not found"))
	case http.StatusConflict:
		return New(statusCode, CategoryConflict, "conflict", firstNonEmpty(msg, "Conflict"))
	case http.StatusUnprocessableEntity:
		e := New(statusCode, CategoryValidationFailed, "validation_failed", firstNonEmpty(msg, "Validation failed"))
		e.FieldErrors = extractFieldErrors(body)
		return e
	case http.StatusTooManyRequests:
		e := New(statusCode, CategoryRateLimited, "rate_limit_exceeded", firstNonEmpty(msg, "Rate limit exceeded"))
		if ra := gjson.GetBytes(body, "retry_after"); ra.Exists() {
			e.Details = map[string]interface{}{"retry_after": ra.Int()}
		}
		return e
	case http.StatusInternalServerError:
		return New(statusCode, CategoryServerError, "server_error", firstNonEmpty(msg, "Internal server error"))
	case http.StatusBadGateway:
		return New(statusCode, CategoryServerError, "bad_gateway", firstNonEmpty(msg, "Bad gateway"))
	case http.StatusServiceUnavailable:
		return New(statusCode, CategoryServerError, "service_unavailable", firstNonEmpty(msg, "Service temporarily unavailable"))
	case http.StatusGatewayTimeout:
		return New(statusCode, CategoryServerError, "gateway_timeout", firstNonEmpty(msg, "Gateway timeout"))
	case 0:
		return New(0, CategoryNetworkError, "network_error", firstNonEmpty(msg, "Network error"))
	default:
		return New(statusCode, CategoryUnknown, "unknown_error", firstNonEmpty(msg, fmt.Sprintf("HTTP %d error", statusCode)))
	}
}

// MapBootstrapError maps a failure from login/register/refresh/logout. These
// endpoints never produce credential_expired: a 401 from login or register is
// a rejected password, a 401 from refresh ends the session.
func MapBootstrapError(statusCode int, body []byte, refresh bool) *APIError {
	if statusCode != http.StatusUnauthorized {
		return MapHTTPError(statusCode, body)
	}
	msg := extractMessage(body)
	if refresh {
		return New(statusCode, CategorySessionExpired, "refresh_rejected", firstNonEmpty(msg, "Session expired"))
	}
	return New(statusCode, CategoryInvalidCredentials, "invalid_credentials", firstNonEmpty(msg, "Invalid email or password"))
}

func extractMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "message", "error", "detail"} {
			if r := gjson.GetBytes(body, path); r.Type == gjson.String && r.String() != "" {
				return truncate(r.String())
			}
		}
		return ""
	}
	return truncate(string(body))
}

func extractFieldErrors(body []byte) []FieldError {
	if !gjson.ValidBytes(body) {
		return nil
	}
	var out []FieldError
	collect := func(r gjson.Result) {
		switch {
		case r.IsArray():
			r.ForEach(func(_, item gjson.Result) bool {
				out = append(out, FieldError{Field: item.Get("field").String(), Message: item.Get("message").String()})
				return true
			})
		case r.IsObject():
			r.ForEach(func(key, value gjson.Result) bool {
				msg := value.String()
				if value.IsArray() {
					msg = value.Get("0").String()
				}
				out = append(out, FieldError{Field: key.String(), Message: msg})
				return true
			})
		}
	}
	for _, path := range []string{"errors", "error.fields", "fields"} {
		if r := gjson.GetBytes(body, path); r.Exists() {
			collect(r)
			break
		}
	}
	return out
}

func truncate(msg string) string {
	if len(msg) > constants.MaxErrorMessageLength {
		return msg[:constants.MaxErrorMessageLength] + "..."
	}
	return msg
}

func firstNonEmpty(strs ...string) string {
	for _, s := range strs {
		if s != "" {
			return s
		}
	}
	return ""
}
