package errors

import stderrors "errors"

// New builds an APIError.
func New(httpStatus int, category Category, code, message string) *APIError {
	return &APIError{HTTPStatus: httpStatus, Category: category, Code: code, Message: message}
}

// SessionExpired builds the terminal error of a failed refresh episode.
func SessionExpired(episode uint64, message string, cause error) *APIError {
	return &APIError{
		HTTPStatus: 401,
		Category:   CategorySessionExpired,
		Code:       "session_expired",
		Message:    firstNonEmpty(message, "Session expired, please sign in again"),
		Episode:    episode,
		Err:        cause,
	}
}

// WithDetails attaches structured details.
func (e *APIError) WithDetails(details map[string]interface{}) *APIError {
	e.Details = details
	return e
}

// WithCause records the underlying error.
func (e *APIError) WithCause(err error) *APIError {
	e.Err = err
	return e
}

// AsSubsumed returns a copy flagged as delivered to a queued waiter.
func (e *APIError) AsSubsumed() *APIError {
	cp := *e
	cp.Subsumed = true
	return &cp
}

// IsRetryable reports whether the category is eligible for the retry policy.
// Eligibility of the request itself (idempotent, not silent) is decided by
// the policy.
func (e *APIError) IsRetryable() bool {
	if e == nil {
		return false
	}
	switch e.Category {
	case CategoryServerError:
		return true
	case CategoryNetworkError:
		return e.Code != "request_canceled"
	}
	return false
}

// CategoryOf extracts the category of err, or "" when err is not an APIError.
func CategoryOf(err error) Category {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) && apiErr != nil {
		return apiErr.Category
	}
	return ""
}

// Is reports whether err is an APIError of the given category.
func Is(err error, category Category) bool {
	return CategoryOf(err) == category
}

// As is a typed shortcut around errors.As.
func As(err error) (*APIError, bool) {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) && apiErr != nil {
		return apiErr, true
	}
	return nil, false
}
