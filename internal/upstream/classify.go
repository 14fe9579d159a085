package upstream

import (
	apperrors "taskboard-go/internal/errors"
)

// Classify maps a response to an error category; 2xx and 3xx yield nil.
// Bootstrap and logout endpoints never yield credential_expired, which is
// what keeps a 401 from /auth/refresh out of the coordinator.
func Classify(eps Endpoints, path string, status int, body []byte) *apperrors.APIError {
	if status >= 200 && status < 400 {
		return nil
	}
	switch eps.Classify(path) {
	case Bootstrap:
		return apperrors.MapBootstrapError(status, body, normalizePath(path) == normalizePath(eps.Refresh))
	case Logout:
		return apperrors.MapBootstrapError(status, body, true)
	case Public:
		// nothing to refresh for anonymous endpoints
		return apperrors.MapBootstrapError(status, body, false)
	}
	return apperrors.MapHTTPError(status, body)
}
