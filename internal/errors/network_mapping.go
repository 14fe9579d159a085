package errors

import (
	"context"
	stderrors "errors"
	"net"
	"net/url"
	"strings"
)

// MapNetworkError maps a transport failure (no response) to a network_error.
// Code carries the sub-kind: timeout, request_canceled, connection_error,
// dns_error, tls_error or network_error.
func MapNetworkError(err error) *APIError {
	if err == nil {
		return nil
	}
	errMsg := err.Error()
	e := &APIError{Category: CategoryNetworkError, Err: err}

	var netErr net.Error
	switch {
	case stderrors.Is(err, context.Canceled):
		e.Code, e.Message = "request_canceled", "Request was canceled: "+errMsg
	case stderrors.Is(err, context.DeadlineExceeded),
		stderrors.As(err, &netErr) && netErr.Timeout(),
		strings.Contains(errMsg, "timeout"):
		e.Code, e.Message = "timeout", "Request timeout: "+errMsg
	case strings.Contains(errMsg, "connection refused"):
		e.Code, e.Message = "connection_error", "Connection refused: "+errMsg
	case strings.Contains(errMsg, "EOF") || strings.Contains(errMsg, "connection reset"):
		e.Code, e.Message = "connection_error", "Connection error: "+errMsg
	case strings.Contains(errMsg, "no such host") || strings.Contains(errMsg, "name resolution"):
		e.Code, e.Message = "dns_error", "DNS resolution error: "+errMsg
	case strings.Contains(errMsg, "certificate") || strings.Contains(errMsg, "tls"):
		e.Code, e.Message = "tls_error", "TLS/Certificate error: "+errMsg
	default:
		e.Code, e.Message = "network_error", "Network error: "+errMsg
	}
	var ue *url.Error
	if stderrors.As(err, &ue) && e.Details == nil {
		e.Details = map[string]interface{}{"url": ue.URL, "op": ue.Op}
	}
	return e
}
