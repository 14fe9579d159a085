package logging

import (
	"net/http"
	"strconv"
)

// ErrorKind is the short outcome label shared by request logs on both the
// client and the mock backend. Statuses the session pipeline reacts to get
// their own label; the rest collapse into classes.
func ErrorKind(status int, hasErr bool) string {
	switch {
	case status == 0 && hasErr:
		return "network_error"
	case status == 0:
		return "ok"
	case status < 400:
		if hasErr {
			return "error"
		}
		return "ok"
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusConflict,
		http.StatusUnprocessableEntity, http.StatusTooManyRequests:
		return "http_" + strconv.Itoa(status)
	}
	if status >= 500 {
		return "http_5xx"
	}
	return "http_4xx"
}
