package logging

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// WithRequest builds a log entry enriched with common outbound request fields.
// Fields:
// - request_id: X-Request-ID assigned once per logical request
// - method, path
// Any extras passed in will be merged (extras take precedence on key conflicts).
func WithRequest(r *http.Request, extras log.Fields) *log.Entry {
	if r == nil {
		return log.WithFields(extras)
	}
	fields := log.Fields{
		"request_id": r.Header.Get("X-Request-ID"),
		"method":     r.Method,
	}
	if r.URL != nil {
		fields["path"] = r.URL.Path
	}
	for k, v := range extras {
		fields[k] = v
	}
	return log.WithFields(fields)
}

// Redact renders a short, non-reversible prefix of a secret for logs.
func Redact(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "…" + secret[len(secret)-2:]
}

// DurationMS converts a duration to integer milliseconds for logging.
func DurationMS(d time.Duration) int64 { return d.Milliseconds() }
