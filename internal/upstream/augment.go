package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/propagation"

	"taskboard-go/internal/constants"
	"taskboard-go/internal/credential"
	"taskboard-go/internal/monitoring/tracing"
)

// defaultUserAgent identifies the client to the backend.
func defaultUserAgent() string {
	return fmt.Sprintf("%s/%s (%s; %s) %s", constants.ServiceName, constants.Version, runtime.GOOS, runtime.GOARCH, runtime.Version())
}

// Augment turns req into an *http.Request for one attempt. The bearer token
// is attached only for endpoints that take one and only when cred is
// present; an absent credential is an anonymous request, not an error.
// Nothing else about the request depends on the credential, so a replay
// differs from the original only in Authorization. req is only read; a
// request without an id gets a fresh one per call.
func Augment(ctx context.Context, baseURL string, req *Request, cred *credential.Credential, eps Endpoints, userAgent string) (*http.Request, error) {
	id := req.id
	if id == "" {
		id = uuid.NewString()
	}
	url := strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(req.Path, "/")

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	// callers never decide the credential
	httpReq.Header.Del(constants.HeaderAuthorization)
	if cred != nil && cred.AccessToken != "" && eps.AttachesCredential(req.Path) {
		httpReq.Header.Set(constants.HeaderAuthorization, "Bearer "+cred.AccessToken)
	}

	switch {
	case req.Binary:
		if req.ContentType != "" {
			httpReq.Header.Set(constants.HeaderContentType, req.ContentType)
		}
	case req.ContentType != "":
		httpReq.Header.Set(constants.HeaderContentType, req.ContentType)
	default:
		httpReq.Header.Set(constants.HeaderContentType, constants.MIMEJSON)
	}
	if httpReq.Header.Get(constants.HeaderAccept) == "" {
		httpReq.Header.Set(constants.HeaderAccept, constants.MIMEJSON)
	}
	httpReq.Header.Set(constants.HeaderRequestID, id)
	if userAgent == "" {
		userAgent = defaultUserAgent()
	}
	httpReq.Header.Set("User-Agent", userAgent)

	tracing.Inject(ctx, propagation.HeaderCarrier(httpReq.Header))
	return httpReq, nil
}
