package upstream

import (
	"context"
	"net/http"
	"time"

	"github.com/tidwall/sjson"

	"taskboard-go/internal/credential"
)

// httpRefresher calls POST {refresh_path} {"refresh_token": ...}. It goes
// through a single attempt: no coordinator, no retries. Any failure,
// including a 401 or a timeout, is a refresh failure.
type httpRefresher struct {
	client *Client
}

func (r *httpRefresher) Refresh(ctx context.Context, refreshToken string) (*credential.Credential, error) {
	s, limiter := r.client.snapshot()
	body, err := sjson.SetBytes([]byte(`{}`), "refresh_token", refreshToken)
	if err != nil {
		return nil, err
	}
	req := NewRequest(http.MethodPost, s.endpoints.Refresh, "auth", body).prepared()

	release := r.client.loading.Start(req.Category)
	defer release()

	resp, apiErr := r.client.attempt(ctx, req, nil, s, limiter)
	if apiErr != nil {
		return nil, apiErr
	}
	return parseCredential(resp.Body, time.Now())
}
