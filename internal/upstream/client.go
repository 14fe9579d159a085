package upstream

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"taskboard-go/internal/config"
	"taskboard-go/internal/constants"
	"taskboard-go/internal/credential"
	apperrors "taskboard-go/internal/errors"
	"taskboard-go/internal/events"
	"taskboard-go/internal/loading"
	"taskboard-go/internal/logging"
	"taskboard-go/internal/monitoring"
	"taskboard-go/internal/monitoring/tracing"
)

// maxResponseBody caps how much of a response is buffered.
const maxResponseBody = 8 << 20

// Options wires a Client. Store and Config are required.
type Options struct {
	Config     *config.Config
	Store      *credential.Store
	Loading    *loading.Aggregator
	Publisher  events.Publisher
	HTTPClient *http.Client
}

// settings is the hot-reloadable part of the configuration.
type settings struct {
	baseURL        string
	userAgent      string
	endpoints      Endpoints
	retry          RetryPolicy
	requestTimeout time.Duration
	refreshAhead   time.Duration
	maxReplays     int
}

// Client is the single entry point for outbound calls: every request goes
// through Send, which augments it, classifies failures, hands expired
// credentials to the coordinator and applies the retry policy.
type Client struct {
	http    *http.Client
	store   *credential.Store
	coord   *credential.Coordinator
	loading *loading.Aggregator

	mu      sync.RWMutex
	cfg     settings
	limiter *rate.Limiter
}

// New builds a client and its refresh coordinator.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = newHTTPClient(opts.Config)
	}
	agg := opts.Loading
	if agg == nil {
		agg = loading.NewAggregator()
	}
	c := &Client{http: hc, store: opts.Store, loading: agg}
	c.coord = credential.NewCoordinator(opts.Store, &httpRefresher{client: c}, opts.Publisher)
	c.ApplyConfig(opts.Config)
	return c
}

func newHTTPClient(cfg *config.Config) *http.Client {
	dial := constants.DefaultDialTimeout
	tlsTO := constants.DefaultTLSHandshakeTimeout
	hdrTO := constants.DefaultResponseHeaderTimeout
	if cfg != nil {
		if v := cfg.Transport.DialTimeoutSec; v > 0 {
			dial = time.Duration(v) * time.Second
		}
		if v := cfg.Transport.TLSHandshakeTimeoutSec; v > 0 {
			tlsTO = time.Duration(v) * time.Second
		}
		if v := cfg.Transport.ResponseHeaderTimeoutSec; v > 0 {
			hdrTO = time.Duration(v) * time.Second
		}
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dial,
			KeepAlive: constants.DefaultKeepAlive,
		}).DialContext,
		TLSHandshakeTimeout:   tlsTO,
		ResponseHeaderTimeout: hdrTO,
		ExpectContinueTimeout: constants.DefaultExpectContinueTimeout,
		MaxIdleConns:          constants.BaseMaxIdleConns,
		MaxIdleConnsPerHost:   constants.BaseMaxIdleConnsPerHost,
		IdleConnTimeout:       constants.BaseIdleConnTimeout,
	}
	// per-attempt timeouts come from the request context
	return &http.Client{Transport: tr, Timeout: 0}
}

// ApplyConfig swaps the reloadable settings; requests already in flight
// keep the settings they started with.
func (c *Client) ApplyConfig(cfg *config.Config) {
	if cfg == nil {
		cfg = config.Defaults()
	}
	s := settings{
		baseURL:        cfg.Server.BaseURL,
		userAgent:      cfg.Server.UserAgent,
		endpoints:      NewEndpoints(cfg.Auth),
		retry:          NewRetryPolicy(cfg.Retry),
		requestTimeout: cfg.RequestTimeout(),
		refreshAhead:   cfg.RefreshAhead(),
		maxReplays:     cfg.Auth.MaxReplays,
	}
	if s.requestTimeout <= 0 {
		s.requestTimeout = constants.DefaultRequestTimeout
	}
	if s.maxReplays <= 0 {
		s.maxReplays = constants.DefaultMaxAuthReplays
	}
	var limiter *rate.Limiter
	if cfg.RateLimit.RPS > 0 {
		burst := cfg.RateLimit.Burst
		if burst <= 0 {
			burst = cfg.RateLimit.RPS
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), burst)
	}

	c.mu.Lock()
	c.cfg = s
	c.limiter = limiter
	c.mu.Unlock()
	c.coord.SetTimeout(cfg.RefreshTimeout())
}

// Coordinator exposes the refresh coordinator (logout aborts through it).
func (c *Client) Coordinator() *credential.Coordinator { return c.coord }

// Store returns the credential store the client reads from.
func (c *Client) Store() *credential.Store { return c.store }

// Loading returns the in-flight aggregator fed by Send.
func (c *Client) Loading() *loading.Aggregator { return c.loading }

func (c *Client) snapshot() (settings, *rate.Limiter) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg, c.limiter
}

// Send performs req through the full pipeline and returns the successful
// response or a classified *errors.APIError.
//
// credential_expired never reaches the caller while refreshing can help:
// the request waits for the episode and is replayed with the new
// credential, at most maxReplays times. Idempotent requests are retried
// on server and network errors. The in-flight counter for req.Category is
// released on every exit path, including ctx cancellation.
func (c *Client) Send(ctx context.Context, req *Request) (*Response, error) {
	release := c.loading.Start(req.Category)
	defer release()

	s, limiter := c.snapshot()
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "upstream", "Send")
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.path", req.Path),
		attribute.String("request.category", req.Category),
	)

	resp, err := c.send(ctx, req.prepared(), s, limiter)

	outcome := "ok"
	if err != nil {
		outcome = string(apperrors.CategoryOf(err))
	}
	if resp != nil {
		span.SetAttributes(attribute.Int("request.attempts", resp.Attempts), attribute.Int("request.replays", resp.Replays))
	}
	tracing.Finish(span, err)
	monitoring.RecordRequest(req.Category, outcome, time.Since(start))
	return resp, err
}

func (c *Client) send(ctx context.Context, req *Request, s settings, limiter *rate.Limiter) (*Response, error) {
	attempts, replays, retries := 0, 0, 0
	for {
		cred := c.store.Get()
		if s.endpoints.HandlesExpiry(req.Path) && c.shouldRefreshAhead(cred, s) {
			fresh, err := c.coord.Await(ctx, cred.AccessToken)
			if err != nil {
				return nil, err
			}
			cred = fresh
		}

		attempts++
		resp, apiErr := c.attempt(ctx, req, cred, s, limiter)
		if apiErr == nil {
			resp.Attempts, resp.Replays, resp.RequestID = attempts, replays, req.id
			return resp, nil
		}

		entry := log.WithFields(log.Fields{
			"request_id": req.id,
			"path":       req.Path,
			"category":   req.Category,
			"status":     apiErr.HTTPStatus,
			"error_kind": logging.ErrorKind(apiErr.HTTPStatus, true),
			"attempt":    attempts,
		})

		if apiErr.Category == apperrors.CategoryCredentialExpired && s.endpoints.HandlesExpiry(req.Path) {
			if replays >= s.maxReplays {
				entry.Warn("credential rejected after refresh; giving up")
				return nil, apiErr
			}
			stale := ""
			if cred != nil {
				stale = cred.AccessToken
			}
			if _, err := c.coord.Await(ctx, stale); err != nil {
				return nil, err
			}
			replays++
			monitoring.ReplaysTotal.Inc()
			entry.Debug("replaying with refreshed credential")
			continue
		}

		if ctx.Err() == nil && s.retry.ShouldRetry(req, s.endpoints, apiErr, retries) {
			delay := s.retry.Delay(retries)
			retries++
			monitoring.RetryAttempts.WithLabelValues(string(apiErr.Category)).Inc()
			entry.WithField("delay_ms", delay.Milliseconds()).Debug("retrying request")
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, apperrors.MapNetworkError(err)
			}
			continue
		}

		if !req.Silent {
			entry.WithField("error_category", apiErr.Category).Info("request failed")
		}
		return nil, apiErr
	}
}

func (c *Client) shouldRefreshAhead(cred *credential.Credential, s settings) bool {
	if s.refreshAhead <= 0 || !cred.HasRefreshToken() {
		return false
	}
	return cred.ExpiringWithin(cred.RefreshWindow(s.refreshAhead), time.Now())
}

// attempt performs one network exchange with its own timeout.
func (c *Client) attempt(ctx context.Context, req *Request, cred *credential.Credential, s settings, limiter *rate.Limiter) (*Response, *apperrors.APIError) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, apperrors.MapNetworkError(err)
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	httpReq, err := Augment(attemptCtx, s.baseURL, req, cred, s.endpoints, s.userAgent)
	if err != nil {
		return nil, apperrors.New(0, apperrors.CategoryUnknown, "invalid_request", err.Error()).WithCause(err)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			// the caller went away; report that rather than the transport error
			return nil, apperrors.MapNetworkError(ctx.Err())
		}
		return nil, apperrors.MapNetworkError(err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, apperrors.MapNetworkError(err)
	}

	logging.WithRequest(httpReq, log.Fields{"status": httpResp.StatusCode, "category": req.Category}).Debug("upstream response")

	if apiErr := Classify(s.endpoints, req.Path, httpResp.StatusCode, body); apiErr != nil {
		return nil, apiErr
	}
	return &Response{Status: httpResp.StatusCode, Header: httpResp.Header.Clone(), Body: body}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
