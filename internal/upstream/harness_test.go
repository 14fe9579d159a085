package upstream

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"taskboard-go/internal/config"
	"taskboard-go/internal/credential"
	"taskboard-go/internal/events"
	"taskboard-go/internal/loading"
	"taskboard-go/internal/mockapi"
	"taskboard-go/internal/session"
	"taskboard-go/internal/storage"
)

const (
	testEmail    = "ada@example.com"
	testPassword = "correct horse"
)

type harness struct {
	mock    *mockapi.Server
	srv     *httptest.Server
	cfg     *config.Config
	hub     *events.Hub
	session *session.Broadcaster
	store   *credential.Store
	backend storage.Backend
	client  *Client
}

func newHarness(t *testing.T, mockOpts mockapi.Options, mutate func(*config.Config)) *harness {
	t.Helper()
	mockOpts.Quiet = true
	mock := mockapi.New(mockOpts)
	_, err := mock.AddUser(testEmail, "Ada", testPassword, "admin")
	require.NoError(t, err)
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)

	cfg := config.Defaults()
	cfg.Server.BaseURL = srv.URL
	cfg.Auth.RefreshAheadSeconds = 0
	cfg.Retry.IntervalMs = 0
	cfg.Transport.RequestTimeoutSec = 5
	if mutate != nil {
		mutate(cfg)
	}

	h := &harness{mock: mock, srv: srv, cfg: cfg, hub: events.NewHub(), backend: storage.NewMemoryBackend()}
	h.session = session.NewBroadcaster(h.hub)
	h.store = credential.NewStore(h.backend, h.session)
	h.client = New(Options{Config: cfg, Store: h.store, Loading: loading.NewAggregator(), Publisher: h.hub})
	return h
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	_, err := h.client.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
}

func (h *harness) waitRefreshing(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.client.Coordinator().State() == credential.Refreshing
	}, 2*time.Second, time.Millisecond)
}
