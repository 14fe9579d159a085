package poller

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard-go/internal/config"
	"taskboard-go/internal/constants"
	"taskboard-go/internal/credential"
	"taskboard-go/internal/events"
	"taskboard-go/internal/loading"
	"taskboard-go/internal/mockapi"
	"taskboard-go/internal/session"
	"taskboard-go/internal/storage"
	"taskboard-go/internal/upstream"
)

type fixture struct {
	mock    *mockapi.Server
	cfg     *config.Config
	session *session.Broadcaster
	client  *upstream.Client
	poller  *Poller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mock := mockapi.New(mockapi.Options{Quiet: true})
	_, err := mock.AddUser("grace@example.com", "Grace", "hopper", "member")
	require.NoError(t, err)
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)

	cfg := config.Defaults()
	cfg.Server.BaseURL = srv.URL
	cfg.Polling.IntervalSec = 60

	hub := events.NewHub()
	sess := session.NewBroadcaster(hub)
	store := credential.NewStore(storage.NewMemoryBackend(), sess)
	client := upstream.New(upstream.Options{Config: cfg, Store: store, Loading: loading.NewAggregator(), Publisher: hub})
	return &fixture{mock: mock, cfg: cfg, session: sess, client: client, poller: New(client, sess, cfg)}
}

func (f *fixture) run(t *testing.T) (stop func() error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.poller.Run(ctx) }()
	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("poller did not stop")
			return nil
		}
	}
}

func (f *fixture) polls() int {
	return len(f.mock.Requests(constants.DefaultUnreadCountPath))
}

func TestPollerPausedUntilSignedIn(t *testing.T) {
	f := newFixture(t)
	f.mock.SetUnread(4)
	stop := f.run(t)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, f.polls())
	assert.Equal(t, 0, f.poller.Unread().Get())

	_, err := f.client.Login(context.Background(), "grace@example.com", "hopper")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return f.poller.Unread().Get() == 4 }, 2*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, stop(), context.Canceled)
}

func TestPollerPicksUpConfigAndSignOut(t *testing.T) {
	f := newFixture(t)
	_, err := f.client.Login(context.Background(), "grace@example.com", "hopper")
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []int
	defer f.poller.Unread().Subscribe(func(n int) {
		mu.Lock()
		seen = append(seen, n)
		mu.Unlock()
	})()

	f.mock.SetUnread(2)
	stop := f.run(t)
	defer stop()
	require.Eventually(t, func() bool { return f.poller.Unread().Get() == 2 }, 2*time.Second, 5*time.Millisecond)

	f.mock.SetUnread(7)
	next := f.cfg.Clone()
	next.Polling.IntervalSec = 5
	f.poller.ApplyConfig(next)
	require.Eventually(t, func() bool { return f.poller.Unread().Get() == 7 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 5*time.Second, f.poller.Interval())

	require.NoError(t, f.client.Logout(context.Background()))
	require.Eventually(t, func() bool { return f.poller.Unread().Get() == 0 }, 2*time.Second, 5*time.Millisecond)

	polls := f.polls()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, polls, f.polls(), "no polling while signed out")
	mu.Lock()
	assert.Equal(t, []int{0, 2, 7, 0}, seen)
	mu.Unlock()
}

func TestPollerIgnoresCredentialRotation(t *testing.T) {
	f := newFixture(t)
	_, err := f.client.Login(context.Background(), "grace@example.com", "hopper")
	require.NoError(t, err)
	f.mock.SetUnread(3)

	stop := f.run(t)
	defer stop()
	require.Eventually(t, func() bool { return f.poller.Unread().Get() == 3 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, 1, f.polls())

	// a refresh stores a new credential without changing who is signed in
	f.mock.ExpireAccessTokens()
	_, err = f.client.Send(context.Background(), upstream.Get("/tasks", "tasks"))
	require.NoError(t, err)
	require.Equal(t, 1, f.mock.RefreshCalls())
	_, err = f.client.WhoAmI(context.Background())
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, f.polls(), "still waiting for the next interval")
	assert.True(t, f.session.IsAuthenticated())
}

func TestPollIsSilentAndNotRetried(t *testing.T) {
	f := newFixture(t)
	_, err := f.client.Login(context.Background(), "grace@example.com", "hopper")
	require.NoError(t, err)

	f.mock.FailNext(constants.DefaultUnreadCountPath, 503, 1)
	_, err = f.poller.Poll(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, f.polls())

	f.mock.SetUnread(1)
	n, err := f.poller.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDisabledPollerStaysIdle(t *testing.T) {
	f := newFixture(t)
	f.cfg.Polling.Enabled = false
	f.poller.ApplyConfig(f.cfg)
	_, err := f.client.Login(context.Background(), "grace@example.com", "hopper")
	require.NoError(t, err)

	stop := f.run(t)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, f.polls())
	assert.ErrorIs(t, stop(), context.Canceled)
}
