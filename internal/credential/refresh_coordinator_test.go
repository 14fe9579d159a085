package credential

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "taskboard-go/internal/errors"
	"taskboard-go/internal/events"
)

// fakeRefresher blocks every call until release is closed.
type fakeRefresher struct {
	calls   atomic.Int32
	release chan struct{}
	fail    error
	next    func(n int32) *Credential
}

func newFakeRefresher() *fakeRefresher {
	return &fakeRefresher{release: make(chan struct{})}
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (*Credential, error) {
	n := f.calls.Add(1)
	select {
	case <-f.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if f.fail != nil {
		return nil, f.fail
	}
	if f.next != nil {
		return f.next(n), nil
	}
	return &Credential{AccessToken: fmt.Sprintf("access-%d", n), RefreshToken: fmt.Sprintf("refresh-%d", n)}, nil
}

func newTestCoordinator(t *testing.T, r Refresher) (*Coordinator, *Store, *events.Hub) {
	t.Helper()
	store := NewStore(nil, nil)
	require.NoError(t, store.SetSession(context.Background(), &Credential{AccessToken: "stale", RefreshToken: "r0"}, &Identity{ID: "u1"}))
	hub := events.NewHub()
	return NewCoordinator(store, r, hub), store, hub
}

func waitForState(t *testing.T, c *Coordinator, want RefreshState) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == want }, time.Second, time.Millisecond)
}

func TestCoordinatorSingleFlight(t *testing.T) {
	r := newFakeRefresher()
	c, store, hub := newTestCoordinator(t, r)

	var completed atomic.Int32
	hub.Subscribe(events.TopicRefreshCompleted, func(context.Context, events.Event) { completed.Add(1) })

	const n = 8
	results := make([]*Credential, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Await(context.Background(), "stale")
		}(i)
	}

	waitForState(t, c, Refreshing)
	time.Sleep(20 * time.Millisecond)
	close(r.release)
	wg.Wait()

	assert.Equal(t, int32(1), r.calls.Load(), "exactly one refresh call per episode")
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "access-1", results[i].AccessToken)
	}
	assert.Equal(t, "access-1", store.Get().AccessToken)
	assert.Equal(t, "u1", store.Identity().ID, "refresh keeps the identity")
	assert.Equal(t, Idle, c.State())
	assert.Equal(t, int32(1), completed.Load())
}

func TestCoordinatorSkipsRefreshWhenAlreadyRotated(t *testing.T) {
	r := newFakeRefresher()
	close(r.release)
	c, store, _ := newTestCoordinator(t, r)

	require.NoError(t, store.Set(context.Background(), &Credential{AccessToken: "fresh", RefreshToken: "r1"}))
	cred, err := c.Await(context.Background(), "stale")
	require.NoError(t, err)
	assert.Equal(t, "fresh", cred.AccessToken)
	assert.Zero(t, r.calls.Load())
}

func TestCoordinatorFailureEndsSession(t *testing.T) {
	r := newFakeRefresher()
	r.fail = apperrors.MapBootstrapError(401, []byte(`{"message":"refresh token revoked"}`), true)
	c, store, hub := newTestCoordinator(t, r)

	var expired atomic.Int32
	hub.Subscribe(events.TopicSessionExpired, func(context.Context, events.Event) { expired.Add(1) })

	const n = 5
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Await(context.Background(), "stale")
		}(i)
	}
	waitForState(t, c, Refreshing)
	time.Sleep(20 * time.Millisecond)
	close(r.release)
	wg.Wait()

	assert.Equal(t, int32(1), r.calls.Load())
	assert.Nil(t, store.Get())
	assert.Nil(t, store.Identity())
	assert.Equal(t, int32(1), expired.Load(), "one notification per failed episode")

	unsubsumed := 0
	var episode uint64
	for _, err := range errs {
		apiErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.CategorySessionExpired, apiErr.Category)
		if episode == 0 {
			episode = apiErr.Episode
		}
		assert.Equal(t, episode, apiErr.Episode)
		if !apiErr.Subsumed {
			unsubsumed++
		}
	}
	assert.Equal(t, 1, unsubsumed, "only the episode owner reports the failure")

	// a straggler 401 for the same token does not start another episode
	_, err := c.Await(context.Background(), "stale")
	apiErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.True(t, apiErr.Subsumed)
	assert.Equal(t, int32(1), r.calls.Load())
	assert.Equal(t, int32(1), expired.Load())
}

func TestCoordinatorWithoutRefreshToken(t *testing.T) {
	r := newFakeRefresher()
	store := NewStore(nil, nil)
	require.NoError(t, store.Set(context.Background(), &Credential{AccessToken: "stale"}))
	c := NewCoordinator(store, r, nil)

	_, err := c.Await(context.Background(), "stale")
	assert.True(t, apperrors.Is(err, apperrors.CategorySessionExpired))
	assert.Zero(t, r.calls.Load(), "nothing to refresh with")
	assert.Nil(t, store.Get())
}

func TestCoordinatorAbortDiscardsLateResult(t *testing.T) {
	r := newFakeRefresher()
	c, store, _ := newTestCoordinator(t, r)

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Await(context.Background(), "stale")
		errCh <- err
	}()
	waitForState(t, c, Refreshing)

	assert.True(t, c.Abort("logout"))
	require.NoError(t, store.Clear(context.Background()))

	select {
	case err := <-errCh:
		assert.True(t, apperrors.Is(err, apperrors.CategorySessionExpired))
	case <-time.After(time.Second):
		t.Fatal("waiter not released by abort")
	}

	close(r.release)
	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Nil(t, store.Get(), "late refresh result must not resurrect the session")
	assert.False(t, c.Abort("again"))
}

func TestCoordinatorRefreshTimeoutIsFailure(t *testing.T) {
	r := newFakeRefresher()
	c, store, _ := newTestCoordinator(t, r)
	c.SetTimeout(30 * time.Millisecond)

	_, err := c.Await(context.Background(), "stale")
	assert.True(t, apperrors.Is(err, apperrors.CategorySessionExpired))
	assert.Nil(t, store.Get())
}

func TestCoordinatorWaiterCancellation(t *testing.T) {
	r := newFakeRefresher()
	c, store, _ := newTestCoordinator(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for c.State() != Refreshing {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()
	_, err := c.Await(ctx, "stale")
	assert.True(t, apperrors.Is(err, apperrors.CategoryNetworkError))

	// the detached refresh still completes for everyone else
	close(r.release)
	require.Eventually(t, func() bool { return store.Get().AccessToken == "access-1" }, time.Second, time.Millisecond)
}

func TestCoordinatorKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	r := newFakeRefresher()
	r.next = func(int32) *Credential { return &Credential{AccessToken: "a2"} }
	close(r.release)
	c, store, _ := newTestCoordinator(t, r)

	cred, err := c.Await(context.Background(), "stale")
	require.NoError(t, err)
	assert.Equal(t, "r0", cred.RefreshToken)
	assert.Equal(t, "r0", store.Get().RefreshToken)
}

func TestCoordinatorAbortRetiresTokenBeforeClear(t *testing.T) {
	r := newFakeRefresher()
	close(r.release)
	c, store, _ := newTestCoordinator(t, r)

	assert.False(t, c.Abort("logout"))
	// the store is cleared later by the caller; until then the retired token
	// is still readable but must not be refreshed
	require.NotNil(t, store.Get())

	_, err := c.Await(context.Background(), "stale")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CategorySessionExpired))
	assert.Zero(t, r.calls.Load())
	assert.Equal(t, Idle, c.State())
	assert.Equal(t, "stale", store.Get().AccessToken)
}

type callbackNotifier struct {
	onChange func(authenticated bool)
}

func (n *callbackNotifier) Authenticated(*Identity) { n.onChange(true) }
func (n *callbackNotifier) Unauthenticated()        { n.onChange(false) }

func TestCoordinatorSessionCallbacksMayCallBack(t *testing.T) {
	r := newFakeRefresher()
	close(r.release)
	n := &callbackNotifier{onChange: func(bool) {}}
	store := NewStore(nil, n)
	c := NewCoordinator(store, r, nil)

	var mu sync.Mutex
	var tokens []string
	var afterFailure []error
	n.onChange = func(authenticated bool) {
		_ = c.State()
		cred, err := c.Await(context.Background(), "")
		mu.Lock()
		defer mu.Unlock()
		if authenticated && err == nil {
			tokens = append(tokens, cred.AccessToken)
		}
		if !authenticated {
			afterFailure = append(afterFailure, err)
		}
	}
	require.NoError(t, store.SetSession(context.Background(), &Credential{AccessToken: "stale", RefreshToken: "r0"}, &Identity{ID: "u1"}))

	awaitWithin := func(stale string) (*Credential, error) {
		type result struct {
			cred *Credential
			err  error
		}
		ch := make(chan result, 1)
		go func() {
			cred, err := c.Await(context.Background(), stale)
			ch <- result{cred, err}
		}()
		select {
		case res := <-ch:
			return res.cred, res.err
		case <-time.After(2 * time.Second):
			t.Fatal("refresh blocked on a session callback")
			return nil, nil
		}
	}

	cred, err := awaitWithin("stale")
	require.NoError(t, err)
	assert.Equal(t, "access-1", cred.AccessToken)
	mu.Lock()
	assert.Equal(t, []string{"stale", "access-1"}, tokens)
	mu.Unlock()

	r.fail = fmt.Errorf("refresh token revoked")
	_, err = awaitWithin("access-1")
	assert.True(t, apperrors.Is(err, apperrors.CategorySessionExpired))
	assert.Nil(t, store.Get())
	mu.Lock()
	require.Len(t, afterFailure, 1)
	assert.True(t, apperrors.Is(afterFailure[0], apperrors.CategorySessionExpired))
	mu.Unlock()
	assert.Equal(t, int32(2), r.calls.Load())
}

func TestCoordinatorLoginDuringRefreshWins(t *testing.T) {
	r := newFakeRefresher()
	c, store, _ := newTestCoordinator(t, r)

	errCh := make(chan error, 1)
	credCh := make(chan *Credential, 1)
	go func() {
		cred, err := c.Await(context.Background(), "stale")
		credCh <- cred
		errCh <- err
	}()
	waitForState(t, c, Refreshing)

	require.NoError(t, store.SetSession(context.Background(), &Credential{AccessToken: "login", RefreshToken: "r9"}, &Identity{ID: "u1"}))
	close(r.release)

	require.NoError(t, <-errCh)
	assert.Equal(t, "login", (<-credCh).AccessToken)
	assert.Equal(t, "login", store.Get().AccessToken, "the older refresh result must not overwrite a new session")
}
