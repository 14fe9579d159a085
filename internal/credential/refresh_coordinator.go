package credential

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"taskboard-go/internal/constants"
	apperrors "taskboard-go/internal/errors"
	"taskboard-go/internal/events"
	"taskboard-go/internal/monitoring"
	"taskboard-go/internal/monitoring/tracing"
)

// Refresher exchanges a refresh token for a new credential. Any error,
// including a 401 from the refresh endpoint, ends the session.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*Credential, error)
}

// RefreshState is the coordinator's state.
type RefreshState int

const (
	Idle RefreshState = iota
	Refreshing
)

func (s RefreshState) String() string {
	if s == Refreshing {
		return "refreshing"
	}
	return "idle"
}

// RefreshResult is the payload of events.TopicRefreshCompleted.
type RefreshResult struct {
	Episode  uint64
	Success  bool
	Waiters  int
	Duration time.Duration
}

// episode is one single-flight refresh attempt and its waiters.
type episode struct {
	id      uint64
	stale   string
	epoch   uint64
	started time.Time
	waiters int
	done    chan struct{}

	// result is known before the store is written; cred is what waiters get.
	result *Credential
	cred   *Credential
	err    *apperrors.APIError
}

// Coordinator guarantees at most one refresh call per expiry episode. All
// callers that observe an expired credential while a refresh is running
// share its outcome. It is the only writer of the refresh state.
//
// The store is never written with the coordinator locked, so session
// subscribers may call back into it. Episode outcomes are written with
// Store.SetIfEpoch and Store.ClearIfEpoch against the epoch seen when the
// episode started; Abort fences the store so a late result cannot land.
type Coordinator struct {
	store     *Store
	refresher Refresher
	publisher events.Publisher
	timeout   atomic.Int64

	mu          sync.Mutex
	state       RefreshState
	nextEpisode uint64
	current     *episode
	// lastFailed remembers the access token of the last failed episode so a
	// late 401 for it is reported as subsumed rather than as a new failure.
	lastFailed *episode
}

// NewCoordinator wires the coordinator to the store it refreshes.
func NewCoordinator(store *Store, refresher Refresher, publisher events.Publisher) *Coordinator {
	c := &Coordinator{store: store, refresher: refresher, publisher: publisher}
	c.timeout.Store(int64(constants.DefaultRefreshTimeout))
	return c
}

// SetTimeout bounds each refresh call. A timed out refresh is a refresh
// failure.
func (c *Coordinator) SetTimeout(d time.Duration) {
	if d > 0 {
		c.timeout.Store(int64(d))
	}
}

// State reports the current refresh state.
func (c *Coordinator) State() RefreshState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Await is called by a request whose attempt with access token stale was
// classified credential_expired. It returns the credential to replay with.
//
// If the store already holds a different access token, a refresh finished
// after the request was sent and the current credential is returned without
// a new refresh. Otherwise the caller joins the running episode or starts
// one. On failure every caller receives session_expired; only the caller
// that started the episode gets it without the Subsumed flag.
//
// ctx bounds only the wait; the refresh itself runs detached so a caller
// going away never cancels it for the other waiters.
func (c *Coordinator) Await(ctx context.Context, stale string) (*Credential, error) {
	c.mu.Lock()
	if ep := c.current; ep != nil {
		// the outcome is being stored; callers reached from the store's
		// session notification must not wait for themselves
		switch {
		case ep.result != nil:
			cred := ep.result.Clone()
			c.mu.Unlock()
			return cred, nil
		case ep.err != nil:
			err := ep.err.AsSubsumed()
			c.mu.Unlock()
			return nil, err
		}
		ep.waiters++
		c.mu.Unlock()
		return c.wait(ctx, ep, false)
	}

	cred, epoch := c.store.Snapshot()
	if cred != nil && cred.AccessToken != stale {
		c.mu.Unlock()
		return cred, nil
	}
	// stale belongs to an ended session: a failed episode or a logout whose
	// store clear may still be pending. Either way it must not be refreshed.
	if c.lastFailed != nil && c.lastFailed.stale == stale {
		err := c.lastFailed.err.AsSubsumed()
		c.mu.Unlock()
		return nil, err
	}

	c.nextEpisode++
	ep := &episode{
		id:      c.nextEpisode,
		stale:   stale,
		epoch:   epoch,
		started: time.Now(),
		waiters: 1,
		done:    make(chan struct{}),
	}
	c.current = ep

	if !cred.HasRefreshToken() {
		// nothing to refresh with: the session ends here
		c.mu.Unlock()
		c.fail(ep, apperrors.SessionExpired(ep.id, "", nil), "no refresh token")
		return c.wait(ctx, ep, true)
	}

	c.state = Refreshing
	c.mu.Unlock()

	log.WithField("episode", ep.id).Debug("refresh episode started")
	go c.run(ep, cred.RefreshToken)
	return c.wait(ctx, ep, true)
}

// Abort ends the current session as far as refreshing goes, typically on
// logout. Queued waiters fail immediately with session_expired and the
// refresh result, when it eventually arrives, is discarded. From then on
// the access token held at the time of the call is retired: 401s and
// refresh-ahead for it get a subsumed session_expired and never start an
// episode, even while the store still holds it. It reports whether an
// episode was interrupted.
func (c *Coordinator) Abort(reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Fence()
	c.nextEpisode++
	retired := &episode{
		id:  c.nextEpisode,
		err: apperrors.SessionExpired(c.nextEpisode, "Signed out", nil).WithDetails(map[string]interface{}{"reason": reason}),
	}
	if cred := c.store.Get(); cred != nil {
		retired.stale = cred.AccessToken
	}
	c.lastFailed = retired

	ep := c.current
	if ep == nil {
		return false
	}
	ep.err = retired.err
	c.current = nil
	c.state = Idle
	close(ep.done)

	log.WithFields(log.Fields{"episode": ep.id, "waiters": ep.waiters, "reason": reason}).Info("refresh episode aborted")
	monitoring.RecordRefresh("aborted", ep.waiters)
	return true
}

func (c *Coordinator) wait(ctx context.Context, ep *episode, owner bool) (*Credential, error) {
	select {
	case <-ctx.Done():
		return nil, apperrors.MapNetworkError(ctx.Err())
	case <-ep.done:
	}
	if ep.err != nil {
		if owner {
			return nil, ep.err
		}
		return nil, ep.err.AsSubsumed()
	}
	return ep.cred.Clone(), nil
}

func (c *Coordinator) run(ep *episode, refreshToken string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(c.timeout.Load()))
	defer cancel()

	ctx, span := tracing.StartSpan(ctx, "credential", "refresh")
	cred, err := c.refresher.Refresh(ctx, refreshToken)
	tracing.Finish(span, err)

	if err == nil && (cred == nil || cred.AccessToken == "") {
		err = apperrors.New(0, apperrors.CategoryUnknown, "empty_refresh_response", "refresh returned no access token")
	}
	if err != nil {
		c.fail(ep, apperrors.SessionExpired(ep.id, "", err), err.Error())
		return
	}
	if cred.RefreshToken == "" {
		// backend did not rotate the refresh token; keep using the old one
		cred.RefreshToken = refreshToken
	}

	c.mu.Lock()
	if c.current != ep {
		c.mu.Unlock()
		log.WithField("episode", ep.id).Info("discarding refresh result of aborted episode")
		return
	}
	ep.result = cred.Clone()
	c.mu.Unlock()

	// ep stays current while the store is written: new 401s join it instead
	// of refreshing the rotated token again
	stored, perr := c.store.SetIfEpoch(context.WithoutCancel(ctx), ep.epoch, cred)
	if perr != nil {
		log.WithError(perr).Warn("refreshed credential not persisted")
	}

	c.mu.Lock()
	if c.current != ep {
		c.mu.Unlock()
		log.WithField("episode", ep.id).Info("refresh episode aborted while storing its result")
		return
	}
	c.current = nil
	c.state = Idle
	if stored {
		ep.cred = cred.Clone()
	} else if latest := c.store.Get(); latest != nil {
		// a new session was established meanwhile
		ep.cred = latest
	} else {
		ep.err = apperrors.SessionExpired(ep.id, "Signed out", nil)
	}
	close(ep.done)
	c.mu.Unlock()

	elapsed := time.Since(ep.started)
	log.WithFields(log.Fields{"episode": ep.id, "waiters": ep.waiters, "duration_ms": elapsed.Milliseconds(), "stored": stored}).
		Info("credential refreshed")
	monitoring.RecordRefresh("success", ep.waiters)
	c.publish(events.TopicRefreshCompleted, RefreshResult{Episode: ep.id, Success: true, Waiters: ep.waiters, Duration: elapsed}, ep)
}

// fail ends the session for ep unless ep was aborted. From the moment ep.err
// is set, new callers get it subsumed without waiting for the store clear.
func (c *Coordinator) fail(ep *episode, err *apperrors.APIError, reason string) {
	c.mu.Lock()
	if c.current != ep {
		c.mu.Unlock()
		log.WithField("episode", ep.id).Info("discarding refresh failure of aborted episode")
		return
	}
	ep.err = err
	c.lastFailed = ep
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), constants.StorageTimeout)
	if _, cerr := c.store.ClearIfEpoch(ctx, ep.epoch); cerr != nil {
		log.WithError(cerr).Warn("failed to clear session after refresh failure")
	}
	cancel()

	c.mu.Lock()
	if c.current != ep {
		c.mu.Unlock()
		return
	}
	c.current = nil
	c.state = Idle
	c.mu.Unlock()

	c.announceFailure(ep, reason)
	close(ep.done)
}

func (c *Coordinator) announceFailure(ep *episode, reason string) {
	log.WithFields(log.Fields{"episode": ep.id, "waiters": ep.waiters, "reason": reason}).Warn("session expired")
	monitoring.RecordRefresh("failure", ep.waiters)
	c.publish(events.TopicRefreshCompleted, RefreshResult{Episode: ep.id, Waiters: ep.waiters, Duration: time.Since(ep.started)}, ep)
	// 每个失败的刷新周期只通知一次
	c.publish(events.TopicSessionExpired, ep.err, ep)
}

func (c *Coordinator) publish(topic string, payload any, ep *episode) {
	if c.publisher == nil {
		return
	}
	c.publisher.Publish(context.Background(), topic, payload, map[string]string{
		"episode": strconv.FormatUint(ep.id, 10),
	})
}
