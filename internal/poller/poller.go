package poller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"taskboard-go/internal/config"
	"taskboard-go/internal/constants"
	apperrors "taskboard-go/internal/errors"
	"taskboard-go/internal/events"
	"taskboard-go/internal/session"
	"taskboard-go/internal/upstream"
)

// Sender is the part of the upstream client the poller needs.
type Sender interface {
	Send(ctx context.Context, req *upstream.Request) (*upstream.Response, error)
}

// SessionSource reports authentication state.
type SessionSource interface {
	IsAuthenticated() bool
	Subscribe(fn func(session.State)) func()
}

// Poller fetches the unread notification count on a fixed interval while a
// session is authenticated. Polls are silent, so they are never retried and
// never logged as failures.
type Poller struct {
	client  Sender
	session SessionSource
	unread  *events.Latest[int]
	wake    chan struct{}

	mu       sync.Mutex
	enabled  bool
	interval time.Duration
	path     string
}

// New builds a poller from the polling section of cfg.
func New(client Sender, sess SessionSource, cfg *config.Config) *Poller {
	p := &Poller{
		client:  client,
		session: sess,
		unread:  events.NewLatest(0),
		wake:    make(chan struct{}, 1),
	}
	p.ApplyConfig(cfg)
	return p
}

// ApplyConfig swaps interval, path and the enabled flag. A running loop picks
// the change up immediately.
func (p *Poller) ApplyConfig(cfg *config.Config) {
	interval := cfg.PollInterval()
	if interval <= 0 {
		interval = constants.DefaultPollInterval
	}
	path := cfg.Polling.Path
	if path == "" {
		path = constants.DefaultUnreadCountPath
	}
	p.mu.Lock()
	p.enabled, p.interval, p.path = cfg.Polling.Enabled, interval, path
	p.mu.Unlock()
	p.signal()
}

// Unread is the latest unread count. It drops to zero on sign-out.
func (p *Poller) Unread() *events.Latest[int] { return p.unread }

// Interval returns the current polling interval.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

func (p *Poller) settings() (bool, time.Duration, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled, p.interval, p.path
}

// signal never blocks; session callbacks may run under credential locks.
func (p *Poller) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Poll performs one unread-count request and publishes the result.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	_, _, path := p.settings()
	resp, err := p.client.Send(ctx, upstream.Get(path, "notifications").AsSilent())
	if err != nil {
		return 0, err
	}
	root := resp.JSON()
	count := root.Get("count")
	if !count.Exists() {
		count = root.Get("data.count")
	}
	if !count.Exists() {
		count = root.Get("unread")
	}
	if !count.Exists() {
		return 0, fmt.Errorf("unread count missing from %s response", path)
	}
	n := int(count.Int())
	p.publish(n)
	return n, nil
}

func (p *Poller) publish(n int) {
	p.unread.Recompute(func(cur int) (int, bool) { return n, cur != n })
}

// Run polls until ctx is cancelled. While signed out, or while polling is
// disabled, it sleeps until the session or the configuration changes.
func (p *Poller) Run(ctx context.Context) error {
	// refreshes and identity updates re-announce an authenticated session;
	// only sign-in and sign-out change what the loop does
	var authenticated atomic.Bool
	unsubscribe := p.session.Subscribe(func(st session.State) {
		if authenticated.Swap(st.Authenticated) != st.Authenticated {
			p.signal()
		}
	})
	defer unsubscribe()
	// the subscription fires once with the current state
	select {
	case <-p.wake:
	default:
	}

	for {
		enabled, interval, _ := p.settings()
		active := enabled && p.session.IsAuthenticated()

		var timer *time.Timer
		var tick <-chan time.Time
		if active {
			if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
				entry := log.WithField("error_category", apperrors.CategoryOf(err))
				if apperrors.CategoryOf(err) == apperrors.CategorySessionExpired {
					entry.Debug("notification poll stopped by session end")
				} else {
					entry.WithError(err).Debug("notification poll failed")
				}
			}
			timer = time.NewTimer(interval)
			tick = timer.C
		} else if !p.session.IsAuthenticated() {
			p.publish(0)
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case <-tick:
		case <-p.wake:
			if timer != nil {
				timer.Stop()
			}
		}
	}
}
