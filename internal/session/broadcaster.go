package session

import (
	"context"

	log "github.com/sirupsen/logrus"

	"taskboard-go/internal/credential"
	"taskboard-go/internal/events"
)

// State is what the rest of the application knows about the session.
type State struct {
	Authenticated bool
	Identity      *credential.Identity
}

// Broadcaster is the latest-value channel for session state. It implements
// credential.SessionNotifier and mirrors every transition on the event hub.
type Broadcaster struct {
	latest    *events.Latest[State]
	publisher events.Publisher
}

var _ credential.SessionNotifier = (*Broadcaster)(nil)

// NewBroadcaster starts unauthenticated; publisher may be nil.
func NewBroadcaster(publisher events.Publisher) *Broadcaster {
	return &Broadcaster{latest: events.NewLatest(State{}), publisher: publisher}
}

// Current returns the latest state.
func (b *Broadcaster) Current() State { return b.latest.Get() }

// IsAuthenticated is a shortcut for Current().Authenticated.
func (b *Broadcaster) IsAuthenticated() bool { return b.latest.Get().Authenticated }

// CurrentIdentity returns the identity of the session, nil when anonymous
// or not yet looked up.
func (b *Broadcaster) CurrentIdentity() *credential.Identity {
	return b.latest.Get().Identity.Clone()
}

// Subscribe delivers the current state immediately and then every change.
// The returned function must be called when the subscriber goes away.
//
// fn runs synchronously on the goroutine that changed the session, while
// the credential store still holds its write lock. It must not write to the
// store (login, logout) or wait on anything that does; hand such work to
// another goroutine. Reading the store and calling into the refresh
// coordinator are fine. Refreshes and identity lookups re-deliver an
// authenticated state, so compare Authenticated if only sign-in and
// sign-out matter.
func (b *Broadcaster) Subscribe(fn func(State)) func() {
	return b.latest.Subscribe(fn)
}

// Authenticated implements credential.SessionNotifier.
func (b *Broadcaster) Authenticated(identity *credential.Identity) {
	b.set(State{Authenticated: true, Identity: identity})
}

// Unauthenticated implements credential.SessionNotifier.
func (b *Broadcaster) Unauthenticated() {
	b.set(State{})
}

func (b *Broadcaster) set(next State) {
	prev := b.latest.Get()
	b.latest.Publish(next)
	if prev.Authenticated == next.Authenticated {
		return
	}
	log.WithField("authenticated", next.Authenticated).Info("session state changed")
	if b.publisher != nil {
		b.publisher.Publish(context.Background(), events.TopicSessionChanged, next, nil)
	}
}
