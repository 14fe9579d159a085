package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"taskboard-go/internal/constants"
	"taskboard-go/internal/storage"
)

// SessionNotifier receives session transitions from the Store.
type SessionNotifier interface {
	Authenticated(identity *Identity)
	Unauthenticated()
}

// Store holds the active credential and the cached identity of the session.
// Memory is authoritative; the backend only makes the session survive a
// restart. The store never expires a credential by itself.
type Store struct {
	// write serializes mutate+persist+notify so observers see transitions
	// in the order they were made.
	write sync.Mutex

	mu       sync.RWMutex
	cred     *Credential
	identity *Identity
	// epoch changes whenever a session starts or ends, and on Fence.
	epoch uint64

	backend  storage.Backend
	notifier SessionNotifier
}

// NewStore creates a store. backend and notifier may be nil.
func NewStore(backend storage.Backend, notifier SessionNotifier) *Store {
	return &Store{backend: backend, notifier: notifier}
}

// Get returns a copy of the active credential, or nil when no session exists.
func (s *Store) Get() *Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.Clone()
}

// Snapshot returns the active credential together with the current epoch.
// A write conditioned on that epoch fails once the session has been
// replaced, cleared or fenced.
func (s *Store) Snapshot() (*Credential, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.Clone(), s.epoch
}

// Fence invalidates every epoch handed out so far without touching the
// session. It never notifies and never blocks on a writer.
func (s *Store) Fence() {
	s.mu.Lock()
	s.epoch++
	s.mu.Unlock()
}

// Identity returns a copy of the cached identity.
func (s *Store) Identity() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity.Clone()
}

// Set atomically replaces the credential, keeping the cached identity. The
// in-memory state is updated even if persisting fails; the error is
// returned so callers can log it.
func (s *Store) Set(ctx context.Context, cred *Credential) error {
	if cred == nil || cred.AccessToken == "" {
		return fmt.Errorf("credential without access token")
	}
	s.write.Lock()
	defer s.write.Unlock()

	s.mu.Lock()
	s.cred = cred.Clone()
	ident := s.identity.Clone()
	s.mu.Unlock()

	err := s.persist(ctx, constants.RecordCredential, cred)
	s.notifyAuthenticated(ident)
	return err
}

// SetIfEpoch is Set conditioned on epoch still being current. It reports
// false, and changes nothing, when the session moved on in the meantime.
func (s *Store) SetIfEpoch(ctx context.Context, epoch uint64, cred *Credential) (bool, error) {
	if cred == nil || cred.AccessToken == "" {
		return false, fmt.Errorf("credential without access token")
	}
	s.write.Lock()
	defer s.write.Unlock()

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return false, nil
	}
	s.cred = cred.Clone()
	ident := s.identity.Clone()
	s.mu.Unlock()

	err := s.persist(ctx, constants.RecordCredential, cred)
	s.notifyAuthenticated(ident)
	return true, err
}

// SetSession establishes a new session: credential and identity together.
func (s *Store) SetSession(ctx context.Context, cred *Credential, identity *Identity) error {
	if cred == nil || cred.AccessToken == "" {
		return fmt.Errorf("credential without access token")
	}
	s.write.Lock()
	defer s.write.Unlock()

	s.mu.Lock()
	s.cred = cred.Clone()
	s.identity = identity.Clone()
	s.epoch++
	s.mu.Unlock()

	err := s.persist(ctx, constants.RecordCredential, cred)
	if identity != nil {
		if idErr := s.persist(ctx, constants.RecordIdentity, identity); idErr != nil && err == nil {
			err = idErr
		}
	}
	s.notifyAuthenticated(identity.Clone())
	return err
}

// SetIdentity replaces the cached identity of the active session. It is a
// no-op when no credential is held.
func (s *Store) SetIdentity(ctx context.Context, identity *Identity) error {
	s.write.Lock()
	defer s.write.Unlock()

	s.mu.Lock()
	if s.cred == nil {
		s.mu.Unlock()
		return nil
	}
	s.identity = identity.Clone()
	s.mu.Unlock()

	err := s.persist(ctx, constants.RecordIdentity, identity)
	s.notifyAuthenticated(identity.Clone())
	return err
}

// Clear removes credential and identity together and announces
// "not authenticated".
func (s *Store) Clear(ctx context.Context) error {
	s.write.Lock()
	defer s.write.Unlock()

	s.mu.Lock()
	s.clearLocked()
	s.mu.Unlock()
	return s.finishClear(ctx)
}

// ClearIfEpoch is Clear conditioned on epoch still being current.
func (s *Store) ClearIfEpoch(ctx context.Context, epoch uint64) (bool, error) {
	s.write.Lock()
	defer s.write.Unlock()

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return false, nil
	}
	s.clearLocked()
	s.mu.Unlock()
	return true, s.finishClear(ctx)
}

func (s *Store) clearLocked() {
	s.cred = nil
	s.identity = nil
	s.epoch++
}

func (s *Store) finishClear(ctx context.Context) error {
	var err error
	if s.backend != nil {
		err = s.backend.Delete(ctx, constants.RecordCredential, constants.RecordIdentity)
		if err != nil {
			log.WithError(err).Warn("failed to delete persisted session")
		}
	}
	if s.notifier != nil {
		s.notifier.Unauthenticated()
	}
	return err
}

// Load restores a persisted session. A missing record means no session; an
// unreadable one is discarded so the user is asked to sign in again.
func (s *Store) Load(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}
	s.write.Lock()
	defer s.write.Unlock()

	var cred Credential
	if err := s.restore(ctx, constants.RecordCredential, &cred); err != nil || cred.AccessToken == "" {
		if err != nil && !storage.IsNotFound(err) {
			log.WithError(err).Warn("discarding unreadable persisted credential")
			_ = s.backend.Delete(ctx, constants.RecordCredential, constants.RecordIdentity)
		}
		if s.notifier != nil {
			s.notifier.Unauthenticated()
		}
		if storage.IsNotFound(err) {
			return nil
		}
		return err
	}

	var identity *Identity
	var ident Identity
	if err := s.restore(ctx, constants.RecordIdentity, &ident); err == nil {
		identity = &ident
	} else if !storage.IsNotFound(err) {
		log.WithError(err).Debug("persisted identity unreadable")
	}

	s.mu.Lock()
	s.cred = &cred
	s.identity = identity
	s.epoch++
	s.mu.Unlock()

	log.WithField("expires_at", cred.Expiry()).Debug("restored persisted session")
	s.notifyAuthenticated(identity.Clone())
	return nil
}

func (s *Store) notifyAuthenticated(identity *Identity) {
	if s.notifier != nil {
		s.notifier.Authenticated(identity)
	}
}

func (s *Store) persist(ctx context.Context, key string, v any) error {
	if s.backend == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.backend.Set(ctx, key, data); err != nil {
		log.WithError(err).WithField("record", key).Warn("failed to persist session record")
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}

func (s *Store) restore(ctx context.Context, key string, into any) error {
	data, err := s.backend.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
