package mockapi

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AddUser registers an account and returns its id.
func (s *Server) AddUser(email, name, password, role string) (string, error) {
	u, err := s.addUser(email, name, password, role)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

func (s *Server) addUser(email, name, password, role string) (*user, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	key := strings.ToLower(strings.TrimSpace(email))

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[key]; exists {
		return nil, fmt.Errorf("email %s already registered", email)
	}
	u := &user{ID: uuid.NewString(), Name: name, Email: key, Role: role, PasswordHash: hash}
	s.users[key] = u
	s.usersByID[u.ID] = u
	return u, nil
}

// ExpireAccessTokens makes every access token issued so far answer 401,
// as if they had all expired at once.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	s.generation++
	s.mu.Unlock()
}

// RevokeRefreshTokens invalidates every outstanding refresh token.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	s.grants = make(map[string]refreshGrant)
	s.mu.Unlock()
}

// RejectRefresh makes /auth/refresh answer 401 regardless of the token.
func (s *Server) RejectRefresh(reject bool) {
	s.mu.Lock()
	s.rejectAll = reject
	s.mu.Unlock()
}

// DelayRefresh holds every refresh response for d.
func (s *Server) DelayRefresh(d time.Duration) {
	s.mu.Lock()
	s.refreshWait = d
	s.mu.Unlock()
}

// HoldRefresh blocks refresh responses until the returned function is
// called. Tests use it to pile up waiters deterministically.
func (s *Server) HoldRefresh() (release func()) {
	return s.hold(&s.gate)
}

// HoldLogout blocks logout requests before any grant is revoked until the
// returned function is called.
func (s *Server) HoldLogout() (release func()) {
	return s.hold(&s.logoutGate)
}

func (s *Server) hold(slot *chan struct{}) func() {
	gate := make(chan struct{})
	s.mu.Lock()
	*slot = gate
	s.mu.Unlock()
	var done bool
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !done {
			close(gate)
			*slot = nil
			done = true
		}
	}
}

// FailNext makes the next n requests to path answer status.
func (s *Server) FailNext(path string, status, n int) {
	s.mu.Lock()
	s.faults[path] = &fault{status: status, left: n}
	s.mu.Unlock()
}

// SetUnread sets the unread notification count.
func (s *Server) SetUnread(n int) {
	s.mu.Lock()
	s.unread = n
	s.mu.Unlock()
}

// RefreshCalls reports how many times /auth/refresh was hit.
func (s *Server) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}

// Requests returns what was received for path, in arrival order.
func (s *Server) Requests(path string) []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []RecordedRequest
	for _, r := range s.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) record(c *gin.Context) {
	var body []byte
	if c.Request.Body != nil {
		body, _ = io.ReadAll(c.Request.Body)
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
	}
	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method:        c.Request.Method,
		Path:          c.Request.URL.Path,
		Authorization: c.GetHeader("Authorization"),
		RequestID:     c.GetHeader("X-Request-ID"),
		ContentType:   c.GetHeader("Content-Type"),
		Body:          string(body),
		At:            time.Now(),
	})
	s.mu.Unlock()
	c.Next()
}

func (s *Server) injectFaults(c *gin.Context) {
	s.mu.Lock()
	f := s.faults[c.Request.URL.Path]
	status := 0
	if f != nil && f.left > 0 {
		f.left--
		status = f.status
	}
	s.mu.Unlock()
	if status != 0 {
		apiError(c, status, "injected", fmt.Sprintf("injected failure %d", status))
		return
	}
	c.Next()
}
