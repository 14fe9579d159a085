package upstream

import (
	"strings"

	"taskboard-go/internal/config"
)

// EndpointKind classifies a path for the augmenter and the classifier.
type EndpointKind int

const (
	// Protected endpoints carry the credential; their 401s start refresh
	// episodes.
	Protected EndpointKind = iota
	// Bootstrap endpoints (login, register, refresh) never carry a credential
	// and never produce credential_expired.
	Bootstrap
	// Logout carries the credential so the backend can revoke it, but a 401
	// there must not start a refresh.
	Logout
	// Public endpoints are anonymous.
	Public
)

// Endpoints matches request paths exactly against the configured auth paths.
type Endpoints struct {
	Login, Register, Refresh, Logout, Me string
	public                               map[string]struct{}
}

// NewEndpoints builds the matcher from configuration.
func NewEndpoints(cfg config.AuthConfig) Endpoints {
	e := Endpoints{
		Login:    cfg.LoginPath,
		Register: cfg.RegisterPath,
		Refresh:  cfg.RefreshPath,
		Logout:   cfg.LogoutPath,
		Me:       cfg.MePath,
		public:   make(map[string]struct{}, len(cfg.PublicPaths)),
	}
	for _, p := range cfg.PublicPaths {
		e.public[normalizePath(p)] = struct{}{}
	}
	return e
}

// Classify returns the kind of path. Query strings and trailing slashes are
// ignored; nothing else is.
func (e Endpoints) Classify(path string) EndpointKind {
	p := normalizePath(path)
	switch p {
	case "":
		return Protected
	case normalizePath(e.Login), normalizePath(e.Register), normalizePath(e.Refresh):
		return Bootstrap
	case normalizePath(e.Logout):
		return Logout
	}
	if _, ok := e.public[p]; ok {
		return Public
	}
	return Protected
}

// AttachesCredential reports whether the augmenter adds the bearer token.
func (e Endpoints) AttachesCredential(path string) bool {
	k := e.Classify(path)
	return k == Protected || k == Logout
}

// HandlesExpiry reports whether a 401 from path goes to the coordinator.
func (e Endpoints) HandlesExpiry(path string) bool {
	return e.Classify(path) == Protected
}

// Retryable reports whether the path may be retried at all.
func (e Endpoints) Retryable(path string) bool {
	k := e.Classify(path)
	return k == Protected || k == Public
}

func normalizePath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimSpace(p)
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}
