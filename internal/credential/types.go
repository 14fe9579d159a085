package credential

import "time"

// Credential is the access/refresh token pair of one session. It is replaced
// as a whole, never field by field.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	// IssuedAt is when the client received the pair; zero if unknown.
	IssuedAt time.Time `json:"issued_at,omitempty"`
}

// Clone returns a deep copy of the credential.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// HasRefreshToken reports whether the credential can be refreshed.
func (c *Credential) HasRefreshToken() bool {
	return c != nil && c.RefreshToken != ""
}

// Identity is the authenticated principal as reported by the backend.
type Identity struct {
	ID    string         `json:"id"`
	Name  string         `json:"name,omitempty"`
	Email string         `json:"email,omitempty"`
	Role  string         `json:"role,omitempty"`
	Extra map[string]any `json:"extra,omitempty"`
}

// Clone returns a copy of the identity; Extra is copied shallowly.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	cp := *i
	if i.Extra != nil {
		cp.Extra = make(map[string]any, len(i.Extra))
		for k, v := range i.Extra {
			cp.Extra[k] = v
		}
	}
	return &cp
}
