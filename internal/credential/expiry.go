package credential

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Expiry returns when the access token stops being valid. An explicit
// ExpiresAt wins; otherwise the JWT "exp" claim is read without verifying
// the signature (the client never holds the signing key). The zero time
// means unknown.
func (c *Credential) Expiry() time.Time {
	if c == nil {
		return time.Time{}
	}
	if !c.ExpiresAt.IsZero() {
		return c.ExpiresAt
	}
	return jwtExpiry(c.AccessToken)
}

// ExpiringWithin reports whether the access token expires within d of now.
// Unknown expiry is never considered expiring: the backend's 401 is the
// authority in that case.
func (c *Credential) ExpiringWithin(d time.Duration, now time.Time) bool {
	exp := c.Expiry()
	if exp.IsZero() {
		return false
	}
	return !now.Add(d).Before(exp)
}

// Lifetime is the span between issue and expiry, or 0 when either end is
// unknown. IssuedAt falls back to the JWT "iat" claim.
func (c *Credential) Lifetime() time.Duration {
	exp := c.Expiry()
	if exp.IsZero() {
		return 0
	}
	iat := c.IssuedAt
	if iat.IsZero() && c != nil {
		iat = jwtIssuedAt(c.AccessToken)
	}
	if iat.IsZero() || !exp.After(iat) {
		return 0
	}
	return exp.Sub(iat)
}

// RefreshWindow caps a refresh-ahead buffer at half the credential's
// lifetime. A buffer at least as long as the lifetime would otherwise mark
// every freshly issued token as expiring.
func (c *Credential) RefreshWindow(buffer time.Duration) time.Duration {
	if life := c.Lifetime(); life > 0 && buffer > life/2 {
		return life / 2
	}
	return buffer
}

func jwtExpiry(token string) time.Time {
	claims := unverifiedClaims(token)
	if claims == nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func jwtIssuedAt(token string) time.Time {
	claims := unverifiedClaims(token)
	if claims == nil {
		return time.Time{}
	}
	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return time.Time{}
	}
	return iat.Time
}

func unverifiedClaims(token string) jwt.MapClaims {
	if token == "" {
		return nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	return claims
}
