package mockapi

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var errStaleGeneration = errors.New("token revoked")

type accessClaims struct {
	Generation int64 `json:"gen"`
	jwt.RegisteredClaims
}

// issue mints an access token and a rotating refresh token. Caller holds s.mu.
func (s *Server) issueLocked(u *user) (access, refresh string, expiresAt time.Time, err error) {
	now := time.Now()
	expiresAt = now.Add(s.opts.AccessTTL)
	claims := accessClaims{
		Generation: s.generation,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	access, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.opts.SigningKey)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh = uuid.NewString()
	s.grants[refresh] = refreshGrant{userID: u.ID, expiresAt: now.Add(s.opts.RefreshTTL)}
	return access, refresh, expiresAt, nil
}

func (s *Server) validateAccess(token string) (string, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.opts.SigningKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if claims.Generation != s.generation {
		return "", errStaleGeneration
	}
	if _, ok := s.usersByID[claims.Subject]; !ok {
		return "", errors.New("unknown subject")
	}
	return claims.Subject, nil
}
