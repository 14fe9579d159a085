package credential

import (
	"fmt"

	"golang.org/x/oauth2"
)

// TokenSource exposes the active credential to code that speaks
// oauth2.TokenSource. It never refreshes; refreshing is the coordinator's job.
func (s *Store) TokenSource() oauth2.TokenSource {
	return storeTokenSource{store: s}
}

type storeTokenSource struct {
	store *Store
}

func (ts storeTokenSource) Token() (*oauth2.Token, error) {
	cred := ts.store.Get()
	if cred == nil {
		return nil, fmt.Errorf("no active session")
	}
	return &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       cred.Expiry(),
	}, nil
}
