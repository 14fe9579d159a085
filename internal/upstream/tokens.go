package upstream

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"taskboard-go/internal/credential"
)

// parseCredential reads {access_token, refresh_token, expires_at|expires_in}
// from a login, register or refresh response. A "data" envelope is accepted.
func parseCredential(body []byte, now time.Time) (*credential.Credential, error) {
	root := gjson.ParseBytes(body)
	if !root.Get("access_token").Exists() && root.Get("data.access_token").Exists() {
		root = root.Get("data")
	}
	cred := &credential.Credential{
		AccessToken:  root.Get("access_token").String(),
		RefreshToken: root.Get("refresh_token").String(),
		IssuedAt:     now.UTC(),
	}
	if cred.AccessToken == "" {
		return nil, fmt.Errorf("response carries no access_token")
	}

	if exp := root.Get("expires_at"); exp.Exists() {
		switch exp.Type {
		case gjson.Number:
			n := exp.Int()
			if n > 1e12 {
				cred.ExpiresAt = time.UnixMilli(n).UTC()
			} else {
				cred.ExpiresAt = time.Unix(n, 0).UTC()
			}
		case gjson.String:
			if t, err := time.Parse(time.RFC3339, exp.String()); err == nil {
				cred.ExpiresAt = t.UTC()
			}
		}
	} else if in := root.Get("expires_in"); in.Exists() && in.Int() > 0 {
		cred.ExpiresAt = now.Add(time.Duration(in.Int()) * time.Second).UTC()
	}
	return cred, nil
}

// parseIdentity reads a user object. Unknown fields land in Extra.
func parseIdentity(v gjson.Result) *credential.Identity {
	if !v.IsObject() {
		return nil
	}
	id := &credential.Identity{
		ID:    v.Get("id").String(),
		Name:  v.Get("name").String(),
		Email: v.Get("email").String(),
		Role:  v.Get("role").String(),
	}
	if id.ID == "" {
		return nil
	}
	v.ForEach(func(key, value gjson.Result) bool {
		switch strings.ToLower(key.String()) {
		case "id", "name", "email", "role":
		default:
			if id.Extra == nil {
				id.Extra = make(map[string]any)
			}
			id.Extra[key.String()] = value.Value()
		}
		return true
	})
	return id
}
