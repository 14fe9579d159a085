package upstream

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"

	"taskboard-go/internal/constants"
	"taskboard-go/internal/credential"
	apperrors "taskboard-go/internal/errors"
)

// Login exchanges email and password for a session. The request goes to a
// bootstrap endpoint, so a stale stored credential is never attached and a
// 401 surfaces as invalid_credentials.
func (c *Client) Login(ctx context.Context, email, password string) (*credential.Identity, error) {
	body, _ := sjson.SetBytes(nil, "email", email)
	body, _ = sjson.SetBytes(body, "password", password)
	s, _ := c.snapshot()
	return c.establish(ctx, Post(s.endpoints.Login, "auth", body))
}

// Register creates an account and signs in with it.
func (c *Client) Register(ctx context.Context, name, email, password string) (*credential.Identity, error) {
	body, _ := sjson.SetBytes(nil, "name", name)
	body, _ = sjson.SetBytes(body, "email", email)
	body, _ = sjson.SetBytes(body, "password", password)
	s, _ := c.snapshot()
	return c.establish(ctx, Post(s.endpoints.Register, "auth", body))
}

func (c *Client) establish(ctx context.Context, req *Request) (*credential.Identity, error) {
	resp, err := c.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	cred, err := parseCredential(resp.Body, time.Now())
	if err != nil {
		return nil, apperrors.New(resp.Status, apperrors.CategoryUnknown, "malformed_token_response", err.Error()).WithCause(err)
	}
	identity := parseIdentity(resp.JSON().Get("user"))
	if err := c.store.SetSession(ctx, cred, identity); err != nil {
		log.WithError(err).Warn("session established but not persisted")
	}
	if identity == nil {
		return c.WhoAmI(ctx)
	}
	log.WithField("user_id", identity.ID).Info("signed in")
	return identity.Clone(), nil
}

// WhoAmI asks the backend for the current identity and caches it.
func (c *Client) WhoAmI(ctx context.Context) (*credential.Identity, error) {
	s, _ := c.snapshot()
	resp, err := c.Send(ctx, Get(s.endpoints.Me, "auth"))
	if err != nil {
		return nil, err
	}
	root := resp.JSON()
	if root.Get("data").IsObject() {
		root = root.Get("data")
	}
	identity := parseIdentity(root)
	if identity == nil {
		return nil, apperrors.New(resp.Status, apperrors.CategoryUnknown, "malformed_identity", "identity response has no id")
	}
	if err := c.store.SetIdentity(ctx, identity); err != nil {
		log.WithError(err).Warn("identity not persisted")
	}
	return identity, nil
}

// Logout ends the session locally no matter what the backend says. A
// running refresh episode is interrupted first: its waiters fail with
// session_expired right away and its eventual result is discarded. The
// backend is told on a best-effort, silent request.
func (c *Client) Logout(ctx context.Context) error {
	if c.coord.Abort("logout") {
		log.Info("logout interrupted a refresh episode")
	}

	if c.store.Get() != nil {
		s, _ := c.snapshot()
		lctx, cancel := context.WithTimeout(ctx, constants.DefaultLogoutTimeout)
		_, err := c.Send(lctx, Post(s.endpoints.Logout, "auth", nil).AsSilent())
		cancel()
		if err != nil {
			log.WithError(err).Debug("backend logout failed; clearing local session anyway")
		}
	}

	clearCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.StorageTimeout)
	defer cancel()
	if err := c.store.Clear(clearCtx); err != nil {
		return err
	}
	log.Info("signed out")
	return nil
}
