package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard-go/internal/mockapi"
)

type cli struct {
	t      *testing.T
	config string
	mock   *mockapi.Server
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	mock := mockapi.New(mockapi.Options{Quiet: true})
	_, err := mock.AddUser("linus@example.com", "Linus", "penguin", "member")
	require.NoError(t, err)
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := fmt.Sprintf(`server:
  base_url: %s
storage:
  backend: file
  base_dir: %s
  session_key: test
polling:
  enabled: true
  interval_sec: 1
`, srv.URL, filepath.Join(dir, "state"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return &cli{t: t, config: path, mock: mock}
}

func (c *cli) run(ctx context.Context, args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(ctx, append([]string{"-config", c.config}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestSessionSurvivesAcrossInvocations(t *testing.T) {
	c := newCLI(t)
	ctx := context.Background()

	code, out, errOut := c.run(ctx, "-password", "penguin", "login", "linus@example.com")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "signed in as Linus <linus@example.com>")

	code, out, errOut = c.run(ctx, "whoami")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, `"email": "linus@example.com"`)

	c.mock.ExpireAccessTokens()
	code, out, errOut = c.run(ctx, "get", "/tasks")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, `"total"`)
	assert.Equal(t, 1, c.mock.RefreshCalls())

	code, out, _ = c.run(ctx, "logout")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "signed out")

	code, _, errOut = c.run(ctx, "whoami")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not signed in")
}

func TestLoginWithWrongPasswordFails(t *testing.T) {
	c := newCLI(t)
	code, _, errOut := c.run(context.Background(), "-password", "wrong", "login", "linus@example.com")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "taskctl:")
	assert.Zero(t, c.mock.RefreshCalls())
}

func TestUsageErrors(t *testing.T) {
	c := newCLI(t)
	code, _, errOut := c.run(context.Background())
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "usage: taskctl")

	code, _, _ = c.run(context.Background(), "get")
	assert.Equal(t, 2, code)

	code, _, _ = c.run(context.Background(), "frobnicate")
	assert.Equal(t, 2, code)

	code, out, _ := c.run(context.Background(), "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "taskboard-go")
}

func TestWatchPrintsUnreadCountUntilCancelled(t *testing.T) {
	c := newCLI(t)
	code, _, errOut := c.run(context.Background(), "-password", "penguin", "login", "linus@example.com")
	require.Equal(t, 0, code, errOut)
	c.mock.SetUnread(3)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) && len(c.mock.Requests("/notifications/unread-count")) == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()
	code, out, errOut := c.run(ctx, "watch")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "unread notifications: 3")
}

func TestResourceCategory(t *testing.T) {
	assert.Equal(t, "tasks", resourceCategory("/tasks/42"))
	assert.Equal(t, "projects", resourceCategory("projects?page=2"))
	assert.Equal(t, "default", resourceCategory("/"))
}
