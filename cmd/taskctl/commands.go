package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"taskboard-go/internal/background"
	"taskboard-go/internal/constants"
	"taskboard-go/internal/credential"
	"taskboard-go/internal/upstream"
)

func (a *app) dispatch(ctx context.Context, cmd string, args []string, opts options, stdout io.Writer) error {
	switch cmd {
	case "login":
		if len(args) != 1 {
			return errUsage
		}
		identity, err := a.client.Login(ctx, args[0], opts.password)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "signed in as %s\n", describe(identity))
	case "register":
		if len(args) != 2 {
			return errUsage
		}
		identity, err := a.client.Register(ctx, args[1], args[0], opts.password)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "registered and signed in as %s\n", describe(identity))
	case "logout":
		if err := a.client.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "signed out")
	case "whoami":
		if !a.session.IsAuthenticated() {
			return fmt.Errorf("not signed in")
		}
		identity, err := a.client.WhoAmI(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(identity)
	case "get":
		if len(args) != 1 {
			return errUsage
		}
		resp, err := a.client.Send(ctx, upstream.Get(args[0], resourceCategory(args[0])))
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, strings.TrimSpace(string(resp.Body)))
	case "watch":
		return a.watch(ctx, opts, stdout)
	default:
		return errUsage
	}
	return nil
}

// watch runs the notification poller, and optionally a metrics endpoint,
// until ctx is cancelled.
func (a *app) watch(ctx context.Context, opts options, stdout io.Writer) error {
	if !a.session.IsAuthenticated() {
		fmt.Fprintln(stdout, "not signed in; waiting for a session")
	}
	group := background.NewGroup(ctx)

	out := bufio.NewWriter(stdout)
	unsubscribe := a.poller.Unread().Subscribe(func(n int) {
		fmt.Fprintf(out, "%s unread notifications: %d\n", time.Now().Format(time.TimeOnly), n)
		_ = out.Flush()
	})
	defer unsubscribe()

	if err := group.Start("notification-poller", a.poller.Run); err != nil {
		return err
	}
	if opts.metricsAddr != "" {
		if err := group.Start("metrics-endpoint", metricsServer(opts.metricsAddr)); err != nil {
			return err
		}
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ServerShutdownTimeout)
	defer cancel()
	if err := group.Shutdown(shutdownCtx); err != nil {
		return err
	}
	for _, w := range group.List() {
		if w.Err != nil {
			log.WithFields(log.Fields{"worker": w.Name, "status": w.Status}).WithError(w.Err).Warn("background worker ended with error")
		}
	}
	return nil
}

func metricsServer(addr string) background.Func {
	return func(ctx context.Context) error {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		errCh := make(chan error, 1)
		go func() {
			log.Infof("metrics listening on %s", addr)
			errCh <- srv.ListenAndServe()
		}()
		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ServerShutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			return ctx.Err()
		}
	}
}

// resourceCategory groups requests for the loading indicator by the first
// path segment: /tasks/42 is "tasks".
func resourceCategory(path string) string {
	p := strings.TrimPrefix(path, "/")
	if i := strings.IndexAny(p, "/?"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "default"
	}
	return p
}

func describe(id *credential.Identity) string {
	if id == nil {
		return "unknown user"
	}
	if id.Email != "" {
		return fmt.Sprintf("%s <%s>", id.Name, id.Email)
	}
	return id.Name
}
