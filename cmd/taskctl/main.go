package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"taskboard-go/internal/constants"
	tracing "taskboard-go/internal/monitoring/tracing"
)

const usage = `usage: taskctl [flags] <command> [args]

commands:
  login <email>                 sign in (password from -password or TASKBOARD_PASSWORD)
  register <email> <name>       create an account and sign in
  logout                        end the session
  whoami                        show the signed-in user
  get <path>                    GET a protected resource and print the body
  watch                         poll unread notifications until interrupted
  version                       print build information
`

type options struct {
	configPath  string
	debug       bool
	password    string
	metricsAddr string
}

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("taskctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }

	var opts options
	fs.StringVar(&opts.configPath, "config", "config.yaml", "Path to configuration file")
	fs.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	fs.StringVar(&opts.password, "password", os.Getenv("TASKBOARD_PASSWORD"), "Password for login/register")
	fs.StringVar(&opts.metricsAddr, "metrics", "", "Serve Prometheus metrics on this address while watching")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]
	if cmd == "version" {
		fmt.Fprintf(stdout, "%s %s (commit %s, built %s)\n", constants.ServiceName, constants.Version, constants.GitCommit, constants.BuildTime)
		return 0
	}

	a, err := newApp(ctx, opts, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "taskctl: %v\n", err)
		return 1
	}
	defer a.close()

	traceShutdown, err := tracing.Init(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to initialize tracing")
	}
	if traceShutdown != nil {
		defer func() {
			if err := traceShutdown(context.Background()); err != nil {
				log.WithError(err).Warn("failed to shutdown tracing")
			}
		}()
	}

	if err := a.dispatch(ctx, cmd, rest, opts, stdout); err != nil {
		if errors.Is(err, errUsage) {
			fs.Usage()
			return 2
		}
		fmt.Fprintf(stderr, "taskctl: %v\n", err)
		return 1
	}
	return 0
}
