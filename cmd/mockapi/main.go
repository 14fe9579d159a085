package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"taskboard-go/internal/config"
	"taskboard-go/internal/constants"
	"taskboard-go/internal/logging"
	"taskboard-go/internal/mockapi"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	listen := flag.String("listen", "", "Listen address (overrides mock.listen)")
	debug := flag.Bool("debug", false, "Enable debug mode")
	demoEmail := flag.String("demo-email", "demo@taskboard.local", "Seeded demo account email")
	demoPassword := flag.String("demo-password", "demo", "Seeded demo account password")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if *debug {
		cfg.Security.Debug = true
	}
	cfg.ExpandPaths()
	if err := logging.Setup(cfg); err != nil {
		log.WithError(err).Fatal("failed to configure logging")
	}
	if !cfg.Security.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	addr := cfg.Mock.Listen
	if *listen != "" {
		addr = *listen
	}

	mock := mockapi.New(mockapi.OptionsFromConfig(cfg.Mock))
	if *demoEmail != "" {
		if _, err := mock.AddUser(*demoEmail, "Demo User", *demoPassword, "member"); err != nil {
			log.WithError(err).Fatal("failed to seed demo user")
		}
		log.WithField("email", *demoEmail).Info("demo account ready")
	}

	srv := &http.Server{Addr: addr, Handler: mock.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Infof("mock taskboard API listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("mock api server: %v", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), constants.ServerShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("graceful shutdown incomplete")
	}
	log.Info("Server stopped")
}
