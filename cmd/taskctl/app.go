package main

import (
	"context"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"taskboard-go/internal/config"
	"taskboard-go/internal/constants"
	"taskboard-go/internal/credential"
	"taskboard-go/internal/events"
	"taskboard-go/internal/loading"
	"taskboard-go/internal/logging"
	"taskboard-go/internal/poller"
	"taskboard-go/internal/session"
	"taskboard-go/internal/storage"
	"taskboard-go/internal/upstream"
)

// app is the wired client: one session, one store, one pipeline.
type app struct {
	manager *config.ConfigManager
	hub     *events.Hub
	session *session.Broadcaster
	backend storage.Backend
	store   *credential.Store
	client  *upstream.Client
	poller  *poller.Poller
}

func newApp(ctx context.Context, opts options, stderr io.Writer) (*app, error) {
	manager, err := config.NewConfigManager(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	cfg := manager.GetConfig()
	if opts.debug {
		cfg.Security.Debug = true
	}
	cfg.ExpandPaths()
	if err := logging.SetupWithOutput(cfg, stderr); err != nil {
		manager.Close()
		return nil, fmt.Errorf("configure logging: %w", err)
	}

	a := &app{manager: manager, hub: events.NewHub()}
	manager.SetEventPublisher(a.hub)

	openCtx, cancel := context.WithTimeout(ctx, constants.StorageTimeout)
	defer cancel()
	a.backend, err = storage.Open(openCtx, cfg)
	if err != nil {
		manager.Close()
		return nil, fmt.Errorf("open session storage: %w", err)
	}

	a.session = session.NewBroadcaster(a.hub)
	a.store = credential.NewStore(a.backend, a.session)
	if err := a.store.Load(openCtx); err != nil {
		// 存储记录损坏时已被清除，继续以未登录状态运行
		log.WithError(err).Warn("stored session discarded")
	}

	a.client = upstream.New(upstream.Options{
		Config:    cfg,
		Store:     a.store,
		Loading:   loading.NewAggregator(),
		Publisher: a.hub,
	})
	a.poller = poller.New(a.client, a.session, cfg)

	manager.OnChange(func(next *config.Config) {
		next.ExpandPaths()
		if opts.debug {
			next.Security.Debug = true
		}
		a.client.ApplyConfig(next)
		a.poller.ApplyConfig(next)
	})
	a.hub.Subscribe(events.TopicSessionExpired, func(_ context.Context, evt events.Event) {
		log.WithField("topic", evt.Topic).Warn("session expired; sign in again")
	})
	return a, nil
}

func (a *app) close() {
	a.manager.Close()
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			log.WithError(err).Debug("close session storage")
		}
	}
}
