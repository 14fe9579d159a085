package storage

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"taskboard-go/internal/config"
)

// Open builds, initializes and instruments the configured backend. When the
// primary backend cannot be initialized it falls back to the file backend so
// a session can still be persisted.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	backend, err := build(ctx, cfg, cfg.Storage.Backend)
	if err != nil && cfg.Storage.Backend != "file" && cfg.Storage.Backend != "memory" {
		log.WithError(err).WithField("backend", cfg.Storage.Backend).
			Warn("Primary storage backend initialization failed; attempting fallback to file backend")
		backend, err = build(ctx, cfg, "file")
		if err == nil {
			log.WithFields(log.Fields{
				"original_backend": cfg.Storage.Backend,
				"fallback_backend": "file",
			}).Info("Successfully fell back to file storage backend")
		}
	}
	if err != nil {
		return nil, err
	}
	return backend, nil
}

func build(ctx context.Context, cfg *config.Config, kind string) (Backend, error) {
	sc := cfg.Storage
	var backend Backend
	switch kind {
	case "memory":
		backend = NewMemoryBackend()
	case "file", "":
		backend = NewFileBackend(sc.BaseDir)
	case "redis":
		backend = NewRedisBackend(sc.RedisAddr, sc.RedisPassword, sc.RedisDB, sc.RedisPrefix)
	case "postgres":
		pg, err := NewPostgresBackend(sc.PostgresDSN)
		if err != nil {
			return nil, err
		}
		backend = pg
	case "mongodb":
		backend = NewMongoDBBackend(sc.MongoURI, sc.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}

	if err := backend.Initialize(ctx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("initialize %s backend: %w", backend.Name(), err)
	}

	if sc.EncryptionKey != "" {
		sealed, err := NewSealedBackend(backend, sc.EncryptionKey)
		if err != nil {
			_ = backend.Close()
			return nil, err
		}
		backend = sealed
	}
	return WithNamespace(WithInstrumentation(backend), sc.SessionKey), nil
}
