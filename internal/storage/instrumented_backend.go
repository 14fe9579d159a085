package storage

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"taskboard-go/internal/monitoring"
	"taskboard-go/internal/monitoring/tracing"
)

// WithInstrumentation wraps a backend with tracing and metrics instrumentation.
func WithInstrumentation(inner Backend) Backend {
	if inner == nil {
		return nil
	}
	return &instrumentedBackend{Backend: inner, label: inner.Name()}
}

type instrumentedBackend struct {
	Backend
	label string
}

func (i *instrumentedBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var result []byte
	err := i.instrument(ctx, "get", func(ctx context.Context) error {
		var innerErr error
		result, innerErr = i.Backend.Get(ctx, key)
		return innerErr
	})
	return result, err
}

func (i *instrumentedBackend) Set(ctx context.Context, key string, value []byte) error {
	return i.instrument(ctx, "set", func(ctx context.Context) error {
		return i.Backend.Set(ctx, key, value)
	})
}

func (i *instrumentedBackend) Delete(ctx context.Context, keys ...string) error {
	return i.instrument(ctx, "delete", func(ctx context.Context) error {
		return i.Backend.Delete(ctx, keys...)
	})
}

func (i *instrumentedBackend) instrument(ctx context.Context, operation string, fn func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracing.StartSpan(ctx, "storage", i.label+"/"+operation)
	span.SetAttributes(
		attribute.String("storage.backend", i.label),
		attribute.String("storage.operation", operation),
	)
	start := time.Now()
	err := fn(ctx)
	// a missing record is an expected answer, not a failure
	spanErr := err
	if IsNotFound(err) {
		spanErr = nil
	}
	tracing.Finish(span, spanErr)
	monitoring.RecordStorageOperation(i.label, operation, time.Since(start), spanErr)
	return err
}
