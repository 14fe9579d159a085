package storage

import "context"

// WithNamespace prefixes every key with ns and a dot, so several session
// profiles can share one backend.
func WithNamespace(inner Backend, ns string) Backend {
	if ns == "" {
		return inner
	}
	return &namespacedBackend{Backend: inner, prefix: ns + "."}
}

type namespacedBackend struct {
	Backend
	prefix string
}

func (n *namespacedBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := n.Backend.Get(ctx, n.prefix+key)
	if IsNotFound(err) {
		return nil, &ErrNotFound{Key: key}
	}
	return data, err
}

func (n *namespacedBackend) Set(ctx context.Context, key string, value []byte) error {
	return n.Backend.Set(ctx, n.prefix+key, value)
}

func (n *namespacedBackend) Delete(ctx context.Context, keys ...string) error {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = n.prefix + k
	}
	return n.Backend.Delete(ctx, full...)
}
