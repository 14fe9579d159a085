package events

import "sync"

// Latest is a latest-value broadcast channel. Subscribers receive the current
// value on subscription and every value published afterwards, in publish order.
type Latest[T any] struct {
	mu     sync.Mutex
	value  T
	subs   map[int64]func(T)
	nextID int64
	// serializes delivery so subscribers never observe values out of order
	deliver sync.Mutex
}

// NewLatest constructs a channel holding initial.
func NewLatest[T any](initial T) *Latest[T] {
	return &Latest[T]{value: initial, subs: make(map[int64]func(T))}
}

// Get returns the current value.
func (l *Latest[T]) Get() T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value
}

// Publish stores v and delivers it to every subscriber synchronously.
func (l *Latest[T]) Publish(v T) {
	l.deliver.Lock()
	defer l.deliver.Unlock()

	l.mu.Lock()
	l.value = v
	handlers := l.snapshotLocked()
	l.mu.Unlock()

	for _, fn := range handlers {
		fn(v)
	}
}

// Update applies fn to the current value and publishes the result atomically
// with respect to other Update/Publish calls.
func (l *Latest[T]) Update(fn func(T) T) T {
	l.deliver.Lock()
	defer l.deliver.Unlock()

	l.mu.Lock()
	next := fn(l.value)
	l.value = next
	handlers := l.snapshotLocked()
	l.mu.Unlock()

	for _, h := range handlers {
		h(next)
	}
	return next
}

// Recompute is Update for derived values: fn returns the next value and
// whether it differs from the current one. Nothing is delivered when it
// does not.
func (l *Latest[T]) Recompute(fn func(T) (T, bool)) {
	l.deliver.Lock()
	defer l.deliver.Unlock()

	l.mu.Lock()
	next, changed := fn(l.value)
	if !changed {
		l.mu.Unlock()
		return
	}
	l.value = next
	handlers := l.snapshotLocked()
	l.mu.Unlock()

	for _, h := range handlers {
		h(next)
	}
}

// Subscribe registers fn and immediately calls it with the current value.
// The returned function releases the subscription; calling it more than once
// is a no-op.
func (l *Latest[T]) Subscribe(fn func(T)) func() {
	l.deliver.Lock()
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.subs[id] = fn
	current := l.value
	l.mu.Unlock()
	fn(current)
	l.deliver.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
		})
	}
}

// Subscribers reports the number of live subscriptions.
func (l *Latest[T]) Subscribers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

func (l *Latest[T]) snapshotLocked() []func(T) {
	if len(l.subs) == 0 {
		return nil
	}
	out := make([]func(T), 0, len(l.subs))
	for _, fn := range l.subs {
		out = append(out, fn)
	}
	return out
}
