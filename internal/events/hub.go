package events

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Topics published by the client.
const (
	TopicConfigUpdated    = "config.updated"
	TopicSessionChanged   = "session.changed"
	TopicSessionExpired   = "session.expired"
	TopicRefreshCompleted = "refresh.completed"
)

// Event is one message on the hub.
type Event struct {
	Topic     string            `json:"topic"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   any               `json:"payload,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Handler processes an incoming event.
type Handler func(context.Context, Event)

// Publisher exposes the ability to publish events to the hub.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any, metadata map[string]string)
}

// Subscriber exposes subscription capabilities.
type Subscriber interface {
	Subscribe(topic string, handler Handler) func()
}

type subscription struct {
	id      int64
	handler Handler
}

// Hub is an in-process pub/sub bus. Delivery is synchronous, in
// subscription order; a panicking handler is logged and skipped so the
// publisher (often the refresh coordinator) is never torn down by a
// listener.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	nextID int64
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string][]subscription)}
}

// Subscribe registers handler for topic. The returned function removes it;
// calling it twice is harmless.
func (h *Hub) Subscribe(topic string, handler Handler) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[topic] = append(h.subs[topic], subscription{id: id, handler: handler})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(topic, id) })
	}
}

func (h *Hub) remove(topic string, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.subs[topic]
	for i, s := range list {
		if s.id != id {
			continue
		}
		next := make([]subscription, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(h.subs, topic)
		} else {
			h.subs[topic] = next
		}
		return
	}
}

// Subscribers returns how many handlers listen on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}

// Publish delivers an event to every current subscriber of topic.
func (h *Hub) Publish(ctx context.Context, topic string, payload any, metadata map[string]string) {
	h.mu.RLock()
	// slices are replaced, never mutated in place, so sharing is safe
	list := h.subs[topic]
	h.mu.RUnlock()
	if len(list) == 0 {
		return
	}

	event := Event{
		Topic:     topic,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
		Metadata:  metadata,
	}
	for _, s := range list {
		deliver(ctx, s.handler, event)
	}
}

func deliver(ctx context.Context, handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{"topic": event.Topic, "panic": r}).Error("event handler panicked")
		}
	}()
	handler(ctx, event)
}
