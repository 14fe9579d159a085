package loading

import (
	"sync"

	"taskboard-go/internal/events"
	"taskboard-go/internal/monitoring"
)

// Aggregator counts outstanding requests per resource category and exposes
// "is loading" channels, globally and per category.
type Aggregator struct {
	mu         sync.Mutex
	counts     map[string]int
	total      int
	global     *events.Latest[bool]
	categories map[string]*events.Latest[bool]
}

// NewAggregator returns an idle aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		counts:     make(map[string]int),
		global:     events.NewLatest(false),
		categories: make(map[string]*events.Latest[bool]),
	}
}

// Start records one outstanding request of category and returns the
// function that ends it. The release function is safe to call more than
// once; only the first call counts, so callers can simply defer it.
func (a *Aggregator) Start(category string) (release func()) {
	a.mu.Lock()
	a.counts[category]++
	a.total++
	ch := a.channelLocked(category)
	a.mu.Unlock()

	monitoring.InFlight.WithLabelValues(category).Inc()
	a.emit(category, ch)

	var once sync.Once
	return func() {
		once.Do(func() { a.end(category) })
	}
}

func (a *Aggregator) end(category string) {
	a.mu.Lock()
	if a.counts[category] == 0 {
		a.mu.Unlock()
		return
	}
	a.counts[category]--
	a.total--
	if a.counts[category] == 0 {
		delete(a.counts, category)
	}
	ch := a.channelLocked(category)
	a.mu.Unlock()

	monitoring.InFlight.WithLabelValues(category).Dec()
	a.emit(category, ch)
}

// emit re-derives the flags from the counters at delivery time, so racing
// Start/end calls can never leave a channel showing a stale value.
func (a *Aggregator) emit(category string, ch *events.Latest[bool]) {
	ch.Recompute(func(prev bool) (bool, bool) {
		busy := a.Count(category) > 0
		return busy, busy != prev
	})
	a.global.Recompute(func(prev bool) (bool, bool) {
		busy := a.Total() > 0
		return busy, busy != prev
	})
}

// Loading is the global "any request outstanding" channel.
func (a *Aggregator) Loading() *events.Latest[bool] { return a.global }

// Category returns the channel for one category; it exists as soon as it is
// asked for.
func (a *Aggregator) Category(category string) *events.Latest[bool] {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.channelLocked(category)
}

// Count reports outstanding requests of category.
func (a *Aggregator) Count(category string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts[category]
}

// Total reports all outstanding requests.
func (a *Aggregator) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

func (a *Aggregator) channelLocked(category string) *events.Latest[bool] {
	ch, ok := a.categories[category]
	if !ok {
		ch = events.NewLatest(false)
		a.categories[category] = ch
	}
	return ch
}
