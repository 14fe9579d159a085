package events

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLatestSubscribeReceivesCurrentValue(t *testing.T) {
	l := NewLatest(false)
	l.Publish(true)

	var got []bool
	unsubscribe := l.Subscribe(func(v bool) { got = append(got, v) })
	defer unsubscribe()

	require.Equal(t, []bool{true}, got)
	l.Publish(false)
	require.Equal(t, []bool{true, false}, got)
}

func TestLatestUnsubscribeIsIdempotent(t *testing.T) {
	l := NewLatest(0)
	calls := 0
	unsubscribe := l.Subscribe(func(int) { calls++ })
	require.Equal(t, 1, l.Subscribers())

	unsubscribe()
	unsubscribe()
	require.Zero(t, l.Subscribers())

	l.Publish(5)
	require.Equal(t, 1, calls)
	require.Equal(t, 5, l.Get())
}

func TestLatestUpdateIsAtomic(t *testing.T) {
	l := NewLatest(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Update(func(v int) int { return v + 1 })
		}()
	}
	wg.Wait()
	require.Equal(t, 50, l.Get())
}

func TestHubSubscribeAndUnsubscribe(t *testing.T) {
	hub := NewHub()
	var topics []string
	unsubscribe := hub.Subscribe(TopicSessionExpired, func(_ context.Context, evt Event) {
		topics = append(topics, evt.Topic)
	})

	hub.Publish(context.Background(), TopicSessionExpired, nil, nil)
	hub.Publish(context.Background(), TopicConfigUpdated, nil, nil)
	unsubscribe()
	hub.Publish(context.Background(), TopicSessionExpired, nil, nil)

	require.Equal(t, []string{TopicSessionExpired}, topics)
}

func TestLatestRecomputeDeliversOnlyOnChange(t *testing.T) {
	l := NewLatest(0)
	var got []int
	defer l.Subscribe(func(v int) { got = append(got, v) })()

	l.Recompute(func(v int) (int, bool) { return v, false })
	l.Recompute(func(v int) (int, bool) { return v + 2, true })
	l.Recompute(func(v int) (int, bool) { return v, v != 2 })

	require.Equal(t, []int{0, 2}, got)
	require.Equal(t, 2, l.Get())
}

func TestHubDeliversInSubscriptionOrderAndSurvivesPanics(t *testing.T) {
	hub := NewHub()
	var order []int
	hub.Subscribe(TopicRefreshCompleted, func(context.Context, Event) { order = append(order, 1) })
	hub.Subscribe(TopicRefreshCompleted, func(context.Context, Event) { panic("listener bug") })
	third := hub.Subscribe(TopicRefreshCompleted, func(context.Context, Event) { order = append(order, 3) })
	require.Equal(t, 3, hub.Subscribers(TopicRefreshCompleted))

	hub.Publish(context.Background(), TopicRefreshCompleted, nil, nil)
	require.Equal(t, []int{1, 3}, order)

	third()
	third()
	require.Equal(t, 2, hub.Subscribers(TopicRefreshCompleted))
	hub.Publish(context.Background(), TopicRefreshCompleted, nil, nil)
	require.Equal(t, []int{1, 3, 1}, order)
}
