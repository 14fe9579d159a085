package loading

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(ch interface{ Subscribe(func(bool)) func() }) (*[]bool, *sync.Mutex, func()) {
	var mu sync.Mutex
	var seen []bool
	stop := ch.Subscribe(func(v bool) {
		mu.Lock()
		seen = append(seen, v)
		mu.Unlock()
	})
	return &seen, &mu, stop
}

func TestAggregatorIndependentCategories(t *testing.T) {
	a := NewAggregator()
	global, gmu, stop := collect(a.Loading())
	defer stop()

	endTasks := a.Start("tasks")
	endProjects := a.Start("projects")
	endNotifications := a.Start("notifications")

	assert.Equal(t, 1, a.Count("tasks"))
	assert.Equal(t, 1, a.Count("projects"))
	assert.Equal(t, 1, a.Count("notifications"))
	assert.True(t, a.Category("tasks").Get())
	assert.True(t, a.Loading().Get())

	endProjects()
	assert.False(t, a.Category("projects").Get())
	assert.True(t, a.Loading().Get())
	endTasks()
	assert.True(t, a.Loading().Get())
	endNotifications()
	assert.False(t, a.Loading().Get())
	assert.Equal(t, 0, a.Total())

	gmu.Lock()
	assert.Equal(t, []bool{false, true, false}, *global, "global flag flips once each way")
	gmu.Unlock()
}

func TestAggregatorReleaseIsIdempotent(t *testing.T) {
	a := NewAggregator()
	release := a.Start("tasks")
	other := a.Start("tasks")
	release()
	release()
	assert.Equal(t, 1, a.Count("tasks"))
	other()
	assert.Equal(t, 0, a.Total())
}

func TestAggregatorBalancesUnderConcurrency(t *testing.T) {
	a := NewAggregator()
	categories := []string{"tasks", "projects", "auth", "notifications"}

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(i%3)*time.Millisecond)
			defer cancel()
			release := a.Start(categories[i%len(categories)])
			defer release()
			<-ctx.Done()
			if i%5 == 0 {
				panicSafe(func() { panic("boom") })
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 0, a.Total())
	assert.False(t, a.Loading().Get())
	for _, c := range categories {
		assert.False(t, a.Category(c).Get(), c)
	}
}

func panicSafe(fn func()) {
	defer func() { _ = recover() }()
	fn()
}
