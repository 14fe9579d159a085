package background

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Status is the lifecycle state of a worker.
type Status string

const (
	StatusRunning  Status = "running"
	StatusStopped  Status = "stopped"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Func is the body of a long-running worker. It must return once ctx is done.
type Func func(ctx context.Context) error

// Snapshot is a copy of a worker's state.
type Snapshot struct {
	Name      string
	StartedAt time.Time
	Status    Status
	Err       error
}

// Stats counts workers per status.
type Stats struct {
	Total    int `json:"total"`
	Running  int `json:"running"`
	Stopped  int `json:"stopped"`
	Failed   int `json:"failed"`
	Canceled int `json:"canceled"`
}

type worker struct {
	Snapshot
	cancel context.CancelFunc
}

// Group runs the client's background workers (notification poller, config
// watcher bridge) and stops them together.
type Group struct {
	mu      sync.RWMutex
	workers map[string]*worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewGroup derives a cancellable group from ctx.
func NewGroup(ctx context.Context) *Group {
	ctx, cancel := context.WithCancel(ctx)
	return &Group{workers: make(map[string]*worker), ctx: ctx, cancel: cancel}
}

// Start launches fn under name. Names are unique for the group's lifetime.
func (g *Group) Start(name string, fn Func) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.workers[name]; exists {
		return fmt.Errorf("worker %s already exists", name)
	}
	if g.ctx.Err() != nil {
		return fmt.Errorf("worker group is shut down")
	}

	ctx, cancel := context.WithCancel(g.ctx)
	w := &worker{Snapshot: Snapshot{Name: name, StartedAt: time.Now(), Status: StatusRunning}, cancel: cancel}
	g.workers[name] = w

	g.wg.Add(1)
	go g.run(ctx, w, fn)
	return nil
}

func (g *Group) run(ctx context.Context, w *worker, fn Func) {
	defer g.wg.Done()
	defer w.cancel()
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{"worker": w.Name, "panic": r}).Error("background worker panicked")
			g.finish(w, StatusFailed, fmt.Errorf("panic: %v", r))
		}
	}()

	log.WithField("worker", w.Name).Debug("background worker started")
	err := fn(ctx)
	switch {
	case err == nil:
		g.finish(w, StatusStopped, nil)
		log.WithField("worker", w.Name).Debug("background worker stopped")
	case ctx.Err() != nil && errors.Is(err, context.Canceled):
		g.finish(w, StatusCanceled, nil)
	default:
		g.finish(w, StatusFailed, err)
		log.WithFields(log.Fields{"worker": w.Name, "error": err}).Error("background worker failed")
	}
}

func (g *Group) finish(w *worker, status Status, err error) {
	g.mu.Lock()
	w.Status, w.Err = status, err
	g.mu.Unlock()
}

// Stop cancels one running worker.
func (g *Group) Stop(name string) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	w, ok := g.workers[name]
	if !ok {
		return fmt.Errorf("worker %s not found", name)
	}
	if w.Status != StatusRunning {
		return fmt.Errorf("worker %s is not running", name)
	}
	w.cancel()
	return nil
}

// Shutdown cancels every worker and waits for them, at most until ctx ends.
func (g *Group) Shutdown(ctx context.Context) error {
	g.cancel()
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("background workers still running: %w", ctx.Err())
	}
}

// Wait blocks until every worker has returned.
func (g *Group) Wait() { g.wg.Wait() }

// Get returns a copy of one worker's state.
func (g *Group) Get(name string) (Snapshot, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	w, ok := g.workers[name]
	if !ok {
		return Snapshot{}, false
	}
	return w.Snapshot, true
}

// List returns all workers sorted by name.
func (g *Group) List() []Snapshot {
	g.mu.RLock()
	out := make([]Snapshot, 0, len(g.workers))
	for _, w := range g.workers {
		out = append(out, w.Snapshot)
	}
	g.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Stats counts workers by status.
func (g *Group) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s := Stats{Total: len(g.workers)}
	for _, w := range g.workers {
		switch w.Status {
		case StatusRunning:
			s.Running++
		case StatusStopped:
			s.Stopped++
		case StatusFailed:
			s.Failed++
		case StatusCanceled:
			s.Canceled++
		}
	}
	return s
}
