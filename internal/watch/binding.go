package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/spachava753/assetpipe/internal/graph"
	"github.com/spachava753/assetpipe/internal/models"
)

// State is a binding's position in its Idle -> Running -> Idle cycle.
type State int32

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Binding re-runs one task whenever its patterns change. Events are
// handled one at a time, so a task never overlaps itself.
type Binding struct {
	ID       string
	Patterns []string
	Task     graph.Executable

	state    atomic.Int32
	runs     atomic.Int64
	failures atomic.Int64
}

// NewBinding creates an idle binding.
func NewBinding(id string, patterns []string, task graph.Executable) *Binding {
	return &Binding{ID: id, Patterns: patterns, Task: task}
}

// State returns the current state.
func (b *Binding) State() State { return State(b.state.Load()) }

// Runs returns how many times the task was triggered.
func (b *Binding) Runs() int64 { return b.runs.Load() }

// Failures returns how many triggered runs failed.
func (b *Binding) Failures() int64 { return b.failures.Load() }

// Serve handles events until the channel closes or ctx is done. A failed
// run is logged and the binding returns to Idle for the next change.
func (b *Binding) Serve(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			b.trigger(ctx, ev)
		}
	}
}

func (b *Binding) trigger(ctx context.Context, ev Event) {
	b.state.Store(int32(Running))
	defer b.state.Store(int32(Idle))

	b.runs.Add(1)
	slog.Info("change detected", "task", b.ID, "file", ev.Path, "op", ev.Op)
	if err := b.Task.Run(ctx, models.Development); err != nil {
		b.failures.Add(1)
		slog.Error("watch rebuild failed", "task", b.ID, "error", err)
	}
}

// Starter is the live-reload listener started with the first watch.
type Starter interface {
	Start(ctx context.Context) error
}

// Watcher is the executable behind the "watch" task: it starts the
// live-reload listener, subscribes every binding, and serves events until
// its context ends.
type Watcher struct {
	Service  Service
	Reload   Starter
	Bindings []*Binding

	startOnce sync.Once
	startErr  error
	ready     chan struct{}
	readyOnce sync.Once
	closeOnce sync.Once
}

// NewWatcher creates a watcher over bindings.
func NewWatcher(service Service, reload Starter, bindings []*Binding) *Watcher {
	return &Watcher{Service: service, Reload: reload, Bindings: bindings}
}

// Ready is closed once every binding is subscribed.
func (w *Watcher) Ready() <-chan struct{} {
	w.readyOnce.Do(func() { w.ready = make(chan struct{}) })
	return w.ready
}

// Run blocks until ctx is done. Rebuild failures never end it.
func (w *Watcher) Run(ctx context.Context, _ models.RunMode) error {
	if w.Reload != nil {
		w.startOnce.Do(func() { w.startErr = w.Reload.Start(ctx) })
		if w.startErr != nil {
			return w.startErr
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, b := range w.Bindings {
		events, err := w.Service.Subscribe(ctx, b.Patterns)
		if err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("subscribing %s: %w", b.ID, err)
		}
		slog.Debug("watching", "task", b.ID, "patterns", b.Patterns)
		wg.Go(func() { b.Serve(ctx, events) })
	}
	w.closeOnce.Do(func() { w.Ready(); close(w.ready) })

	slog.Info("watching for changes", "bindings", len(w.Bindings))
	<-ctx.Done()
	wg.Wait()
	return nil
}
