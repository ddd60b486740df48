// Package watch maps filesystem changes back onto the tasks that build
// the changed files.
//
// Service is the change-event source. FSService implements it with
// fsnotify, watching the static base directory of every subscribed glob
// recursively and coalescing bursts of events per subscription. Binding
// ties one subscription to one task.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spachava753/assetpipe/internal/util"
)

// ErrServiceClosed is returned by Subscribe after Close.
var ErrServiceClosed = errors.New("watch service is closed")

// Op is the kind of change observed.
type Op uint32

const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// Event is a change to one file, relative to the watched root.
type Event struct {
	Path      string
	Op        Op
	Timestamp time.Time
}

// Service delivers change events for files matching a pattern list. The
// returned channel is closed when ctx is done or the service closes.
type Service interface {
	Subscribe(ctx context.Context, patterns []string) (<-chan Event, error)
}

// FSService is a Service backed by fsnotify.
type FSService struct {
	root  string
	delay time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	dirs    map[string]bool
	subs    map[*subscription]struct{}
	closed  bool
	done    chan struct{}
	loopWg  sync.WaitGroup
}

// NewFSService watches files under root. Bursts of events for one
// subscription within delay are delivered as a single event.
func NewFSService(root string, delay time.Duration) (*FSService, error) {
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	s := &FSService{
		root:    root,
		delay:   delay,
		watcher: fsw,
		dirs:    make(map[string]bool),
		subs:    make(map[*subscription]struct{}),
		done:    make(chan struct{}),
	}
	s.loopWg.Add(1)
	go s.processLoop()
	return s, nil
}

// Subscribe starts delivering events for patterns, which are relative to
// the service root.
func (s *FSService) Subscribe(ctx context.Context, patterns []string) (<-chan Event, error) {
	matcher, err := util.NewMatcher(patterns)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrServiceClosed
	}

	for _, base := range matcher.Bases() {
		if err := s.watchRecursive(filepath.Join(s.root, filepath.FromSlash(base))); err != nil {
			return nil, err
		}
	}

	sub := &subscription{
		matcher: matcher,
		delay:   s.delay,
		out:     make(chan Event, 1),
	}
	s.subs[sub] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
		sub.close()
	}()

	return sub.out, nil
}

// Close stops the service and closes every subscription.
func (s *FSService) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	err := s.watcher.Close()
	s.loopWg.Wait()
	return err
}

// WatchedDirs returns the number of directories registered with fsnotify.
func (s *FSService) WatchedDirs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirs)
}

// watchRecursive registers dir and every directory below it. A base that
// does not exist yet is skipped; it is picked up when its parent sees it
// created. Callers hold s.mu.
func (s *FSService) watchRecursive(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("watch base does not exist", "dir", dir)
			return nil
		}
		return err
	}
	if !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if s.dirs[p] {
			return nil
		}
		if err := s.watcher.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		s.dirs[p] = true
		return nil
	})
}

func (s *FSService) processLoop() {
	defer s.loopWg.Done()
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handle(ev)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("watch error", "error", err)
		}
	}
}

func (s *FSService) handle(ev fsnotify.Event) {
	op := convertOp(ev.Op)
	if op == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if op == OpCreate {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := s.watchRecursive(ev.Name); err != nil {
				slog.Warn("watching new directory", "dir", ev.Name, "error", err)
			}
			return
		}
	}

	rel, err := filepath.Rel(s.root, ev.Name)
	if err != nil {
		return
	}
	event := Event{Path: filepath.ToSlash(rel), Op: op, Timestamp: time.Now()}
	for sub := range s.subs {
		if sub.matcher.Match(event.Path) {
			sub.trigger(event)
		}
	}
}

func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	return op
}

// subscription debounces events for one pattern list: the last event of a
// burst is delivered once the burst has been quiet for delay.
type subscription struct {
	matcher *util.Matcher
	delay   time.Duration

	mu      sync.Mutex
	pending *Event
	timer   *time.Timer
	closed  bool
	out     chan Event
}

func (s *subscription) trigger(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = &ev
	if s.timer == nil {
		s.timer = time.AfterFunc(s.delay, s.flush)
		return
	}
	s.timer.Reset(s.delay)
}

func (s *subscription) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.pending == nil {
		return
	}
	select {
	case s.out <- *s.pending:
	default:
		// A delivery is already queued; the run it triggers sees this change too.
	}
	s.pending = nil
}

func (s *subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	close(s.out)
}
