package drawpad

import (
	"context"
	"encoding/json"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/tphakala/drawpad/internal/drawing"
	"github.com/tphakala/drawpad/internal/logger"
)

// manualClock fires timers only when Advance moves time past them
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Time
	f       func()
	done    bool
	stopped bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves time forward and runs due callbacks on the calling goroutine
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.done && !t.stopped && !t.at.After(c.now) {
			t.done = true
			due = append(due, t)
		}
	}
	c.timers = slices.DeleteFunc(c.timers, func(t *manualTimer) bool { return t.done || t.stopped })
	c.mu.Unlock()

	slices.SortStableFunc(due, func(a, b *manualTimer) int { return a.at.Compare(b.at) })
	for _, t := range due {
		t.f()
	}
}

// Pending counts timers that have neither fired nor been stopped
func (c *manualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done && !t.stopped {
			n++
		}
	}
	return n
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

type saveCall struct {
	path string
	doc  *drawing.Document
}

// fakeStore records saves; hooks replace the default behavior
type fakeStore struct {
	mu    sync.Mutex
	saves []saveCall
	loads []string

	saveHook func(ctx context.Context, path string) error
	loadHook func(ctx context.Context, path string) (*drawing.Document, error)
}

func (s *fakeStore) Save(ctx context.Context, path string, doc *drawing.Document) error {
	s.mu.Lock()
	s.saves = append(s.saves, saveCall{path: path, doc: doc})
	hook := s.saveHook
	s.mu.Unlock()
	if hook != nil {
		return hook(ctx, path)
	}
	return nil
}

func (s *fakeStore) Load(ctx context.Context, path string) (*drawing.Document, error) {
	s.mu.Lock()
	s.loads = append(s.loads, path)
	hook := s.loadHook
	s.mu.Unlock()
	if hook != nil {
		return hook(ctx, path)
	}
	return drawing.Blank(), nil
}

func (s *fakeStore) SaveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

func (s *fakeStore) LastSave() saveCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[len(s.saves)-1]
}

// blockingSave makes saves wait until release is closed. entered receives
// once per save that started.
func blockingSave(entered chan<- struct{}, release <-chan struct{}, err error) func(context.Context, string) error {
	return func(ctx context.Context, _ string) error {
		entered <- struct{}{}
		select {
		case <-release:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

type staticCanvas struct {
	scene Scene
}

func (c staticCanvas) Scene() (Scene, error) { return c.scene, nil }

// deletedCanvas hides soft-deleted elements from Scene
type deletedCanvas struct {
	visible Scene
	all     Scene
}

func (c deletedCanvas) Scene() (Scene, error)                 { return c.visible, nil }
func (c deletedCanvas) SceneIncludingDeleted() (Scene, error) { return c.all, nil }

func sampleScene() Scene {
	return Scene{
		Elements: []json.RawMessage{json.RawMessage(`{"id":"1","type":"rectangle"}`)},
		AppState: map[string]any{"viewBackgroundColor": "#fafafa", "collaborators": Collaborators{"peer": map[string]any{}}},
		Files:    map[string]json.RawMessage{},
	}
}

func quietLogger() logger.Logger {
	return logger.NewWriterLogger(io.Discard, logger.LogLevelError).Module("drawpad")
}

// newTestCoordinator returns a coordinator on a manual clock with /x.excalidraw
// loaded and a canvas attached
func newTestCoordinator(t *testing.T, store *fakeStore, opts ...Option) (*Coordinator, *manualClock) {
	t.Helper()

	clock := newManualClock()
	opts = append([]Option{WithClock(clock), WithLogger(quietLogger())}, opts...)
	c := New(store, opts...)
	t.Cleanup(func() { _ = c.Close() })

	if _, err := c.Load(t.Context(), "/x.excalidraw"); err != nil {
		t.Fatalf("load: %v", err)
	}
	c.Attach(staticCanvas{scene: sampleScene()})
	return c, clock
}

// stateRecorder collects every published state
type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) listen(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s.State)
}

func (r *stateRecorder) States() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.states)
}
