// Package drawpad is the editor-side half of drawpad: the save coordinator
// that tracks unsaved changes and autosaves them, and the sanitizer applied
// to documents before they reach the canvas.
package drawpad

import (
	"context"
	"encoding/json"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/tphakala/drawpad/internal/drawing"
	"github.com/tphakala/drawpad/internal/errors"
	"github.com/tphakala/drawpad/internal/logger"
	"github.com/tphakala/drawpad/internal/observability/metrics"
)

const (
	// DefaultDebounce is the autosave delay after the last canvas change.
	DefaultDebounce = 10 * time.Second
	// DefaultSavedDisplay is how long the saved state shows before reverting to idle.
	DefaultSavedDisplay = 2 * time.Second
)

const (
	triggerManual   = metrics.TriggerManual
	triggerKeyboard = metrics.TriggerKeyboard
	triggerDebounce = metrics.TriggerDebounce
)

// State is the save state of the open document.
type State int

const (
	StateIdle State = iota
	StateDirty
	StateSaving
	StateSaved
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDirty:
		return "dirty"
	case StateSaving:
		return "saving"
	case StateSaved:
		return "saved"
	default:
		return "unknown"
	}
}

var (
	// ErrSaveInFlight is returned when a save is requested while another is running.
	ErrSaveInFlight = errors.Newf("save already in progress").
			Component("drawpad").
			Category(errors.CategoryLimit).
			Build()
	// ErrNoCanvas is returned by a save with no canvas attached.
	ErrNoCanvas = errors.Newf("no canvas attached").
			Component("drawpad").
			Category(errors.CategoryState).
			Build()
	// ErrNoDocument is returned by a save before any document was loaded.
	ErrNoDocument = errors.Newf("no document open").
			Component("drawpad").
			Category(errors.CategoryNotFound).
			Build()
	// ErrStaleLoad is returned by a load superseded by a later load or path change.
	ErrStaleLoad = errors.Newf("load superseded by a newer request").
			Component("drawpad").
			Category(errors.CategoryCancellation).
			Build()
	// ErrClosed is returned after Close.
	ErrClosed = errors.Newf("coordinator closed").
			Component("drawpad").
			Category(errors.CategoryGeneric).
			Build()
)

// Status is a snapshot of the coordinator published to listeners.
type Status struct {
	State State
	// Error is the message of the last failed load or save, empty after success.
	Error string
	Path  string
}

// Listener receives status snapshots. It is called without the
// coordinator's lock held and may call back into the coordinator.
type Listener func(Status)

// Scene is the canvas content captured for a save.
type Scene struct {
	Elements []json.RawMessage
	AppState map[string]any
	Files    map[string]json.RawMessage
}

// Canvas is the drawing surface the coordinator snapshots.
type Canvas interface {
	Scene() (Scene, error)
}

// DeletedAwareCanvas is a Canvas that hides soft-deleted elements from
// Scene. Saves use SceneIncludingDeleted so deletions are persisted.
type DeletedAwareCanvas interface {
	Canvas
	SceneIncludingDeleted() (Scene, error)
}

// Store loads and saves documents; storeclient.Client implements it.
type Store interface {
	Load(ctx context.Context, path string) (*drawing.Document, error)
	Save(ctx context.Context, path string, doc *drawing.Document) error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces the real clock, mainly for tests.
func WithClock(clock Clock) Option {
	return func(c *Coordinator) {
		c.clock = clock
	}
}

// WithDebounce sets the autosave delay. Non-positive values keep the default.
func WithDebounce(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithSavedDisplay sets how long StateSaved lasts. Non-positive values keep the default.
func WithSavedDisplay(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.savedDisplay = d
		}
	}
}

// WithMetrics records save and load outcomes.
func WithMetrics(m *metrics.SaveMetrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Coordinator) {
		c.log = l
	}
}

// Coordinator owns the save state of one open document. It is safe for
// concurrent use: canvas notifications, key events and timer callbacks may
// arrive on different goroutines.
type Coordinator struct {
	store        Store
	clock        Clock
	debounce     time.Duration
	savedDisplay time.Duration
	metrics      *metrics.SaveMetrics
	log          logger.Logger

	// ctx is used by timer and key triggered saves. Close cancels it after
	// those saves have returned.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
	canvas Canvas
	path   string
	state  State
	errMsg string

	// pathGen changes with the open path; saves started for an older
	// path do not touch state. loadGen changes with every load.
	pathGen uint64
	loadGen uint64
	initial *drawing.Document

	saveSeq          uint64
	inFlight         uint64        // id of the running save, 0 when none
	saveDone         chan struct{} // closed when the running save finishes
	editedDuringSave bool

	// at most one of each timer is pending; the seq values invalidate
	// callbacks whose timer was replaced
	debounceTimer Timer
	debounceSeq   uint64
	savedTimer    Timer
	savedSeq      uint64

	listeners  map[int]Listener
	listenerID int
}

// New creates a coordinator saving through store. It starts idle with no
// document open and no canvas attached.
func New(store Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:        store,
		clock:        RealClock(),
		debounce:     DefaultDebounce,
		savedDisplay: DefaultSavedDisplay,
		listeners:    make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Global().Module("drawpad")
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Attach sets the canvas saves snapshot from.
func (c *Coordinator) Attach(canvas Canvas) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.canvas = canvas
}

// Detach removes the canvas; later saves fail with ErrNoCanvas.
func (c *Coordinator) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.canvas = nil
}

// OnStatus registers l for every status change and returns a function
// that unregisters it.
func (c *Coordinator) OnStatus(l Listener) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listenerID++
	id := c.listenerID
	c.listeners[id] = l
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Status returns the current status.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Path returns the open document path, empty before the first Load.
func (c *Coordinator) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// InitialData returns the sanitized document of the last successful load,
// or nil if the last load failed or none happened yet.
func (c *Coordinator) InitialData() *drawing.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initial.Clone()
}

// OnCanvasChange marks the document dirty and restarts the autosave timer.
func (c *Coordinator) OnCanvasChange() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = StateDirty
	if c.inFlight != 0 {
		c.editedDuringSave = true
	}
	if c.stopDebounceLocked() && c.metrics != nil {
		c.metrics.RecordDebounceReset()
	}
	c.scheduleDebounceLocked()
	n := c.snapshotLocked()
	c.mu.Unlock()

	n.notify()
}

// Save saves the attached canvas to the open path.
func (c *Coordinator) Save(ctx context.Context) error {
	return c.save(ctx, triggerManual)
}

func (c *Coordinator) save(ctx context.Context, trigger string) error {
	op, err := c.beginSave(trigger, false)
	if err != nil {
		return err
	}
	return c.runSave(ctx, op)
}

// saveOp is a save that has claimed the in-flight slot
type saveOp struct {
	id, gen uint64
	trigger string
	canvas  Canvas
	path    string
	done    chan struct{}
}

// beginSave checks the preconditions and moves to saving. With track set
// the save is counted in wg, so Close waits for it.
func (c *Coordinator) beginSave(trigger string, track bool) (saveOp, error) {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return saveOp{}, ErrClosed
	case c.canvas == nil:
		c.mu.Unlock()
		c.recordSkipped("no_canvas")
		return saveOp{}, ErrNoCanvas
	case c.path == "":
		c.mu.Unlock()
		c.recordSkipped("no_document")
		return saveOp{}, ErrNoDocument
	case c.inFlight != 0:
		c.mu.Unlock()
		c.recordSkipped("in_flight")
		c.log.Debug("Save suppressed, another save is running", logger.String("trigger", trigger))
		return saveOp{}, ErrSaveInFlight
	}

	c.saveSeq++
	op := saveOp{
		id:      c.saveSeq,
		gen:     c.pathGen,
		trigger: trigger,
		canvas:  c.canvas,
		path:    c.path,
		done:    make(chan struct{}),
	}
	c.inFlight = op.id
	c.saveDone = op.done
	c.editedDuringSave = false
	c.state = StateSaving
	c.stopDebounceLocked()
	c.stopSavedLocked()
	if track {
		c.wg.Add(1)
	}

	n := c.snapshotLocked()
	c.mu.Unlock()
	n.notify()
	return op, nil
}

func (c *Coordinator) runSave(ctx context.Context, op saveOp) error {
	start := c.clock.Now()
	err := c.persist(ctx, op.canvas, op.path)
	c.finishSave(op, c.clock.Now().Sub(start), err)
	return err
}

// runTracked runs a save started with beginSave(trigger, true).
func (c *Coordinator) runTracked(op saveOp) {
	defer c.wg.Done()
	_ = c.runSave(c.ctx, op)
}

// Flush waits for a running save to finish and then saves pending edits.
// It returns nil when nothing is left unsaved.
func (c *Coordinator) Flush(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return ErrClosed
		}
		if c.inFlight != 0 {
			done := c.saveDone
			c.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		dirty := c.state == StateDirty
		c.mu.Unlock()

		if !dirty {
			return nil
		}
		op, err := c.beginSave(triggerManual, false)
		if errors.Is(err, ErrSaveInFlight) {
			// an autosave got there first
			continue
		}
		if err != nil {
			return err
		}
		return c.runSave(ctx, op)
	}
}

// persist snapshots the canvas and writes it to path.
func (c *Coordinator) persist(ctx context.Context, canvas Canvas, path string) error {
	var (
		scene Scene
		err   error
	)
	if da, ok := canvas.(DeletedAwareCanvas); ok {
		scene, err = da.SceneIncludingDeleted()
	} else {
		scene, err = canvas.Scene()
	}
	if err != nil {
		return errors.New(err).
			Component("drawpad").
			Category(errors.CategoryState).
			Context("operation", "snapshot_canvas").
			Build()
	}
	return c.store.Save(ctx, path, scene.Document())
}

func (c *Coordinator) finishSave(op saveOp, elapsed time.Duration, err error) {
	defer close(op.done)
	trigger := op.trigger

	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
	}
	if c.metrics != nil {
		c.metrics.RecordSave(trigger, status, elapsed.Seconds())
	}

	c.mu.Lock()
	if c.inFlight == op.id {
		c.inFlight = 0
	}
	if c.closed || op.gen != c.pathGen {
		c.mu.Unlock()
		c.log.Debug("Discarding save result for a document no longer open",
			logger.String("trigger", trigger),
			logger.Error(err))
		return
	}

	if err != nil {
		c.state = StateDirty
		c.errMsg = err.Error()
		path := c.path
		n := c.snapshotLocked()
		c.mu.Unlock()

		c.log.Warn("Save failed",
			logger.String("path", path),
			logger.String("trigger", trigger),
			logger.Error(err))
		n.notify()
		return
	}

	c.errMsg = ""
	if c.editedDuringSave {
		// The pending edits still need saving. If their debounce timer
		// already fired into this save and was suppressed, arm a new one.
		c.state = StateDirty
		if c.debounceTimer == nil {
			c.scheduleDebounceLocked()
		}
	} else {
		c.state = StateSaved
		c.scheduleSavedLocked()
	}
	path := c.path
	n := c.snapshotLocked()
	c.mu.Unlock()

	c.log.Debug("Document saved",
		logger.String("path", path),
		logger.String("trigger", trigger),
		logger.Duration("elapsed", elapsed))
	n.notify()
}

// Load opens path and fetches its document. Opening a different path than
// the current one cancels pending timers and resets the state to idle.
// A load overtaken by a newer Load returns ErrStaleLoad and changes nothing.
func (c *Coordinator) Load(ctx context.Context, path string) (*drawing.Document, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.loadGen++
	gen := c.loadGen
	if path != c.path {
		c.stopDebounceLocked()
		c.stopSavedLocked()
		c.pathGen++
		c.path = path
		c.state = StateIdle
		c.errMsg = ""
		c.initial = nil
		c.inFlight = 0
		c.editedDuringSave = false
	}
	n := c.snapshotLocked()
	c.mu.Unlock()
	n.notify()

	doc, err := c.store.Load(ctx, path)

	c.mu.Lock()
	if c.closed || gen != c.loadGen {
		c.mu.Unlock()
		c.recordLoad("stale")
		c.log.Debug("Discarding stale load", logger.String("path", path))
		return nil, ErrStaleLoad
	}

	if err != nil {
		c.initial = nil
		c.errMsg = err.Error()
		n = c.snapshotLocked()
		c.mu.Unlock()

		c.recordLoad(metrics.StatusError)
		c.log.Warn("Load failed", logger.String("path", path), logger.Error(err))
		n.notify()
		return nil, err
	}

	c.initial = Sanitize(doc)
	c.errMsg = ""
	out := c.initial.Clone()
	n = c.snapshotLocked()
	c.mu.Unlock()

	c.recordLoad(metrics.StatusSuccess)
	c.log.Debug("Document loaded",
		logger.String("path", path),
		logger.Int("elements", len(out.Elements)))
	n.notify()
	return out, nil
}

// Close stops pending timers and waits for running autosaves and keyboard
// saves to complete before cancelling their context. Edits not yet saved
// are not written; call Flush first to keep them. Further calls fail with
// ErrClosed.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.stopDebounceLocked()
	c.stopSavedLocked()
	c.mu.Unlock()

	c.wg.Wait()
	c.cancel()
	return nil
}

// scheduleDebounceLocked arms the autosave timer. The caller has stopped
// any previous one.
func (c *Coordinator) scheduleDebounceLocked() {
	c.debounceSeq++
	seq := c.debounceSeq
	c.wg.Add(1)
	c.debounceTimer = c.clock.AfterFunc(c.debounce, func() {
		defer c.wg.Done()

		c.mu.Lock()
		if c.closed || seq != c.debounceSeq {
			c.mu.Unlock()
			return
		}
		c.debounceTimer = nil
		c.mu.Unlock()

		_ = c.save(c.ctx, triggerDebounce)
	})
}

// stopDebounceLocked reports whether a pending timer was cancelled.
func (c *Coordinator) stopDebounceLocked() bool {
	if c.debounceTimer == nil {
		return false
	}
	c.debounceSeq++
	stopped := c.debounceTimer.Stop()
	if stopped {
		c.wg.Done()
	}
	c.debounceTimer = nil
	return stopped
}

func (c *Coordinator) scheduleSavedLocked() {
	c.savedSeq++
	seq := c.savedSeq
	c.wg.Add(1)
	c.savedTimer = c.clock.AfterFunc(c.savedDisplay, func() {
		defer c.wg.Done()

		c.mu.Lock()
		if c.closed || seq != c.savedSeq || c.state != StateSaved {
			c.mu.Unlock()
			return
		}
		c.savedTimer = nil
		c.state = StateIdle
		n := c.snapshotLocked()
		c.mu.Unlock()
		n.notify()
	})
}

func (c *Coordinator) stopSavedLocked() {
	if c.savedTimer == nil {
		return
	}
	c.savedSeq++
	if c.savedTimer.Stop() {
		c.wg.Done()
	}
	c.savedTimer = nil
}

func (c *Coordinator) statusLocked() Status {
	return Status{State: c.state, Error: c.errMsg, Path: c.path}
}

// notification pairs a status with the listeners registered when it was taken
type notification struct {
	status    Status
	listeners []Listener
}

func (c *Coordinator) snapshotLocked() notification {
	ids := slices.Sorted(maps.Keys(c.listeners))
	ls := make([]Listener, 0, len(ids))
	for _, id := range ids {
		ls = append(ls, c.listeners[id])
	}
	return notification{status: c.statusLocked(), listeners: ls}
}

func (n notification) notify() {
	for _, l := range n.listeners {
		l(n.status)
	}
}

func (c *Coordinator) recordSkipped(reason string) {
	if c.metrics != nil {
		c.metrics.RecordSkipped(reason)
	}
}

func (c *Coordinator) recordLoad(status string) {
	if c.metrics != nil {
		c.metrics.RecordLoad(status)
	}
}

// Document builds the payload persisted for s. Collaborators are session
// state and are left out.
func (s Scene) Document() *drawing.Document {
	doc := &drawing.Document{
		Type:     drawing.DocumentType,
		Version:  drawing.DocumentVersion,
		Elements: slices.Clone(s.Elements),
		AppState: maps.Clone(s.AppState),
		Files:    maps.Clone(s.Files),
	}
	delete(doc.AppState, drawing.CollaboratorsKey)
	doc.Normalize()
	return doc
}
