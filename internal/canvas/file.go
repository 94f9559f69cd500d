// Package canvas provides drawing surfaces for the save coordinator. The
// file canvas lets any external editor work on a local copy of a drawing:
// edits to the working file become change notifications and saves read the
// file back.
package canvas

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/antonholmquist/jason"
	"github.com/fsnotify/fsnotify"

	"github.com/tphakala/drawpad/internal/drawing"
	"github.com/tphakala/drawpad/internal/drawpad"
	"github.com/tphakala/drawpad/internal/errors"
	"github.com/tphakala/drawpad/internal/logger"
)

const workingFileMode = 0o600

// FileCanvas is a drawpad.DeletedAwareCanvas backed by a working file.
type FileCanvas struct {
	path string
	log  logger.Logger

	mu      sync.Mutex
	lastSum [sha256.Size]byte
	watcher *fsnotify.Watcher

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Option configures a FileCanvas.
type Option func(*FileCanvas)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *FileCanvas) {
		c.log = l
	}
}

// NewFile returns a canvas over the working file at path. The file is not
// touched until Init.
func NewFile(path string, opts ...Option) (*FileCanvas, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.New(err).
			Component("canvas").
			Category(errors.CategoryConfiguration).
			Context("path", path).
			Build()
	}
	c := &FileCanvas{
		path: abs,
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Global().Module("canvas")
	}
	return c, nil
}

// Path returns the absolute path of the working file.
func (c *FileCanvas) Path() string {
	return c.path
}

// Init writes doc to the working file. Writing the initial data is not
// reported as a change.
func (c *FileCanvas) Init(doc *drawing.Document) error {
	if doc == nil {
		doc = drawing.Blank()
	}
	data, err := doc.WithoutCollaborators().Encode()
	if err != nil {
		return errors.New(err).
			Component("canvas").
			Category(errors.CategoryFileParsing).
			Build()
	}

	c.mu.Lock()
	c.lastSum = sha256.Sum256(data)
	c.mu.Unlock()

	if err := os.WriteFile(c.path, data, workingFileMode); err != nil {
		return errors.FileError(err, c.path, int64(len(data)))
	}
	return nil
}

// Scene returns the working file's content without soft-deleted elements.
func (c *FileCanvas) Scene() (drawpad.Scene, error) {
	scene, err := c.SceneIncludingDeleted()
	if err != nil {
		return drawpad.Scene{}, err
	}
	visible := scene.Elements[:0:0]
	for _, el := range scene.Elements {
		if !isDeleted(el) {
			visible = append(visible, el)
		}
	}
	scene.Elements = visible
	return scene, nil
}

// SceneIncludingDeleted returns every element in the working file.
func (c *FileCanvas) SceneIncludingDeleted() (drawpad.Scene, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return drawpad.Scene{}, errors.FileError(err, c.path, 0)
	}
	doc, err := drawing.Decode(data)
	if err != nil {
		return drawpad.Scene{}, errors.New(err).
			Component("canvas").
			Category(errors.CategoryFileParsing).
			Context("path", c.path).
			Build()
	}
	return drawpad.Scene{Elements: doc.Elements, AppState: doc.AppState, Files: doc.Files}, nil
}

func isDeleted(el json.RawMessage) bool {
	obj, err := jason.NewObjectFromReader(bytes.NewReader(el))
	if err != nil {
		return false
	}
	deleted, err := obj.GetBoolean("isDeleted")
	return err == nil && deleted
}

// Watch calls onChange whenever the working file's content changes until
// ctx is done or Close is called. The parent directory is watched so
// editors that replace the file on save are seen too.
func (c *FileCanvas) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.New(err).
			Component("canvas").
			Category(errors.CategorySystem).
			Build()
	}
	if err := w.Add(filepath.Dir(c.path)); err != nil {
		_ = w.Close()
		return errors.New(err).
			Component("canvas").
			Category(errors.CategoryFileIO).
			Context("path", filepath.Dir(c.path)).
			Build()
	}

	c.mu.Lock()
	if c.watcher != nil {
		c.mu.Unlock()
		_ = w.Close()
		return errors.Newf("working file is already watched").
			Component("canvas").
			Category(errors.CategoryState).
			Build()
	}
	c.watcher = w
	c.mu.Unlock()

	c.wg.Go(func() { c.run(ctx, w, onChange) })

	c.log.Debug("Watching working file", logger.String("path", c.path))
	return nil
}

func (c *FileCanvas) run(ctx context.Context, w *fsnotify.Watcher, onChange func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != c.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if c.contentChanged() {
				onChange()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			c.log.Warn("File watcher error", logger.String("path", c.path), logger.Error(err))
		}
	}
}

// contentChanged reports whether the file differs from what was last seen.
// Unreadable files (mid-replace) are not a change.
func (c *FileCanvas) contentChanged() bool {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return false
	}
	sum := sha256.Sum256(data)

	c.mu.Lock()
	defer c.mu.Unlock()
	if sum == c.lastSum {
		return false
	}
	c.lastSum = sum
	return true
}

// Close stops watching. The working file is left in place.
func (c *FileCanvas) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		w := c.watcher
		c.mu.Unlock()
		if w != nil {
			err = w.Close()
		}
		c.wg.Wait()
	})
	return err
}
