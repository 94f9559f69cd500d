package canvas

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/drawpad/internal/drawing"
	"github.com/tphakala/drawpad/internal/drawpad"
	"github.com/tphakala/drawpad/internal/errors"
	"github.com/tphakala/drawpad/internal/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// Compile-time check
var _ drawpad.DeletedAwareCanvas = (*FileCanvas)(nil)

func newTestCanvas(t *testing.T) *FileCanvas {
	t.Helper()
	c, err := NewFile(filepath.Join(t.TempDir(), "work.excalidraw"),
		WithLogger(logger.NewWriterLogger(io.Discard, logger.LogLevelError).Module("canvas")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestInitAndScene(t *testing.T) {
	t.Parallel()
	t.Attr("component", "canvas")
	c := newTestCanvas(t)

	doc := drawing.Blank()
	doc.Elements = []json.RawMessage{
		json.RawMessage(`{"id":"1"}`),
		json.RawMessage(`{"id":"2","isDeleted":true}`),
		json.RawMessage(`{"id":"3","isDeleted":false}`),
	}
	doc.AppState[drawing.CollaboratorsKey] = drawpad.Collaborators{"peer": 1}
	require.NoError(t, c.Init(doc))

	raw, err := os.ReadFile(c.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "collaborators")

	visible, err := c.Scene()
	require.NoError(t, err)
	require.Len(t, visible.Elements, 2)
	assert.JSONEq(t, `{"id":"3","isDeleted":false}`, string(visible.Elements[1]))

	all, err := c.SceneIncludingDeleted()
	require.NoError(t, err)
	assert.Len(t, all.Elements, 3)
	assert.Equal(t, "#ffffff", all.AppState["viewBackgroundColor"])
}

func TestSceneErrors(t *testing.T) {
	t.Parallel()
	c := newTestCanvas(t)

	_, err := c.Scene()
	require.Error(t, err, "missing working file")
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))

	require.NoError(t, os.WriteFile(c.Path(), []byte("{broken"), 0o600))
	_, err = c.Scene()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))
}

func TestInitWriteFailure(t *testing.T) {
	t.Parallel()

	c, err := NewFile(filepath.Join(t.TempDir(), "missing-dir", "w.excalidraw"),
		WithLogger(logger.NewWriterLogger(io.Discard, logger.LogLevelError).Module("canvas")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	err = c.Init(nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))

	var ee *errors.EnhancedError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "excalidraw", ee.GetContext()["file_extension"])
}

func TestWatchReportsContentChanges(t *testing.T) {
	t.Parallel()
	t.Attr("component", "canvas")
	c := newTestCanvas(t)
	require.NoError(t, c.Init(nil))

	var changes atomic.Int32
	require.NoError(t, c.Watch(t.Context(), func() { changes.Add(1) }))

	edited := drawing.Blank()
	edited.Elements = []json.RawMessage{json.RawMessage(`{"id":"new"}`)}
	data, err := edited.Encode()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(c.Path(), data, 0o600))

	require.Eventually(t, func() bool { return changes.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)

	// Rewriting identical content is not an edit
	seen := changes.Load()
	require.NoError(t, os.WriteFile(c.Path(), data, 0o600))
	assert.Never(t, func() bool { return changes.Load() > seen }, 200*time.Millisecond, 20*time.Millisecond)
}

func TestWatchIgnoresOtherFiles(t *testing.T) {
	t.Parallel()
	c := newTestCanvas(t)
	require.NoError(t, c.Init(nil))

	var changes atomic.Int32
	require.NoError(t, c.Watch(t.Context(), func() { changes.Add(1) }))
	require.Error(t, c.Watch(t.Context(), func() {}), "second watch is rejected")

	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(c.Path()), "other.txt"), []byte("x"), 0o600))
	assert.Never(t, func() bool { return changes.Load() > 0 }, 200*time.Millisecond, 20*time.Millisecond)
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()
	c := newTestCanvas(t)
	require.NoError(t, c.Init(nil))
	require.NoError(t, c.Watch(t.Context(), func() {}))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
