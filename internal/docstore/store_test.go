package docstore

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/drawpad/internal/drawing"
	"github.com/tphakala/drawpad/internal/observability/metrics"
	"github.com/tphakala/drawpad/internal/securefs"
)

// setupStore creates a store over a fresh temporary sandbox
func setupStore(t *testing.T, opts ...Option) (store *Store, root string) {
	t.Helper()

	sfs, err := securefs.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sfs.Close() })

	return New(sfs, opts...), sfs.BaseDir()
}

func TestReadOrDefaultMissingReturnsBlankWithoutWriting(t *testing.T) {
	t.Parallel()
	t.Attr("component", "docstore")
	store, root := setupStore(t)

	doc, err := store.ReadOrDefault(t.Context(), "/a/missing.excalidraw")
	require.NoError(t, err)

	got, err := json.Marshal(doc)
	require.NoError(t, err)
	want, err := json.Marshal(drawing.Blank())
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))

	// Nothing was created, not even the parent directory
	_, err = os.Stat(filepath.Join(root, "a"))
	assert.ErrorIs(t, err, fs.ErrNotExist)

	entries, err := store.List(t.Context(), "/", ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	t.Parallel()
	t.Attr("component", "docstore")
	store, root := setupStore(t)

	doc, err := drawing.Decode([]byte(`{
		"type":"excalidraw","version":2,"source":"test",
		"elements":[{"id":"1","type":"ellipse","isDeleted":true}],
		"appState":{"gridSize":null,"viewBackgroundColor":"#123456","collaborators":{"u":{}}},
		"files":{"img":{"id":"img","mimeType":"image/png"}}
	}`))
	require.NoError(t, err)

	require.NoError(t, store.Write(t.Context(), "/deep/er/x.excalidraw", doc))

	read, err := store.ReadOrDefault(t.Context(), "/deep/er/x.excalidraw")
	require.NoError(t, err)
	assert.Equal(t, doc.WithoutCollaborators(), read)

	raw, err := os.ReadFile(filepath.Join(root, "deep", "er", "x.excalidraw"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "collaborators", "collaborators must never be persisted")
	assert.Contains(t, string(raw), "\n  \"elements\": [", "two-space pretty print")
}

func TestWriteOverwritesLastWriterWins(t *testing.T) {
	t.Parallel()
	store, _ := setupStore(t)

	first := drawing.Blank()
	first.Elements = []json.RawMessage{json.RawMessage(`{"id":"a"}`), json.RawMessage(`{"id":"b"}`)}
	second := drawing.Blank()
	second.Elements = []json.RawMessage{json.RawMessage(`{"id":"c"}`)}

	require.NoError(t, store.Write(t.Context(), "/x.excalidraw", first))
	require.NoError(t, store.Write(t.Context(), "/x.excalidraw", second))

	read, err := store.ReadOrDefault(t.Context(), "/x.excalidraw")
	require.NoError(t, err)
	require.Len(t, read.Elements, 1)
	assert.JSONEq(t, `{"id":"c"}`, string(read.Elements[0]))
}

func TestWriteNilDocumentWritesBlank(t *testing.T) {
	t.Parallel()
	store, _ := setupStore(t)

	require.NoError(t, store.Write(t.Context(), "/blank.excalidraw", nil))
	read, err := store.ReadOrDefault(t.Context(), "/blank.excalidraw")
	require.NoError(t, err)
	assert.Equal(t, drawing.Blank(), read)
}

func TestCreateExclusive(t *testing.T) {
	t.Parallel()
	t.Attr("component", "docstore")
	store, root := setupStore(t)

	require.NoError(t, store.CreateExclusive(t.Context(), "/a/b.excalidraw", nil))

	before, err := os.ReadFile(filepath.Join(root, "a", "b.excalidraw"))
	require.NoError(t, err)

	tmpl := drawing.Blank()
	tmpl.Elements = []json.RawMessage{json.RawMessage(`{"id":"template"}`)}
	err = store.CreateExclusive(t.Context(), "/a/b.excalidraw", tmpl)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	after, err := os.ReadFile(filepath.Join(root, "a", "b.excalidraw"))
	require.NoError(t, err)
	assert.Equal(t, before, after, "existing file must not change")

	entries, err := store.List(t.Context(), "/a", ListOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b.excalidraw", entries[0].Name)
	assert.False(t, entries[0].IsDir)
	assert.Equal(t, int64(len(before)), entries[0].Size)
}

func TestCreateExclusiveUsesTemplate(t *testing.T) {
	t.Parallel()
	store, _ := setupStore(t)

	tmpl := drawing.Blank()
	tmpl.Elements = []json.RawMessage{json.RawMessage(`{"id":"t1"}`)}
	require.NoError(t, store.CreateExclusive(t.Context(), "/t.excalidraw", tmpl))

	read, err := store.ReadOrDefault(t.Context(), "/t.excalidraw")
	require.NoError(t, err)
	require.Len(t, read.Elements, 1)
}

func TestListOrderingAndFilter(t *testing.T) {
	t.Parallel()
	t.Attr("component", "docstore")
	store, root := setupStore(t)

	for _, dir := range []string{"zeta", "Alpha"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o750))
	}
	for _, name := range []string{"b.excalidraw", "Äpfel.excalidraw", "apple.excalidraw", "Zoo.excalidraw"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("{}"), 0o600))
	}

	entries, err := store.List(t.Context(), "/", ListOptions{})
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"Alpha", "zeta", "Äpfel.excalidraw", "apple.excalidraw", "b.excalidraw", "Zoo.excalidraw"}, names)
	assert.True(t, entries[0].IsDir)
	assert.False(t, entries[0].MTime.IsZero())

	filtered, err := store.List(t.Context(), "/", ListOptions{Filter: "ZO"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "Zoo.excalidraw", filtered[0].Name)
}

func TestListDoesNotRecurse(t *testing.T) {
	t.Parallel()
	store, root := setupStore(t)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b", "c"), 0o750))
	entries, err := store.List(t.Context(), "/a", ListOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Name)
	assert.True(t, entries[0].IsDir)
}

func TestListErrors(t *testing.T) {
	t.Parallel()
	store, _ := setupStore(t)

	_, err := store.List(t.Context(), "/nope", ListOptions{})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Write(t.Context(), "/file.excalidraw", nil))
	_, err = store.List(t.Context(), "/file.excalidraw", ListOptions{})
	assert.ErrorIs(t, err, ErrNotADirectory)

	_, err = store.List(t.Context(), "/../..", ListOptions{})
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestTraversalRejectedEverywhere(t *testing.T) {
	t.Parallel()
	store, _ := setupStore(t)
	ctx := t.Context()

	_, err := store.ReadOrDefault(ctx, "/../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.ErrorIs(t, store.Write(ctx, "/../escape.excalidraw", nil), ErrInvalidPath)
	assert.ErrorIs(t, store.CreateExclusive(ctx, "/a/../../escape.excalidraw", nil), ErrInvalidPath)
	assert.ErrorIs(t, store.Write(ctx, "relative.excalidraw", nil), ErrInvalidPath)
}

func TestCorruptDocumentIsStorageError(t *testing.T) {
	t.Parallel()
	store, root := setupStore(t)

	require.NoError(t, os.WriteFile(filepath.Join(root, "bad.excalidraw"), []byte("{not json"), 0o600))

	_, err := store.ReadOrDefault(t.Context(), "/bad.excalidraw")
	require.Error(t, err)
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "decode", se.Op)
	assert.Equal(t, "/bad.excalidraw", se.Path)
}

// failingFS wraps a real sandbox and injects a read failure
type failingFS struct {
	FileSystem
	readErr error
}

func (f failingFS) ReadFile(string) ([]byte, error) { return nil, f.readErr }

func TestReadFailureIsNotTreatedAsMissing(t *testing.T) {
	t.Parallel()

	sfs, err := securefs.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sfs.Close() })

	perm := &fs.PathError{Op: "open", Path: "x", Err: syscall.EACCES}
	store := New(failingFS{FileSystem: sfs, readErr: perm})

	_, err = store.ReadOrDefault(t.Context(), "/x.excalidraw")
	require.Error(t, err)
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "read", se.Op)
	assert.ErrorIs(t, err, fs.ErrPermission)
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()
	store, _ := setupStore(t)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := store.ReadOrDefault(ctx, "/x.excalidraw")
	assert.Error(t, err)
	assert.Error(t, store.Write(ctx, "/x.excalidraw", nil))
}

func TestMetricsRecorded(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := metrics.NewStoreMetrics(reg)
	require.NoError(t, err)
	store, _ := setupStore(t, WithMetrics(m), WithListConcurrency(2))

	_, err = store.ReadOrDefault(t.Context(), "/missing.excalidraw")
	require.NoError(t, err)
	require.NoError(t, store.Write(t.Context(), "/x.excalidraw", nil))
	_ = store.Write(t.Context(), "/../x.excalidraw", nil)

	assert.Equal(t, 3, testutil.CollectAndCount(m, "docstore_operations_total"),
		"read/default, write/success and write/error series")
	expected := `
# HELP docstore_rejected_paths_total Virtual paths rejected by the sandbox
# TYPE docstore_rejected_paths_total counter
docstore_rejected_paths_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "docstore_rejected_paths_total"))
}
