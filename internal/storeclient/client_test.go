package storeclient

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/drawpad/internal/conf"
	"github.com/tphakala/drawpad/internal/drawing"
	"github.com/tphakala/drawpad/internal/errors"
	"github.com/tphakala/drawpad/internal/httpclient"
)

const baseURL = "http://store.test"

// newMockedClient returns a client whose transport is an httpmock transport
func newMockedClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()

	hc := httpclient.New(nil)
	mock := httpmock.NewMockTransport()
	hc.HTTPClient().Transport = mock

	c, err := New(baseURL, hc)
	require.NoError(t, err)
	return c, mock
}

func TestLoad(t *testing.T) {
	t.Parallel()
	t.Attr("component", "storeclient")
	c, mock := newMockedClient(t)

	mock.RegisterResponderWithQuery(http.MethodGet, baseURL+"/api/drawing",
		map[string]string{"path": "/team/a.excalidraw"},
		httpmock.NewStringResponder(http.StatusOK,
			`{"data":{"type":"excalidraw","version":2,"elements":[{"id":"1","x":10.5}],
			"appState":{"gridSize":20,"collaborators":{}},"files":{}}}`))

	doc, err := c.Load(t.Context(), "/team/a.excalidraw")
	require.NoError(t, err)
	require.Len(t, doc.Elements, 1)
	assert.JSONEq(t, `{"id":"1","x":10.5}`, string(doc.Elements[0]))
	assert.Equal(t, json.Number("20"), doc.AppState["gridSize"])
	assert.Equal(t, 1, mock.GetTotalCallCount())
}

func TestLoadStatusError(t *testing.T) {
	t.Parallel()
	c, mock := newMockedClient(t)

	mock.RegisterResponder(http.MethodGet, "=~^"+baseURL+"/api/drawing",
		httpmock.NewStringResponder(http.StatusBadRequest, "path must be absolute like /team/foo.excalidraw\n"))

	_, err := c.Load(t.Context(), "relative")
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, "path must be absolute like /team/foo.excalidraw", se.Message)
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestLoadMalformedEnvelope(t *testing.T) {
	t.Parallel()
	c, mock := newMockedClient(t)

	mock.RegisterResponder(http.MethodGet, "=~^"+baseURL+"/api/drawing",
		httpmock.NewStringResponder(http.StatusOK, `{"nodata":true}`))

	_, err := c.Load(t.Context(), "/x.excalidraw")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))
	assert.Zero(t, StatusCode(err))
}

func TestSaveSendsDocument(t *testing.T) {
	t.Parallel()
	t.Attr("component", "storeclient")
	c, mock := newMockedClient(t)

	var received []byte
	mock.RegisterResponderWithQuery(http.MethodPut, baseURL+"/api/drawing",
		map[string]string{"path": "/x.excalidraw"},
		func(req *http.Request) (*http.Response, error) {
			received, _ = io.ReadAll(req.Body)
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
			return httpmock.NewStringResponse(http.StatusOK, `{"ok":true}`), nil
		})

	doc := drawing.Blank()
	doc.Elements = []json.RawMessage{json.RawMessage(`{"id":"1"}`)}
	require.NoError(t, c.Save(t.Context(), "/x.excalidraw", doc))

	assert.JSONEq(t, `{"type":"excalidraw","version":2,"elements":[{"id":"1"}],
		"appState":{"viewBackgroundColor":"#ffffff"},"files":{}}`, string(received))
}

func TestSaveServerError(t *testing.T) {
	t.Parallel()
	c, mock := newMockedClient(t)

	mock.RegisterResponder(http.MethodPut, "=~^"+baseURL+"/api/drawing",
		httpmock.NewStringResponder(http.StatusInternalServerError, "storage write /x.excalidraw: disk full"))

	err := c.Save(t.Context(), "/x.excalidraw", drawing.Blank())
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
	assert.Contains(t, err.Error(), "disk full")
}

func TestSaveRequiresAcknowledgement(t *testing.T) {
	t.Parallel()
	c, mock := newMockedClient(t)

	mock.RegisterResponder(http.MethodPut, "=~^"+baseURL+"/api/drawing",
		httpmock.NewStringResponder(http.StatusOK, `{"ok":false}`))

	assert.Error(t, c.Save(t.Context(), "/x.excalidraw", drawing.Blank()))
}

func TestList(t *testing.T) {
	t.Parallel()
	t.Attr("component", "storeclient")
	c, mock := newMockedClient(t)

	mock.RegisterResponderWithQuery(http.MethodGet, baseURL+"/api/files",
		map[string]string{"dir": "/a", "q": "b"},
		httpmock.NewStringResponder(http.StatusOK,
			`[{"name":"sub","isDir":true,"size":4096,"mtime":"2026-01-02T03:04:05.123Z"},
			  {"name":"b.excalidraw","isDir":false,"size":120,"mtime":"2026-01-02T03:04:05Z"}]`))

	entries, err := c.List(t.Context(), "/a", "b")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].IsDir)
	assert.Equal(t, "b.excalidraw", entries[1].Name)
	assert.Equal(t, int64(120), entries[1].Size)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), entries[1].MTime)
}

func TestListNotFound(t *testing.T) {
	t.Parallel()
	c, mock := newMockedClient(t)

	mock.RegisterResponder(http.MethodGet, "=~^"+baseURL+"/api/files",
		httpmock.NewStringResponder(http.StatusNotFound, "not found: /nope"))

	_, err := c.List(t.Context(), "/nope", "")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
	assert.True(t, errors.IsNotFound(err))
}

func TestCreate(t *testing.T) {
	t.Parallel()
	c, mock := newMockedClient(t)

	var payload map[string]json.RawMessage
	mock.RegisterResponder(http.MethodPost, baseURL+"/api/files",
		func(req *http.Request) (*http.Response, error) {
			if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
				return nil, err
			}
			return httpmock.NewStringResponse(http.StatusCreated, `{"ok":true}`), nil
		})

	require.NoError(t, c.Create(t.Context(), "/a/b.excalidraw", nil))
	assert.JSONEq(t, `"/a/b.excalidraw"`, string(payload["path"]))
	assert.NotContains(t, payload, "template")
}

func TestCreateConflict(t *testing.T) {
	t.Parallel()
	c, mock := newMockedClient(t)

	mock.RegisterResponder(http.MethodPost, baseURL+"/api/files",
		httpmock.NewStringResponder(http.StatusConflict, "already exists: /a/b.excalidraw"))

	err := c.Create(t.Context(), "/a/b.excalidraw", drawing.Blank())
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, StatusCode(err))
	assert.True(t, errors.IsCategory(err, errors.CategoryConflict))
}

func TestTransportError(t *testing.T) {
	t.Parallel()
	c, mock := newMockedClient(t)

	mock.RegisterNoResponder(httpmock.ConnectionFailure)

	_, err := c.Load(t.Context(), "/x.excalidraw")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))

	var ee *errors.EnhancedError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "http-endpoint", ee.GetContext()["url_category"], "store URL is not leaked into the error context")
}

func TestNewRejectsBadURL(t *testing.T) {
	t.Parallel()

	_, err := New("ftp://store", nil)
	require.Error(t, err)
	_, err = New("://bad", nil)
	require.Error(t, err)
}

func TestFromSettings(t *testing.T) {
	t.Parallel()

	c, err := FromSettings(&conf.ClientSettings{ServerURL: "http://localhost:3000", Timeout: time.Second}, "drawpad-test")
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = FromSettings(&conf.ClientSettings{ServerURL: "localhost:3000"}, "drawpad-test")
	assert.Error(t, err)
}
