package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/drawpad/internal/drawing"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		cfg         *Config
		wantTimeout time.Duration
		wantAgent   string
	}{
		{"nil config", nil, DefaultTimeout, defaultUserAgent},
		{"zero values use defaults", &Config{}, DefaultTimeout, defaultUserAgent},
		{"editor settings", &Config{DefaultTimeout: 5 * time.Second, UserAgent: "drawpad/1.2.0"}, 5 * time.Second, "drawpad/1.2.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := New(tt.cfg)
			assert.Equal(t, tt.wantTimeout, client.defaultTimeout)
			assert.Equal(t, tt.wantAgent, client.userAgent)
		})
	}

	t.Run("caller config is not mutated", func(t *testing.T) {
		t.Parallel()
		cfg := Config{UserAgent: "drawpad/dev"}
		_ = New(&cfg)
		assert.Zero(t, cfg.DefaultTimeout)
		assert.Zero(t, cfg.MaxIdleConnsPerHost)
	})
}

// A document PUT is marshaled through Document.MarshalJSON and sent with
// JSON headers even though the caller passes no content type.
func TestPutDocumentAsJSON(t *testing.T) {
	t.Parallel()
	t.Attr("component", "httpclient")

	store := newStoreServer(t, http.StatusOK, `{"saved":true}`)
	client := newTestClient(t, &Config{UserAgent: "drawpad/test"})

	doc := drawing.Blank()
	doc.Elements = append(doc.Elements, json.RawMessage(`{"id":"r1","type":"rectangle"}`))

	resp, err := client.Put(t.Context(), store.URL+"/api/drawing/notes/a.excalidraw", "", doc)
	require.NoError(t, err)
	defer closeResponseBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	got := store.last(t)
	assert.Equal(t, http.MethodPut, got.Method)
	assert.Equal(t, "/api/drawing/notes/a.excalidraw", got.Path)
	assert.Equal(t, contentTypeJSON, got.Header.Get("Content-Type"))
	assert.Equal(t, contentTypeJSON, got.Header.Get("Accept"))
	assert.Equal(t, "drawpad/test", got.Header.Get("User-Agent"))

	sent, err := drawing.Decode(got.Body)
	require.NoError(t, err, "body: %s", got.Body)
	assert.Equal(t, drawing.DocumentType, sent.Type)
	require.Len(t, sent.Elements, 1)
	assert.JSONEq(t, `{"id":"r1","type":"rectangle"}`, string(sent.Elements[0]))
}

// A struct payload, as used for creating a drawing, is also sent as JSON.
func TestPostStructAsJSON(t *testing.T) {
	t.Parallel()

	store := newStoreServer(t, http.StatusCreated, `{"path":"/sketch.excalidraw"}`)
	client := newTestClient(t, nil)

	payload := struct {
		Path string `json:"path"`
	}{Path: "/sketch.excalidraw"}

	resp, err := client.Post(t.Context(), store.URL+"/api/drawing", "", payload)
	require.NoError(t, err)
	defer closeResponseBody(t, resp)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	got := store.last(t)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, contentTypeJSON, got.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"path":"/sketch.excalidraw"}`, string(got.Body))
	assert.Equal(t, defaultUserAgent, got.Header.Get("User-Agent"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":"/sketch.excalidraw"}`, string(body))
}

// Raw bodies are sent verbatim and never get a JSON content type or Accept
// header unless the caller asks for one.
func TestRawBodies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		body        any
		wantBody    string
		wantType    string
		wantAccept  string
	}{
		{"bytes", "", []byte(`{"type":"excalidraw"}`), `{"type":"excalidraw"}`, "", ""},
		{"string with type", "text/plain", "hello", "hello", "text/plain", ""},
		{"reader declared as json", contentTypeJSON, strings.NewReader(`{}`), `{}`, contentTypeJSON, contentTypeJSON},
		{"no body", "", nil, "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newStoreServer(t, http.StatusNoContent, "")
			client := newTestClient(t, nil)

			resp, err := client.Put(t.Context(), store.URL+"/api/drawing/a.excalidraw", tt.contentType, tt.body)
			require.NoError(t, err)
			closeResponseBody(t, resp)

			got := store.last(t)
			assert.Equal(t, tt.wantBody, string(got.Body))
			assert.Equal(t, tt.wantType, got.Header.Get("Content-Type"))
			assert.Equal(t, tt.wantAccept, got.Header.Get("Accept"))
		})
	}
}

func TestGetKeepsCallerUserAgent(t *testing.T) {
	t.Parallel()

	store := newStoreServer(t, http.StatusOK, `[]`)
	client := newTestClient(t, &Config{UserAgent: "drawpad/1.0"})

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, store.URL+"/api/drawings", http.NoBody)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "drawpad-sync/0.1")

	resp, err := client.Do(t.Context(), req)
	require.NoError(t, err)
	closeResponseBody(t, resp)

	assert.Equal(t, "drawpad-sync/0.1", store.last(t).Header.Get("User-Agent"))

	resp, err = client.Get(t.Context(), store.URL+"/api/drawings")
	require.NoError(t, err)
	closeResponseBody(t, resp)

	assert.Equal(t, "drawpad/1.0", store.last(t).Header.Get("User-Agent"))
}

// slowHandler answers after delay unless the request is abandoned first.
func slowHandler(delay time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(delay):
			w.WriteHeader(http.StatusOK)
		case <-r.Context().Done():
		}
	}
}

func TestDefaultTimeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(slowHandler(2 * time.Second))
	t.Cleanup(server.Close)

	t.Run("applies without caller deadline", func(t *testing.T) {
		t.Parallel()
		client := newTestClient(t, &Config{DefaultTimeout: 50 * time.Millisecond})

		start := time.Now()
		resp, err := client.Get(t.Context(), server.URL)
		closeResponseBody(t, resp)

		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("caller deadline wins", func(t *testing.T) {
		t.Parallel()
		client := newTestClient(t, &Config{DefaultTimeout: time.Minute})

		ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
		defer cancel()

		resp, err := client.Get(ctx, server.URL)
		closeResponseBody(t, resp)

		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("cancelled caller", func(t *testing.T) {
		t.Parallel()
		client := newTestClient(t, nil)

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		resp, err := client.Get(ctx, server.URL)
		closeResponseBody(t, resp)

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

// The default-timeout context lives until the body is closed, so a large
// drawing can still be read after Do returns, and is released afterwards.
func TestDefaultTimeoutReleasedOnBodyClose(t *testing.T) {
	t.Parallel()

	payload := `{"type":"excalidraw","elements":[` + strings.Repeat(`{"id":"x"},`, 8000) + `{"id":"y"}]}`
	store := newStoreServer(t, http.StatusOK, payload)
	client := newTestClient(t, &Config{DefaultTimeout: 5 * time.Second})

	resp, err := client.Get(t.Context(), store.URL+"/api/drawing/big.excalidraw")
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "body read after Do returned")
	assert.Len(t, body, len(payload))

	reqCtx := resp.Request.Context()
	require.NoError(t, reqCtx.Err())

	require.NoError(t, resp.Body.Close())
	assert.ErrorIs(t, reqCtx.Err(), context.Canceled)
}

func TestHooksSeeStoreTraffic(t *testing.T) {
	t.Parallel()

	store := newStoreServer(t, http.StatusConflict, `{"error":"exists"}`)
	client := newTestClient(t, nil)

	var before []string
	var afterStatus int
	var afterErr error
	client.SetBeforeRequestHook(func(r *http.Request) {
		before = append(before, r.Method+" "+r.URL.Path+" "+r.Header.Get("User-Agent"))
	})
	client.SetAfterResponseHook(func(_ *http.Request, resp *http.Response, err error) {
		afterErr = err
		if resp != nil {
			afterStatus = resp.StatusCode
		}
	})

	resp, err := client.Post(t.Context(), store.URL+"/api/drawing", "", map[string]string{"path": "/a.excalidraw"})
	require.NoError(t, err)
	closeResponseBody(t, resp)

	assert.Equal(t, []string{"POST /api/drawing " + defaultUserAgent}, before)
	assert.Equal(t, http.StatusConflict, afterStatus)
	require.NoError(t, afterErr)

	// Transport failures reach the after hook with a nil response
	store.Close()
	afterStatus = 0
	resp, err = client.Get(t.Context(), store.URL+"/api/drawings")
	closeResponseBody(t, resp)
	require.Error(t, err)
	require.Error(t, afterErr)
	assert.Zero(t, afterStatus)
}

func TestRequestErrors(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, nil)

	t.Run("nil request", func(t *testing.T) {
		t.Parallel()
		resp, err := client.Do(t.Context(), nil) //nolint:bodyclose // nil response
		require.Error(t, err)
		assert.Nil(t, resp)
	})

	t.Run("unmarshalable body", func(t *testing.T) {
		t.Parallel()
		resp, err := client.Post(t.Context(), "http://127.0.0.1:1", "", make(chan int)) //nolint:bodyclose // nil response
		require.Error(t, err)
		assert.Nil(t, resp)
		assert.Contains(t, err.Error(), "marshal")
	})

	t.Run("bad url", func(t *testing.T) {
		t.Parallel()
		resp, err := client.Put(t.Context(), "http://[::1", "", nil) //nolint:bodyclose // nil response
		require.Error(t, err)
		assert.Nil(t, resp)
		assert.Contains(t, err.Error(), "PUT")
	})
}

func TestHTTPClientAndClose(t *testing.T) {
	t.Parallel()

	client := New(nil)
	require.NotNil(t, client.HTTPClient())
	assert.Zero(t, client.HTTPClient().Timeout, "timeouts are applied per request")

	assert.NotPanics(t, func() {
		client.Close()
		client.Close()
	})
}
