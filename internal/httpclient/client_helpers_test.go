package httpclient

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// recordedRequest is what the fake store saw for one request.
type recordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// storeServer is a stand-in for the drawing store that records every
// request and answers with a fixed status and body.
type storeServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
	status   int
	reply    string
}

func newStoreServer(t *testing.T, status int, reply string) *storeServer {
	t.Helper()
	s := &storeServer{status: status, reply: reply}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *storeServer) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   body,
	})
	s.mu.Unlock()

	if s.reply != "" {
		w.Header().Set("Content-Type", contentTypeJSON)
	}
	w.WriteHeader(s.status)
	_, _ = io.WriteString(w, s.reply)
}

// last returns the most recent request; the test fails if there is none.
func (s *storeServer) last(t *testing.T) recordedRequest {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		t.Fatal("store received no request")
	}
	return s.requests[len(s.requests)-1]
}

func newTestClient(t *testing.T, cfg *Config) *Client {
	t.Helper()
	client := New(cfg)
	t.Cleanup(client.Close)
	return client
}

func closeResponseBody(t *testing.T, resp *http.Response) {
	t.Helper()
	if resp == nil || resp.Body == nil {
		return
	}
	if err := resp.Body.Close(); err != nil {
		t.Logf("failed to close response body: %v", err)
	}
}
