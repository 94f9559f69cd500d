// Package storeclient is the typed HTTP client for the drawing store API.
package storeclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/antonholmquist/jason"

	"github.com/tphakala/drawpad/internal/conf"
	"github.com/tphakala/drawpad/internal/drawing"
	"github.com/tphakala/drawpad/internal/errors"
	"github.com/tphakala/drawpad/internal/httpclient"
	"github.com/tphakala/drawpad/internal/logger"
)

const (
	drawingEndpoint = "api/drawing"
	filesEndpoint   = "api/files"

	// maxErrorBody bounds how much of an error response is kept as the message
	maxErrorBody = 4 << 10
)

// GetLogger returns the storeclient module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("storeclient")
}

// StatusError is returned when the store answers with a non-2xx status.
// Message is the plain-text response body.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("store returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("store returned %d: %s", e.Code, e.Message)
}

// ErrorCategory lets the enhanced error builder pick up the category
func (e *StatusError) ErrorCategory() errors.ErrorCategory {
	switch e.Code {
	case http.StatusNotFound:
		return errors.CategoryNotFound
	case http.StatusConflict:
		return errors.CategoryConflict
	case http.StatusBadRequest:
		return errors.CategoryValidation
	default:
		return errors.CategoryHTTP
	}
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not a StatusError.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// Client talks to one store server.
type Client struct {
	http    *httpclient.Client
	baseURL *url.URL
	timeout time.Duration
	log     logger.Logger
}

// FromSettings creates a client for the configured server with its own
// HTTP client.
func FromSettings(s *conf.ClientSettings, userAgent string) (*Client, error) {
	hc := httpclient.New(&httpclient.Config{
		DefaultTimeout: s.Timeout,
		UserAgent:      userAgent,
	})
	return New(s.ServerURL, hc)
}

// New creates a client for the store at baseURL. hc may be nil.
func New(baseURL string, hc *httpclient.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.New(err).
			Component("storeclient").
			Category(errors.CategoryConfiguration).
			Context("server_url", baseURL).
			Build()
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Newf("store URL must be http or https: %q", baseURL).
			Component("storeclient").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if hc == nil {
		hc = httpclient.New(nil)
	}

	c := &Client{
		http:    hc,
		baseURL: u,
		timeout: httpclient.DefaultTimeout,
		log:     GetLogger(),
	}
	hc.SetAfterResponseHook(c.logResponse)
	return c, nil
}

func (c *Client) logResponse(req *http.Request, resp *http.Response, err error) {
	if err != nil {
		c.log.Debug("Store request failed",
			logger.String("method", req.Method),
			logger.String("endpoint", req.URL.Path),
			logger.Error(err))
		return
	}
	c.log.Debug("Store response",
		logger.String("method", req.Method),
		logger.String("endpoint", req.URL.Path),
		logger.Int("status", resp.StatusCode))
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL.JoinPath(path)
	u.RawQuery = query.Encode()
	return u.String()
}

// Load fetches the document at virtual. The server answers a missing
// document with the blank document.
func (c *Client) Load(ctx context.Context, virtual string) (*drawing.Document, error) {
	target := c.endpoint(drawingEndpoint, url.Values{"path": {virtual}})

	body, err := c.roundTrip(ctx, target, func() (*http.Response, error) {
		return c.http.Get(ctx, target)
	})
	if err != nil {
		return nil, err
	}

	data, err := body.GetValue("data")
	if err != nil {
		return nil, decodeError(target, fmt.Errorf("response has no data: %w", err))
	}
	raw, err := data.Marshal()
	if err != nil {
		return nil, decodeError(target, err)
	}
	doc, err := drawing.Decode(raw)
	if err != nil {
		return nil, decodeError(target, err)
	}
	return doc, nil
}

// Save replaces the document at virtual.
func (c *Client) Save(ctx context.Context, virtual string, doc *drawing.Document) error {
	target := c.endpoint(drawingEndpoint, url.Values{"path": {virtual}})

	body, err := c.roundTrip(ctx, target, func() (*http.Response, error) {
		return c.http.Put(ctx, target, "", doc)
	})
	if err != nil {
		return err
	}
	return expectOK(target, body)
}

// List returns the entries of dir; filter, when set, is matched
// case-insensitively by the server.
func (c *Client) List(ctx context.Context, dir, filter string) ([]drawing.DirectoryEntry, error) {
	query := url.Values{"dir": {dir}}
	if filter != "" {
		query.Set("q", filter)
	}
	target := c.endpoint(filesEndpoint, query)

	resp, err := c.http.Get(ctx, target)
	if err != nil {
		return nil, c.transportError(target, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if err := checkStatus(resp, target); err != nil {
		return nil, err
	}

	values, err := jason.NewValueFromReader(resp.Body)
	if err != nil {
		return nil, decodeError(target, err)
	}
	array, err := values.Array()
	if err != nil {
		return nil, decodeError(target, err)
	}
	items := make([]*jason.Object, 0, len(array))
	for _, v := range array {
		obj, err := v.Object()
		if err != nil {
			return nil, decodeError(target, err)
		}
		items = append(items, obj)
	}

	entries := make([]drawing.DirectoryEntry, 0, len(items))
	for _, item := range items {
		entry, err := entryFrom(item)
		if err != nil {
			return nil, decodeError(target, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Create makes a new drawing at virtual from template (nil for blank).
// An existing file yields a StatusError with code 409.
func (c *Client) Create(ctx context.Context, virtual string, template *drawing.Document) error {
	target := c.endpoint(filesEndpoint, nil)
	payload := struct {
		Path     string            `json:"path"`
		Template *drawing.Document `json:"template,omitempty"`
	}{Path: virtual, Template: template}

	body, err := c.roundTrip(ctx, target, func() (*http.Response, error) {
		return c.http.Post(ctx, target, "", payload)
	})
	if err != nil {
		return err
	}
	return expectOK(target, body)
}

// roundTrip performs send, maps failures and parses a JSON object body.
func (c *Client) roundTrip(ctx context.Context, target string, send func() (*http.Response, error)) (*jason.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := send()
	if err != nil {
		return nil, c.transportError(target, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if err := checkStatus(resp, target); err != nil {
		return nil, err
	}

	obj, err := jason.NewObjectFromReader(resp.Body)
	if err != nil {
		return nil, decodeError(target, err)
	}
	return obj, nil
}

func (c *Client) transportError(target string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return errors.NetworkError(err, target, c.timeout)
}

// checkStatus turns a non-2xx response into a StatusError carrying the body text.
func checkStatus(resp *http.Response, target string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return errors.New(&StatusError{
		Code:    resp.StatusCode,
		Message: strings.TrimSpace(string(msg)),
	}).
		Component("storeclient").
		Context("status", resp.StatusCode).
		Context("url", target).
		Build()
}

func expectOK(target string, body *jason.Object) error {
	ok, err := body.GetBoolean("ok")
	if err != nil {
		return decodeError(target, fmt.Errorf("response has no ok flag: %w", err))
	}
	if !ok {
		return decodeError(target, fmt.Errorf("store did not acknowledge the write"))
	}
	return nil
}

func entryFrom(item *jason.Object) (drawing.DirectoryEntry, error) {
	var e drawing.DirectoryEntry
	var err error

	if e.Name, err = item.GetString("name"); err != nil {
		return e, fmt.Errorf("entry name: %w", err)
	}
	if e.IsDir, err = item.GetBoolean("isDir"); err != nil {
		return e, fmt.Errorf("entry %s isDir: %w", e.Name, err)
	}
	if e.Size, err = item.GetInt64("size"); err != nil {
		return e, fmt.Errorf("entry %s size: %w", e.Name, err)
	}
	mtime, err := item.GetString("mtime")
	if err != nil {
		return e, fmt.Errorf("entry %s mtime: %w", e.Name, err)
	}
	if e.MTime, err = time.Parse(time.RFC3339Nano, mtime); err != nil {
		return e, fmt.Errorf("entry %s mtime: %w", e.Name, err)
	}
	return e, nil
}

func decodeError(target string, err error) error {
	return errors.New(err).
		Component("storeclient").
		Category(errors.CategoryFileParsing).
		Context("url", target).
		Build()
}
