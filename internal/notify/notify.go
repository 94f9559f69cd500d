// Package notify pushes save failures reported by the save coordinator to
// external services (ntfy, Gotify, Telegram, Slack...) via shoutrrr URLs.
package notify

import (
	"fmt"
	"io"
	"log"
	"slices"
	"sync"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tphakala/drawpad/internal/drawpad"
	"github.com/tphakala/drawpad/internal/errors"
	"github.com/tphakala/drawpad/internal/logger"
)

const (
	defaultTitle     = "drawpad: save failed"
	defaultQueueSize = 16
)

// Sender delivers one message to every configured service.
// *router.ServiceRouter satisfies it.
type Sender interface {
	Send(message string, params *stypes.Params) []error
}

// Notifier turns coordinator status changes into notifications. Delivery
// runs on a single background worker so listeners never block on the network.
type Notifier struct {
	sender Sender
	title  string
	log    logger.Logger

	queue chan string

	mu       sync.Mutex
	lastSent string // suppresses repeats of the same failure
	closed   bool

	wg sync.WaitGroup
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithTitle overrides the notification title.
func WithTitle(title string) Option {
	return func(n *Notifier) {
		if title != "" {
			n.title = title
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(n *Notifier) { n.log = l }
}

// New starts a notifier delivering through sender.
func New(sender Sender, opts ...Option) *Notifier {
	n := &Notifier{
		sender: sender,
		title:  defaultTitle,
		queue:  make(chan string, defaultQueueSize),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.log == nil {
		n.log = logger.Global().Module("notify")
	}

	n.wg.Go(n.run)
	return n
}

// FromURLs builds a shoutrrr sender for urls and starts a notifier on it.
// timeout bounds each delivery; zero keeps the shoutrrr default.
func FromURLs(urls []string, timeout time.Duration, opts ...Option) (*Notifier, error) {
	if len(urls) == 0 {
		return nil, errors.Newf("at least one notification URL is required").
			Component("notify").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sender, err := shoutrrr.CreateSender(slices.Clone(urls)...)
	if err != nil {
		// The shoutrrr error may echo a URL with embedded tokens
		return nil, errors.Newf("invalid notification URL: %s", redact(err)).
			Component("notify").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))

	return New(sender, opts...), nil
}

// Listener returns a status listener for drawpad.Coordinator.OnStatus.
// A failure is queued once; the same message is not repeated until a save
// succeeds or the message changes.
func (n *Notifier) Listener() drawpad.Listener {
	return func(st drawpad.Status) {
		n.observe(st)
	}
}

func (n *Notifier) observe(st drawpad.Status) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	if st.State == drawpad.StateSaved {
		n.lastSent = ""
		return
	}
	if st.Error == "" {
		return
	}

	msg := fmt.Sprintf("Saving %s failed: %s", st.Path, st.Error)
	if msg == n.lastSent {
		return
	}

	select {
	case n.queue <- msg:
		n.lastSent = msg
	default:
		n.log.Warn("Notification queue full, dropping message", logger.String("path", st.Path))
	}
}

// Close stops accepting new messages and waits for queued ones to be sent.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	n.wg.Wait()
}

func (n *Notifier) run() {
	for msg := range n.queue {
		params := stypes.Params{}
		params.SetTitle(n.title)

		if err := firstError(n.sender.Send(msg, &params)); err != nil {
			n.log.Warn("Notification delivery failed", logger.String("error", redact(err)))
			continue
		}
		n.log.Debug("Notification sent")
	}
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
