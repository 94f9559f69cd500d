package drawpad

import (
	"strings"
)

// KeyEvent is a keyboard event delivered by the editor host.
type KeyEvent struct {
	Key   string
	Ctrl  bool
	Meta  bool // Cmd on macOS
	Shift bool
	Alt   bool

	defaultPrevented bool
}

// PreventDefault stops the host from running its own handling of the combo,
// such as the browser's save page dialog.
func (e *KeyEvent) PreventDefault() {
	e.defaultPrevented = true
}

// DefaultPrevented reports whether PreventDefault was called.
func (e *KeyEvent) DefaultPrevented() bool {
	return e.defaultPrevented
}

// IsSaveShortcut reports whether e is Ctrl+S or Cmd+S.
func (e *KeyEvent) IsSaveShortcut() bool {
	return (e.Ctrl || e.Meta) && strings.EqualFold(e.Key, "s")
}

// HandleKey saves on Ctrl+S / Cmd+S and reports whether the event was
// consumed. The event's default handling is suppressed even when the save
// is skipped. The state moves to saving before HandleKey returns; the write
// itself runs in the background and its outcome arrives through OnStatus.
func (c *Coordinator) HandleKey(e *KeyEvent) bool {
	if e == nil || !e.IsSaveShortcut() {
		return false
	}
	e.PreventDefault()

	op, err := c.beginSave(triggerKeyboard, true)
	if err != nil {
		return true
	}
	go c.runTracked(op)
	return true
}
