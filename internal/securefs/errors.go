// Package securefs confines drawing storage to a single root directory.
// Virtual paths ("/team/plan.excalidraw") are resolved beneath the root and
// every syscall goes through an os.Root, so neither ".." segments nor
// symlinks can reach outside of it.
package securefs

import (
	"fmt"

	"github.com/tphakala/drawpad/internal/errors"
)

// Sentinel errors for the securefs package.
// These errors can be used with errors.Is to check for specific error conditions.
var (
	// ErrInvalidPath indicates a malformed virtual path: relative, empty or containing NUL bytes.
	ErrInvalidPath = errors.NewStd("invalid path")

	// ErrPathTraversal indicates a path that would resolve outside the storage root.
	// It matches ErrInvalidPath under errors.Is.
	ErrPathTraversal = fmt.Errorf("%w: path escapes the storage root", ErrInvalidPath)

	// ErrFileTooLarge is returned when a file exceeds the configured read limit
	ErrFileTooLarge = errors.NewStd("file size exceeds maximum allowed size")
)

func invalidPath(cause error, virtual string) error {
	return errors.New(fmt.Errorf("%w: %q", cause, virtual)).
		Component("securefs").
		Category(errors.CategoryValidation).
		Context("operation", "resolve_path").
		Build()
}
