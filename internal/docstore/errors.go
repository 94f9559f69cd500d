package docstore

import (
	"fmt"

	"github.com/tphakala/drawpad/internal/errors"
	"github.com/tphakala/drawpad/internal/securefs"
)

// Sentinel errors for store operations. Match them with errors.Is.
var (
	// ErrInvalidPath is the sandbox's invalid path error, re-exported for callers
	// that only depend on the store.
	ErrInvalidPath = securefs.ErrInvalidPath

	// ErrNotFound is returned when listing a directory that does not exist.
	// Reading a missing document is not an error, see ReadOrDefault.
	ErrNotFound = errors.NewStd("not found")

	// ErrNotADirectory is returned when listing a path that is a file.
	ErrNotADirectory = errors.NewStd("not a directory")

	// ErrAlreadyExists is returned by CreateExclusive when the target exists.
	ErrAlreadyExists = errors.NewStd("already exists")
)

// StorageError wraps any other filesystem failure.
type StorageError struct {
	Op   string // operation, e.g. "read", "write", "decode"
	Path string // virtual path
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ErrorCategory lets the enhanced error builder pick up the category
func (e *StorageError) ErrorCategory() errors.ErrorCategory {
	if e.Op == "decode" {
		return errors.CategoryFileParsing
	}
	return errors.CategoryFileIO
}

func storageError(op, virtual string, err error) error {
	return errors.New(&StorageError{Op: op, Path: virtual, Err: err}).
		Component("docstore").
		Context("operation", op).
		Build()
}

func notFound(virtual string) error {
	return errors.New(fmt.Errorf("%w: %s", ErrNotFound, virtual)).
		Component("docstore").
		Category(errors.CategoryNotFound).
		Build()
}

func notADirectory(virtual string) error {
	return errors.New(fmt.Errorf("%w: %s", ErrNotADirectory, virtual)).
		Component("docstore").
		Category(errors.CategoryValidation).
		Build()
}

func alreadyExists(virtual string) error {
	return errors.New(fmt.Errorf("%w: %s", ErrAlreadyExists, virtual)).
		Component("docstore").
		Category(errors.CategoryConflict).
		Build()
}
