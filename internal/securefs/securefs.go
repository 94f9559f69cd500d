package securefs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tphakala/drawpad/internal/errors"
	"github.com/tphakala/drawpad/internal/logger"
)

// GetLogger returns the securefs package logger scoped to the securefs module.
// The logger is fetched from the global logger each time to ensure it uses
// the current centralized logger (which may be set after package init).
func GetLogger() logger.Logger {
	return logger.Global().Module("securefs")
}

// SecureFS provides filesystem operations on virtual paths, confined to a
// base directory through os.Root.
//
// Every call resolves its virtual path afresh with Resolve; nothing is
// cached. The lexical check rejects ".." escapes early with a clear error,
// os.Root then refuses symlinks that lead outside the base directory.
type SecureFS struct {
	baseDir         string   // canonical absolute root, symlinks resolved
	root            *os.Root // sandboxed filesystem root
	maxReadFileSize int64    // maximum file size for ReadFile (0 = unlimited)
}

// New creates the base directory if needed and opens the sandbox on it.
func New(baseDir string) (*SecureFS, error) {
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}

	// Only owner can write, group can read
	if err := os.MkdirAll(absPath, 0o750); err != nil {
		return nil, errors.New(err).
			Component("securefs").
			Category(errors.CategoryFileIO).
			Context("operation", "create_base_dir").
			Build()
	}

	// Resolve symlinks of the root itself so prefix checks compare canonical paths
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		absPath = resolved
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem sandbox: %w", err)
	}

	return &SecureFS{baseDir: absPath, root: root}, nil
}

// Resolve maps a virtual path onto this filesystem's base directory.
func (sfs *SecureFS) Resolve(virtual string) (string, error) {
	return Resolve(sfs.baseDir, virtual)
}

// rel resolves virtual and converts it into a path relative to the os.Root.
func (sfs *SecureFS) rel(virtual string) (string, error) {
	resolved, err := Resolve(sfs.baseDir, virtual)
	if err != nil {
		GetLogger().Warn("Rejected virtual path",
			logger.String("path", virtual),
			logger.Error(err))
		return "", err
	}
	return relativeTo(sfs.baseDir, resolved), nil
}

// MkdirAll creates a directory and all missing parents.
func (sfs *SecureFS) MkdirAll(virtual string, perm os.FileMode) error {
	relPath, err := sfs.rel(virtual)
	if err != nil {
		return err
	}
	if relPath == "." {
		return nil
	}
	return sfs.root.MkdirAll(relPath, perm)
}

// Stat returns file info, following symlinks that stay inside the root.
func (sfs *SecureFS) Stat(virtual string) (fs.FileInfo, error) {
	relPath, err := sfs.rel(virtual)
	if err != nil {
		return nil, err
	}
	return sfs.root.Stat(relPath)
}

// SetMaxReadFileSize sets the maximum file size that ReadFile will read.
// A value of 0 means unlimited.
func (sfs *SecureFS) SetMaxReadFileSize(maxSize int64) {
	sfs.maxReadFileSize = maxSize
}

// GetMaxReadFileSize returns the current maximum file size for ReadFile.
func (sfs *SecureFS) GetMaxReadFileSize() int64 {
	return sfs.maxReadFileSize
}

// ReadFile reads a whole file. Errors from the filesystem are returned
// unwrapped enough for errors.Is(err, fs.ErrNotExist) to work.
func (sfs *SecureFS) ReadFile(virtual string) ([]byte, error) {
	relPath, err := sfs.rel(virtual)
	if err != nil {
		return nil, err
	}

	file, err := sfs.root.Open(relPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			GetLogger().Warn("Failed to close file", logger.Error(err))
		}
	}()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if stat.IsDir() {
		return nil, &fs.PathError{Op: "read", Path: virtual, Err: errIsDirectory}
	}
	if sfs.maxReadFileSize > 0 && stat.Size() > sfs.maxReadFileSize {
		return nil, fmt.Errorf("%w: file is %d bytes, limit is %d bytes",
			ErrFileTooLarge, stat.Size(), sfs.maxReadFileSize)
	}

	return io.ReadAll(file)
}

var errIsDirectory = errors.NewStd("is a directory")

// WriteFile creates or truncates a file and writes data to it.
func (sfs *SecureFS) WriteFile(virtual string, data []byte, perm os.FileMode) error {
	return sfs.writeWithFlags(virtual, data, perm, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
}

// CreateExclusive writes data to a new file. If the file already exists the
// call fails with an error matching fs.ErrExist and the file is untouched.
func (sfs *SecureFS) CreateExclusive(virtual string, data []byte, perm os.FileMode) error {
	return sfs.writeWithFlags(virtual, data, perm, os.O_WRONLY|os.O_CREATE|os.O_EXCL)
}

func (sfs *SecureFS) writeWithFlags(virtual string, data []byte, perm os.FileMode, flag int) error {
	relPath, err := sfs.rel(virtual)
	if err != nil {
		return err
	}

	file, err := sfs.root.OpenFile(relPath, flag, perm)
	if err != nil {
		return err
	}

	_, writeErr := file.Write(data)
	closeErr := file.Close()
	if writeErr != nil {
		return writeErr
	}
	return closeErr
}

// ReadDir returns the immediate children of a directory.
func (sfs *SecureFS) ReadDir(virtual string) ([]os.DirEntry, error) {
	relPath, err := sfs.rel(virtual)
	if err != nil {
		return nil, err
	}

	dirFile, err := sfs.root.Open(relPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := dirFile.Close(); err != nil {
			GetLogger().Warn("Failed to close directory", logger.Error(err))
		}
	}()

	return dirFile.ReadDir(-1)
}

// BaseDir returns the canonical absolute base directory.
func (sfs *SecureFS) BaseDir() string {
	return sfs.baseDir
}

// Close closes the underlying Root
func (sfs *SecureFS) Close() error {
	if sfs.root != nil {
		return sfs.root.Close()
	}
	return nil
}
