// Package docstore reads, writes and lists drawing documents inside the
// sandboxed storage root.
package docstore

import (
	"context"
	"io/fs"
	"os"
	"path"
	"time"

	"golang.org/x/text/language"

	"github.com/tphakala/drawpad/internal/drawing"
	"github.com/tphakala/drawpad/internal/errors"
	"github.com/tphakala/drawpad/internal/logger"
	"github.com/tphakala/drawpad/internal/observability/metrics"
)

const (
	fileMode = 0o640
	dirMode  = 0o750

	defaultListConcurrency = 8
)

// FileSystem is the sandbox the store operates through. *securefs.SecureFS
// implements it; every method takes a virtual path.
type FileSystem interface {
	Resolve(virtual string) (string, error)
	ReadFile(virtual string) ([]byte, error)
	WriteFile(virtual string, data []byte, perm os.FileMode) error
	CreateExclusive(virtual string, data []byte, perm os.FileMode) error
	MkdirAll(virtual string, perm os.FileMode) error
	ReadDir(virtual string) ([]os.DirEntry, error)
	Stat(virtual string) (fs.FileInfo, error)
}

// GetLogger returns the docstore module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("docstore")
}

// Store implements the document operations. It holds no mutable state
// besides its configuration, so one Store serves concurrent requests.
type Store struct {
	fs              FileSystem
	metrics         *metrics.StoreMetrics
	listConcurrency int
	lang            language.Tag
	log             logger.Logger
}

// Option configures a Store
type Option func(*Store)

// WithMetrics records operation metrics into m.
func WithMetrics(m *metrics.StoreMetrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithListConcurrency bounds the number of parallel stat calls per listing.
func WithListConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.listConcurrency = n
		}
	}
}

// WithLanguage sets the collation language used to order listings.
func WithLanguage(tag language.Tag) Option {
	return func(s *Store) {
		s.lang = tag
	}
}

// WithLogger overrides the module logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a store on top of the given sandbox.
func New(fsys FileSystem, opts ...Option) *Store {
	s := &Store{
		fs:              fsys,
		listConcurrency: defaultListConcurrency,
		lang:            language.Und,
		log:             GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReadOrDefault returns the document at virtual. A missing file yields a
// fresh blank document and nothing is written. Any other failure is returned.
func (s *Store) ReadOrDefault(ctx context.Context, virtual string) (doc *drawing.Document, err error) {
	start := time.Now()
	status := metrics.StatusSuccess
	defer func() { s.record(metrics.OpReadDocument, &status, start, err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := s.fs.ReadFile(virtual)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidPath):
		return nil, err
	case errors.Is(err, fs.ErrNotExist):
		status = metrics.StatusDefault
		s.log.Debug("Document missing, returning blank", logger.String("path", virtual))
		return drawing.Blank(), nil
	default:
		return nil, storageError("read", virtual, err)
	}

	doc, err = drawing.Decode(data)
	if err != nil {
		return nil, storageError("decode", virtual, err)
	}

	if s.metrics != nil {
		s.metrics.RecordRead(len(data))
	}
	s.log.Debug("Document read",
		logger.String("path", virtual),
		logger.Int("bytes", len(data)),
		logger.Int("elements", len(doc.Elements)))

	return doc, nil
}

// Write replaces the document at virtual, creating parent directories as
// needed. Collaborator session data is stripped. There is no locking; the
// last writer wins.
func (s *Store) Write(ctx context.Context, virtual string, doc *drawing.Document) (err error) {
	start := time.Now()
	status := metrics.StatusSuccess
	defer func() { s.record(metrics.OpWriteDocument, &status, start, err) }()

	data, err := s.prepare(ctx, virtual, doc)
	if err != nil {
		return err
	}

	if err := s.fs.WriteFile(virtual, data, fileMode); err != nil {
		if errors.Is(err, ErrInvalidPath) {
			return err
		}
		return storageError("write", virtual, err)
	}

	if s.metrics != nil {
		s.metrics.RecordWrite(len(data))
	}
	s.log.Info("Document written",
		logger.String("path", virtual),
		logger.Int("bytes", len(data)))

	return nil
}

// CreateExclusive writes a new document only if virtual does not exist yet.
// A nil template creates a blank document.
func (s *Store) CreateExclusive(ctx context.Context, virtual string, template *drawing.Document) (err error) {
	start := time.Now()
	status := metrics.StatusSuccess
	defer func() { s.record(metrics.OpCreateExclusive, &status, start, err) }()

	data, err := s.prepare(ctx, virtual, template)
	if err != nil {
		return err
	}

	if err := s.fs.CreateExclusive(virtual, data, fileMode); err != nil {
		switch {
		case errors.Is(err, ErrInvalidPath):
			return err
		case errors.Is(err, fs.ErrExist):
			return alreadyExists(virtual)
		default:
			return storageError("create", virtual, err)
		}
	}

	if s.metrics != nil {
		s.metrics.RecordWrite(len(data))
	}
	s.log.Info("Document created",
		logger.String("path", virtual),
		logger.Bool("template", template != nil))

	return nil
}

// prepare validates the path, encodes the document and ensures the parent
// directory exists.
func (s *Store) prepare(ctx context.Context, virtual string, doc *drawing.Document) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := s.fs.Resolve(virtual); err != nil {
		return nil, err
	}

	if doc == nil {
		doc = drawing.Blank()
	}
	data, err := doc.WithoutCollaborators().Encode()
	if err != nil {
		return nil, storageError("encode", virtual, err)
	}

	if err := s.fs.MkdirAll(path.Dir(virtual), dirMode); err != nil {
		if errors.Is(err, ErrInvalidPath) {
			return nil, err
		}
		return nil, storageError("mkdir", virtual, err)
	}

	return data, nil
}

// record updates metrics and logs failures for one operation.
func (s *Store) record(op string, status *string, start time.Time, err error) {
	if err != nil {
		*status = metrics.StatusError
		fields := []logger.Field{logger.String("operation", op), logger.Error(err)}
		if errors.Is(err, ErrInvalidPath) {
			s.log.Warn("Rejected store request", fields...)
		} else if !errors.Is(err, ErrAlreadyExists) && !errors.Is(err, ErrNotFound) {
			s.log.Error("Store operation failed", fields...)
		}
	}

	if s.metrics == nil {
		return
	}
	if err != nil && errors.Is(err, ErrInvalidPath) {
		s.metrics.RecordRejectedPath()
	}
	s.metrics.RecordOperation(op, *status, time.Since(start).Seconds())
}
