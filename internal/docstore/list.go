package docstore

import (
	"context"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"

	"github.com/tphakala/drawpad/internal/drawing"
	"github.com/tphakala/drawpad/internal/errors"
	"github.com/tphakala/drawpad/internal/logger"
	"github.com/tphakala/drawpad/internal/observability/metrics"
)

// ListOptions narrows a directory listing.
type ListOptions struct {
	// Filter keeps entries whose name contains it, ignoring case. Empty keeps all.
	Filter string
}

// List returns the immediate children of virtualDir, directories first and
// then by name in collation order. Each child is stat'ed on every call.
func (s *Store) List(ctx context.Context, virtualDir string, opts ListOptions) (entries []drawing.DirectoryEntry, err error) {
	start := time.Now()
	status := metrics.StatusSuccess
	defer func() { s.record(metrics.OpListDirectory, &status, start, err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := s.fs.Stat(virtualDir)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidPath):
		return nil, err
	case errors.Is(err, fs.ErrNotExist):
		return nil, notFound(virtualDir)
	default:
		return nil, storageError("stat", virtualDir, err)
	}
	if !info.IsDir() {
		return nil, notADirectory(virtualDir)
	}

	dirEntries, err := s.fs.ReadDir(virtualDir)
	if err != nil {
		return nil, storageError("readdir", virtualDir, err)
	}

	if opts.Filter != "" {
		fold := cases.Fold()
		needle := fold.String(opts.Filter)
		dirEntries = slices.DeleteFunc(dirEntries, func(e fs.DirEntry) bool {
			return !strings.Contains(fold.String(e.Name()), needle)
		})
	}

	results := make([]*drawing.DirectoryEntry, len(dirEntries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.listConcurrency)

	for i, e := range dirEntries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.statEntry(virtualDir, e)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries = make([]drawing.DirectoryEntry, 0, len(results))
	for _, r := range results {
		if r != nil {
			entries = append(entries, *r)
		}
	}
	sortEntries(entries, collate.New(s.lang))

	if s.metrics != nil {
		s.metrics.RecordListing(len(entries))
	}
	s.log.Debug("Directory listed",
		logger.String("path", virtualDir),
		logger.Int("entries", len(entries)),
		logger.String("filter", opts.Filter))

	return entries, nil
}

// statEntry follows symlinks through the sandbox. When that fails (dangling
// link or a link leaving the root) it falls back to the entry's own lstat
// info; entries that cannot be stat'ed at all are skipped.
func (s *Store) statEntry(dir string, e fs.DirEntry) *drawing.DirectoryEntry {
	child := path.Join(dir, e.Name())

	info, err := s.fs.Stat(child)
	if err != nil {
		s.log.Debug("Stat through sandbox failed, using entry info",
			logger.String("path", child),
			logger.Error(err))
		info, err = e.Info()
		if err != nil {
			s.log.Warn("Skipping unreadable directory entry",
				logger.String("path", child),
				logger.Error(err))
			return nil
		}
	}

	return &drawing.DirectoryEntry{
		Name:  e.Name(),
		IsDir: info.IsDir(),
		Size:  info.Size(),
		MTime: info.ModTime().UTC(),
	}
}

// sortEntries orders directories before files, then names by collation.
// A collator is not safe for concurrent use, so each listing brings its own.
func sortEntries(entries []drawing.DirectoryEntry, col *collate.Collator) {
	slices.SortStableFunc(entries, func(a, b drawing.DirectoryEntry) int {
		if a.IsDir != b.IsDir {
			if a.IsDir {
				return -1
			}
			return 1
		}
		if c := col.CompareString(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
}
