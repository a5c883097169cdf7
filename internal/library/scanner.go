// Package library discovers uploaded book files and folds them into the
// catalog, queueing format conversions for anything that is missing one.
package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/okunev/bookshelf-bot/internal/catalog"
	"github.com/okunev/bookshelf-bot/internal/convert"
	"github.com/okunev/bookshelf-bot/internal/fb2"
	"github.com/okunev/bookshelf-bot/internal/jobs"
	"github.com/okunev/bookshelf-bot/pkg/file"
	"github.com/okunev/bookshelf-bot/pkg/log"
)

var bookExts = []string{".fb2", ".zip"}

// Enqueuer is the slice of the job queue the scanner needs.
type Enqueuer interface {
	Enqueue(req jobs.EnqueueRequest) (*jobs.ConversionJob, bool)
}

type scannerOptions struct {
	targets     []catalog.Format
	cacheTTL    time.Duration
	maxFileSize int64
}

type Option func(*scannerOptions)

// WithTargets overrides which formats every book should end up in.
func WithTargets(targets ...catalog.Format) Option {
	return func(o *scannerOptions) {
		o.targets = targets
	}
}

// WithCacheTTL controls how long a scan report stays cached. A TTL of 0
// rescans on every call.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *scannerOptions) {
		o.cacheTTL = ttl
	}
}

// WithMaxFileSize rejects uploads over n bytes; they are reported, never
// registered. Zero means no limit.
func WithMaxFileSize(n int64) Option {
	return func(o *scannerOptions) {
		o.maxFileSize = n
	}
}

type scanCache struct {
	version uint64
	scanned time.Time
	report  *Report
}

// Scanner walks the upload directory for fb2 books (bare or zipped),
// registers their metadata in the catalog, and enqueues conversions into
// the target formats the book does not have yet.
type Scanner struct {
	uploadDir   string
	outputDir   string
	catalog     *catalog.Store
	queue       Enqueuer
	extractor   *convert.Extractor
	targets     []catalog.Format
	maxFileSize int64

	mu            sync.Mutex
	cacheTTL      time.Duration
	cache         *scanCache
	configVersion uint64
}

func NewScanner(
	uploadDir string,
	outputDir string,
	books *catalog.Store,
	queue Enqueuer,
	opts ...Option,
) *Scanner {
	options := scannerOptions{
		targets:  []catalog.Format{catalog.FormatEPUB, catalog.FormatMOBI},
		cacheTTL: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Scanner{
		uploadDir:   uploadDir,
		outputDir:   outputDir,
		catalog:     books,
		queue:       queue,
		extractor:   convert.NewExtractor(),
		targets:     options.targets,
		maxFileSize: options.maxFileSize,
		cacheTTL:    options.cacheTTL,
	}
}

// Invalidate drops the cached report so the next Scan walks the disk.
func (s *Scanner) Invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.configVersion++
	s.mu.Unlock()
}

// Scan performs one pass over the upload directory. Per-file problems are
// collected into the report instead of aborting the whole pass; only a
// broken directory walk is fatal.
func (s *Scanner) Scan(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	version := s.configVersion
	if s.cache != nil && s.cache.version == version &&
		(s.cacheTTL <= 0 || time.Since(s.cache.scanned) < s.cacheTTL) {
		cached := cloneReport(s.cache.report)
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	if _, err := os.Stat(s.uploadDir); err != nil {
		if os.IsNotExist(err) {
			return &Report{}, nil
		}
		return nil, err
	}

	paths, err := file.FindByExt(s.uploadDir, bookExts)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, path := range paths {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		report.ScannedFiles++
		if err := s.ingest(path, report); err != nil {
			log.Warn("Skipping %s: %v", path, err)
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", filepath.Base(path), err))
		}
	}

	s.mu.Lock()
	if s.configVersion == version {
		s.cache = &scanCache{
			version: version,
			scanned: time.Now(),
			report:  cloneReport(report),
		}
	}
	s.mu.Unlock()

	return report, nil
}

func (s *Scanner) ingest(path string, report *Report) error {
	if s.maxFileSize > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.Size() > s.maxFileSize {
			return fmt.Errorf("file is %d bytes, over the %d byte limit", info.Size(), s.maxFileSize)
		}
	}

	meta, err := s.readMetadata(path)
	if err != nil {
		return err
	}

	book, err := s.catalog.Get(meta.Title)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		book = catalog.Book{
			Title:       meta.Title,
			Author:      meta.Author,
			Description: meta.Description,
			Genres:      meta.Genres,
			Year:        meta.Year,
			Language:    meta.Language,
			Files:       map[catalog.Format]string{catalog.FormatFB2: path},
		}
		if err := s.catalog.Add(book); err != nil {
			return err
		}
		report.NewBooks++
		log.Info("Registered %q by %s", book.Title, book.Author)
	case err != nil:
		return err
	case book.Files[catalog.FormatFB2] == "":
		if err := s.catalog.SetFile(book.Title, catalog.FormatFB2, path); err != nil {
			return err
		}
		if book.Files == nil {
			book.Files = make(map[catalog.Format]string)
		}
		book.Files[catalog.FormatFB2] = path
		report.UpdatedBooks++
	}

	report.EnqueuedJobs += s.enqueueMissing(meta.Title, path, book)
	return nil
}

// readMetadata parses the fb2 document inside path, unwrapping a zip
// archive into a throwaway directory first when needed.
func (s *Scanner) readMetadata(path string) (*fb2.Metadata, error) {
	if strings.ToLower(filepath.Ext(path)) != ".zip" {
		return fb2.ParseFile(path)
	}

	scratch, err := os.MkdirTemp("", "scan-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(scratch)

	inner, err := s.extractor.Extract(path, scratch)
	if err != nil {
		return nil, err
	}
	return fb2.ParseFile(inner)
}

func (s *Scanner) enqueueMissing(title, sourcePath string, book catalog.Book) int {
	if s.queue == nil {
		return 0
	}

	enqueued := 0
	for _, target := range s.targets {
		if book.Files[target] != "" {
			continue
		}
		_, created := s.queue.Enqueue(jobs.EnqueueRequest{
			Source:    "scanner",
			DedupeKey: title + "|" + string(target),
			Payload: jobs.Payload{
				Title:        title,
				SourcePath:   sourcePath,
				SourceFormat: string(catalog.FormatFB2),
				TargetFormat: string(target),
				DestDir:      s.outputDir,
			},
		})
		if created {
			enqueued++
		}
	}
	return enqueued
}
