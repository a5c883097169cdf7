package library

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okunev/bookshelf-bot/internal/catalog"
	"github.com/okunev/bookshelf-bot/internal/jobs"
)

type recordingQueue struct {
	requests []jobs.EnqueueRequest
	seen     map[string]bool
}

func (q *recordingQueue) Enqueue(req jobs.EnqueueRequest) (*jobs.ConversionJob, bool) {
	if q.seen == nil {
		q.seen = make(map[string]bool)
	}
	if q.seen[req.DedupeKey] {
		return &jobs.ConversionJob{ID: "job-dup"}, false
	}
	q.seen[req.DedupeKey] = true
	q.requests = append(q.requests, req)
	return &jobs.ConversionJob{ID: fmt.Sprintf("job-%d", len(q.requests))}, true
}

func fb2Document(title, author string) []byte {
	return fmt.Appendf(nil, `<?xml version="1.0" encoding="utf-8"?>
<FictionBook xmlns="http://www.gribuser.ru/xml/fictionbook/2.0">
  <description>
    <title-info>
      <book-title>%s</book-title>
      <author><first-name>%s</first-name></author>
      <lang>ru</lang>
    </title-info>
  </description>
  <body><section><p>...</p></section></body>
</FictionBook>`, title, author)
}

func writeFB2(t *testing.T, dir, name, title, author string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, fb2Document(title, author), 0o644))
	return path
}

func writeZippedFB2(t *testing.T, dir, name, title, author string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("book.fb2")
	require.NoError(t, err)
	_, err = w.Write(fb2Document(title, author))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func newTestScanner(t *testing.T, opts ...Option) (*Scanner, *catalog.Store, *recordingQueue, string) {
	t.Helper()
	dir := t.TempDir()
	uploads := filepath.Join(dir, "books")
	require.NoError(t, os.MkdirAll(uploads, 0o755))

	books := catalog.NewStore(filepath.Join(dir, "books.json"), time.Minute)
	queue := &recordingQueue{}
	opts = append([]Option{WithCacheTTL(0)}, opts...)
	return NewScanner(uploads, uploads, books, queue, opts...), books, queue, uploads
}

func TestScanner_RegistersNewBooks(t *testing.T) {
	scanner, books, queue, uploads := newTestScanner(t)
	fb2Path := writeFB2(t, uploads, "war.fb2", "Война и мир", "Толстой")

	report, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.ScannedFiles)
	assert.Equal(t, 1, report.NewBooks)
	assert.Empty(t, report.Errors)

	book, err := books.Get("Война и мир")
	require.NoError(t, err)
	assert.Equal(t, "Толстой", book.Author)
	assert.Equal(t, fb2Path, book.Files[catalog.FormatFB2])

	// one conversion per missing target format
	require.Len(t, queue.requests, 2)
	assert.Equal(t, "Война и мир|epub", queue.requests[0].DedupeKey)
	assert.Equal(t, "Война и мир|mobi", queue.requests[1].DedupeKey)
	assert.Equal(t, "scanner", queue.requests[0].Source)
	assert.Equal(t, fb2Path, queue.requests[0].Payload.SourcePath)
}

func TestScanner_ReadsZippedBooks(t *testing.T) {
	scanner, books, _, uploads := newTestScanner(t)
	zipPath := writeZippedFB2(t, uploads, "master.zip", "Мастер и Маргарита", "Булгаков")

	report, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.NewBooks)

	book, err := books.Get("Мастер и Маргарита")
	require.NoError(t, err)
	// the archive itself is the stored fb2 file
	assert.Equal(t, zipPath, book.Files[catalog.FormatFB2])
}

func TestScanner_RescanIsIdempotent(t *testing.T) {
	scanner, _, queue, uploads := newTestScanner(t)
	writeFB2(t, uploads, "war.fb2", "Война и мир", "Толстой")

	_, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	report, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.NewBooks)
	assert.Zero(t, report.EnqueuedJobs)
	assert.Len(t, queue.requests, 2)
}

func TestScanner_SkipsConversionsForExistingFormats(t *testing.T) {
	scanner, books, queue, uploads := newTestScanner(t)
	fb2Path := writeFB2(t, uploads, "war.fb2", "Война и мир", "Толстой")

	require.NoError(t, books.Add(catalog.Book{
		Title:  "Война и мир",
		Author: "Толстой",
		Files: map[catalog.Format]string{
			catalog.FormatFB2:  fb2Path,
			catalog.FormatEPUB: filepath.Join(uploads, "war.epub"),
		},
	}))

	report, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.NewBooks)
	assert.Equal(t, 1, report.EnqueuedJobs)
	require.Len(t, queue.requests, 1)
	assert.Equal(t, "mobi", queue.requests[0].Payload.TargetFormat)
}

func TestScanner_BadFileIsReportedNotFatal(t *testing.T) {
	scanner, _, _, uploads := newTestScanner(t)
	writeFB2(t, uploads, "good.fb2", "Анна Каренина", "Толстой")
	require.NoError(t, os.WriteFile(filepath.Join(uploads, "broken.fb2"), []byte("not xml"), 0o644))

	report, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.ScannedFiles)
	assert.Equal(t, 1, report.NewBooks)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "broken.fb2")
}

func TestScanner_OversizedFileIsRejected(t *testing.T) {
	scanner, books, queue, uploads := newTestScanner(t, WithMaxFileSize(64))
	writeFB2(t, uploads, "war.fb2", "Война и мир", "Толстой")

	report, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.ScannedFiles)
	assert.Equal(t, 0, report.NewBooks)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "war.fb2")
	assert.Contains(t, report.Errors[0], "limit")

	_, err = books.Get("Война и мир")
	require.ErrorIs(t, err, catalog.ErrNotFound)
	assert.Empty(t, queue.requests)
}

func TestScanner_MissingUploadDirIsEmptyReport(t *testing.T) {
	dir := t.TempDir()
	books := catalog.NewStore(filepath.Join(dir, "books.json"), time.Minute)
	scanner := NewScanner(filepath.Join(dir, "absent"), dir, books, &recordingQueue{}, WithCacheTTL(0))

	report, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.ScannedFiles)
}

func TestScanner_CachesReportWithinTTL(t *testing.T) {
	scanner, _, _, uploads := newTestScanner(t, WithCacheTTL(time.Minute))
	writeFB2(t, uploads, "war.fb2", "Война и мир", "Толстой")

	first, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.NewBooks)

	writeFB2(t, uploads, "anna.fb2", "Анна Каренина", "Толстой")
	second, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.ScannedFiles) // cached report, new file unseen

	scanner.Invalidate()
	third, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, third.ScannedFiles)
}
