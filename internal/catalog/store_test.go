package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "books.json"), time.Hour)
}

func TestStore_AddGetDelete(t *testing.T) {
	s := newTestStore(t)

	book := Book{
		Title:  "Война и мир",
		Author: "Лев Толстой",
		Files:  map[Format]string{FormatFB2: "books/voina-i-mir.fb2"},
	}
	require.NoError(t, s.Add(book))

	got, err := s.Get("Война и мир")
	require.NoError(t, err)
	assert.Equal(t, "Лев Толстой", got.Author)
	assert.False(t, got.AddedAt.IsZero())

	require.ErrorIs(t, s.Add(Book{Title: "Война и мир"}), ErrExists)
	require.ErrorIs(t, s.Add(Book{}), ErrEmptyTitle)

	require.NoError(t, s.Delete("Война и мир"))
	_, err = s.Get("Война и мир")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Delete("Война и мир"), ErrNotFound)
}

func TestStore_DeleteRemovesFormatFiles(t *testing.T) {
	dir := t.TempDir()
	bookFile := filepath.Join(dir, "book.fb2")
	require.NoError(t, os.WriteFile(bookFile, []byte("<FictionBook/>"), 0644))

	s := NewStore(filepath.Join(dir, "books.json"), time.Hour)
	require.NoError(t, s.Add(Book{
		Title: "Обломов",
		Files: map[Format]string{FormatFB2: bookFile},
	}))

	require.NoError(t, s.Delete("Обломов"))

	_, err := os.Stat(bookFile)
	assert.True(t, os.IsNotExist(err))
}

func TestStore_SetFileAndFormats(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Add(Book{Title: "Обломов"}))

	require.NoError(t, s.SetFile("Обломов", FormatFB2, "books/oblomov.fb2"))
	require.NoError(t, s.SetFile("Обломов", FormatEPUB, "books/oblomov.epub"))
	require.ErrorIs(t, s.SetFile("нет такой", FormatFB2, "x"), ErrNotFound)

	formats, err := s.Formats("Обломов")
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatEPUB, FormatFB2}, formats)
}

func TestStore_SetLink(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Add(Book{Title: "Обломов"}))

	require.NoError(t, s.SetLink("Обломов", "Живая библиотека", "https://example.org/oblomov"))

	got, err := s.Get("Обломов")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/oblomov", got.Links["Живая библиотека"])
}

func TestStore_ResolveToken(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Add(Book{Title: "Война и мир"}))
	require.NoError(t, s.Add(Book{Title: "Анна Каренина"}))

	title, err := s.ResolveToken(EncodeTitle("Анна Каренина"))
	require.NoError(t, err)
	assert.Equal(t, "Анна Каренина", title)

	_, err = s.ResolveToken("ffffffffffffffff")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_AllReturnsDetachedCopy(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Add(Book{
		Title: "Обломов",
		Files: map[Format]string{FormatFB2: "books/oblomov.fb2"},
	}))

	books, err := s.All()
	require.NoError(t, err)
	books["Самозванец"] = Book{Title: "Самозванец"}
	books["Обломов"].Files[FormatEPUB] = "books/oblomov.epub"

	// Mutations land in the caller's copy only.
	got, err := s.Get("Обломов")
	require.NoError(t, err)
	assert.Empty(t, got.Files[FormatEPUB])
	_, err = s.Get("Самозванец")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ConcurrentReadersAndWriters(t *testing.T) {
	s := newTestStore(t)
	const writes = 50

	writeErrs := make([]error, writes)
	readErrs := make([]error, 200)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < writes; i++ {
			writeErrs[i] = s.Add(Book{Title: fmt.Sprintf("Книга %d", i)})
		}
	}()
	go func() {
		defer wg.Done()
		// Iterate while the writer is registering books; each reader
		// gets its own copy, so iteration never races the writes.
		for i := range readErrs {
			books, err := s.All()
			readErrs[i] = err
			for title := range books {
				_ = title
			}
		}
	}()
	wg.Wait()

	for _, err := range writeErrs {
		require.NoError(t, err)
	}
	for _, err := range readErrs {
		require.NoError(t, err)
	}

	books, err := s.All()
	require.NoError(t, err)
	assert.Len(t, books, writes)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		ok   bool
	}{
		{in: "fb2", want: FormatFB2, ok: true},
		{in: ".EPUB", want: FormatEPUB, ok: true},
		{in: " mobi ", want: FormatMOBI, ok: true},
		{in: "pdf", ok: false},
		{in: "", ok: false},
	}

	for _, tt := range tests {
		got, ok := ParseFormat(tt.in)
		assert.Equal(t, tt.ok, ok, "ParseFormat(%q)", tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got)
		}
	}
}

func TestBook_ShortDescription(t *testing.T) {
	b := Book{Description: "Роман-эпопея, описывающий русское общество в эпоху войн против Наполеона"}

	assert.Equal(t, b.Description, b.ShortDescription(0))
	assert.Equal(t, b.Description, b.ShortDescription(1000))

	short := b.ShortDescription(12)
	assert.Contains(t, short, "…")
	assert.Less(t, len([]rune(short)), len([]rune(b.Description)))
}
