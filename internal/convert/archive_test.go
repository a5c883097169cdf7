package convert

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, dir string, members map[string]string) string {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range members {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	path := filepath.Join(dir, "upload.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func TestExtractor_ExtractsMatchingMember(t *testing.T) {
	dir := t.TempDir()
	archive := writeZip(t, dir, map[string]string{
		"book.fb2": "<FictionBook/>",
	})

	scratch := filepath.Join(dir, "scratch")
	got, err := NewExtractor().Extract(archive, scratch)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(scratch, "book.fb2"), got)

	content, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "<FictionBook/>", string(content))

	// The source archive stays where it was.
	_, err = os.Stat(archive)
	require.NoError(t, err)
}

func TestExtractor_FlattensNestedMemberName(t *testing.T) {
	dir := t.TempDir()
	archive := writeZip(t, dir, map[string]string{
		"library/authors/book.fb2": "<FictionBook/>",
	})

	scratch := filepath.Join(dir, "scratch")
	got, err := NewExtractor().Extract(archive, scratch)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(scratch, "book.fb2"), got)
}

func TestExtractor_SkipsNonMatchingMembers(t *testing.T) {
	dir := t.TempDir()
	archive := writeZip(t, dir, map[string]string{
		"cover.jpg":   "jpeg-bytes",
		"readme.txt":  "notes",
		"novel.fb2":   "<FictionBook/>",
		"another.fb2": "<FictionBook/>",
	})

	got, err := NewExtractor().Extract(archive, filepath.Join(dir, "scratch"))
	require.NoError(t, err)
	assert.Equal(t, ".fb2", filepath.Ext(got))
}

func TestExtractor_NoMatchingMember(t *testing.T) {
	dir := t.TempDir()
	archive := writeZip(t, dir, map[string]string{
		"cover.jpg": "jpeg-bytes",
	})

	_, err := NewExtractor().Extract(archive, filepath.Join(dir, "scratch"))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindNoMatchingMember))
	assert.False(t, IsKind(err, KindCorruptArchive))
}

func TestExtractor_CorruptArchive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.zip")
	require.NoError(t, os.WriteFile(path, []byte("this is not a zip"), 0644))

	_, err := NewExtractor().Extract(path, filepath.Join(dir, "scratch"))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindCorruptArchive))
	assert.False(t, IsKind(err, KindNoMatchingMember))
}

func TestExtractor_CustomExtensions(t *testing.T) {
	dir := t.TempDir()
	archive := writeZip(t, dir, map[string]string{
		"book.epub": "epub-bytes",
	})

	_, err := NewExtractor().Extract(archive, filepath.Join(dir, "scratch"))
	assert.True(t, IsKind(err, KindNoMatchingMember))

	got, err := NewExtractor(".epub").Extract(archive, filepath.Join(dir, "scratch2"))
	require.NoError(t, err)
	assert.Equal(t, ".epub", filepath.Ext(got))
}
