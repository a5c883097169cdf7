package httpapi

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic_DisabledByDefault(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatic_ServesIndexAndFallsBack(t *testing.T) {
	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(staticDir, "index.html"), []byte("<html>bookshelf</html>"), 0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(staticDir, "app.js"), []byte("console.log('ok')"), 0o644))

	f := newAPIFixture(t, WithUI(staticDir, true))

	rec := f.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bookshelf")

	rec = f.do(t, http.MethodGet, "/app.js", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "console.log")

	// SPA fallback: unknown route serves the index
	rec = f.do(t, http.MethodGet, "/books/some-view", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bookshelf")
}
