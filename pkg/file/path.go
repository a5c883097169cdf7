package file

import (
	"path/filepath"
	"strings"
)

// ReplaceExt swaps the extension of path for ext. A missing leading dot on
// ext is tolerated; a path without an extension gets ext appended.
func ReplaceExt(path, ext string) string {
	if path == "" {
		return path
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	dir := filepath.Dir(path)
	name := filepath.Base(path)

	old := filepath.Ext(name)
	// A name like ".hidden" has no real extension to strip.
	if old == name {
		old = ""
	}

	return filepath.Join(dir, strings.TrimSuffix(name, old)+ext)
}

// HasAnyExt reports whether path ends in one of exts (case-insensitive,
// each with or without a leading dot).
func HasAnyExt(path string, exts []string) bool {
	got := strings.ToLower(filepath.Ext(path))
	for _, ext := range exts {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if got == ext {
			return true
		}
	}
	return false
}
