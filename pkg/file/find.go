package file

import (
	"io/fs"
	"path/filepath"
)

// FindByExt walks dir and returns every regular file whose extension is in
// exts, in lexical walk order.
func FindByExt(dir string, exts []string) ([]string, error) {
	var found []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if HasAnyExt(path, exts) {
			found = append(found, path)
		}
		return nil
	})

	return found, err
}
