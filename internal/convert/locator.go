package convert

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
)

const converterName = "ebook-convert"

// Locator resolves the path to the external converter executable. A copy
// bundled under the portable directory always wins over a system install,
// which in turn wins over whatever $PATH offers. A successful resolution is
// cached for the process lifetime; a miss is not, so an operator can install
// the converter and retry without a restart.
type Locator struct {
	baseDir  string
	goos     string
	lookPath func(string) (string, error)

	mu       sync.Mutex
	resolved string
}

// NewLocator creates a locator probing portable copies under baseDir.
func NewLocator(baseDir string) *Locator {
	return &Locator{
		baseDir:  baseDir,
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
	}
}

// Locate returns the absolute converter path or a KindConverterUnavailable
// error. Safe for concurrent use.
func (l *Locator) Locate() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.resolved != "" {
		return l.resolved, nil
	}

	for _, candidate := range l.candidates() {
		if l.isExecutable(candidate) {
			l.resolved = candidate
			return candidate, nil
		}
	}

	if path, err := l.lookPath(l.executableName()); err == nil {
		l.resolved = path
		return path, nil
	}

	return "", newError(KindConverterUnavailable,
		"no "+converterName+" executable found; install the converter or drop a portable copy next to the application")
}

func (l *Locator) executableName() string {
	if l.goos == "windows" {
		return converterName + ".exe"
	}
	return converterName
}

// candidates lists probe paths in preference order: portable copies first,
// then well-known system install locations.
func (l *Locator) candidates() []string {
	name := l.executableName()

	portable := []string{
		filepath.Join(l.baseDir, "calibre-portable", name),
		filepath.Join(l.baseDir, "calibre-portable", "calibre", name),
	}

	if l.goos == "windows" {
		portable = append(portable,
			filepath.Join(l.baseDir, "calibre-portable", "Calibre2", name))
		return append(portable,
			filepath.Join(`C:\Program Files\Calibre2`, name),
			filepath.Join(`C:\Program Files (x86)\Calibre2`, name),
			filepath.Join(`C:\Program Files\Calibre`, name),
			filepath.Join(`C:\Program Files (x86)\Calibre`, name),
		)
	}

	return append(portable,
		filepath.Join("/usr/bin", name),
		filepath.Join("/usr/local/bin", name),
	)
}

func (l *Locator) isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if l.goos == "windows" {
		return true
	}
	return info.Mode().Perm()&0111 != 0
}
