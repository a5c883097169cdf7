package convert

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/okunev/bookshelf-bot/pkg/file"
)

// Extractor pulls a single recognized source document out of an uploaded
// archive. The archive is scanned in stored member order and the first
// match wins; the source archive itself is never touched. Cleanup of the
// scratch directory is the caller's job.
type Extractor struct {
	extensions []string
}

// NewExtractor recognizes the given member extensions, defaulting to .fb2.
func NewExtractor(extensions ...string) *Extractor {
	if len(extensions) == 0 {
		extensions = []string{".fb2"}
	}
	return &Extractor{extensions: extensions}
}

// Extract materializes the first matching member into scratchDir and
// returns its path. Fails with KindCorruptArchive when the archive cannot
// be read and KindNoMatchingMember when nothing inside matches.
func (e *Extractor) Extract(archivePath, scratchDir string) (string, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", wrapError(KindCorruptArchive,
			fmt.Sprintf("cannot open archive %s", archivePath), err)
	}
	defer reader.Close()

	for _, member := range reader.File {
		if member.FileInfo().IsDir() {
			continue
		}
		if !file.HasAnyExt(member.Name, e.extensions) {
			continue
		}
		return e.extractMember(member, scratchDir)
	}

	return "", newError(KindNoMatchingMember,
		fmt.Sprintf("archive %s holds no member matching %v", archivePath, e.extensions))
}

func (e *Extractor) extractMember(member *zip.File, scratchDir string) (string, error) {
	if err := os.MkdirAll(scratchDir, 0755); err != nil {
		return "", wrapError(KindSourceUnreadable,
			fmt.Sprintf("cannot create scratch directory %s", scratchDir), err)
	}

	src, err := member.Open()
	if err != nil {
		return "", wrapError(KindCorruptArchive,
			fmt.Sprintf("cannot read archive member %s", member.Name), err)
	}
	defer src.Close()

	// Member names may carry archive-internal directories; only the base
	// name lands in scratch.
	target := filepath.Join(scratchDir, filepath.Base(member.Name))
	dst, err := os.Create(target)
	if err != nil {
		return "", wrapError(KindSourceUnreadable,
			fmt.Sprintf("cannot create %s", target), err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(target)
		return "", wrapError(KindCorruptArchive,
			fmt.Sprintf("cannot extract archive member %s", member.Name), err)
	}
	return target, nil
}
