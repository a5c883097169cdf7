package catalog

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// Format is a supported e-book file format.
type Format string

const (
	FormatFB2  Format = "fb2"
	FormatEPUB Format = "epub"
	FormatMOBI Format = "mobi"
)

// AllFormats lists supported formats in conversion-chain order.
var AllFormats = []Format{FormatFB2, FormatEPUB, FormatMOBI}

// ParseFormat normalizes a user-supplied format name.
func ParseFormat(s string) (Format, bool) {
	f := Format(strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "."))))
	for _, known := range AllFormats {
		if f == known {
			return f, true
		}
	}
	return "", false
}

// Book is a catalog record. The title is the natural key: unique within the
// catalog and never empty.
type Book struct {
	Title       string            `json:"title"`
	Author      string            `json:"author,omitempty"`
	Description string            `json:"description,omitempty"`
	Genres      []string          `json:"genres,omitempty"`
	Year        int               `json:"year,omitempty"`
	Language    string            `json:"language,omitempty"`
	Links       map[string]string `json:"links,omitempty"`
	Files       map[Format]string `json:"files,omitempty"`
	AddedAt     time.Time         `json:"added_at,omitempty"`
}

// Formats returns the book's available formats in stable order.
func (b Book) Formats() []Format {
	formats := make([]Format, 0, len(b.Files))
	for f := range b.Files {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}

// ShortDescription truncates the description to max runes for display,
// appending an ellipsis when something was cut.
func (b Book) ShortDescription(max int) string {
	if max <= 0 || utf8.RuneCountInString(b.Description) <= max {
		return b.Description
	}
	runes := []rune(b.Description)
	return strings.TrimSpace(string(runes[:max])) + "…"
}
