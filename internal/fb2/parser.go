// Package fb2 extracts catalog metadata from FictionBook 2 documents.
package fb2

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/encoding/charmap"
)

// ErrIncompleteMetadata means the document lacks a title or an author,
// which the catalog requires.
var ErrIncompleteMetadata = errors.New("fb2 document lacks required metadata")

// Metadata is what the catalog needs from an FB2 document.
type Metadata struct {
	Title       string
	Author      string
	Genres      []string
	Description string
	Year        int
	Language    string
}

type fictionBook struct {
	Description struct {
		TitleInfo struct {
			Genres     []string `xml:"genre"`
			Authors    []author `xml:"author"`
			BookTitle  string   `xml:"book-title"`
			Annotation struct {
				Paragraphs []string `xml:"p"`
			} `xml:"annotation"`
			Lang string `xml:"lang"`
		} `xml:"title-info"`
		PublishInfo struct {
			Year string `xml:"year"`
		} `xml:"publish-info"`
	} `xml:"description"`
}

type author struct {
	First  string `xml:"first-name"`
	Middle string `xml:"middle-name"`
	Last   string `xml:"last-name"`
}

func (a author) displayName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.First, a.Middle, a.Last} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// ParseFile parses the FB2 document at path.
func ParseFile(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fb2 %s: %w", path, err)
	}
	defer f.Close()

	meta, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse fb2 %s: %w", path, err)
	}
	return meta, nil
}

// Parse reads an FB2 document. Legacy single-byte encodings declared in the
// XML prolog (windows-1251 and friends) are transparently decoded.
func Parse(r io.Reader) (*Metadata, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charsetReader

	var doc fictionBook
	if err := decoder.Decode(&doc); err != nil {
		return nil, err
	}

	info := doc.Description.TitleInfo

	meta := &Metadata{
		Title:    strings.TrimSpace(info.BookTitle),
		Language: strings.TrimSpace(info.Lang),
	}
	if len(info.Authors) > 0 {
		meta.Author = info.Authors[0].displayName()
	}
	for _, g := range info.Genres {
		if g = strings.TrimSpace(g); g != "" {
			meta.Genres = append(meta.Genres, g)
		}
	}

	var paragraphs []string
	for _, p := range info.Annotation.Paragraphs {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	meta.Description = strings.Join(paragraphs, "\n")

	if year := strings.TrimSpace(doc.Description.PublishInfo.Year); year != "" {
		if n, err := strconv.Atoi(year); err == nil {
			meta.Year = n
		}
	}

	// Old documents often omit <lang>; the annotation text usually gives
	// it away.
	if meta.Language == "" && meta.Description != "" {
		if iso := whatlanggo.DetectLang(meta.Description).Iso6391(); iso != "" {
			meta.Language = iso
		}
	}

	if meta.Title == "" || meta.Author == "" {
		return nil, ErrIncompleteMetadata
	}
	return meta, nil
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "utf-8", "utf8":
		return input, nil
	case "windows-1251", "cp1251":
		return charmap.Windows1251.NewDecoder().Reader(input), nil
	case "koi8-r":
		return charmap.KOI8R.NewDecoder().Reader(input), nil
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	default:
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
}
