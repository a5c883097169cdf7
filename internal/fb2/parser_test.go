package fb2

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

const sampleUTF8 = `<?xml version="1.0" encoding="utf-8"?>
<FictionBook xmlns="http://www.gribuser.ru/xml/fictionbook/2.0">
  <description>
    <title-info>
      <genre>prose_classic</genre>
      <genre>prose_rus_classic</genre>
      <author>
        <first-name>Лев</first-name>
        <middle-name>Николаевич</middle-name>
        <last-name>Толстой</last-name>
      </author>
      <book-title>Война и мир</book-title>
      <annotation>
        <p>Роман-эпопея, описывающий русское общество в эпоху войн против Наполеона.</p>
        <p>Одно из самых известных произведений мировой литературы.</p>
      </annotation>
      <lang>ru</lang>
    </title-info>
    <publish-info>
      <year>1869</year>
    </publish-info>
  </description>
  <body><section><p>…</p></section></body>
</FictionBook>`

func TestParse_UTF8Document(t *testing.T) {
	meta, err := Parse(strings.NewReader(sampleUTF8))
	require.NoError(t, err)

	assert.Equal(t, "Война и мир", meta.Title)
	assert.Equal(t, "Лев Николаевич Толстой", meta.Author)
	assert.Equal(t, []string{"prose_classic", "prose_rus_classic"}, meta.Genres)
	assert.Contains(t, meta.Description, "Роман-эпопея")
	assert.Contains(t, meta.Description, "мировой литературы")
	assert.Equal(t, 1869, meta.Year)
	assert.Equal(t, "ru", meta.Language)
}

func TestParse_Windows1251Document(t *testing.T) {
	utf8Doc := `<?xml version="1.0" encoding="windows-1251"?>
<FictionBook xmlns="http://www.gribuser.ru/xml/fictionbook/2.0">
  <description>
    <title-info>
      <author><first-name>Иван</first-name><last-name>Гончаров</last-name></author>
      <book-title>Обломов</book-title>
      <lang>ru</lang>
    </title-info>
  </description>
</FictionBook>`

	encoded, err := charmap.Windows1251.NewEncoder().Bytes([]byte(utf8Doc))
	require.NoError(t, err)

	meta, err := Parse(bytes.NewReader(encoded))
	require.NoError(t, err)
	assert.Equal(t, "Обломов", meta.Title)
	assert.Equal(t, "Иван Гончаров", meta.Author)
}

func TestParse_LanguageFallbackFromAnnotation(t *testing.T) {
	doc := `<?xml version="1.0" encoding="utf-8"?>
<FictionBook xmlns="http://www.gribuser.ru/xml/fictionbook/2.0">
  <description>
    <title-info>
      <author><first-name>Фёдор</first-name><last-name>Достоевский</last-name></author>
      <book-title>Идиот</book-title>
      <annotation>
        <p>Роман о князе Мышкине, человеке исключительной доброты, вернувшемся в Петербург после долгого лечения.</p>
      </annotation>
    </title-info>
  </description>
</FictionBook>`

	meta, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "ru", meta.Language)
}

func TestParse_MissingRequiredMetadata(t *testing.T) {
	doc := `<?xml version="1.0" encoding="utf-8"?>
<FictionBook xmlns="http://www.gribuser.ru/xml/fictionbook/2.0">
  <description>
    <title-info>
      <book-title>Безымянный автор</book-title>
    </title-info>
  </description>
</FictionBook>`

	_, err := Parse(strings.NewReader(doc))
	require.ErrorIs(t, err, ErrIncompleteMetadata)
}

func TestParse_MalformedXML(t *testing.T) {
	_, err := Parse(strings.NewReader("<FictionBook><broken"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrIncompleteMetadata)
}

func TestParse_UnsupportedCharset(t *testing.T) {
	doc := `<?xml version="1.0" encoding="shift_jis"?><FictionBook/>`
	_, err := Parse(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "charset")
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.fb2")
	require.NoError(t, os.WriteFile(path, []byte(sampleUTF8), 0644))

	meta, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Война и мир", meta.Title)

	_, err = ParseFile(path + ".missing")
	require.Error(t, err)
}
