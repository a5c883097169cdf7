package catalog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeTitle_DeterministicFixedLength(t *testing.T) {
	titles := []string{
		"Война и мир",
		"Мастер и Маргарита",
		"The Go Programming Language",
		"",
		"日本語のタイトル",
	}

	for _, title := range titles {
		token := EncodeTitle(title)
		assert.Len(t, token, TokenLength)
		assert.Equal(t, token, EncodeTitle(title), "token must be stable for %q", title)
		assert.Regexp(t, "^[0-9a-f]{16}$", token)
	}
}

func TestDecodeTitle_RoundTrip(t *testing.T) {
	titles := []string{
		"Война и мир",
		"Анна Каренина",
		"Преступление и наказание",
	}

	for _, title := range titles {
		got, ok := DecodeTitle(EncodeTitle(title), titles)
		require.True(t, ok)
		assert.Equal(t, title, got)
	}
}

func TestDecodeTitle_NotFound(t *testing.T) {
	titles := []string{"Война и мир"}

	_, ok := DecodeTitle(EncodeTitle("Анна Каренина"), titles)
	assert.False(t, ok)

	_, ok = DecodeTitle("0000000000000000", titles)
	assert.False(t, ok)
}

func TestDecodeTitle_FirstMatchWins(t *testing.T) {
	// Distinct titles cannot realistically collide under 64 bits, so
	// force the ambiguity with a duplicate candidate list: the scan must
	// stop at the first hit.
	titles := []string{"Обломов", "Обломов"}

	got, ok := DecodeTitle(EncodeTitle("Обломов"), titles)
	require.True(t, ok)
	assert.Equal(t, "Обломов", got)
}

func TestEncodeTitle_NoCollisionsOverSample(t *testing.T) {
	const sample = 1000

	seen := make(map[string]string, sample)
	for i := 0; i < sample; i++ {
		title := fmt.Sprintf("Книга №%d — издание %d", i, i*31)
		token := EncodeTitle(title)
		if prev, ok := seen[token]; ok {
			t.Fatalf("collision: %q and %q share token %s", prev, title, token)
		}
		seen[token] = title
	}
}
