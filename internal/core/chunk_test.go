package core

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestSplitChunks_Disabled(t *testing.T) {
	for _, size := range []int{-1, 0, 100} {
		chunks := splitChunks("Plato was a student of Socrates.", size)
		assert.Len(t, chunks, 1)
		assert.Equal(t, 0, chunks[0].Offset)
	}
}

func TestSplitChunks_PrefersWhitespace(t *testing.T) {
	chunks := splitChunks("Socrates teaches Plato. Later, Plato teaches Aristotle.", 25)

	got := make([]string, len(chunks))
	for i, c := range chunks {
		got[i] = c.Text
	}
	assert.Equal(t, []string{"Socrates teaches Plato. ", "Later, Plato teaches ", "Aristotle."}, got)
	assert.Equal(t, []int{0, 24, 45}, []int{chunks[0].Offset, chunks[1].Offset, chunks[2].Offset})
}

func TestSplitChunks_PrefersSentenceBreaks(t *testing.T) {
	chunks := splitChunks("Kant reads Hume. Thomas Aquinas builds on Aristotle.", 26)

	got := make([]string, len(chunks))
	for i, c := range chunks {
		got[i] = c.Text
	}
	assert.Equal(t, []string{"Kant reads Hume. ", "Thomas Aquinas builds on ", "Aristotle."}, got)
	assert.Equal(t, 17, chunks[1].Offset)
}

func TestSplitChunks_MultiByte(t *testing.T) {
	text := "Königsberg Königsberg"
	for size := 1; size < len(text); size++ {
		for _, c := range splitChunks(text, size) {
			assert.True(t, utf8.ValidString(c.Text), "size %d produced %q", size, c.Text)
		}
	}
}

func TestSplitChunks_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.String().Draw(t, "text")
		size := rapid.IntRange(1, 64).Draw(t, "size")

		chunks := splitChunks(text, size)

		var b strings.Builder
		offset := 0
		for _, c := range chunks {
			if c.Offset != offset {
				t.Fatalf("chunk offset %d, want %d", c.Offset, offset)
			}
			if len(chunks) > 1 && c.Text == "" {
				t.Fatalf("empty chunk in %v", chunks)
			}
			if len(c.Text) > size && len(c.Text) > utf8.UTFMax {
				t.Fatalf("chunk %q exceeds size %d", c.Text, size)
			}
			if !utf8.ValidString(c.Text) {
				t.Fatalf("chunk %q splits a rune", c.Text)
			}
			b.WriteString(c.Text)
			offset += len(c.Text)
		}
		if b.String() != text {
			t.Fatalf("chunks do not reassemble the text")
		}
	})
}
