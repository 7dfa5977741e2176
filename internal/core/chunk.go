package core

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type chunk struct {
	Text   string
	Offset int
}

// splitChunks cuts text into sequential windows of at most size bytes. A window ends after the last sentence break
// in its second half, else at its last whitespace there, so multi-word names are rarely split. size <= 0 yields a
// single chunk.
func splitChunks(text string, size int) []chunk {
	if size <= 0 || len(text) <= size {
		return []chunk{{Text: text, Offset: 0}}
	}

	var chunks []chunk
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			chunks = append(chunks, chunk{Text: text[start:], Offset: start})
			break
		}
		for end > start && !utf8.RuneStart(text[end]) {
			end--
		}
		window := text[start:end]
		cut := lastSentenceBreak(window)
		if cut <= len(window)/2 {
			cut = strings.LastIndexFunc(window, unicode.IsSpace)
		}
		if cut > len(window)/2 {
			_, w := utf8.DecodeRuneInString(text[start+cut:])
			end = start + cut + w
		}
		if end == start {
			// a single rune wider than size
			_, w := utf8.DecodeRuneInString(text[start:])
			end = start + w
		}
		chunks = append(chunks, chunk{Text: text[start:end], Offset: start})
		start = end
	}
	return chunks
}

// lastSentenceBreak returns the index of the last whitespace that follows sentence punctuation, or -1.
func lastSentenceBreak(window string) int {
	for i := len(window); i > 0; {
		r, w := utf8.DecodeLastRuneInString(window[:i])
		i -= w
		if unicode.IsSpace(r) && i > 0 && strings.IndexByte(".!?;", window[i-1]) >= 0 {
			return i
		}
	}
	return -1
}
