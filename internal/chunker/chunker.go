// Package chunker splits long transcripts into sentence-aligned pieces small
// enough to be summarized independently.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxChunkSize is the chunk limit, in characters, used when none is given
const DefaultMaxChunkSize = 5000

// sentenceDelimiter separates sentences in transcript text
const sentenceDelimiter = ". "

// Split breaks text into chunks of at most maxChunkSize characters. Sentences
// are never cut: a sentence longer than the limit becomes its own chunk.
// Text that already fits is returned unchanged as a single chunk. The period
// closing a sentence counts toward the limit, so a sentence of exactly
// maxChunkSize characters yields a chunk one character longer.
func Split(text string, maxChunkSize int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	if utf8.RuneCountInString(text) <= maxChunkSize {
		return []string{text}
	}

	sentences := strings.Split(text, sentenceDelimiter)

	var (
		chunks []string
		buf    strings.Builder
		size   int
	)
	flush := func() {
		if chunk := strings.TrimSpace(buf.String()); chunk != "" {
			chunks = append(chunks, chunk)
		}
		buf.Reset()
		size = 0
	}

	for i, sentence := range sentences {
		piece := sentence
		// the delimiter belongs to every sentence but the last
		if i < len(sentences)-1 {
			piece += sentenceDelimiter
		}
		n := utf8.RuneCountInString(piece)
		if size > 0 && size+n > maxChunkSize {
			flush()
		}
		buf.WriteString(piece)
		size += n
	}
	flush()

	return chunks
}
