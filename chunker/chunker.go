// Package chunker splits normalized document text into overlapping passages
// sized for embedding.
package chunker

import (
	"regexp"
	"strings"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultOverlap is the default overlap budget between consecutive chunks,
// in characters.
const DefaultOverlap = 200

// Chunk is one overlapping slice of a document's text. Chunks are ephemeral:
// they exist only between splitting and embedding.
type Chunk struct {
	Text  string
	Index int
}

// Chunker accumulates paragraphs into chunks of roughly chunkSize
// characters, carrying a word-level overlap between consecutive chunks.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap budget in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a Chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}

	return c
}

var paragraphRe = regexp.MustCompile(`\n\s*\n`)

// Split breaks text on blank-line paragraph boundaries and packs paragraphs
// into chunks. When a paragraph would push the buffer past the chunk size,
// the buffer is emitted and the next one is seeded with the trailing words
// of the previous chunk. A single paragraph longer than the chunk size is
// emitted whole, unsplit; splitting mid-paragraph would cut sentences that
// bylaw sections depend on.
func (c *Chunker) Split(text string) []Chunk {
	var chunks []Chunk

	var buf strings.Builder
	for _, para := range paragraphRe.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if buf.Len() > 0 && buf.Len()+len(para) > c.chunkSize {
			prev := buf.String()
			chunks = append(chunks, Chunk{Text: prev, Index: len(chunks)})

			buf.Reset()
			if tail := trailingWords(prev, c.overlap/7); tail != "" {
				buf.WriteString(tail)
				buf.WriteString("\n\n")
			}
		}

		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(para)
	}

	if buf.Len() > 0 {
		chunks = append(chunks, Chunk{Text: buf.String(), Index: len(chunks)})
	}

	return chunks
}

// trailingWords returns the last n whitespace-separated words of s. The word
// count approximates the character-based overlap budget (~7 characters per
// word including the separator).
func trailingWords(s string, n int) string {
	if n <= 0 {
		return ""
	}

	words := strings.Fields(s)
	if len(words) > n {
		words = words[len(words)-n:]
	}

	return strings.Join(words, " ")
}
