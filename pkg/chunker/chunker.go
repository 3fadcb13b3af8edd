package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

// DefaultSeparators are tried in order: paragraphs, lines, sentences, words,
// then single characters.
var DefaultSeparators = []string{"\n\n", "\n", ".", " ", ""}

type Chunker interface {
	Chunk(text string, opts ChunkOptions) []TextChunk
}

type ChunkOptions struct {
	ChunkSize    int    // target chunk size in characters
	ChunkOverlap int    // overlap between chunks
	Strategy     string // one of Strategies
	Separators   []string
}

type TextChunk struct {
	Content string
	Index   int
}

// Strategies lists the accepted ChunkOptions.Strategy values.
var Strategies = []string{"recursive", "fixed", "sentence"}

// ValidStrategy reports whether s names a known strategy. Empty means
// recursive.
func ValidStrategy(s string) bool {
	if s == "" {
		return true
	}
	for _, v := range Strategies {
		if v == s {
			return true
		}
	}
	return false
}

func DefaultOptions() ChunkOptions {
	return ChunkOptions{
		ChunkSize:    1000,
		ChunkOverlap: 150,
		Strategy:     "recursive",
		Separators:   DefaultSeparators,
	}
}

type defaultChunker struct{}

func New() Chunker {
	return &defaultChunker{}
}

func (c *defaultChunker) Chunk(text string, opts ChunkOptions) []TextChunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = 0
	}
	if len(opts.Separators) == 0 {
		opts.Separators = DefaultSeparators
	}

	switch opts.Strategy {
	case "sentence":
		return chunkBySentence(text, opts)
	case "fixed":
		return chunkFixed(text, opts)
	default:
		return chunkRecursive(text, opts)
	}
}

func chunkFixed(text string, opts ChunkOptions) []TextChunk {
	var chunks []TextChunk
	runes := []rune(text)
	step := opts.ChunkSize - opts.ChunkOverlap

	for start := 0; start < len(runes); start += step {
		end := min(start+opts.ChunkSize, len(runes))

		content := string(runes[start:end])
		if strings.TrimSpace(content) != "" {
			chunks = append(chunks, TextChunk{Content: content, Index: len(chunks)})
		}
		if end == len(runes) {
			break
		}
	}

	return chunks
}

// chunkRecursive uses langchaingo's recursive character splitter, which
// measures length in runes and carries ChunkOverlap characters of trailing
// context into the next chunk. Separators stay in the text, attached to the
// start of the piece that follows them.
func chunkRecursive(text string, opts ChunkOptions) []TextChunk {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(opts.ChunkSize),
		textsplitter.WithChunkOverlap(opts.ChunkOverlap),
		textsplitter.WithSeparators(opts.Separators),
		textsplitter.WithKeepSeparator(true),
	)

	parts, err := splitter.SplitText(text)
	if err != nil {
		// The splitter only errors on misconfiguration; fall back to fixed windows.
		return chunkFixed(text, opts)
	}
	return collect(parts)
}

func chunkBySentence(text string, opts ChunkOptions) []TextChunk {
	sentences := splitSentences(text)

	var parts []string
	var current strings.Builder
	var window []string
	fresh := false

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			parts = append(parts, s)
		}
		current.Reset()
		fresh = false
		// Seed the next chunk with trailing sentences up to the overlap budget.
		var carry []string
		size := 0
		for i := len(window) - 1; i >= 0; i-- {
			n := utf8.RuneCountInString(window[i])
			if size+n > opts.ChunkOverlap {
				break
			}
			size += n
			carry = append([]string{window[i]}, carry...)
		}
		window = carry
		for _, s := range carry {
			current.WriteString(s)
		}
	}

	for _, s := range sentences {
		if current.Len() > 0 && utf8.RuneCountInString(current.String()+s) > opts.ChunkSize {
			flush()
		}
		current.WriteString(s)
		window = append(window, s)
		fresh = true
	}
	if s := strings.TrimSpace(current.String()); s != "" && fresh {
		parts = append(parts, s)
	}

	return collect(parts)
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && text[i+1] == ' ' {
			sentences = append(sentences, current.String())
			current.Reset()
		}
	}

	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}

	return sentences
}

// collect numbers the non-blank parts.
func collect(parts []string) []TextChunk {
	chunks := make([]TextChunk, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		chunks = append(chunks, TextChunk{Content: part, Index: len(chunks)})
	}
	return chunks
}
