package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Overlap modes.
const (
	// OverlapChars seeds each new chunk with the trailing Overlap characters
	// of the previous chunk, cut back to a word boundary.
	OverlapChars = "chars"
	// OverlapSentences seeds each new chunk with the last two sentence units
	// of the previous chunk, ignoring Overlap.
	OverlapSentences = "sentences"
)

// ChunkConfig defines chunking parameters.
type ChunkConfig struct {
	// MaxSize: accumulation trigger in characters. A single sentence longer
	// than MaxSize is still emitted whole.
	MaxSize int
	// Overlap: character overlap between chunks
	Overlap int
	// Mode: OverlapChars or OverlapSentences
	Mode string
}

// DefaultChunkConfig returns the settings used for knowledge uploads.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxSize: 1000,
		Overlap: 100,
		Mode:    OverlapChars,
	}
}

// Chunk splits text into overlapping chunks of roughly maxSize characters
// using the default overlap mode.
func Chunk(text string, maxSize, overlap int) []string {
	return ChunkText(text, ChunkConfig{MaxSize: maxSize, Overlap: overlap, Mode: OverlapChars})
}

// ChunkText splits text into sentence units and greedily packs them into
// chunks. Every returned chunk is trimmed and non-empty; empty input
// yields no chunks.
func ChunkText(text string, config ChunkConfig) []string {
	units := splitSentences(text)
	if len(units) == 0 {
		return nil
	}

	var chunks []string
	var current strings.Builder
	var currentUnits []string

	flush := func() string {
		chunk := strings.TrimSpace(current.String())
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		current.Reset()
		return chunk
	}

	for _, unit := range units {
		piece := unit + ". "

		if current.Len() > 0 && utf8.RuneCountInString(current.String())+utf8.RuneCountInString(piece) > config.MaxSize {
			flushed := flush()

			// Seed the next buffer for continuity across chunks.
			var seed string
			if config.Mode == OverlapSentences {
				tail := lastUnits(currentUnits, 2)
				currentUnits = append(currentUnits[:0], tail...)
				if len(tail) > 0 {
					seed = strings.Join(tail, ". ") + "."
				}
			} else {
				currentUnits = currentUnits[:0]
				seed = trailingOverlap(flushed, config.Overlap)
			}
			if seed != "" {
				current.WriteString(seed)
				current.WriteString(" ")
			}
		}

		current.WriteString(piece)
		currentUnits = append(currentUnits, unit)
	}

	flush()
	return chunks
}

// splitSentences splits text on runs of sentence-terminal punctuation.
// Delimiters are dropped and units are trimmed; empty units are skipped.
// Abbreviations and decimal numbers are split too.
func splitSentences(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})

	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		sentences = append(sentences, s)
	}
	return sentences
}

// trailingOverlap returns the last overlap characters of chunk, advanced to
// the next word boundary so no word is cut in half.
func trailingOverlap(chunk string, overlap int) string {
	if overlap <= 0 || chunk == "" {
		return ""
	}

	runes := []rune(chunk)
	if len(runes) <= overlap {
		return chunk
	}

	start := len(runes) - overlap
	if !unicode.IsSpace(runes[start-1]) {
		for i := start; i < len(runes)-1; i++ {
			if unicode.IsSpace(runes[i]) {
				start = i + 1
				break
			}
		}
	}
	return strings.TrimSpace(string(runes[start:]))
}

// lastUnits returns a copy of the last n units.
func lastUnits(units []string, n int) []string {
	if len(units) > n {
		units = units[len(units)-n:]
	}
	return append([]string(nil), units...)
}
