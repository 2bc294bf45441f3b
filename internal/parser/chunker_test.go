package parser

import (
	"fmt"
	"strings"
	"testing"
)

func TestChunk_EmptyContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "completely empty", content: ""},
		{name: "whitespace only", content: "   \n\n\t  "},
		{name: "punctuation only", content: "...!?!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Chunk(tt.content, 1000, 100)
			if len(chunks) != 0 {
				t.Errorf("Chunk() got %d chunks, want 0", len(chunks))
				for i, c := range chunks {
					t.Errorf("  chunk[%d]: %q", i, c)
				}
			}
		})
	}
}

func TestChunk_ShortContentSingleChunk(t *testing.T) {
	chunks := Chunk("Hello world! How are you?", 1000, 100)
	if len(chunks) != 1 {
		t.Fatalf("Chunk() got %d chunks, want 1", len(chunks))
	}
	if chunks[0] != "Hello world. How are you." {
		t.Errorf("chunk[0] = %q", chunks[0])
	}
}

func TestChunk_OversizedSentence(t *testing.T) {
	sentence := strings.Repeat("word ", 400) + "end"

	chunks := Chunk(sentence+".", 1000, 100)
	if len(chunks) != 1 {
		t.Fatalf("Chunk() got %d chunks, want 1", len(chunks))
	}
	if !strings.Contains(chunks[0], strings.TrimSpace(sentence)) {
		t.Errorf("oversized sentence was truncated: %d chars", len(chunks[0]))
	}
}

func TestChunk_CharacterOverlap(t *testing.T) {
	text := "alpha beta gamma. delta epsilon zeta. eta theta iota."

	got := Chunk(text, 30, 10)
	want := []string{
		"alpha beta gamma.",
		"gamma. delta epsilon zeta.",
		"zeta. eta theta iota.",
	}

	if len(got) != len(want) {
		t.Fatalf("Chunk() got %d chunks %q, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestChunkText_SentenceOverlap(t *testing.T) {
	text := "alpha beta gamma. delta epsilon zeta. eta theta iota."

	got := ChunkText(text, ChunkConfig{MaxSize: 30, Mode: OverlapSentences})
	want := []string{
		"alpha beta gamma.",
		"alpha beta gamma. delta epsilon zeta.",
		"alpha beta gamma. delta epsilon zeta. eta theta iota.",
	}

	if len(got) != len(want) {
		t.Fatalf("ChunkText() got %d chunks %q, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestChunk_CoversAllSentences(t *testing.T) {
	var b strings.Builder
	for i := range 120 {
		fmt.Fprintf(&b, "Sentence number %d talks about topic %d! ", i, i%7)
	}

	for _, mode := range []string{OverlapChars, OverlapSentences} {
		t.Run(mode, func(t *testing.T) {
			chunks := ChunkText(b.String(), ChunkConfig{MaxSize: 200, Overlap: 40, Mode: mode})
			if len(chunks) < 2 {
				t.Fatalf("expected multiple chunks, got %d", len(chunks))
			}

			for i, c := range chunks {
				if c == "" || c != strings.TrimSpace(c) {
					t.Errorf("chunk[%d] is empty or untrimmed: %q", i, c)
				}
			}

			joined := strings.Join(chunks, "\n")
			for i := range 120 {
				sentence := fmt.Sprintf("Sentence number %d talks about topic %d.", i, i%7)
				if !strings.Contains(joined, sentence) {
					t.Errorf("sentence %d missing from chunks", i)
				}
			}

			// Each chunk after the first starts with text carried over from its predecessor.
			for i := 1; i < len(chunks); i++ {
				first := strings.Fields(chunks[i])[0]
				if !strings.Contains(chunks[i-1], first) {
					t.Errorf("chunk[%d] does not overlap chunk[%d]: starts with %q", i, i-1, first)
				}
			}
		})
	}
}

func TestTrailingOverlap_EdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		chunk   string
		overlap int
		want    string
	}{
		{name: "zero overlap", chunk: "some text here.", overlap: 0, want: ""},
		{name: "overlap larger than chunk", chunk: "tiny.", overlap: 50, want: "tiny."},
		{name: "cut mid word advances to next word", chunk: "alpha beta gamma.", overlap: 10, want: "gamma."},
		{name: "cut on word start keeps word", chunk: "alpha beta gamma.", overlap: 11, want: "beta gamma."},
		{name: "no whitespace keeps raw tail", chunk: "abcdefghij", overlap: 4, want: "ghij"},
		{name: "multibyte runes", chunk: "안녕하세요 해피톡 입니다.", overlap: 5, want: "입니다."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := trailingOverlap(tt.chunk, tt.overlap); got != tt.want {
				t.Errorf("trailingOverlap() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("First one. Second?! Third...   Fourth 3.5 percent")
	want := []string{"First one", "Second", "Third", "Fourth 3", "5 percent"}

	if len(got) != len(want) {
		t.Fatalf("splitSentences() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("unit[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
