package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/ragchat/internal/llm"
	"github.com/raphaelgruber/ragchat/internal/models"
	"github.com/raphaelgruber/ragchat/internal/parser"
	"github.com/raphaelgruber/ragchat/internal/retry"
)

type fakeEmbedder struct {
	failOn string
	err    error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, errors.New("transient embedding error")
	}
	return []float32{1, 2, 3}, nil
}

type fakeIndex struct {
	mu       sync.Mutex
	failures int // number of upsert calls to fail before succeeding
	calls    int
	batches  [][]models.DocumentChunk
}

func (f *fakeIndex) Upsert(_ context.Context, chunks []models.DocumentChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return errors.New("qdrant unavailable")
	}
	f.batches = append(f.batches, append([]models.DocumentChunk(nil), chunks...))
	return nil
}

func (f *fakeIndex) chunks() []models.DocumentChunk {
	var out []models.DocumentChunk
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func testOptions() Options {
	return Options{
		StartID:   100,
		BatchSize: 2,
		Retry:     retry.Policy{MaxRetries: 1, InitialDelay: time.Millisecond, Multiplier: 1, MaxDelay: time.Millisecond},
		Chunk:     parser.ChunkConfig{MaxSize: 20, Overlap: 0, Mode: parser.OverlapChars},
	}
}

func TestRun(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"opening_hours.txt": "We open at nine. We close at five. Sundays closed.",
		"empty.txt":         "  \n\n ",
		"notes.md":          "Not a knowledge file.",
		"pricing.txt":       "---\ntitle: Price List\n---\nBasic costs ten.",
	})
	index := &fakeIndex{}

	var progress []Progress
	opts := testOptions()
	opts.Progress = func(p Progress) { progress = append(progress, p) }

	summary, err := NewLoader(&fakeEmbedder{}, index, opts).Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Documents)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 4, summary.Chunks)
	assert.Equal(t, 4, summary.Stored)
	assert.InDelta(t, 2.0, summary.AverageChunks(), 0.001)

	chunks := index.chunks()
	require.Len(t, chunks, 4)
	// Files are processed in name order: opening_hours.txt, then pricing.txt.
	assert.Equal(t, uint64(100), chunks[0].DocumentID)
	assert.Equal(t, "opening hours (1/3)", chunks[0].DocumentName)
	assert.Equal(t, "We open at nine.", chunks[0].Contents)
	assert.Equal(t, "opening hours (3/3)", chunks[2].DocumentName)
	assert.Equal(t, uint64(103), chunks[3].DocumentID)
	assert.Equal(t, "Price List (1/1)", chunks[3].DocumentName)

	// opening_hours yields a full batch of 2 and a remainder of 1.
	assert.Len(t, index.batches, 3)

	require.Len(t, progress, 3)
	assert.Equal(t, Progress{File: "pricing.txt", FilesDone: 3, FilesTotal: 3, Chunks: 1}, progress[2])
}

func TestRunSkipsFailedChunks(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"doc.txt": "We open at nine. We close at five. Sundays closed.",
	})
	index := &fakeIndex{}

	summary, err := NewLoader(&fakeEmbedder{failOn: "five"}, index, testOptions()).Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FailedChunks)
	assert.Equal(t, 2, summary.Stored)
	ids := []uint64{}
	for _, c := range index.chunks() {
		ids = append(ids, c.DocumentID)
	}
	assert.Equal(t, []uint64{100, 102}, ids, "the failed chunk keeps its id slot")
}

func TestRunRetriesBatch(t *testing.T) {
	tests := []struct {
		name        string
		failures    int
		wantStored  int
		wantDropped int
		wantCalls   int
	}{
		{"succeeds on retry", 1, 1, 0, 2},
		{"dropped after retry", 2, 0, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeFiles(t, map[string]string{"doc.txt": "Only one sentence."})
			index := &fakeIndex{failures: tt.failures}

			summary, err := NewLoader(&fakeEmbedder{}, index, testOptions()).Run(context.Background(), dir)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStored, summary.Stored)
			assert.Equal(t, tt.wantDropped, summary.DroppedChunks)
			assert.Equal(t, tt.wantCalls, index.calls)
		})
	}
}

func TestRunDryRun(t *testing.T) {
	dir := writeFiles(t, map[string]string{"doc.txt": "One. Two. Three."})
	opts := testOptions()
	opts.DryRun = true

	summary, err := NewLoader(nil, nil, opts).Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Documents)
	assert.Equal(t, 1, summary.Chunks)
	assert.Equal(t, 0, summary.Stored)
}

func TestRunStopsOnFatalProviderError(t *testing.T) {
	dir := writeFiles(t, map[string]string{"doc.txt": "One sentence here."})
	embedder := &fakeEmbedder{err: errors.Join(llm.ErrFatalAPI, errors.New("invalid api key"))}

	_, err := NewLoader(embedder, &fakeIndex{}, testOptions()).Run(context.Background(), dir)
	require.Error(t, err)
	assert.True(t, llm.IsFatal(err))
}

func TestRunErrors(t *testing.T) {
	_, err := NewLoader(nil, nil, testOptions()).Run(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.ErrorContains(t, err, "read directory")

	dir := writeFiles(t, map[string]string{"readme.md": "x"})
	_, err = NewLoader(nil, nil, testOptions()).Run(context.Background(), dir)
	assert.ErrorContains(t, err, "no .txt files")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dir = writeFiles(t, map[string]string{"doc.txt": "One."})
	_, err = NewLoader(&fakeEmbedder{}, &fakeIndex{}, testOptions()).Run(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}
