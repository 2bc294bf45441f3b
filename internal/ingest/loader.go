// Package ingest bulk-loads a directory of text files into the vector index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/raphaelgruber/ragchat/internal/llm"
	"github.com/raphaelgruber/ragchat/internal/models"
	"github.com/raphaelgruber/ragchat/internal/parser"
	"github.com/raphaelgruber/ragchat/internal/retry"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Upserter writes chunks to the vector index.
type Upserter interface {
	Upsert(ctx context.Context, chunks []models.DocumentChunk) error
}

// Options tunes a load run. Zero values fall back to DefaultOptions.
type Options struct {
	StartID       uint64
	BatchSize     int
	BatchPause    time.Duration
	EmbedInterval time.Duration
	Retry         retry.Policy
	Chunk         parser.ChunkConfig
	DryRun        bool

	// Progress, if set, is called after every file.
	Progress func(Progress)
}

// DefaultOptions returns the pacing used against hosted embedding APIs.
func DefaultOptions() Options {
	return Options{
		StartID:       1,
		BatchSize:     10,
		BatchPause:    200 * time.Millisecond,
		EmbedInterval: 100 * time.Millisecond,
		Retry:         retry.DefaultPolicy(),
		Chunk:         parser.DefaultChunkConfig(),
	}
}

// Progress reports how far a run has come.
type Progress struct {
	File       string
	FilesDone  int
	FilesTotal int
	Chunks     int
}

// Summary is the outcome of a run.
type Summary struct {
	Documents     int
	Skipped       int
	Chunks        int
	Stored        int
	FailedChunks  int
	DroppedChunks int
	FailedBatches int
	Duration      time.Duration
}

// AverageChunks returns the mean number of chunks per processed document.
func (s Summary) AverageChunks() float64 {
	if s.Documents == 0 {
		return 0
	}
	return float64(s.Chunks) / float64(s.Documents)
}

// Loader reads .txt files, chunks them, embeds each chunk and upserts the
// result in small batches. Documents are processed one at a time.
type Loader struct {
	embedder Embedder
	index    Upserter
	opts     Options
	limiter  *rate.Limiter
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewLoader creates a loader. embedder and index may be nil for dry runs.
func NewLoader(embedder Embedder, index Upserter, opts Options) *Loader {
	defaults := DefaultOptions()
	if opts.StartID == 0 {
		opts.StartID = defaults.StartID
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaults.BatchSize
	}
	if opts.Chunk.MaxSize <= 0 {
		opts.Chunk = defaults.Chunk
	}

	limit := rate.Inf
	if opts.EmbedInterval > 0 {
		limit = rate.Every(opts.EmbedInterval)
	}

	return &Loader{
		embedder: embedder,
		index:    index,
		opts:     opts,
		limiter:  rate.NewLimiter(limit, 1),
		sleep:    sleepContext,
	}
}

// Run loads every non-empty *.txt file directly inside dir. A failed chunk
// or batch is logged and skipped; the run only fails when dir cannot be
// read, ctx is cancelled, or the provider rejects the credentials.
func (l *Loader) Run(ctx context.Context, dir string) (Summary, error) {
	start := time.Now()
	var summary Summary

	files, err := listTextFiles(dir)
	if err != nil {
		return summary, err
	}
	slog.Info("loading knowledge base", "dir", dir, "files", len(files), "dry_run", l.opts.DryRun)

	nextID := l.opts.StartID
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}

		n, err := l.loadFile(ctx, path, &nextID, &summary)
		if err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}

		if l.opts.Progress != nil {
			l.opts.Progress(Progress{
				File:       filepath.Base(path),
				FilesDone:  i + 1,
				FilesTotal: len(files),
				Chunks:     n,
			})
		}
	}

	summary.Duration = time.Since(start)
	slog.Info("knowledge base loaded",
		"documents", summary.Documents,
		"chunks", summary.Chunks,
		"stored", summary.Stored,
		"failed_chunks", summary.FailedChunks,
		"dropped_chunks", summary.DroppedChunks,
		"duration_ms", summary.Duration.Milliseconds(),
	)
	return summary, nil
}

// loadFile processes one document and returns its chunk count.
func (l *Loader) loadFile(ctx context.Context, path string, nextID *uint64, summary *Summary) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("failed to read file", "file", path, "error", err)
		summary.Skipped++
		return 0, nil
	}
	if strings.TrimSpace(string(raw)) == "" {
		slog.Info("skipping empty file", "file", path)
		summary.Skipped++
		return 0, nil
	}

	doc := parser.ParseDocument(filepath.Base(path), string(raw))
	texts := parser.ChunkText(doc.Content, l.opts.Chunk)
	if len(texts) == 0 {
		summary.Skipped++
		return 0, nil
	}

	summary.Documents++
	summary.Chunks += len(texts)
	slog.Debug("processing document", "file", path, "title", doc.Title, "chunks", len(texts))

	if l.opts.DryRun {
		*nextID += uint64(len(texts))
		return len(texts), nil
	}

	batch := make([]models.DocumentChunk, 0, l.opts.BatchSize)
	for i, text := range texts {
		id := *nextID
		*nextID++

		if err := l.limiter.Wait(ctx); err != nil {
			return 0, err
		}
		vector, err := l.embedder.Embed(ctx, text)
		if err != nil {
			if llm.IsFatal(err) {
				return 0, fmt.Errorf("embed %s: %w", doc.Title, err)
			}
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			slog.Warn("failed to embed chunk", "title", doc.Title, "chunk", i+1, "error", err)
			summary.FailedChunks++
			continue
		}

		batch = append(batch, models.DocumentChunk{
			DocumentID:     id,
			DocumentName:   parser.ChunkName(doc.Title, i, len(texts)),
			Contents:       text,
			ContentsVector: vector,
		})

		if len(batch) == l.opts.BatchSize {
			if err := l.flush(ctx, doc.Title, batch, summary); err != nil {
				return 0, err
			}
			batch = batch[:0]
			if err := l.sleep(ctx, l.opts.BatchPause); err != nil {
				return 0, err
			}
		}
	}

	if len(batch) > 0 {
		if err := l.flush(ctx, doc.Title, batch, summary); err != nil {
			return 0, err
		}
	}
	return len(texts), nil
}

// flush upserts batch under the retry policy. A batch that still fails is
// dropped; only cancellation is returned as an error.
func (l *Loader) flush(ctx context.Context, title string, batch []models.DocumentChunk, summary *Summary) error {
	err := l.opts.Retry.Do(ctx, func(ctx context.Context) error {
		return l.index.Upsert(ctx, batch)
	}, func(attempt int, err error, wait time.Duration) {
		slog.Warn("upsert failed, retrying", "title", title, "chunks", len(batch), "attempt", attempt, "wait_ms", wait.Milliseconds(), "error", err)
	})

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Error("dropping batch after retries", "title", title, "chunks", len(batch), "error", err)
		summary.FailedBatches++
		summary.DroppedChunks += len(batch)
		return nil
	}

	summary.Stored += len(batch)
	return nil
}

// listTextFiles returns the *.txt regular files directly inside dir in
// name order.
func listTextFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".txt" {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, errors.New("no .txt files found in " + dir)
	}
	return files, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
