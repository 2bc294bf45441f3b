package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raphaelgruber/ragchat/internal/models"
	"github.com/raphaelgruber/ragchat/internal/parser"
)

var errNoContent = errors.New("content is empty")

// Upload chunks content, embeds every chunk in parallel and upserts them as
// one batch. It never returns an error: any failure yields a result with
// Success false and nothing written to the index.
func (s *ChatService) Upload(ctx context.Context, content, title string) models.UploadResult {
	start := time.Now()

	count, err := s.upload(ctx, content, title)
	if err != nil {
		slog.Warn("upload failed", "title", title, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return models.UploadResult{
			Success:          false,
			DocumentID:       nil,
			Message:          fmt.Sprintf("Upload failed: %v", err),
			DocumentsCreated: 0,
		}
	}

	documentID := s.newID()
	slog.Info("upload completed", "title", title, "chunks", count, "document_id", documentID, "duration_ms", time.Since(start).Milliseconds())
	return models.UploadResult{
		Success:          true,
		DocumentID:       &documentID,
		Message:          fmt.Sprintf("Successfully uploaded %d document chunks", count),
		DocumentsCreated: count,
	}
}

func (s *ChatService) upload(ctx context.Context, content, title string) (int, error) {
	texts := parser.ChunkText(content, s.opts.Chunk)
	if len(texts) == 0 {
		return 0, errNoContent
	}

	// Reserve a contiguous id range for this upload.
	n := uint64(len(texts))
	firstID := s.nextDocID.Add(n) - n

	chunks := make([]models.DocumentChunk, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.UploadConcurrency)

	for i, text := range texts {
		g.Go(func() error {
			vector, err := s.embedder.Embed(gctx, text)
			if err != nil {
				return fmt.Errorf("embed chunk %d/%d: %w", i+1, len(texts), err)
			}
			chunks[i] = models.DocumentChunk{
				DocumentID:     firstID + uint64(i),
				DocumentName:   title,
				Contents:       text,
				ContentsVector: vector,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if err := s.index.Upsert(ctx, chunks); err != nil {
		return 0, fmt.Errorf("upsert: %w", err)
	}
	return len(chunks), nil
}
