package service

import (
	"context"
	"log/slog"

	"github.com/raphaelgruber/ragchat/internal/models"
)

// DefaultSearchLimit is used when Search is called without a positive limit.
const DefaultSearchLimit = 5

// Search returns the documents most similar to query. It is best effort:
// any failure is logged and yields an empty slice.
func (s *ChatService) Search(ctx context.Context, query string, limit int) []models.Document {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		slog.Warn("search embedding failed", "error", err)
		return []models.Document{}
	}

	results, err := s.index.Search(ctx, vector, limit)
	if err != nil {
		slog.Warn("search failed", "limit", limit, "error", err)
		return []models.Document{}
	}

	docs := make([]models.Document, len(results))
	for i, r := range results {
		docs[i] = r.Document()
	}
	return docs
}
