package vectorstore

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/ragchat/internal/config"
	"github.com/raphaelgruber/ragchat/internal/metrics"
	"github.com/raphaelgruber/ragchat/internal/models"
)

// Index is the vector index used by chat, upload and the offline loader.
type Index interface {
	// EnsureCollection creates the collection when it does not exist.
	EnsureCollection(ctx context.Context) error
	// Upsert stores all chunks as one batch.
	Upsert(ctx context.Context, chunks []models.DocumentChunk) error
	// Search returns up to limit results ordered by descending score.
	Search(ctx context.Context, vector []float32, limit int) ([]models.RetrievalResult, error)
	// Count returns the number of stored points.
	Count(ctx context.Context) (uint64, error)
	Close() error
}

// New opens the index selected by cfg.VectorStore.
func New(cfg config.Config, collector *metrics.Collector) (Index, error) {
	switch cfg.VectorStore {
	case config.VectorStoreQdrant:
		return NewQdrant(QdrantConfig{
			URL:        cfg.QdrantAddress(),
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
			Dimension:  cfg.EmbedDimension,
		}, collector)
	case config.VectorStoreMemory:
		return NewMemory(cfg.EmbedDimension, collector), nil
	default:
		return nil, fmt.Errorf("unsupported vector store: %s", cfg.VectorStore)
	}
}
