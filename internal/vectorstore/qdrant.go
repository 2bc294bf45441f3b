package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/raphaelgruber/ragchat/internal/metrics"
	"github.com/raphaelgruber/ragchat/internal/models"
)

// Payload keys stored with every point.
const (
	payloadDocID     = "docId"
	payloadDocTitle  = "docTitle"
	payloadContents  = "contents"
	payloadCreatedAt = "createdAt"
)

// QdrantConfig holds Qdrant connection configuration.
type QdrantConfig struct {
	URL        string // http(s)://host:port of the gRPC endpoint
	APIKey     string
	Collection string
	Dimension  int
}

// Qdrant is an Index backed by a Qdrant collection over gRPC.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	dimension  int
	metrics    *metrics.Collector
	now        func() time.Time
}

// NewQdrant connects to Qdrant. The connection is lazy; the first call
// surfaces network errors.
func NewQdrant(cfg QdrantConfig, collector *metrics.Collector) (*Qdrant, error) {
	clientCfg, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	clientCfg.APIKey = cfg.APIKey

	client, err := qdrant.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	return &Qdrant{
		client:     client,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		metrics:    collector,
		now:        time.Now,
	}, nil
}

// parseQdrantURL turns "https://host:6334" into a client config. A missing
// port defaults to 6334; https enables TLS.
func parseQdrantURL(raw string) (*qdrant.Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant url: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("parse qdrant url: missing host in %q", raw)
	}

	port := 6334
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("parse qdrant url: invalid port %q", p)
		}
	}

	return &qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		UseTLS: u.Scheme == "https",
	}, nil
}

// EnsureCollection creates the collection with cosine distance if absent and
// checks the vector size of an existing one.
func (q *Qdrant) EnsureCollection(ctx context.Context) error {
	names, err := q.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", wrapQdrantError(err))
	}

	if slices.Contains(names, q.collection) {
		info, err := q.client.GetCollectionInfo(ctx, q.collection)
		if err != nil {
			return fmt.Errorf("get collection info: %w", wrapQdrantError(err))
		}
		size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if size != 0 && int(size) != q.dimension {
			return fmt.Errorf("%w: collection %s has size %d, want %d", ErrDimensionMismatch, q.collection, size, q.dimension)
		}
		slog.Info("collection already exists", "collection", q.collection)
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", wrapQdrantError(err))
	}

	slog.Info("collection created", "collection", q.collection, "dimension", q.dimension)
	return nil
}

// Upsert stores all chunks in one request and waits for it to be applied.
func (q *Qdrant) Upsert(ctx context.Context, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	createdAt := q.now().UTC()
	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		if len(c.ContentsVector) != q.dimension {
			return fmt.Errorf("%w: chunk %d has %d dimensions, want %d", ErrDimensionMismatch, c.DocumentID, len(c.ContentsVector), q.dimension)
		}
		payload, err := qdrant.TryValueMap(payloadMap(c.Payload(createdAt)))
		if err != nil {
			return fmt.Errorf("build payload for chunk %d: %w", c.DocumentID, err)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(c.DocumentID),
			Vectors: qdrant.NewVectorsDense(c.ContentsVector),
			Payload: payload,
		})
	}

	start := time.Now()
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	duration := time.Since(start)
	if err != nil {
		q.metrics.RecordFailure(metrics.OpVectorUpsert, duration)
		slog.Warn("upsert failed", "collection", q.collection, "points", len(points), "duration_ms", duration.Milliseconds(), "error", err)
		return fmt.Errorf("upsert: %w", wrapQdrantError(err))
	}
	q.metrics.RecordTiming(metrics.OpVectorUpsert, duration)

	slog.Debug("upsert complete", "collection", q.collection, "points", len(points), "duration_ms", duration.Milliseconds())
	return nil
}

// Search returns the limit nearest points with their payloads.
func (q *Qdrant) Search(ctx context.Context, vector []float32, limit int) ([]models.RetrievalResult, error) {
	if limit <= 0 {
		limit = 5
	}

	start := time.Now()
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vector),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	duration := time.Since(start)
	if err != nil {
		q.metrics.RecordFailure(metrics.OpVectorSearch, duration)
		slog.Warn("search failed", "collection", q.collection, "duration_ms", duration.Milliseconds(), "error", err)
		return nil, fmt.Errorf("search: %w", wrapQdrantError(err))
	}
	q.metrics.RecordTiming(metrics.OpVectorSearch, duration)

	results := make([]models.RetrievalResult, 0, len(points))
	for _, p := range points {
		results = append(results, models.RetrievalResult{
			ID:      pointID(p.GetId()),
			Score:   float64(p.GetScore()),
			Payload: payloadFromValues(p.GetPayload()),
		})
	}

	slog.Debug("search complete", "collection", q.collection, "results", len(results), "duration_ms", duration.Milliseconds())
	return results, nil
}

// Count returns the exact number of points in the collection.
func (q *Qdrant) Count(ctx context.Context) (uint64, error) {
	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("count: %w", wrapQdrantError(err))
	}
	return n, nil
}

// HealthCheck verifies the server is reachable.
func (q *Qdrant) HealthCheck(ctx context.Context) error {
	if _, err := q.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check: %w", wrapQdrantError(err))
	}
	return nil
}

// Close closes the gRPC connection.
func (q *Qdrant) Close() error {
	return q.client.Close()
}

func payloadMap(p models.DocumentPayload) map[string]any {
	return map[string]any{
		payloadDocID:     p.DocID,
		payloadDocTitle:  p.DocTitle,
		payloadContents:  p.Contents,
		payloadCreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

func payloadFromValues(values map[string]*qdrant.Value) models.DocumentPayload {
	p := models.DocumentPayload{
		DocID:    uint64(values[payloadDocID].GetIntegerValue()),
		DocTitle: values[payloadDocTitle].GetStringValue(),
		Contents: values[payloadContents].GetStringValue(),
	}
	if ts := values[payloadCreatedAt].GetStringValue(); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			p.CreatedAt = t
		}
	}
	return p
}

func pointID(id *qdrant.PointId) string {
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return strconv.FormatUint(id.GetNum(), 10)
}
