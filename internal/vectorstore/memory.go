package vectorstore

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/raphaelgruber/ragchat/internal/metrics"
	"github.com/raphaelgruber/ragchat/internal/models"
)

type memoryPoint struct {
	vector  []float32
	norm    float64
	payload models.DocumentPayload
}

// Memory is an in-process Index using brute-force cosine similarity.
// Nothing survives a restart.
type Memory struct {
	mu        sync.RWMutex
	dimension int
	points    map[uint64]memoryPoint
	metrics   *metrics.Collector
	now       func() time.Time
}

// NewMemory creates an empty in-memory index.
func NewMemory(dimension int, collector *metrics.Collector) *Memory {
	return &Memory{
		dimension: dimension,
		points:    make(map[uint64]memoryPoint),
		metrics:   collector,
		now:       time.Now,
	}
}

// EnsureCollection is a no-op; the collection always exists.
func (m *Memory) EnsureCollection(context.Context) error {
	return nil
}

// Upsert validates every vector before storing any of them. Existing ids
// are overwritten.
func (m *Memory) Upsert(ctx context.Context, chunks []models.DocumentChunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer m.metrics.Since(metrics.OpVectorUpsert, time.Now())

	for _, c := range chunks {
		if len(c.ContentsVector) != m.dimension {
			return fmt.Errorf("%w: chunk %d has %d dimensions, want %d", ErrDimensionMismatch, c.DocumentID, len(c.ContentsVector), m.dimension)
		}
	}

	createdAt := m.now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		m.points[c.DocumentID] = memoryPoint{
			vector:  slices.Clone(c.ContentsVector),
			norm:    norm(c.ContentsVector),
			payload: c.Payload(createdAt),
		}
	}
	return nil
}

// Search scores every stored point and returns the best limit.
func (m *Memory) Search(ctx context.Context, vector []float32, limit int) ([]models.RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vector) != m.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, want %d", ErrDimensionMismatch, len(vector), m.dimension)
	}
	if limit <= 0 {
		limit = 5
	}
	defer m.metrics.Since(metrics.OpVectorSearch, time.Now())

	queryNorm := norm(vector)

	m.mu.RLock()
	results := make([]models.RetrievalResult, 0, len(m.points))
	for id, p := range m.points {
		results = append(results, models.RetrievalResult{
			ID:      strconv.FormatUint(id, 10),
			Score:   cosine(vector, p.vector, queryNorm, p.norm),
			Payload: p.payload,
		})
	}
	m.mu.RUnlock()

	// Ties break on payload id so results are deterministic.
	slices.SortFunc(results, func(a, b models.RetrievalResult) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Payload.DocID, b.Payload.DocID)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Count returns the number of stored points.
func (m *Memory) Count(context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.points)), nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}

func norm(v []float32) float64 {
	sum := 0.0
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	dot := 0.0
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}
