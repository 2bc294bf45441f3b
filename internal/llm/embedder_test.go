package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/ragchat/internal/metrics"
)

type fakeEmbeddings struct {
	dim   int
	err   error
	calls int
}

func (f *fakeEmbeddings) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
		out[i][0] = float32(len(texts[i]))
	}
	return out, nil
}

func (f *fakeEmbeddings) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func TestEmbed(t *testing.T) {
	collector := metrics.NewCollector()
	e := NewEmbedderWith(&fakeEmbeddings{dim: 768}, "text-embedding-004", 768, collector)

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 768)
	assert.Equal(t, float32(5), vec[0])
	assert.Equal(t, "text-embedding-004", e.Model())
	assert.Equal(t, 768, e.Dimension())
	assert.Equal(t, int64(1), collector.Snapshot().Op(metrics.OpEmbedding).Count)
}

func TestEmbedErrors(t *testing.T) {
	tests := []struct {
		name      string
		fake      *fakeEmbeddings
		wantFatal bool
	}{
		{"dimension mismatch", &fakeEmbeddings{dim: 3}, false},
		{"provider failure", &fakeEmbeddings{dim: 768, err: errors.New("connection reset")}, false},
		{"quota", &fakeEmbeddings{dim: 768, err: errors.New("quota exceeded for model")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEmbedderWith(tt.fake, "m", 768, nil)

			_, err := e.Embed(context.Background(), "text")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrEmbedding)
			assert.Equal(t, tt.wantFatal, IsFatal(err))
		})
	}
}
