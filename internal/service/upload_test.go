package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/ragchat/internal/parser"
	"github.com/raphaelgruber/ragchat/internal/session"
)

const threeChunkText = "alpha one. bravo two. charlie three."

func newUploadService(embedder *fakeEmbedder, index *fakeIndex) *ChatService {
	return NewChatService(embedder, &fakeGenerator{}, index, session.NewStore(), &fakePublisher{}, nil, Options{
		Chunk:             parser.ChunkConfig{MaxSize: 15, Overlap: 0, Mode: parser.OverlapChars},
		UploadConcurrency: 2,
	})
}

func TestUploadSuccess(t *testing.T) {
	index := &fakeIndex{}
	svc := newUploadService(&fakeEmbedder{}, index)

	result := svc.Upload(context.Background(), threeChunkText, "Greek letters")
	require.True(t, result.Success, result.Message)
	require.NotNil(t, result.DocumentID)
	assert.NotEmpty(t, *result.DocumentID)
	assert.Equal(t, 3, result.DocumentsCreated)
	assert.Equal(t, "Successfully uploaded 3 document chunks", result.Message)

	require.Len(t, index.upserts, 1, "all chunks go in one upsert")
	chunks := index.upserts[0]
	require.Len(t, chunks, 3)
	assert.Equal(t, "alpha one.", chunks[0].Contents)
	assert.Equal(t, "bravo two.", chunks[1].Contents)
	assert.Equal(t, "charlie three.", chunks[2].Contents)
	for i, c := range chunks {
		assert.Equal(t, "Greek letters", c.DocumentName)
		assert.Equal(t, chunks[0].DocumentID+uint64(i), c.DocumentID)
		assert.NotEmpty(t, c.ContentsVector)
	}
}

func TestUploadIDsDoNotCollide(t *testing.T) {
	index := &fakeIndex{}
	svc := newUploadService(&fakeEmbedder{}, index)

	require.True(t, svc.Upload(context.Background(), threeChunkText, "a").Success)
	require.True(t, svc.Upload(context.Background(), threeChunkText, "b").Success)

	seen := map[uint64]bool{}
	for _, batch := range index.upserts {
		for _, c := range batch {
			assert.False(t, seen[c.DocumentID], "duplicate id %d", c.DocumentID)
			seen[c.DocumentID] = true
		}
	}
	assert.Len(t, seen, 6)
}

func TestUploadFailures(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		embedder    *fakeEmbedder
		index       *fakeIndex
		wantMessage string
	}{
		{
			name:        "embedding fails on second chunk",
			content:     threeChunkText,
			embedder:    &fakeEmbedder{failOn: "bravo"},
			index:       &fakeIndex{},
			wantMessage: "Upload failed: embed chunk 2/3: embedding provider unavailable",
		},
		{
			name:        "empty content",
			content:     " \n ",
			embedder:    &fakeEmbedder{},
			index:       &fakeIndex{},
			wantMessage: "Upload failed: content is empty",
		},
		{
			name:        "upsert rejected",
			content:     threeChunkText,
			embedder:    &fakeEmbedder{},
			index:       &fakeIndex{upsertErr: errors.New("collection not found")},
			wantMessage: "Upload failed: upsert: collection not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newUploadService(tt.embedder, tt.index)

			result := svc.Upload(context.Background(), tt.content, "doc")
			assert.False(t, result.Success)
			assert.Nil(t, result.DocumentID)
			assert.Equal(t, 0, result.DocumentsCreated)
			assert.Equal(t, tt.wantMessage, result.Message)
			assert.Empty(t, tt.index.upserts, "nothing may be written on failure")
		})
	}
}
