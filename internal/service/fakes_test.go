package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/raphaelgruber/ragchat/internal/models"
)

type fakeEmbedder struct {
	mu     sync.Mutex
	failOn string
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, errors.New("embedding provider unavailable")
	}
	return []float32{float32(len(text)), 1, 0}, nil
}

type fakeGenerator struct {
	answer  string
	err     error
	block   bool
	queries []string
	ctxs    []string
}

func (f *fakeGenerator) GenerateAnswer(ctx context.Context, query, promptContext string) (string, error) {
	f.queries = append(f.queries, query)
	f.ctxs = append(f.ctxs, promptContext)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type fakeIndex struct {
	mu        sync.Mutex
	results   []models.RetrievalResult
	searchErr error
	upsertErr error
	upserts   [][]models.DocumentChunk
	limits    []int
}

func (f *fakeIndex) Upsert(_ context.Context, chunks []models.DocumentChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, chunks)
	return nil
}

func (f *fakeIndex) Search(_ context.Context, _ []float32, limit int) ([]models.RetrievalResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limits = append(f.limits, limit)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.results, nil
}

type typingCall struct {
	sessionID string
	userID    string
	isTyping  bool
}

type fakePublisher struct {
	published []models.ChatResult
	sessions  []string
	typing    []typingCall
}

func (f *fakePublisher) PublishChat(sessionID string, result models.ChatResult) {
	f.sessions = append(f.sessions, sessionID)
	f.published = append(f.published, result)
}

func (f *fakePublisher) SetTyping(sessionID, userID string, isTyping bool) models.TypingStatus {
	f.typing = append(f.typing, typingCall{sessionID, userID, isTyping})
	return models.TypingStatus{UserID: userID, IsTyping: isTyping}
}

func retrieval(id uint64, title, contents string, score float64) models.RetrievalResult {
	return models.RetrievalResult{
		ID:    strconv.FormatUint(id, 10),
		Score: score,
		Payload: models.DocumentPayload{
			DocID:    id,
			DocTitle: title,
			Contents: contents,
		},
	}
}
