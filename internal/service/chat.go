// Package service implements chat, knowledge upload and search over the
// vector index and language model.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelgruber/ragchat/internal/metrics"
	"github.com/raphaelgruber/ragchat/internal/models"
	"github.com/raphaelgruber/ragchat/internal/parser"
)

// Errors returned by Chat. The GraphQL layer maps each to an error code.
var (
	ErrEmptyMessage     = errors.New("message is empty")
	ErrEmbeddingFailed  = errors.New("embedding failed")
	ErrSearchFailed     = errors.New("vector search failed")
	ErrGenerationFailed = errors.New("generation failed")
)

// AssistantUserID is the typing-indicator id used while an answer is generated.
const AssistantUserID = "assistant"

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator answers a query from a prepared context.
type Generator interface {
	GenerateAnswer(ctx context.Context, query, promptContext string) (string, error)
}

// VectorIndex stores and searches chunk embeddings.
type VectorIndex interface {
	Upsert(ctx context.Context, chunks []models.DocumentChunk) error
	Search(ctx context.Context, vector []float32, limit int) ([]models.RetrievalResult, error)
}

// HistoryStore records chat turns per session.
type HistoryStore interface {
	HistoryFormatter
	Append(sessionID string, role models.Role, content string)
}

// Publisher relays results and typing changes to live subscribers.
type Publisher interface {
	PublishChat(sessionID string, result models.ChatResult)
	SetTyping(sessionID, userID string, isTyping bool) models.TypingStatus
}

// Options tunes the chat service.
type Options struct {
	TopK              int
	HistoryTurns      int
	Chunk             parser.ChunkConfig
	UploadConcurrency int
	// Timeout bounds one chat request. Zero means no limit.
	Timeout time.Duration
}

// DefaultOptions returns the settings used when fields are left zero.
func DefaultOptions() Options {
	return Options{
		TopK:              5,
		HistoryTurns:      DefaultHistoryTurns,
		Chunk:             parser.DefaultChunkConfig(),
		UploadConcurrency: 4,
		Timeout:           60 * time.Second,
	}
}

// ChatService sequences embedding, retrieval, composition and generation.
type ChatService struct {
	embedder  Embedder
	generator Generator
	index     VectorIndex
	history   HistoryStore
	publisher Publisher
	composer  *Composer
	metrics   *metrics.Collector
	opts      Options

	nextDocID atomic.Uint64
	now       func() time.Time
	newID     func() string
}

// NewChatService creates a new chat service.
func NewChatService(
	embedder Embedder,
	generator Generator,
	index VectorIndex,
	history HistoryStore,
	publisher Publisher,
	collector *metrics.Collector,
	opts Options,
) *ChatService {
	defaults := DefaultOptions()
	if opts.TopK <= 0 {
		opts.TopK = defaults.TopK
	}
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = defaults.HistoryTurns
	}
	if opts.Chunk.MaxSize <= 0 {
		opts.Chunk = defaults.Chunk
	}
	if opts.UploadConcurrency <= 0 {
		opts.UploadConcurrency = defaults.UploadConcurrency
	}

	s := &ChatService{
		embedder:  embedder,
		generator: generator,
		index:     index,
		history:   history,
		publisher: publisher,
		composer:  NewComposer(history, opts.HistoryTurns),
		metrics:   collector,
		opts:      opts,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	s.nextDocID.Store(uint64(time.Now().UnixMilli()))
	return s
}

// Chat answers message within sessionID. An empty sessionID starts a new
// session. The user turn is recorded as soon as the message is accepted.
// On success the assistant turn is recorded and the result is published
// before it is returned. Failures leave no assistant turn and publish
// nothing. A request exceeding Options.Timeout fails like the adapter that
// was running when the deadline passed.
func (s *ChatService) Chat(ctx context.Context, message, sessionID string) (_ *models.ChatResult, err error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	if sessionID == "" {
		sessionID = s.newID()
	}

	start := time.Now()
	defer func() {
		if err != nil {
			s.metrics.RecordFailure(metrics.OpChat, time.Since(start))
			return
		}
		s.metrics.RecordTiming(metrics.OpChat, time.Since(start))
	}()

	// Snapshot before recording the user turn so the context never contains
	// the message being answered.
	history := s.composer.History(sessionID)
	s.history.Append(sessionID, models.RoleUser, message)

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	vector, err := s.embedder.Embed(ctx, message)
	if err != nil {
		slog.Warn("chat embedding failed", "session_id", sessionID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}

	results, err := s.index.Search(ctx, vector, s.opts.TopK)
	if err != nil {
		slog.Warn("chat search failed", "session_id", sessionID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}

	promptContext := ComposeContext(history, results)

	response, err := s.generate(ctx, sessionID, message, promptContext)
	if err != nil {
		slog.Warn("chat generation failed", "session_id", sessionID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	s.history.Append(sessionID, models.RoleAssistant, response)

	sources := make([]models.Document, len(results))
	for i, r := range results {
		sources[i] = r.Document()
	}

	result := models.ChatResult{
		ID:        s.newID(),
		SessionID: sessionID,
		Response:  response,
		Sources:   sources,
		Timestamp: s.now().UTC(),
	}
	s.publisher.PublishChat(sessionID, result)

	slog.Info("chat completed", "session_id", sessionID, "sources", len(sources), "duration_ms", time.Since(start).Milliseconds())
	return &result, nil
}

// generate calls the generator with the assistant typing indicator raised.
func (s *ChatService) generate(ctx context.Context, sessionID, message, promptContext string) (string, error) {
	s.publisher.SetTyping(sessionID, AssistantUserID, true)
	defer s.publisher.SetTyping(sessionID, AssistantUserID, false)

	return s.generator.GenerateAnswer(ctx, message, promptContext)
}
