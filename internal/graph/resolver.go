package graph

import (
	"context"

	"github.com/raphaelgruber/ragchat/internal/metrics"
	"github.com/raphaelgruber/ragchat/internal/models"
)

// ChatService answers, uploads and searches on behalf of the resolvers.
type ChatService interface {
	Chat(ctx context.Context, message, sessionID string) (*models.ChatResult, error)
	Upload(ctx context.Context, content, title string) models.UploadResult
	Search(ctx context.Context, query string, limit int) []models.Document
}

// Hub relays live events to subscriptions.
type Hub interface {
	SetTyping(sessionID, userID string, isTyping bool) models.TypingStatus
	TypingUsers(sessionID string) []string
	SubscribeChat(ctx context.Context, sessionID string) <-chan models.ChatResult
	SubscribeTyping(ctx context.Context, sessionID string) <-chan models.TypingStatus
	Subscribers() (chat, typing int)
}

// SessionCounter reports how many chat sessions are held in memory.
type SessionCounter interface {
	Len() int
}

// DocumentCounter reports how many chunks the vector index holds.
type DocumentCounter interface {
	Count(ctx context.Context) (uint64, error)
}

// Resolver is the root resolver with all dependencies.
type Resolver struct {
	chat      ChatService
	hub       Hub
	sessions  SessionCounter
	documents DocumentCounter
	metrics   *metrics.Collector
}

// NewResolver creates a new resolver with all dependencies. sessions and
// documents may be nil.
func NewResolver(chat ChatService, hub Hub, sessions SessionCounter, documents DocumentCounter, collector *metrics.Collector) *Resolver {
	return &Resolver{
		chat:      chat,
		hub:       hub,
		sessions:  sessions,
		documents: documents,
		metrics:   collector,
	}
}

// Query returns the query resolver.
func (r *Resolver) Query() QueryResolver { return &queryResolver{r} }

// Mutation returns the mutation resolver.
func (r *Resolver) Mutation() MutationResolver { return &mutationResolver{r} }

// Subscription returns the subscription resolver.
func (r *Resolver) Subscription() SubscriptionResolver { return &subscriptionResolver{r} }

type queryResolver struct{ *Resolver }
type mutationResolver struct{ *Resolver }
type subscriptionResolver struct{ *Resolver }
