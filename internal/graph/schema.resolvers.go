package graph

import (
	"context"
	"log/slog"
)

// Search is the resolver for the search field.
func (r *queryResolver) Search(ctx context.Context, query string, limit *int) ([]Document, error) {
	n := 0
	if limit != nil {
		n = *limit
	}
	return documentsToGraphQL(r.chat.Search(ctx, query, n)), nil
}

// ServerStats is the resolver for the serverStats field.
func (r *queryResolver) ServerStats(ctx context.Context) (*ServerStats, error) {
	snap := r.metrics.Snapshot()
	chatSubs, typingSubs := r.hub.Subscribers()

	stats := &ServerStats{
		UptimeSeconds:     snap.UptimeSeconds,
		ChatSubscribers:   chatSubs,
		TypingSubscribers: typingSubs,
		Operations:        snapshotToOperations(snap),
	}
	if r.sessions != nil {
		stats.Sessions = r.sessions.Len()
	}
	if r.documents != nil {
		n, err := r.documents.Count(ctx)
		if err != nil {
			slog.Warn("failed to count indexed documents", "error", err)
		} else {
			count := int64(n)
			stats.Documents = &count
		}
	}
	return stats, nil
}

// TypingUsers is the resolver for the typingUsers field.
func (r *queryResolver) TypingUsers(ctx context.Context, sessionID string) ([]string, error) {
	return r.hub.TypingUsers(sessionID), nil
}

// Chat is the resolver for the chat field.
func (r *mutationResolver) Chat(ctx context.Context, message string, sessionID *string) (*ChatResponse, error) {
	sid := ""
	if sessionID != nil {
		sid = *sessionID
	}
	result, err := r.chat.Chat(ctx, message, sid)
	if err != nil {
		return nil, err
	}
	return chatResultToGraphQL(*result), nil
}

// UploadKnowledgeBase is the resolver for the uploadKnowledgeBase field.
func (r *mutationResolver) UploadKnowledgeBase(ctx context.Context, content string, title string) (*UploadResult, error) {
	return uploadResultToGraphQL(r.chat.Upload(ctx, content, title)), nil
}

// SetTyping is the resolver for the setTyping field.
func (r *mutationResolver) SetTyping(ctx context.Context, sessionID string, userID string, isTyping bool) (*TypingStatus, error) {
	return typingStatusToGraphQL(r.hub.SetTyping(sessionID, userID, isTyping)), nil
}

// ChatStream is the resolver for the chatStream field.
func (r *subscriptionResolver) ChatStream(ctx context.Context, sessionID string) (<-chan *ChatResponse, error) {
	in := r.hub.SubscribeChat(ctx, sessionID)
	out := make(chan *ChatResponse, 1)
	go func() {
		defer close(out)
		for result := range in {
			select {
			case out <- chatResultToGraphQL(result):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// TypingIndicator is the resolver for the typingIndicator field.
func (r *subscriptionResolver) TypingIndicator(ctx context.Context, sessionID string) (<-chan *TypingStatus, error) {
	in := r.hub.SubscribeTyping(ctx, sessionID)
	out := make(chan *TypingStatus, 1)
	go func() {
		defer close(out)
		for status := range in {
			select {
			case out <- typingStatusToGraphQL(status):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
