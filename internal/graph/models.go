// Package graph provides the GraphQL schema, types and resolvers for ragchat.
package graph

import (
	"time"
)

// Document is a retrieved knowledge chunk.
type Document struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// ChatResponse is the answer to a chat message.
type ChatResponse struct {
	ID        string     `json:"id"`
	SessionID string     `json:"sessionId"`
	Response  string     `json:"response"`
	Sources   []Document `json:"sources"`
	Timestamp time.Time  `json:"timestamp"`
}

// UploadResult reports the outcome of uploadKnowledgeBase.
type UploadResult struct {
	Success          bool    `json:"success"`
	DocumentID       *string `json:"documentId,omitempty"`
	Message          string  `json:"message"`
	DocumentsCreated int     `json:"documentsCreated"`
}

// TypingStatus is a typing change of one user.
type TypingStatus struct {
	UserID    string    `json:"userId"`
	IsTyping  bool      `json:"isTyping"`
	Timestamp time.Time `json:"timestamp"`
}

// ServerStats represents runtime statistics.
type ServerStats struct {
	UptimeSeconds     float64          `json:"uptimeSeconds"`
	Sessions          int              `json:"sessions"`
	Documents         *int64           `json:"documents"`
	ChatSubscribers   int              `json:"chatSubscribers"`
	TypingSubscribers int              `json:"typingSubscribers"`
	Operations        []OperationStats `json:"operations"`
}

// OperationStats holds timing and token stats for one operation.
type OperationStats struct {
	Operation         string  `json:"operation"`
	Count             int64   `json:"count"`
	Errors            int64   `json:"errors"`
	TotalTimeMs       int64   `json:"totalTimeMs"`
	AvgTimeMs         float64 `json:"avgTimeMs"`
	MinTimeMs         int64   `json:"minTimeMs"`
	MaxTimeMs         int64   `json:"maxTimeMs"`
	TotalInputTokens  *int64  `json:"totalInputTokens,omitempty"`
	TotalOutputTokens *int64  `json:"totalOutputTokens,omitempty"`
}
