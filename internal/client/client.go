// Package client provides a GraphQL client for the ragchat server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client is a GraphQL client for the ragchat server.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New creates a new GraphQL client.
// If endpoint is empty, uses RAGCHAT_SERVER_URL env var or defaults to localhost:4000.
// Timeout can be configured via RAGCHAT_CLIENT_TIMEOUT env var (default 2m, enough for one LLM answer).
func New(endpoint string) *Client {
	if endpoint == "" {
		endpoint = os.Getenv("RAGCHAT_SERVER_URL")
	}
	if endpoint == "" {
		endpoint = "http://localhost:4000/query"
	}

	timeout := 2 * time.Minute
	if t := os.Getenv("RAGCHAT_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Endpoint returns the GraphQL HTTP endpoint.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// graphQLRequest is the request payload for GraphQL operations.
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphQLResponse is the response payload from GraphQL operations.
type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// GraphQLError is an error returned by the server.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e *GraphQLError) Error() string {
	if code := e.Code(); code != "" {
		return fmt.Sprintf("graphql error: %s (%s)", e.Message, code)
	}
	return "graphql error: " + e.Message
}

// Code returns extensions.code, or "" when absent.
func (e *GraphQLError) Code() string {
	code, _ := e.Extensions["code"].(string)
	return code
}

// Execute sends a GraphQL query/mutation and returns the result.
// The first GraphQL error is returned as *GraphQLError.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any, result any) error {
	reqBody, err := json.Marshal(graphQLRequest{
		Query:     query,
		Variables: variables,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server error: %s - %s", resp.Status, string(body))
	}

	var gqlResp graphQLResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	if len(gqlResp.Errors) > 0 {
		return &gqlResp.Errors[0]
	}

	if result != nil && len(gqlResp.Data) > 0 {
		if err := json.Unmarshal(gqlResp.Data, result); err != nil {
			return fmt.Errorf("unmarshal data: %w", err)
		}
	}

	return nil
}

// =============================================================================
// TYPES (matching GraphQL schema)
// =============================================================================

// Document is a retrieved knowledge chunk.
type Document struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// ChatResponse is an answer from the assistant.
type ChatResponse struct {
	ID        string     `json:"id"`
	SessionID string     `json:"sessionId"`
	Response  string     `json:"response"`
	Sources   []Document `json:"sources"`
	Timestamp time.Time  `json:"timestamp"`
}

// UploadResult reports the outcome of an upload.
type UploadResult struct {
	Success          bool    `json:"success"`
	DocumentID       *string `json:"documentId"`
	Message          string  `json:"message"`
	DocumentsCreated int     `json:"documentsCreated"`
}

// TypingStatus is a typing change of one user.
type TypingStatus struct {
	UserID    string    `json:"userId"`
	IsTyping  bool      `json:"isTyping"`
	Timestamp time.Time `json:"timestamp"`
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
	TotalInputTokens  *int64  `json:"totalInputTokens"`
	TotalOutputTokens *int64  `json:"totalOutputTokens"`
}

// ServerStats represents runtime statistics of the server.
type ServerStats struct {
	UptimeSeconds     float64          `json:"uptimeSeconds"`
	Sessions          int              `json:"sessions"`
	Documents         *int64           `json:"documents"`
	ChatSubscribers   int              `json:"chatSubscribers"`
	TypingSubscribers int              `json:"typingSubscribers"`
	Operations        []OperationStats `json:"operations"`
}

// =============================================================================
// OPERATIONS
// =============================================================================

const chatResponseFields = `id sessionId response timestamp sources { id title content score }`

// Chat sends message within sessionID. An empty sessionID starts a new session.
func (c *Client) Chat(ctx context.Context, message, sessionID string) (*ChatResponse, error) {
	const query = `
		mutation Chat($message: String!, $sessionId: String) {
			chat(message: $message, sessionId: $sessionId) { ` + chatResponseFields + ` }
		}
	`

	vars := map[string]any{"message": message}
	if sessionID != "" {
		vars["sessionId"] = sessionID
	}

	var result struct {
		Chat ChatResponse `json:"chat"`
	}
	if err := c.Execute(ctx, query, vars, &result); err != nil {
		return nil, err
	}
	return &result.Chat, nil
}

// Search returns up to limit documents similar to query. A limit of 0 uses
// the server default.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Document, error) {
	const gql = `
		query Search($query: String!, $limit: Int) {
			search(query: $query, limit: $limit) { id title content score }
		}
	`

	vars := map[string]any{"query": query}
	if limit > 0 {
		vars["limit"] = limit
	}

	var result struct {
		Search []Document `json:"search"`
	}
	if err := c.Execute(ctx, gql, vars, &result); err != nil {
		return nil, err
	}
	return result.Search, nil
}

// UploadKnowledgeBase uploads content as a titled document.
func (c *Client) UploadKnowledgeBase(ctx context.Context, content, title string) (*UploadResult, error) {
	const query = `
		mutation Upload($content: String!, $title: String!) {
			uploadKnowledgeBase(content: $content, title: $title) {
				success documentId message documentsCreated
			}
		}
	`

	var result struct {
		Upload UploadResult `json:"uploadKnowledgeBase"`
	}
	if err := c.Execute(ctx, query, map[string]any{"content": content, "title": title}, &result); err != nil {
		return nil, err
	}
	return &result.Upload, nil
}

// SetTyping marks userID as typing or idle in sessionID.
func (c *Client) SetTyping(ctx context.Context, sessionID, userID string, isTyping bool) (*TypingStatus, error) {
	const query = `
		mutation SetTyping($sessionId: String!, $userId: String!, $isTyping: Boolean!) {
			setTyping(sessionId: $sessionId, userId: $userId, isTyping: $isTyping) {
				userId isTyping timestamp
			}
		}
	`

	vars := map[string]any{"sessionId": sessionID, "userId": userID, "isTyping": isTyping}
	var result struct {
		SetTyping TypingStatus `json:"setTyping"`
	}
	if err := c.Execute(ctx, query, vars, &result); err != nil {
		return nil, err
	}
	return &result.SetTyping, nil
}

// TypingUsers returns the ids of users currently typing in sessionID.
func (c *Client) TypingUsers(ctx context.Context, sessionID string) ([]string, error) {
	const query = `
		query TypingUsers($sessionId: String!) {
			typingUsers(sessionId: $sessionId)
		}
	`

	var result struct {
		TypingUsers []string `json:"typingUsers"`
	}
	if err := c.Execute(ctx, query, map[string]any{"sessionId": sessionID}, &result); err != nil {
		return nil, err
	}
	return result.TypingUsers, nil
}

// GetServerStats returns in-memory runtime statistics.
func (c *Client) GetServerStats(ctx context.Context) (*ServerStats, error) {
	const query = `
		query GetServerStats {
			serverStats {
				uptimeSeconds
				sessions
				documents
				chatSubscribers
				typingSubscribers
				operations {
					operation count errors totalTimeMs avgTimeMs minTimeMs maxTimeMs
					totalInputTokens totalOutputTokens
				}
			}
		}
	`

	var result struct {
		ServerStats ServerStats `json:"serverStats"`
	}
	if err := c.Execute(ctx, query, nil, &result); err != nil {
		return nil, err
	}
	return &result.ServerStats, nil
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// graphql-transport-ws protocol message types
const (
	gqlConnectionInit      = "connection_init"
	gqlConnectionAck       = "connection_ack"
	gqlSubscribe           = "subscribe"
	gqlNext                = "next"
	gqlError               = "error"
	gqlComplete            = "complete"
	gqlPing                = "ping"
	gqlPong                = "pong"
	gqlConnectionKeepAlive = "ka"
)

// wsMessage represents a graphql-transport-ws protocol message.
type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsSubscribePayload is the payload for subscribe messages.
type wsSubscribePayload struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// SubscribeChatStream calls onResponse for every chat answer published in
// sessionID until ctx is cancelled, the server completes the stream, or
// onResponse returns an error.
func (c *Client) SubscribeChatStream(ctx context.Context, sessionID string, onResponse func(ChatResponse) error) error {
	const query = `
		subscription ChatStream($sessionId: String!) {
			chatStream(sessionId: $sessionId) { ` + chatResponseFields + ` }
		}
	`
	return c.subscribe(ctx, query, map[string]any{"sessionId": sessionID}, func(data json.RawMessage) error {
		var payload struct {
			ChatStream ChatResponse `json:"chatStream"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("unmarshal chatStream: %w", err)
		}
		return onResponse(payload.ChatStream)
	})
}

// SubscribeTypingIndicator calls onStatus for every typing change in sessionID.
func (c *Client) SubscribeTypingIndicator(ctx context.Context, sessionID string, onStatus func(TypingStatus) error) error {
	const query = `
		subscription TypingIndicator($sessionId: String!) {
			typingIndicator(sessionId: $sessionId) { userId isTyping timestamp }
		}
	`
	return c.subscribe(ctx, query, map[string]any{"sessionId": sessionID}, func(data json.RawMessage) error {
		var payload struct {
			TypingIndicator TypingStatus `json:"typingIndicator"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("unmarshal typingIndicator: %w", err)
		}
		return onStatus(payload.TypingIndicator)
	})
}

// subscribe runs one subscription over graphql-transport-ws and hands the
// data of each next message to onData. Cancelling ctx ends it with ctx.Err().
func (c *Client) subscribe(ctx context.Context, query string, vars map[string]any, onData func(json.RawMessage) error) error {
	// Convert HTTP endpoint to WebSocket endpoint
	wsEndpoint := c.endpoint
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	u, err := url.Parse(wsEndpoint)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		Subprotocols:     []string{"graphql-transport-ws"},
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}

	// Track connection state for proper cleanup
	var mu sync.Mutex
	closed := false
	closeConn := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	if err := conn.WriteJSON(wsMessage{Type: gqlConnectionInit}); err != nil {
		return fmt.Errorf("send connection_init: %w", err)
	}

	var ackMsg wsMessage
	if err := conn.ReadJSON(&ackMsg); err != nil {
		return fmt.Errorf("read connection_ack: %w", err)
	}
	if ackMsg.Type != gqlConnectionAck {
		return fmt.Errorf("expected connection_ack, got %s", ackMsg.Type)
	}

	payload, err := json.Marshal(wsSubscribePayload{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("marshal subscribe payload: %w", err)
	}
	if err := conn.WriteJSON(wsMessage{ID: uuid.NewString(), Type: gqlSubscribe, Payload: payload}); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}

	// Handle context cancellation in a separate goroutine
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read message: %w", err)
		}

		switch msg.Type {
		case gqlNext:
			var resp graphQLResponse
			if err := json.Unmarshal(msg.Payload, &resp); err != nil {
				return fmt.Errorf("unmarshal next payload: %w", err)
			}
			if len(resp.Errors) > 0 {
				return &resp.Errors[0]
			}
			if err := onData(resp.Data); err != nil {
				return err
			}

		case gqlError:
			var errs []GraphQLError
			if err := json.Unmarshal(msg.Payload, &errs); err != nil || len(errs) == 0 {
				return fmt.Errorf("subscription error: %s", string(msg.Payload))
			}
			return &errs[0]

		case gqlComplete:
			return nil

		case gqlPing:
			mu.Lock()
			err := conn.WriteJSON(wsMessage{Type: gqlPong})
			mu.Unlock()
			if err != nil {
				return fmt.Errorf("send pong: %w", err)
			}

		case gqlPong, gqlConnectionKeepAlive:
			continue

		default:
			continue
		}
	}
}
