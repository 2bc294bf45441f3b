package pubsub

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/raphaelgruber/ragchat/internal/models"
)

// ChatEvent carries one chat result tagged with its session.
type ChatEvent struct {
	SessionID string
	Result    models.ChatResult
}

// TypingEvent carries a typing status change tagged with its session.
type TypingEvent struct {
	SessionID string
	Status    models.TypingStatus
}

// Chat results are not repeated anywhere, so the chat broker buffers more
// and waits for slow subscribers. Typing changes are superseded by the next
// change and keep the drop policy.
const (
	ChatBuffer      = 64
	ChatSendTimeout = time.Second
)

// Hub owns one broker per event kind plus the set of users currently
// typing in each session.
type Hub struct {
	chat   *Broker[ChatEvent]
	typing *Broker[TypingEvent]

	mu          sync.Mutex
	typingUsers map[string]map[string]struct{}
	now         func() time.Time
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		chat:        NewBroker[ChatEvent]("chat", WithBuffer(ChatBuffer), WithSendTimeout(ChatSendTimeout)),
		typing:      NewBroker[TypingEvent]("typing"),
		typingUsers: make(map[string]map[string]struct{}),
		now:         time.Now,
	}
}

// PublishChat sends a chat result to every chat subscriber.
func (h *Hub) PublishChat(sessionID string, result models.ChatResult) {
	h.chat.Publish(ChatEvent{SessionID: sessionID, Result: result})
}

// SetTyping records whether userID is typing in sessionID and publishes the
// change.
func (h *Hub) SetTyping(sessionID, userID string, isTyping bool) models.TypingStatus {
	h.mu.Lock()
	users, ok := h.typingUsers[sessionID]
	if !ok {
		users = make(map[string]struct{})
		h.typingUsers[sessionID] = users
	}
	if isTyping {
		users[userID] = struct{}{}
	} else {
		delete(users, userID)
		if len(users) == 0 {
			delete(h.typingUsers, sessionID)
		}
	}
	h.mu.Unlock()

	status := models.TypingStatus{
		UserID:    userID,
		IsTyping:  isTyping,
		Timestamp: h.now(),
	}
	h.typing.Publish(TypingEvent{SessionID: sessionID, Status: status})
	return status
}

// TypingUsers returns the sorted ids of users typing in sessionID.
func (h *Hub) TypingUsers(sessionID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	users := make([]string, 0, len(h.typingUsers[sessionID]))
	for id := range h.typingUsers[sessionID] {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

// SubscribeChat streams chat results for one session. Events are fanned out
// to every subscriber and filtered here.
func (h *Hub) SubscribeChat(ctx context.Context, sessionID string) <-chan models.ChatResult {
	return forward(ctx, h.chat.Subscribe(ctx),
		func(e ChatEvent) bool { return e.SessionID == sessionID },
		func(e ChatEvent) models.ChatResult { return e.Result })
}

// SubscribeTyping streams typing status changes for one session.
func (h *Hub) SubscribeTyping(ctx context.Context, sessionID string) <-chan models.TypingStatus {
	return forward(ctx, h.typing.Subscribe(ctx),
		func(e TypingEvent) bool { return e.SessionID == sessionID },
		func(e TypingEvent) models.TypingStatus { return e.Status })
}

// Subscribers returns the number of chat and typing subscribers.
func (h *Hub) Subscribers() (chat, typing int) {
	return h.chat.Subscribers(), h.typing.Subscribers()
}
