package models

import (
	"fmt"
	"time"
)

// Role identifies who produced a chat turn.
type Role string

// Chat roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Label returns the prompt label for the role ("User" or "Assistant").
func (r Role) Label() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// ChatTurn is a single message within a session. Immutable once appended.
type ChatTurn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// String renders the turn as "Role: content".
func (t ChatTurn) String() string {
	return fmt.Sprintf("%s: %s", t.Role.Label(), t.Content)
}

// ChatSession is a read-only view of a conversation held by the session store.
type ChatSession struct {
	SessionID   string     `json:"sessionId"`
	Messages    []ChatTurn `json:"messages"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastUpdated time.Time  `json:"lastUpdated"`
}

// ChatResult is the outcome of one chat exchange, returned to the caller and
// published to subscribers.
type ChatResult struct {
	ID        string     `json:"id"`
	SessionID string     `json:"sessionId"`
	Response  string     `json:"response"`
	Sources   []Document `json:"sources"`
	Timestamp time.Time  `json:"timestamp"`
}

// TypingStatus reports whether a participant is composing a message.
type TypingStatus struct {
	UserID    string    `json:"userId"`
	IsTyping  bool      `json:"isTyping"`
	Timestamp time.Time `json:"timestamp"`
}
