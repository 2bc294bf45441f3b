// Package session keeps bounded per-session chat history in memory.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/raphaelgruber/ragchat/internal/models"
)

// Defaults used when the store is built with zero values.
const (
	DefaultMaxTurns    = 20
	DefaultPromptLimit = 10
	DefaultRetention   = 24 * time.Hour
)

type session struct {
	id          string
	messages    []models.ChatTurn
	createdAt   time.Time
	lastUpdated time.Time
}

func (s *session) view() models.ChatSession {
	return models.ChatSession{
		SessionID:   s.id,
		Messages:    append([]models.ChatTurn(nil), s.messages...),
		CreatedAt:   s.createdAt,
		LastUpdated: s.lastUpdated,
	}
}

// Store maps session ids to bounded turn logs.
// All methods are thread-safe; callers only ever receive copies.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*session
	maxTurns int
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithMaxTurns sets the per-session cap. Non-positive values keep the default.
func WithMaxTurns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxTurns = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty session store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*session),
		maxTurns: DefaultMaxTurns,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// getOrCreate returns the session, registering a new one if needed.
// Caller must hold the lock.
func (s *Store) getOrCreate(id string) *session {
	sess, ok := s.sessions[id]
	if !ok {
		now := s.now()
		sess = &session{id: id, createdAt: now, lastUpdated: now}
		s.sessions[id] = sess
	}
	return sess
}

// GetOrCreate returns a snapshot of the session, creating it when unseen.
func (s *Store) GetOrCreate(sessionID string) models.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreate(sessionID).view()
}

// Append adds one turn, refreshes lastUpdated and drops the oldest turns
// beyond the cap.
func (s *Store) Append(sessionID string, role models.Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreate(sessionID)
	now := s.now()
	sess.messages = append(sess.messages, models.ChatTurn{
		Role:      role,
		Content:   content,
		Timestamp: now,
	})
	sess.lastUpdated = now

	if over := len(sess.messages) - s.maxTurns; over > 0 {
		sess.messages = append([]models.ChatTurn(nil), sess.messages[over:]...)
	}
}

// History returns a copy of the session's turns, oldest first.
// Unknown sessions yield an empty slice and are not created.
func (s *Store) History(sessionID string) []models.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return []models.ChatTurn{}
	}
	return append([]models.ChatTurn(nil), sess.messages...)
}

// FormatForPrompt renders the most recent limit turns as "Role: content"
// lines. A non-positive limit uses DefaultPromptLimit. Returns "" when the
// session has no turns.
func (s *Store) FormatForPrompt(sessionID string, limit int) string {
	if limit <= 0 {
		limit = DefaultPromptLimit
	}

	history := s.History(sessionID)
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	if len(history) == 0 {
		return ""
	}

	lines := make([]string, len(history))
	for i, turn := range history {
		lines[i] = turn.String()
	}
	return strings.Join(lines, "\n")
}

// SweepExpired removes every session last updated before now-retention and
// returns how many were removed. The age check and delete happen under the
// same lock as Append.
func (s *Store) SweepExpired(now time.Time, retention time.Duration) int {
	if retention <= 0 {
		retention = DefaultRetention
	}
	cutoff := now.Add(-retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.lastUpdated.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// RunSweeper calls SweepExpired every interval until ctx is cancelled.
func (s *Store) RunSweeper(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			removed := s.SweepExpired(s.now(), retention)
			slog.Debug("session sweep", "removed", removed, "remaining", s.Len(), "duration_ms", time.Since(start).Milliseconds())
		}
	}
}
