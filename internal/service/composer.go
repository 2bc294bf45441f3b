package service

import (
	"strings"

	"github.com/raphaelgruber/ragchat/internal/models"
)

// DefaultHistoryTurns is how many recent turns the composer includes.
const DefaultHistoryTurns = 5

// HistoryFormatter renders recent turns of a session for a prompt.
type HistoryFormatter interface {
	FormatForPrompt(sessionID string, limit int) string
}

// Composer builds the generation context from session history and
// retrieved chunks.
type Composer struct {
	history HistoryFormatter
	turns   int
}

// NewComposer creates a composer reading the last turns from history.
// Non-positive turns uses DefaultHistoryTurns.
func NewComposer(history HistoryFormatter, turns int) *Composer {
	if turns <= 0 {
		turns = DefaultHistoryTurns
	}
	return &Composer{history: history, turns: turns}
}

// History returns the recent turns of sessionID formatted for a prompt.
// Taken before the current message is recorded, it never includes it.
func (c *Composer) History(sessionID string) string {
	return c.history.FormatForPrompt(sessionID, c.turns)
}

// ComposeContext joins retrieved contents in result order with blank lines
// and prefixes the conversation history when there is any.
func ComposeContext(history string, results []models.RetrievalResult) string {
	contents := make([]string, len(results))
	for i, r := range results {
		contents[i] = r.Payload.Contents
	}
	ragContext := strings.Join(contents, "\n\n")

	if history != "" {
		return "Previous conversation:\n" + history + "\n\nRelevant information:\n" + ragContext
	}
	return "Relevant information:\n" + ragContext
}
