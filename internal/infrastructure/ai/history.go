package ai

import (
	"sync"

	"github.com/doeshing/compai/internal/domain"
)

// History is the capped conversation window. Only completed exchanges are appended.
type History struct {
	mu      sync.Mutex
	limit   int
	entries []domain.ChatMessage
}

// NewHistory creates a window of at most limit entries.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = domain.HistoryWindow
	}
	return &History{limit: limit}
}

// Window returns the last limit entries of the history followed by pending.
// The history itself is not modified.
func (h *History) Window(pending ...domain.ChatMessage) []domain.ChatMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	combined := make([]domain.ChatMessage, 0, len(h.entries)+len(pending))
	combined = append(combined, h.entries...)
	combined = append(combined, pending...)
	return tail(combined, h.limit)
}

// AppendExchange records a user turn and its assistant reply together.
func (h *History) AppendExchange(user, assistant domain.ChatMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = tail(append(h.entries, user, assistant), h.limit)
}

// Entries returns a copy of the current window.
func (h *History) Entries() []domain.ChatMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.ChatMessage(nil), h.entries...)
}

// Len is the number of stored entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Reset drops every entry.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}

func tail(entries []domain.ChatMessage, limit int) []domain.ChatMessage {
	if len(entries) <= limit {
		return entries
	}
	trimmed := make([]domain.ChatMessage, limit)
	copy(trimmed, entries[len(entries)-limit:])
	return trimmed
}
