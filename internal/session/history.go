package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/deck"
)

// Entry records one confirmed draw.
type Entry struct {
	ID       string        `json:"id"`
	Card     deck.Snapshot `json:"card"`
	Reversed bool          `json:"reversed"`
	Meaning  string        `json:"meaning"`
	At       time.Time     `json:"at"`
}

// History is the append-only log of confirmed draws in a session.
type History struct {
	entries []Entry // oldest first
	display int
}

// NewHistory creates a history whose Recent view shows at most display
// entries.
func NewHistory(display int) *History {
	return &History{display: display}
}

// Append records a draw and returns the stored entry.
func (h *History) Append(card *deck.Card, reversed bool, at time.Time) Entry {
	e := Entry{
		ID:       uuid.NewString(),
		Card:     card.Snapshot(),
		Reversed: reversed,
		Meaning:  card.Meaning(reversed),
		At:       at,
	}
	h.entries = append(h.entries, e)
	return e
}

// Len returns the number of entries.
func (h *History) Len() int {
	return len(h.entries)
}

// All returns every entry, most recent first.
func (h *History) All() []Entry {
	return h.newestFirst(len(h.entries))
}

// Recent returns up to the display cap of entries, most recent first.
func (h *History) Recent() []Entry {
	return h.newestFirst(h.display)
}

// Clear drops every entry.
func (h *History) Clear() {
	h.entries = nil
}

func (h *History) newestFirst(limit int) []Entry {
	n := min(limit, len(h.entries))
	out := make([]Entry, 0, n)
	for i := len(h.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.entries[i])
	}
	return out
}
