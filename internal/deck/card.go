// Package deck holds the drawable cards and the shuffled collection of cards
// not yet drawn in the current session.
package deck

import (
	"sync/atomic"
)

// Card is a logical drawable item. Its identity fields never change; only the
// generated artwork reference is mutable, and it is always replaced whole so
// concurrent readers see either the old or the new value.
//
// Cards must not be copied after first use; pass *Card.
type Card struct {
	ID       int
	Name     string
	Upright  string
	Reversed string
	BaseArt  string

	generated atomic.Pointer[string]
}

// NewCard creates a card with no generated artwork.
func NewCard(id int, name, upright, reversed, baseArt string) *Card {
	return &Card{ID: id, Name: name, Upright: upright, Reversed: reversed, BaseArt: baseArt}
}

// Meaning returns the text for the given orientation.
func (c *Card) Meaning(reversed bool) string {
	if reversed {
		return c.Reversed
	}
	return c.Upright
}

// Artwork returns the generated artwork reference if one is set, otherwise the
// base artwork.
func (c *Card) Artwork() string {
	if ref, ok := c.Generated(); ok {
		return ref
	}
	return c.BaseArt
}

// Generated returns the generated artwork reference, if any.
func (c *Card) Generated() (string, bool) {
	p := c.generated.Load()
	if p == nil {
		return "", false
	}
	return *p, true
}

// SetArtwork replaces the generated artwork reference. Safe to call from any
// goroutine.
func (c *Card) SetArtwork(ref string) {
	c.generated.Store(&ref)
}

// ClearArtwork drops the generated artwork so Artwork falls back to BaseArt.
func (c *Card) ClearArtwork() {
	c.generated.Store(nil)
}

// Snapshot is an immutable copy of a card suitable for history and JSON.
type Snapshot struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Upright  string `json:"upright"`
	Reversed string `json:"reversed"`
	Artwork  string `json:"artwork"`
}

// Snapshot copies the card's current state.
func (c *Card) Snapshot() Snapshot {
	return Snapshot{
		ID:       c.ID,
		Name:     c.Name,
		Upright:  c.Upright,
		Reversed: c.Reversed,
		Artwork:  c.Artwork(),
	}
}
