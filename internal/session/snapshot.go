package session

import (
	"github.com/ayusman/mudra/internal/deck"
	"github.com/ayusman/mudra/internal/geom"
	"github.com/ayusman/mudra/internal/placement"
)

// ActiveCard describes the card currently out of the ring.
type ActiveCard struct {
	Card     deck.Snapshot `json:"card"`
	Reversed bool          `json:"reversed"`
	Meaning  string        `json:"meaning"`
	Pose     geom.Pose     `json:"pose"`
}

// RingItem is one undrawn card's place on the ring.
type RingItem struct {
	CardID int       `json:"card_id"`
	Pose   geom.Pose `json:"pose"`
}

// Snapshot is a read-only copy of the session for presentation.
type Snapshot struct {
	State     State             `json:"state"`
	Drawn     int               `json:"drawn"`
	MaxDraws  int               `json:"max_draws"`
	Remaining int               `json:"remaining"`
	Rotation  float64           `json:"rotation"`
	Active    *ActiveCard       `json:"active,omitempty"`
	History   []Entry           `json:"history"`
	Ring      []RingItem        `json:"ring,omitempty"`
	Placement *placement.Result `json:"placement,omitempty"`
	Viewer    geom.Camera       `json:"viewer"`
}

// Snapshot copies the current state. Ring poses are included when withRing
// is set.
func (m *Machine) Snapshot(withRing bool) Snapshot {
	s := Snapshot{
		State:     m.state,
		Drawn:     m.drawn,
		MaxDraws:  m.cfg.MaxDraws,
		Remaining: m.deck.Len(),
		Rotation:  m.ring.Rotation,
		History:   m.history.Recent(),
		Viewer:    m.viewer,
	}
	if m.placement != nil {
		p := *m.placement
		s.Placement = &p
	}
	if a := m.active; a != nil {
		s.Active = &ActiveCard{
			Card:     a.card.Snapshot(),
			Reversed: a.reversed,
			Meaning:  a.card.Meaning(a.reversed),
			Pose:     m.activePose(),
		}
	}
	if withRing {
		for _, it := range m.ring.Items() {
			s.Ring = append(s.Ring, RingItem{CardID: it.Card.ID, Pose: m.ring.Pose(it)})
		}
	}
	return s
}
