package deck

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
)

//go:embed data/*.json
var dataFS embed.FS

// ErrDuplicate is returned when two cards share an ID.
var ErrDuplicate = errors.New("duplicate card id")

// RNG abstracts random number generation for deterministic testing.
type RNG interface {
	// Intn returns a non-negative random int in [0, n).
	Intn(n int) int
}

type pcgRNG struct {
	r *rand.Rand
}

func (p pcgRNG) Intn(n int) int { return p.r.IntN(n) }

// NewRNG returns a seeded RNG.
func NewRNG(seed uint64) RNG {
	return pcgRNG{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

type globalRNG struct{}

func (globalRNG) Intn(n int) int { return rand.IntN(n) }

// DefaultRNG returns an RNG backed by the runtime's randomly seeded source.
func DefaultRNG() RNG {
	return globalRNG{}
}

// Flip returns true with probability one half.
func Flip(rng RNG) bool {
	return rng.Intn(2) == 1
}

// Deck is the ordered, duplicate-free collection of cards not yet drawn in the
// current session. It remembers the full set so Reset can restore it.
type Deck struct {
	all  []*Card
	live []*Card
	rng  RNG
}

// New creates a deck holding every card, shuffled with rng.
func New(cards []*Card, rng RNG) (*Deck, error) {
	seen := make(map[int]struct{}, len(cards))
	for _, c := range cards {
		if _, ok := seen[c.ID]; ok {
			return nil, fmt.Errorf("%w: %d", ErrDuplicate, c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	if rng == nil {
		rng = DefaultRNG()
	}

	d := &Deck{all: cards, rng: rng}
	d.Reset()
	return d, nil
}

// Reset restores every card and reshuffles.
func (d *Deck) Reset() {
	d.live = make([]*Card, len(d.all))
	copy(d.live, d.all)
	Shuffle(d.live, d.rng)
}

// Shuffle permutes cards in place with Fisher-Yates so every ordering is
// equally likely.
func Shuffle(cards []*Card, rng RNG) {
	for i := len(cards) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

// RNG returns the deck's random source, shared with orientation flips.
func (d *Deck) RNG() RNG {
	return d.rng
}

// Len returns how many cards are still in the deck.
func (d *Deck) Len() int {
	return len(d.live)
}

// Size returns the size of the full deck.
func (d *Deck) Size() int {
	return len(d.all)
}

// Cards returns the live cards in shuffled order. The slice is a copy.
func (d *Deck) Cards() []*Card {
	out := make([]*Card, len(d.live))
	copy(out, d.live)
	return out
}

// Contains reports whether the card with id is still in the deck.
func (d *Deck) Contains(id int) bool {
	return d.indexOf(id) >= 0
}

// Get returns the card with id from the full set, drawn or not.
func (d *Deck) Get(id int) (*Card, bool) {
	for _, c := range d.all {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// Remove takes the card with id out of the deck. It reports false if the
// card was already drawn.
func (d *Deck) Remove(id int) (*Card, bool) {
	i := d.indexOf(id)
	if i < 0 {
		return nil, false
	}
	c := d.live[i]
	d.live = append(d.live[:i], d.live[i+1:]...)
	return c, true
}

func (d *Deck) indexOf(id int) int {
	for i, c := range d.live {
		if c.ID == id {
			return i
		}
	}
	return -1
}

type cardData struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Upright  string `json:"upright"`
	Reversed string `json:"reversed"`
	Art      string `json:"art"`
}

// MajorArcana returns fresh copies of the 22 embedded Major Arcana cards.
func MajorArcana() ([]*Card, error) {
	raw, err := dataFS.ReadFile("data/major_arcana.json")
	if err != nil {
		return nil, fmt.Errorf("read embedded deck: %w", err)
	}
	var data []cardData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse embedded deck: %w", err)
	}

	cards := make([]*Card, len(data))
	for i, d := range data {
		cards[i] = NewCard(d.ID, d.Name, d.Upright, d.Reversed, d.Art)
	}
	return cards, nil
}

// Numbered returns n placeholder cards with IDs 0..n-1.
func Numbered(n int) []*Card {
	cards := make([]*Card, n)
	for i := range n {
		cards[i] = NewCard(i, fmt.Sprintf("Card %d", i), "upright", "reversed", fmt.Sprintf("cards/%02d.png", i))
	}
	return cards
}
