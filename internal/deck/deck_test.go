package deck

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRNG replays fixed values, wrapping modulo n.
type scriptedRNG struct {
	values []int
	i      int
}

func (s *scriptedRNG) Intn(n int) int {
	v := s.values[s.i%len(s.values)]
	s.i++
	return v % n
}

func ids(cards []*Card) []int {
	out := make([]int, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

func TestMajorArcana(t *testing.T) {
	cards, err := MajorArcana()
	require.NoError(t, err)
	require.Len(t, cards, 22)

	assert.Equal(t, "The Fool", cards[0].Name)
	assert.Equal(t, "The World", cards[21].Name)
	for i, c := range cards {
		assert.Equal(t, i, c.ID)
		assert.NotEmpty(t, c.Upright)
		assert.NotEmpty(t, c.Reversed)
		assert.NotEmpty(t, c.BaseArt)
	}

	again, err := MajorArcana()
	require.NoError(t, err)
	assert.NotSame(t, cards[0], again[0], "each call returns fresh cards")
}

func TestNew_RejectsDuplicates(t *testing.T) {
	cards := []*Card{NewCard(1, "a", "", "", ""), NewCard(1, "b", "", "", "")}

	_, err := New(cards, NewRNG(1))

	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestShuffle_Deterministic(t *testing.T) {
	cards := Numbered(4)

	// i=3 swaps with 0, i=2 stays, i=1 swaps with 0.
	Shuffle(cards, &scriptedRNG{values: []int{0, 2, 0}})

	assert.Equal(t, []int{1, 3, 2, 0}, ids(cards))
}

func TestShuffle_Unbiased(t *testing.T) {
	rng := NewRNG(42)
	counts := map[[3]int]int{}
	const rounds = 60000

	for range rounds {
		cards := Numbered(3)
		Shuffle(cards, rng)
		counts[[3]int{cards[0].ID, cards[1].ID, cards[2].ID}]++
	}

	require.Len(t, counts, 6)
	for perm, n := range counts {
		assert.InDelta(t, rounds/6, n, rounds/60, "permutation %v", perm)
	}
}

func TestDeck_RemoveAndReset(t *testing.T) {
	d, err := New(Numbered(32), NewRNG(7))
	require.NoError(t, err)
	require.Equal(t, 32, d.Len())

	c, ok := d.Remove(5)
	require.True(t, ok)
	assert.Equal(t, 5, c.ID)
	assert.Equal(t, 31, d.Len())
	assert.False(t, d.Contains(5))

	_, ok = d.Remove(5)
	assert.False(t, ok, "a drawn card cannot be drawn again")
	assert.Equal(t, 31, d.Len())

	got, ok := d.Get(5)
	assert.True(t, ok)
	assert.Same(t, c, got)

	d.Reset()
	assert.Equal(t, 32, d.Len())
	assert.True(t, d.Contains(5))

	seen := map[int]bool{}
	for _, c := range d.Cards() {
		assert.False(t, seen[c.ID], "duplicate %d", c.ID)
		seen[c.ID] = true
	}
}

func TestDeck_CardsIsCopy(t *testing.T) {
	d, err := New(Numbered(3), NewRNG(1))
	require.NoError(t, err)

	cards := d.Cards()
	cards[0] = nil

	assert.NotNil(t, d.Cards()[0])
}

func TestCard_Artwork(t *testing.T) {
	c := NewCard(0, "The Fool", "up", "down", "cards/00.png")

	assert.Equal(t, "cards/00.png", c.Artwork())
	_, ok := c.Generated()
	assert.False(t, ok)

	c.SetArtwork("https://img/1.png")
	assert.Equal(t, "https://img/1.png", c.Artwork())
	assert.Equal(t, "https://img/1.png", c.Snapshot().Artwork)

	c.ClearArtwork()
	assert.Equal(t, "cards/00.png", c.Artwork())

	assert.Equal(t, "down", c.Meaning(true))
	assert.Equal(t, "up", c.Meaning(false))
}

func TestCard_ConcurrentArtworkSwap(t *testing.T) {
	c := NewCard(0, "x", "", "", "base")
	refs := map[string]bool{"base": true, "a": true, "b": true}

	var wg sync.WaitGroup
	for _, ref := range []string{"a", "b"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				c.SetArtwork(ref)
			}
		}()
	}
	for range 2000 {
		assert.True(t, refs[c.Artwork()])
	}
	wg.Wait()
}

func TestFlip(t *testing.T) {
	assert.True(t, Flip(&scriptedRNG{values: []int{1}}))
	assert.False(t, Flip(&scriptedRNG{values: []int{0}}))
}
