package gesture

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func ms(n int) time.Time {
	return epoch.Add(time.Duration(n) * time.Millisecond)
}

// feed sends g every step milliseconds over [from, to] and returns the updates.
func feed(s *Stabilizer, g Gesture, from, to, step int) []Update {
	var out []Update
	for t := from; t <= to; t += step {
		out = append(out, s.Update(g, nil, ms(t)))
	}
	return out
}

func entered(updates []Update, g Gesture) (Update, bool) {
	for _, u := range updates {
		if u.Changed && u.Current == g {
			return u, true
		}
	}
	return Update{}, false
}

func TestStabilizer_PinchHold(t *testing.T) {
	t.Run("79ms pinch never enters", func(t *testing.T) {
		s := NewStabilizer(config.Default().Stabilizer)

		updates := feed(s, Pinch, 0, 79, 1)
		updates = append(updates, feed(s, None, 80, 400, 16)...)

		_, ok := entered(updates, Pinch)
		assert.False(t, ok)
		assert.Equal(t, None, s.Current())
	})

	t.Run("80ms pinch enters", func(t *testing.T) {
		s := NewStabilizer(config.Default().Stabilizer)

		u, ok := entered(feed(s, Pinch, 0, 80, 1), Pinch)
		require.True(t, ok)
		assert.Equal(t, ms(80), u.At)
		assert.Equal(t, None, u.Previous)
	})

	t.Run("interrupted pinch restarts the timer", func(t *testing.T) {
		s := NewStabilizer(config.Default().Stabilizer)

		updates := feed(s, Pinch, 0, 60, 10)
		updates = append(updates, s.Update(None, nil, ms(70)))
		updates = append(updates, feed(s, Pinch, 80, 200, 10)...)

		u, ok := entered(updates, Pinch)
		require.True(t, ok)
		assert.Equal(t, ms(160), u.At)
	})
}

func TestStabilizer_FistHold(t *testing.T) {
	t.Run("39ms fist never enters", func(t *testing.T) {
		s := NewStabilizer(config.Default().Stabilizer)

		updates := feed(s, Fist, 0, 39, 1)
		updates = append(updates, feed(s, None, 40, 300, 16)...)

		_, ok := entered(updates, Fist)
		assert.False(t, ok)
	})

	t.Run("40ms fist enters", func(t *testing.T) {
		s := NewStabilizer(config.Default().Stabilizer)

		u, ok := entered(feed(s, Fist, 0, 40, 1), Fist)
		require.True(t, ok)
		assert.Equal(t, ms(40), u.At)
	})
}

func TestStabilizer_UntimedGestureIsImmediate(t *testing.T) {
	s := NewStabilizer(config.Default().Stabilizer)

	u := s.Update(Open, nil, ms(0))

	assert.True(t, u.Changed)
	assert.Equal(t, Open, u.Current)
}

func TestStabilizer_Cooldown(t *testing.T) {
	cfg := config.Default().Stabilizer
	rng := rand.New(rand.NewSource(7))

	s := NewStabilizer(cfg)
	var changes []time.Time
	now := epoch
	for i := 0; i < 5000; i++ {
		now = now.Add(time.Duration(1+rng.Intn(20)) * time.Millisecond)
		u := s.Update(All[rng.Intn(len(All))], nil, now)
		if u.Changed {
			changes = append(changes, u.At)
		}
	}

	require.NotEmpty(t, changes)
	for i := 1; i < len(changes); i++ {
		assert.GreaterOrEqual(t, changes[i].Sub(changes[i-1]), cfg.Cooldown)
	}
}

func TestStabilizer_SustainedGestureSurvivesGlitch(t *testing.T) {
	s := NewStabilizer(config.Default().Stabilizer)
	feed(s, Pinch, 0, 160, 16)
	require.Equal(t, Pinch, s.Current())

	u := s.Update(None, nil, ms(176))
	assert.False(t, u.Changed)
	assert.Equal(t, Pinch, u.Current)

	feed(s, Pinch, 192, 300, 16)
	assert.Equal(t, Pinch, s.Current())
}

func TestStabilizer_TieKeepsCurrent(t *testing.T) {
	s := NewStabilizer(config.Default().Stabilizer)

	s.Update(Open, nil, ms(0))
	s.Update(Open, nil, ms(20))
	s.Update(None, nil, ms(40))
	u := s.Update(None, nil, ms(60))
	assert.Equal(t, Open, u.Current, "two-two tie keeps the current gesture")

	u = s.Update(None, nil, ms(80))
	assert.True(t, u.Changed)
	assert.Equal(t, None, u.Current)
}

func TestStabilizer_TieOrder(t *testing.T) {
	tests := []struct {
		buf  []Gesture
		want Gesture
	}{
		{[]Gesture{Fist, Fist, Pinch, Pinch}, Pinch},
		{[]Gesture{Pinch, Open, Pinch, Open}, Open},
		{[]Gesture{Point, Fist, Fist, Point}, Point},
		{[]Gesture{Fist, None, Fist, None}, None},
	}

	for _, tt := range tests {
		s := NewStabilizer(config.Default().Stabilizer)
		s.current = Open
		if tt.want == Open {
			s.current = None
		}
		for _, g := range tt.buf {
			s.push(g)
		}
		assert.Equal(t, tt.want, s.majority(), "%v", tt.buf)
	}
}

func TestStabilizer_Callbacks(t *testing.T) {
	s := NewStabilizer(config.Default().Stabilizer)
	var enters []Gesture
	holds := 0
	var lastHand *detector.HandLandmarks
	s.OnEnter = func(u Update) { enters = append(enters, u.Current) }
	s.OnHold = func(u Update) {
		holds++
		lastHand = u.Hand
	}

	hand := detector.OpenPalmLandmarks()
	for i := 0; i < 5; i++ {
		s.Update(Open, &hand, ms(i*16))
	}

	assert.Equal(t, []Gesture{Open}, enters)
	assert.Equal(t, 5, holds)
	assert.Same(t, &hand, lastHand)
}

func TestStabilizer_Reset(t *testing.T) {
	s := NewStabilizer(config.Default().Stabilizer)
	feed(s, Fist, 0, 100, 10)
	require.Equal(t, Fist, s.Current())

	s.Reset()
	assert.Equal(t, None, s.Current())

	u := s.Update(Open, nil, ms(101))
	assert.True(t, u.Changed, "reset clears the cooldown")
}
