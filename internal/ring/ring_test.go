package ring

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/deck"
	"github.com/ayusman/mudra/internal/geom"
)

func newRing(t *testing.T, n int) *Ring {
	t.Helper()
	return New(config.Default().Ring, deck.Numbered(n))
}

// frontmost returns the item closest to the default viewer.
func frontmost(r *Ring) *Item {
	var best *Item
	for _, it := range r.Items() {
		if best == nil || r.Position(it).Z > r.Position(best).Z {
			best = it
		}
	}
	return best
}

func TestRing_Layout(t *testing.T) {
	r := newRing(t, 4)
	cfg := config.Default().Ring

	items := r.Items()
	require.Len(t, items, 4)
	for i, it := range items {
		assert.InDelta(t, float64(i)*math.Pi/2, it.Slot, 1e-9)
		p := r.Position(it)
		assert.InDelta(t, cfg.Radius, p.HorizontalDist(cfg.Pivot), 1e-9)
		assert.InDelta(t, cfg.Pivot.Y, p.Y, 1e-9)
	}
}

func TestRing_HitTest(t *testing.T) {
	viewer := config.Default().Viewer.Position

	t.Run("ray through an item hits it", func(t *testing.T) {
		r := newRing(t, 32)
		target := frontmost(r)

		ray := geom.Ray{Origin: viewer, Dir: r.Position(target).Sub(viewer)}
		got, ok := r.HitTest(ray)

		require.True(t, ok)
		assert.Same(t, target, got)
	})

	t.Run("nearest item wins", func(t *testing.T) {
		r := newRing(t, 2)
		// Items at (9,0,0) and (-9,0,0); a ray along -X from far right crosses both.
		ray := geom.Ray{Origin: geom.V(20, 0, 0), Dir: geom.V(-1, 0, 0)}

		got, ok := r.HitTest(ray)

		require.True(t, ok)
		assert.Equal(t, 0, got.Card.ID)
	})

	t.Run("miss", func(t *testing.T) {
		r := newRing(t, 32)
		ray := geom.Ray{Origin: viewer, Dir: geom.V(0, 1, 0)}

		_, ok := r.HitTest(ray)

		assert.False(t, ok)
	})
}

func TestRing_Draw(t *testing.T) {
	r := newRing(t, 32)
	viewer := config.Default().Viewer.Position
	target := frontmost(r)
	slots := map[int]float64{}
	for _, it := range r.Items() {
		slots[it.Card.ID] = it.Slot
	}

	drawn, ok := r.Draw(target.Card.ID)
	require.True(t, ok)
	assert.Same(t, target, drawn)
	assert.Equal(t, 31, r.Len())

	_, ok = r.Draw(target.Card.ID)
	assert.False(t, ok, "drawn item cannot be drawn twice")
	assert.Equal(t, 31, r.Len())

	for _, it := range r.Items() {
		assert.NotEqual(t, target.Card.ID, it.Card.ID)
		assert.Equal(t, slots[it.Card.ID], it.Slot, "remaining items keep their slots")
	}

	ray := geom.Ray{Origin: viewer, Dir: r.Position(target).Sub(viewer)}
	if got, ok := r.HitTest(ray); ok {
		assert.NotEqual(t, target.Card.ID, got.Card.ID)
	}

	r.Reset(deck.Numbered(32))
	assert.Equal(t, 32, r.Len())
}

func TestRing_Momentum(t *testing.T) {
	r := newRing(t, 8)
	cfg := config.Default().Ring

	r.Nudge(0.1)
	assert.InDelta(t, cfg.SpinGain*0.1, r.Velocity, 1e-9)

	r.Nudge(10)
	assert.InDelta(t, cfg.MaxVelocity, r.Velocity, 1e-9, "clamped")

	before := r.Rotation
	r.Step(time.Second)
	assert.InDelta(t, before+cfg.MaxVelocity, r.Rotation, 1e-9)
	assert.InDelta(t, cfg.MaxVelocity*cfg.MomentumDecay, r.Velocity, 1e-9)

	for range 200 {
		r.Step(100 * time.Millisecond)
	}
	assert.Zero(t, r.Velocity, "momentum decays to rest")

	r.Nudge(-0.1)
	assert.Less(t, r.Velocity, 0.0)
}

func TestRing_RotationMovesItems(t *testing.T) {
	r := newRing(t, 4)
	it := r.Items()[0]
	p0 := r.Position(it)

	r.Rotation = math.Pi / 2
	p1 := r.Position(it)

	assert.InDelta(t, 0, p1.X, 1e-9)
	assert.InDelta(t, p0.X, p1.Z, 1e-9)
}
