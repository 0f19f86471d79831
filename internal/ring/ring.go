// Package ring is the selection index: the undrawn cards laid out on a
// rotating circle, hit-tested by pointer rays.
package ring

import (
	"math"
	"time"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/deck"
	"github.com/ayusman/mudra/internal/geom"
)

// Item is one card on the ring. Slot is its fixed angle, assigned at reset.
type Item struct {
	Card *deck.Card
	Slot float64
}

// Ring holds the live items and the ring's rotation state.
type Ring struct {
	cfg   config.Ring
	items []*Item

	// Rotation is added to every slot angle, in radians.
	Rotation float64
	// Velocity is the angular velocity in radians per second.
	Velocity float64
}

// New creates a ring laid out for cards.
func New(cfg config.Ring, cards []*deck.Card) *Ring {
	r := &Ring{cfg: cfg}
	r.Reset(cards)
	return r
}

// Reset replaces the live set wholesale, spacing cards evenly in the given
// order, and stops the rotation.
func (r *Ring) Reset(cards []*deck.Card) {
	r.items = make([]*Item, len(cards))
	step := 0.0
	if len(cards) > 0 {
		step = 2 * math.Pi / float64(len(cards))
	}
	for i, c := range cards {
		r.items[i] = &Item{Card: c, Slot: float64(i) * step}
	}
	r.Rotation = 0
	r.Velocity = 0
}

// Len returns the number of live items.
func (r *Ring) Len() int {
	return len(r.items)
}

// Items returns the live items. The slice is a copy.
func (r *Ring) Items() []*Item {
	out := make([]*Item, len(r.items))
	copy(out, r.items)
	return out
}

// Angle returns the item's current angle including rotation.
func (r *Ring) Angle(it *Item) float64 {
	return it.Slot + r.Rotation
}

// Position returns the item's world position.
func (r *Ring) Position(it *Item) geom.Vec3 {
	a := r.Angle(it)
	return r.cfg.Pivot.Add(geom.V(r.cfg.Radius*math.Cos(a), 0, r.cfg.Radius*math.Sin(a)))
}

// Pose returns the item's pose, facing away from the pivot.
func (r *Ring) Pose(it *Item) geom.Pose {
	return geom.Pose{
		Position: r.Position(it),
		Yaw:      math.Pi/2 - r.Angle(it),
		Scale:    1,
	}
}

// HitTest returns the live item whose bounding sphere the ray enters first.
func (r *Ring) HitTest(ray geom.Ray) (*Item, bool) {
	var (
		best  *Item
		bestT = math.Inf(1)
	)
	for _, it := range r.items {
		t, ok := ray.IntersectSphere(r.Position(it), r.cfg.HitRadius)
		if ok && t < bestT {
			best, bestT = it, t
		}
	}
	return best, best != nil
}

// Draw removes the item holding card id from the live set. It reports false
// if no live item holds that card. Other items keep their slots.
func (r *Ring) Draw(id int) (*Item, bool) {
	for i, it := range r.items {
		if it.Card.ID == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return it, true
		}
	}
	return nil, false
}

// Nudge adds angular velocity proportional to a lateral pointer movement dx
// (normalised screen units), clamped to MaxVelocity.
func (r *Ring) Nudge(dx float64) {
	v := r.Velocity + r.cfg.SpinGain*dx
	if max := r.cfg.MaxVelocity; max > 0 {
		v = math.Max(-max, math.Min(max, v))
	}
	r.Velocity = v
}

// Step advances the rotation by dt and decays the velocity.
func (r *Ring) Step(dt time.Duration) {
	secs := dt.Seconds()
	if secs <= 0 {
		return
	}
	r.Rotation = math.Mod(r.Rotation+r.Velocity*secs, 2*math.Pi)
	r.Velocity *= math.Pow(r.cfg.MomentumDecay, secs)
	if math.Abs(r.Velocity) < 1e-4 {
		r.Velocity = 0
	}
}
