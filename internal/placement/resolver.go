// Package placement finds where to put a confirmed card so it stays clear of
// the ring of undrawn cards.
package placement

import (
	"math"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/geom"
)

// Result is a resolved placement plus diagnostics.
type Result struct {
	Position   geom.Vec3 `json:"position"`
	Distance   float64   `json:"distance"`
	Iterations int       `json:"iterations"`
	// Unsafe is set when the accepted position still overlaps the ring band,
	// either because the iteration cap ran out or the floor was reached.
	Unsafe bool `json:"unsafe"`
}

// Resolver runs a bounded line search along the viewer's forward axis,
// pulling the candidate toward the viewer until it leaves the forbidden
// annulus around the ring.
type Resolver struct {
	cfg   config.Placement
	pivot geom.Vec3
	ringR float64
	near  float64
}

// NewResolver creates a Resolver for a ring of the given shape and a viewer
// with the given near clip distance.
func NewResolver(cfg config.Placement, ring config.Ring, near float64) *Resolver {
	return &Resolver{cfg: cfg, pivot: ring.Pivot, ringR: ring.Radius, near: near}
}

// Floor is the minimum distance the resolver will ever return.
func (r *Resolver) Floor() float64 {
	return r.near + r.cfg.FloorMargin
}

// Unsafe reports whether pos lies in the forbidden region: horizontally
// within SafetyMargin of the ring radius and vertically within HorizonBand of
// the pivot.
func (r *Resolver) Unsafe(pos geom.Vec3) bool {
	radial := math.Abs(pos.HorizontalDist(r.pivot) - r.ringR)
	return radial < r.cfg.SafetyMargin && math.Abs(pos.Y-r.pivot.Y) <= r.cfg.HorizonBand
}

// Resolve places the card along forward from viewer, lifted by UpOffset along
// up. It never fails: when the search cannot find a safe spot it accepts the
// last candidate and sets Unsafe.
func (r *Resolver) Resolve(viewer, forward, up geom.Vec3) Result {
	fwd := forward.Normalize()
	if fwd.IsZero() {
		fwd = geom.V(0, 0, -1)
	}
	lift := up.Normalize().Scale(r.cfg.UpOffset)
	at := func(d float64) geom.Vec3 {
		return viewer.Add(fwd.Scale(d)).Add(lift)
	}

	floor := r.Floor()
	start := math.Max(r.cfg.BaseDistance, floor)

	res := Result{Distance: start, Position: at(start)}
	res.Unsafe = r.Unsafe(res.Position)

	for res.Unsafe && res.Iterations < r.cfg.MaxIterations {
		res.Iterations++
		// Computed from the start rather than accumulated to avoid drift.
		d := start - r.cfg.Step*float64(res.Iterations)
		if d <= floor {
			res.Distance = floor
			res.Position = at(floor)
			res.Unsafe = r.Unsafe(res.Position)
			break
		}
		res.Distance = d
		res.Position = at(d)
		res.Unsafe = r.Unsafe(res.Position)
	}
	return res
}

// ResolveFor is Resolve for a camera, using its forward and true up axes.
func (r *Resolver) ResolveFor(cam geom.Camera) Result {
	return r.Resolve(cam.Position, cam.Forward(), cam.TrueUp())
}
