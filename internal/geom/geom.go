// Package geom provides the small amount of 3D math the interaction core needs:
// vectors, rays, poses and a pinhole viewer camera.
package geom

import "math"

// Vec3 is a point or direction in world space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// V is shorthand for constructing a Vec3.
func V(x, y, z float64) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Cross returns the cross product v × o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Len returns the Euclidean length of v.
func (v Vec3) Len() float64 {
	return math.Sqrt(v.Dot(v))
}

// Dist returns the distance between v and o.
func (v Vec3) Dist(o Vec3) float64 {
	return v.Sub(o).Len()
}

// HorizontalDist returns the distance between v and o on the XZ plane.
func (v Vec3) HorizontalDist(o Vec3) float64 {
	dx := v.X - o.X
	dz := v.Z - o.Z
	return math.Sqrt(dx*dx + dz*dz)
}

// Normalize returns v scaled to unit length.
// The zero vector is returned unchanged.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l < 1e-12 {
		return v
	}
	return v.Scale(1 / l)
}

// IsZero reports whether v has (near) zero length.
func (v Vec3) IsZero() bool {
	return v.Len() < 1e-12
}

// Lerp interpolates from v toward o by t in [0, 1].
func (v Vec3) Lerp(o Vec3, t float64) Vec3 {
	return v.Add(o.Sub(v).Scale(t))
}

// Ray is a half-line starting at Origin heading along Dir.
type Ray struct {
	Origin Vec3 `json:"origin"`
	Dir    Vec3 `json:"dir"`
}

// At returns the point at parameter t along the ray.
func (r Ray) At(t float64) Vec3 {
	return r.Origin.Add(r.Dir.Scale(t))
}

// IntersectSphere returns the smallest non-negative t at which the ray enters
// a sphere, and whether it hits at all. Dir does not need to be normalised.
func (r Ray) IntersectSphere(center Vec3, radius float64) (float64, bool) {
	oc := r.Origin.Sub(center)
	a := r.Dir.Dot(r.Dir)
	if a < 1e-12 {
		return 0, false
	}
	b := 2 * oc.Dot(r.Dir)
	c := oc.Dot(oc) - radius*radius
	disc := b*b - 4*a*c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t := (-b - sq) / (2 * a)
	if t < 0 {
		// Origin inside the sphere.
		t = (-b + sq) / (2 * a)
	}
	if t < 0 {
		return 0, false
	}
	return t, true
}

// Pose places an entity in the scene.
type Pose struct {
	Position Vec3    `json:"position"`
	Yaw      float64 `json:"yaw"`
	Pitch    float64 `json:"pitch"`
	Roll     float64 `json:"roll"`
	Scale    float64 `json:"scale"`
}

// Approach moves current toward target with exponential smoothing.
// speed is the decay constant in 1/s, so the result does not depend on the
// tick rate.
func Approach(current, target Vec3, speed float64, dt float64) Vec3 {
	if dt <= 0 || speed <= 0 {
		return current
	}
	k := 1 - math.Exp(-speed*dt)
	return current.Lerp(target, k)
}
