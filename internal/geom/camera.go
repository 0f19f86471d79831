package geom

import "math"

// Camera is a pinhole viewer looking from Position at Target.
type Camera struct {
	Position Vec3    `yaml:"position" json:"position"`
	Target   Vec3    `yaml:"target" json:"target"`
	Up       Vec3    `yaml:"up" json:"up"`
	FOVY     float64 `yaml:"fovy" json:"fovy"` // vertical field of view in degrees
	Aspect   float64 `yaml:"aspect" json:"aspect"`
	Near     float64 `yaml:"near" json:"near"`
}

// Forward returns the unit viewing direction.
func (c Camera) Forward() Vec3 {
	f := c.Target.Sub(c.Position).Normalize()
	if f.IsZero() {
		return V(0, 0, -1)
	}
	return f
}

// Right returns the unit vector to the viewer's right.
func (c Camera) Right() Vec3 {
	up := c.Up
	if up.IsZero() {
		up = V(0, 1, 0)
	}
	r := c.Forward().Cross(up).Normalize()
	if r.IsZero() {
		return V(1, 0, 0)
	}
	return r
}

// TrueUp returns the unit up vector orthogonal to Forward and Right.
func (c Camera) TrueUp() Vec3 {
	return c.Right().Cross(c.Forward()).Normalize()
}

// Ray maps a normalised screen point to a world-space ray. x and y are in
// [0, 1] with the origin at the top-left corner, as delivered by both the
// landmark pipeline and browser pointer events.
func (c Camera) Ray(x, y float64) Ray {
	fovy := c.FOVY
	if fovy <= 0 {
		fovy = 50
	}
	aspect := c.Aspect
	if aspect <= 0 {
		aspect = 16.0 / 9.0
	}
	half := math.Tan(fovy * math.Pi / 360)

	ndcX := 2*x - 1
	ndcY := 1 - 2*y

	dir := c.Forward().
		Add(c.Right().Scale(ndcX * half * aspect)).
		Add(c.TrueUp().Scale(ndcY * half))

	return Ray{Origin: c.Position, Dir: dir.Normalize()}
}

// Project maps a world point to normalised screen coordinates. The boolean is
// false for points behind the camera.
func (c Camera) Project(p Vec3) (float64, float64, bool) {
	fovy := c.FOVY
	if fovy <= 0 {
		fovy = 50
	}
	aspect := c.Aspect
	if aspect <= 0 {
		aspect = 16.0 / 9.0
	}
	half := math.Tan(fovy * math.Pi / 360)

	d := p.Sub(c.Position)
	z := d.Dot(c.Forward())
	if z <= 0 {
		return 0, 0, false
	}
	ndcX := d.Dot(c.Right()) / (z * half * aspect)
	ndcY := d.Dot(c.TrueUp()) / (z * half)
	return (ndcX + 1) / 2, (1 - ndcY) / 2, true
}
