// Package detector defines the hand landmark model and the vision pipeline
// that produces it.
package detector

import "math"

// Hand landmark indices following the MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Finger names one of the four non-thumb fingers by its joint indices.
type Finger struct {
	Name string
	MCP  int
	PIP  int
	Tip  int
}

// Fingers lists the non-thumb fingers from index to pinky.
var Fingers = [4]Finger{
	{Name: "index", MCP: IndexMCP, PIP: IndexPIP, Tip: IndexTip},
	{Name: "middle", MCP: MiddleMCP, PIP: MiddlePIP, Tip: MiddleTip},
	{Name: "ring", MCP: RingMCP, PIP: RingPIP, Tip: RingTip},
	{Name: "pinky", MCP: PinkyMCP, PIP: PinkyPIP, Tip: PinkyTip},
}

// Point3D is a landmark position in normalised image coordinates (x, y in
// [0, 1], origin top-left) with relative depth z.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks is one frame of the 21 tracked points of a single hand.
// A frame is treated as immutable once produced.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

func distance3D(a, b Point3D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func distance2D(a, b Point3D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Hypot(dx, dy)
}

// Dist returns the 3D distance between landmarks i and j.
func (h *HandLandmarks) Dist(i, j int) float64 {
	return distance3D(h.Points[i], h.Points[j])
}

// PlanarDist returns the image-plane distance between landmarks i and j.
func (h *HandLandmarks) PlanarDist(i, j int) float64 {
	return distance2D(h.Points[i], h.Points[j])
}

// PalmSize returns the wrist to middle-MCP distance, the reference length
// used to make comparisons independent of hand size and camera distance.
func (h *HandLandmarks) PalmSize() float64 {
	return h.Dist(Wrist, MiddleMCP)
}

// Pointer returns the image-plane point used to aim at the scene: the
// midpoint between thumb tip and index tip, which stays steady while pinching.
func (h *HandLandmarks) Pointer() (x, y float64) {
	t := h.Points[ThumbTip]
	i := h.Points[IndexTip]
	return (t.X + i.X) / 2, (t.Y + i.Y) / 2
}

// Normalize returns a copy translated so the wrist is at the origin and
// scaled so the wrist to middle-MCP distance is 1.0.
func (h *HandLandmarks) Normalize() *HandLandmarks {
	if h == nil {
		return nil
	}

	normalized := &HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	wrist := h.Points[Wrist]
	for i := 0; i < NumLandmarks; i++ {
		normalized.Points[i] = Point3D{
			X: h.Points[i].X - wrist.X,
			Y: h.Points[i].Y - wrist.Y,
			Z: h.Points[i].Z - wrist.Z,
		}
	}

	scale := distance3D(Point3D{}, normalized.Points[MiddleMCP])
	if scale < 1e-10 {
		return normalized
	}

	for i := 0; i < NumLandmarks; i++ {
		normalized.Points[i].X /= scale
		normalized.Points[i].Y /= scale
		normalized.Points[i].Z /= scale
	}

	return normalized
}
