package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a Detector whose results are set by tests and by the
// fallback path when MediaPipe is unavailable.
type MockDetector struct {
	mu    sync.Mutex
	hands []HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector that reports no hands.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands ...HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// Translated returns a copy of h shifted in the image plane.
func (h HandLandmarks) Translated(dx, dy float64) HandLandmarks {
	out := h
	for i := range out.Points {
		out.Points[i].X += dx
		out.Points[i].Y += dy
	}
	return out
}

// Canned right-hand poses, palm facing the camera, wrist at (0.5, 0.8).
// Y grows downward as in image coordinates.

func baseHand() HandLandmarks {
	h := HandLandmarks{Handedness: "Right", Score: 0.95}
	h.Points[Wrist] = Point3D{X: 0.5, Y: 0.8}
	return h
}

// openThumb spreads the thumb away from the palm.
func openThumb(h *HandLandmarks) {
	h.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
	h.Points[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
	h.Points[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0.03}
	h.Points[ThumbTip] = Point3D{X: 0.73, Y: 0.60, Z: 0.03}
}

// tuckedThumb lays the thumb across the folded fingers.
func tuckedThumb(h *HandLandmarks) {
	h.Points[ThumbCMC] = Point3D{X: 0.56, Y: 0.76}
	h.Points[ThumbMCP] = Point3D{X: 0.60, Y: 0.72, Z: -0.02}
	h.Points[ThumbIP] = Point3D{X: 0.58, Y: 0.68, Z: -0.05}
	h.Points[ThumbTip] = Point3D{X: 0.52, Y: 0.66, Z: -0.06}
}

func extendIndex(h *HandLandmarks) {
	h.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.68}
	h.Points[IndexPIP] = Point3D{X: 0.57, Y: 0.55}
	h.Points[IndexDIP] = Point3D{X: 0.58, Y: 0.45}
	h.Points[IndexTip] = Point3D{X: 0.58, Y: 0.35}
}

func extendMiddle(h *HandLandmarks) {
	h.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.66}
	h.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.52}
	h.Points[MiddleDIP] = Point3D{X: 0.50, Y: 0.40}
	h.Points[MiddleTip] = Point3D{X: 0.50, Y: 0.28}
}

func extendRing(h *HandLandmarks) {
	h.Points[RingMCP] = Point3D{X: 0.45, Y: 0.68}
	h.Points[RingPIP] = Point3D{X: 0.43, Y: 0.55}
	h.Points[RingDIP] = Point3D{X: 0.42, Y: 0.45}
	h.Points[RingTip] = Point3D{X: 0.42, Y: 0.35}
}

func extendPinky(h *HandLandmarks) {
	h.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.70}
	h.Points[PinkyPIP] = Point3D{X: 0.37, Y: 0.60}
	h.Points[PinkyDIP] = Point3D{X: 0.35, Y: 0.50}
	h.Points[PinkyTip] = Point3D{X: 0.34, Y: 0.42}
}

// curl folds a finger so its tip ends up closer to the wrist than its MCP.
func curl(h *HandLandmarks, f Finger, x, mcpY float64) {
	h.Points[f.MCP] = Point3D{X: x, Y: mcpY}
	h.Points[f.PIP] = Point3D{X: x, Y: 0.60, Z: -0.05}
	h.Points[f.PIP+1] = Point3D{X: x, Y: 0.66, Z: -0.07}
	h.Points[f.Tip] = Point3D{X: x, Y: 0.72, Z: -0.04}
}

// OpenPalmLandmarks returns an open hand: all fingers extended.
func OpenPalmLandmarks() HandLandmarks {
	h := baseHand()
	openThumb(&h)
	extendIndex(&h)
	extendMiddle(&h)
	extendRing(&h)
	extendPinky(&h)
	return h
}

// FistLandmarks returns a closed fist with the thumb wrapped over the fingers.
func FistLandmarks() HandLandmarks {
	h := baseHand()
	tuckedThumb(&h)
	curl(&h, Fingers[0], 0.56, 0.66)
	curl(&h, Fingers[1], 0.51, 0.65)
	curl(&h, Fingers[2], 0.46, 0.66)
	curl(&h, Fingers[3], 0.42, 0.68)
	return h
}

// PinchLandmarks returns an "OK" pinch: thumb and index tips touching, the
// remaining fingers extended.
func PinchLandmarks() HandLandmarks {
	h := baseHand()
	h.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75}
	h.Points[ThumbMCP] = Point3D{X: 0.62, Y: 0.70}
	h.Points[ThumbIP] = Point3D{X: 0.66, Y: 0.58}
	h.Points[ThumbTip] = Point3D{X: 0.63, Y: 0.49}
	h.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.68}
	h.Points[IndexPIP] = Point3D{X: 0.58, Y: 0.58}
	h.Points[IndexDIP] = Point3D{X: 0.60, Y: 0.52}
	h.Points[IndexTip] = Point3D{X: 0.61, Y: 0.48}
	extendMiddle(&h)
	extendRing(&h)
	extendPinky(&h)
	return h
}

// PointLandmarks returns a pointing hand: index extended, the rest folded.
func PointLandmarks() HandLandmarks {
	h := baseHand()
	tuckedThumb(&h)
	extendIndex(&h)
	curl(&h, Fingers[1], 0.51, 0.65)
	curl(&h, Fingers[2], 0.46, 0.66)
	curl(&h, Fingers[3], 0.42, 0.68)
	return h
}

// VictoryLandmarks returns index and middle extended with ring and pinky
// folded, a pose that maps to no interaction gesture.
func VictoryLandmarks() HandLandmarks {
	h := baseHand()
	tuckedThumb(&h)
	extendIndex(&h)
	extendMiddle(&h)
	curl(&h, Fingers[2], 0.46, 0.66)
	curl(&h, Fingers[3], 0.42, 0.68)
	return h
}
