package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ayusman/mudra/internal/gesture"
)

// Mode selects where gestures come from.
type Mode string

const (
	ModeCamera Mode = "camera"
	ModeMouse  Mode = "mouse"
)

// ParseMode accepts "camera" or "mouse".
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeCamera, ModeMouse:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown input mode %q", ErrInvalidInput, s)
}

// PointerKind is the type of a mouse-mode input event.
type PointerKind string

const (
	PointerMove PointerKind = "move"
	PointerDown PointerKind = "down"
	PointerUp   PointerKind = "up"
	KeyDown     PointerKind = "keydown"
	KeyUp       PointerKind = "keyup"
)

// ErrInvalidInput is returned for malformed pointer events.
var ErrInvalidInput = errors.New("invalid input")

// PointerEvent is one mouse or keyboard event from the browser. X and Y are
// normalised to the viewport: 0..1, origin top left.
type PointerEvent struct {
	Kind PointerKind `json:"kind"`
	X    float64     `json:"x"`
	Y    float64     `json:"y"`
	Key  string      `json:"key,omitempty"`
}

// Validate checks the event shape.
func (e PointerEvent) Validate() error {
	switch e.Kind {
	case PointerMove, PointerDown, PointerUp:
		if e.X < 0 || e.X > 1 || e.Y < 0 || e.Y > 1 {
			return fmt.Errorf("%w: position (%v, %v) outside viewport", ErrInvalidInput, e.X, e.Y)
		}
	case KeyDown, KeyUp:
		if e.Key == "" {
			return fmt.Errorf("%w: %s without key", ErrInvalidInput, e.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown event kind %q", ErrInvalidInput, e.Kind)
	}
	return nil
}

// mouseInput tracks what is held down in mouse mode.
type mouseInput struct {
	button bool
	fist   bool
	open   bool
}

// raw maps held inputs to a gesture. A fist key wins over the button, the
// button over the open key, and nothing held is pointing.
func (m mouseInput) raw() gesture.Gesture {
	switch {
	case m.fist:
		return gesture.Fist
	case m.button:
		return gesture.Pinch
	case m.open:
		return gesture.Open
	}
	return gesture.Point
}

// key applies a key press or release and reports whether it was a toggle
// request for audio.
func (m *mouseInput) key(key string, down bool) (toggleAudio bool) {
	switch strings.ToLower(key) {
	case "f", " ", "space":
		m.fist = down
	case "o":
		m.open = down
	case "m":
		return down
	}
	return false
}
