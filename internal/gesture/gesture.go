// Package gesture turns hand landmarks into discrete, debounced gestures.
package gesture

import (
	"fmt"
	"strings"
)

// Gesture is a discrete hand gesture label.
type Gesture int

const (
	None Gesture = iota
	Open
	Pinch
	Fist
	Point
)

// All lists every gesture in declaration order.
var All = []Gesture{None, Open, Pinch, Fist, Point}

var names = map[Gesture]string{
	None:  "none",
	Open:  "open",
	Pinch: "pinch",
	Fist:  "fist",
	Point: "point",
}

func (g Gesture) String() string {
	if n, ok := names[g]; ok {
		return n
	}
	return fmt.Sprintf("gesture(%d)", int(g))
}

// Parse maps a lowercase name back to a Gesture.
func Parse(s string) (Gesture, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for g, n := range names {
		if n == s {
			return g, nil
		}
	}
	return None, fmt.Errorf("unknown gesture %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (g Gesture) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Gesture) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*g = v
	return nil
}
