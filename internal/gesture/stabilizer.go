package gesture

import (
	"time"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
)

// Update is the Stabilizer's report for one input frame.
type Update struct {
	Raw      Gesture
	Current  Gesture
	Previous Gesture
	// Changed is true exactly when Current differs from Previous.
	Changed bool
	// Hand is the landmark frame that produced Raw; nil in mouse mode or
	// when no hand was detected.
	Hand *detector.HandLandmarks
	At   time.Time
}

// tieOrder ranks labels for breaking majority ties that do not involve the
// current gesture. Labels that trigger fewer actions win.
var tieOrder = map[Gesture]int{None: 0, Open: 1, Point: 2, Pinch: 3, Fist: 4}

// Stabilizer debounces a stream of raw gestures into a current gesture.
//
// The candidate is the majority label over the last History raw labels.
// Pinch and Fist must additionally have been the raw label continuously for
// PinchHold / FistHold before they can become current; until then the
// reported gesture falls back to None. Once the current gesture changes,
// further changes are suppressed for Cooldown.
//
// Stabilizer is not safe for concurrent use; it is owned by the app loop.
type Stabilizer struct {
	cfg config.Stabilizer

	history []Gesture
	next    int
	filled  int

	current    Gesture
	lastChange time.Time
	holdStart  map[Gesture]time.Time

	// OnEnter is called once for every accepted change of the current gesture.
	OnEnter func(Update)
	// OnHold is called on every update, changed or not.
	OnHold func(Update)
}

// NewStabilizer creates a Stabilizer starting at None.
func NewStabilizer(cfg config.Stabilizer) *Stabilizer {
	size := cfg.History
	if size < 1 {
		size = 1
	}
	return &Stabilizer{
		cfg:       cfg,
		history:   make([]Gesture, size),
		holdStart: make(map[Gesture]time.Time, 2),
	}
}

// Current returns the current stabilized gesture.
func (s *Stabilizer) Current() Gesture {
	return s.current
}

// Reset clears history, hold timers and cooldown.
func (s *Stabilizer) Reset() {
	s.next = 0
	s.filled = 0
	s.current = None
	s.lastChange = time.Time{}
	clear(s.holdStart)
}

// Update feeds one raw gesture observed at now.
func (s *Stabilizer) Update(raw Gesture, hand *detector.HandLandmarks, now time.Time) Update {
	s.push(raw)
	s.trackHolds(raw, now)

	candidate := s.majority()
	effective := candidate
	if need := s.requiredHold(candidate); need > 0 && candidate != s.current {
		start, ok := s.holdStart[candidate]
		if !ok || now.Sub(start) < need {
			effective = None
		}
	}

	u := Update{
		Raw:      raw,
		Previous: s.current,
		Current:  s.current,
		Hand:     hand,
		At:       now,
	}

	if effective != s.current && s.cooledDown(now) {
		s.current = effective
		s.lastChange = now
		u.Current = effective
		u.Changed = true
	}

	if u.Changed && s.OnEnter != nil {
		s.OnEnter(u)
	}
	if s.OnHold != nil {
		s.OnHold(u)
	}
	return u
}

func (s *Stabilizer) push(g Gesture) {
	s.history[s.next] = g
	s.next = (s.next + 1) % len(s.history)
	if s.filled < len(s.history) {
		s.filled++
	}
}

// trackHolds starts the timer for the raw gesture if it is timed and resets
// every other timer.
func (s *Stabilizer) trackHolds(raw Gesture, now time.Time) {
	for _, g := range [...]Gesture{Pinch, Fist} {
		if raw != g {
			delete(s.holdStart, g)
			continue
		}
		if _, ok := s.holdStart[g]; !ok {
			s.holdStart[g] = now
		}
	}
}

func (s *Stabilizer) requiredHold(g Gesture) time.Duration {
	switch g {
	case Pinch:
		return s.cfg.PinchHold
	case Fist:
		return s.cfg.FistHold
	default:
		return 0
	}
}

func (s *Stabilizer) cooledDown(now time.Time) bool {
	return s.lastChange.IsZero() || now.Sub(s.lastChange) >= s.cfg.Cooldown
}

// majority returns the most frequent label in the buffer. Ties keep the
// current gesture when it is among the leaders, otherwise the label lowest in
// tieOrder wins.
func (s *Stabilizer) majority() Gesture {
	counts := make(map[Gesture]int, len(tieOrder))
	for i := 0; i < s.filled; i++ {
		counts[s.history[i]]++
	}

	best := -1
	var leader Gesture
	for _, g := range All {
		c := counts[g]
		switch {
		case c > best:
			best, leader = c, g
		case c == best:
			if g == s.current || (leader != s.current && tieOrder[g] < tieOrder[leader]) {
				leader = g
			}
		}
	}
	return leader
}
