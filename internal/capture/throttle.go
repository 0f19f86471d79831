package capture

import "time"

// Frame rates for the capture loop.
const (
	IdleFPS     = 5
	ActiveFPS   = 15
	IdleTimeout = 2 * time.Second
)

// Throttle switches the capture loop between a slow idle rate and a fast
// active rate. Motion makes it active; IdleTimeout without motion makes it
// idle again. Hands are only detected while active.
type Throttle struct {
	idleFPS     int
	activeFPS   int
	idleTimeout time.Duration

	active     bool
	lastMotion time.Time
}

// NewThrottle creates a Throttle with the default rates.
func NewThrottle() *Throttle {
	return &Throttle{idleFPS: IdleFPS, activeFPS: ActiveFPS, idleTimeout: IdleTimeout}
}

// Observe records whether the latest frame moved and reports whether the mode
// changed.
func (t *Throttle) Observe(moving bool, now time.Time) bool {
	if moving {
		t.lastMotion = now
		if !t.active {
			t.active = true
			return true
		}
		return false
	}
	if t.active && now.Sub(t.lastMotion) > t.idleTimeout {
		t.active = false
		return true
	}
	return false
}

// Active reports whether the loop runs at the active rate.
func (t *Throttle) Active() bool { return t.active }

// FPS returns the rate for the current mode.
func (t *Throttle) FPS() int {
	if t.active {
		return t.activeFPS
	}
	return t.idleFPS
}

// Interval returns the time between frames for the current mode.
func (t *Throttle) Interval() time.Duration {
	return time.Second / time.Duration(t.FPS())
}
