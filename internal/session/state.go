// Package session is the interaction state machine: it turns stabilized
// gestures and pointer positions into draws, previews, confirmations and
// resets, and tells observers what happened.
package session

import (
	"fmt"
	"time"

	"github.com/ayusman/mudra/internal/deck"
	"github.com/ayusman/mudra/internal/geom"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/placement"
)

// State is the interaction lifecycle state.
type State int

const (
	Idle State = iota
	Ready
	Grabbing
	Preview
	Confirmed
	Disintegrating
)

var stateNames = [...]string{
	Idle:           "idle",
	Ready:          "ready",
	Grabbing:       "grabbing",
	Preview:        "preview",
	Confirmed:      "confirmed",
	Disintegrating: "disintegrating",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// Outcome tells the caller what an input did.
type Outcome int

const (
	// Ignored means the gesture has no meaning in the current state.
	Ignored Outcome = iota
	// Transitioned means the state changed.
	Transitioned
	// Dropped means the gesture would have triggered a transition but a
	// guard failed; nothing changed.
	Dropped
	// SessionReset means the session was reset.
	SessionReset
)

// Reasons reported with dropped events.
const (
	ReasonQuota    = "quota_exhausted"
	ReasonNoTarget = "no_target"
	ReasonNoHand   = "no_pointer"
	ReasonState    = "invalid_state"
)

// EventKind classifies observer events.
type EventKind string

const (
	EventTransition     EventKind = "transition"
	EventReset          EventKind = "reset"
	EventDropped        EventKind = "dropped"
	EventParticlesSpawn EventKind = "particles_spawn"
	EventParticlesClear EventKind = "particles_clear"

	// Emitted by the controller when artwork for a card arrives or fails.
	EventArtReady  EventKind = "art_ready"
	EventArtFailed EventKind = "art_failed"
)

// Event is delivered to observers after the machine has finished updating.
type Event struct {
	Kind      EventKind         `json:"kind"`
	From      State             `json:"from"`
	To        State             `json:"to"`
	Gesture   gesture.Gesture   `json:"gesture"`
	Card      *deck.Snapshot    `json:"card,omitempty"`
	Reversed  bool              `json:"reversed,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Placement *placement.Result `json:"placement,omitempty"`
	Pose      *geom.Pose        `json:"pose,omitempty"`
	Drawn     int               `json:"drawn"`
	At        time.Time         `json:"at"`
}

// Observer is notified of every event.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnEvent calls f(e).
func (f ObserverFunc) OnEvent(e Event) { f(e) }

// Scene is the rendering collaborator.
type Scene interface {
	SetPose(cardID int, pose geom.Pose)
	SpawnBurst(pose geom.Pose)
	ClearBurst()
}

type nopScene struct{}

func (nopScene) SetPose(int, geom.Pose) {}
func (nopScene) SpawnBurst(geom.Pose)   {}
func (nopScene) ClearBurst()            {}
