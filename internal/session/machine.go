package session

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/deck"
	"github.com/ayusman/mudra/internal/geom"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/placement"
	"github.com/ayusman/mudra/internal/ring"
)

// Config holds everything a Machine needs.
type Config struct {
	Session   config.Session
	Ring      config.Ring
	Placement config.Placement
	Viewer    geom.Camera
	Cards     []*deck.Card
	RNG       deck.RNG
	Scene     Scene
	Logger    *slog.Logger
}

// active is the card currently out of the ring.
type active struct {
	card     *deck.Card
	reversed bool
	position geom.Vec3
	target   geom.Vec3
	released bool
}

// Machine is the interaction state machine. It is not safe for concurrent use:
// every method must be called from the single goroutine that owns it.
type Machine struct {
	cfg      config.Session
	viewer   geom.Camera
	deck     *deck.Deck
	ring     *ring.Ring
	resolver *placement.Resolver
	history  *History
	scene    Scene
	logger   *slog.Logger

	observers []Observer

	state     State
	enteredAt time.Time
	lastTick  time.Time
	drawn     int
	active    *active
	placement *placement.Result

	pointerX, pointerY float64
	hasPointer         bool
	spinX              float64
	spinning           bool
}

// New creates a Machine in Idle with a freshly shuffled deck laid out on the
// ring.
func New(config Config) (*Machine, error) {
	d, err := deck.New(config.Cards, config.RNG)
	if err != nil {
		return nil, fmt.Errorf("create deck: %w", err)
	}

	scene := config.Scene
	if scene == nil {
		scene = nopScene{}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Machine{
		cfg:      config.Session,
		viewer:   config.Viewer,
		deck:     d,
		ring:     ring.New(config.Ring, d.Cards()),
		resolver: placement.NewResolver(config.Placement, config.Ring, config.Viewer.Near),
		history:  NewHistory(config.Session.HistoryDisplay),
		scene:    scene,
		logger:   logger,
		state:    Idle,
	}, nil
}

// AddObserver registers o for every subsequent event.
func (m *Machine) AddObserver(o Observer) {
	m.observers = append(m.observers, o)
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Drawn returns the number of confirmed draws this session.
func (m *Machine) Drawn() int { return m.drawn }

// Deck returns the live deck.
func (m *Machine) Deck() *deck.Deck { return m.deck }

// Ring returns the selection ring.
func (m *Machine) Ring() *ring.Ring { return m.ring }

// History returns the session history.
func (m *Machine) History() *History { return m.history }

// Viewer returns the viewer camera.
func (m *Machine) Viewer() geom.Camera { return m.viewer }

// SetViewer moves the viewer. Preview and confirmed placements follow it on
// the next tick.
func (m *Machine) SetViewer(cam geom.Camera) { m.viewer = cam }

// Card looks up any card of the deck by id, drawn or not.
func (m *Machine) Card(id int) (*deck.Card, bool) { return m.deck.Get(id) }

// SetPointer records the pointer in normalised screen coordinates.
func (m *Machine) SetPointer(x, y float64) {
	m.pointerX, m.pointerY = x, y
	m.hasPointer = true
}

// ClearPointer forgets the pointer, as when the hand leaves the frame.
func (m *Machine) ClearPointer() {
	m.hasPointer = false
	m.spinning = false
}

// Ready completes initialisation: Idle moves to Ready.
func (m *Machine) Ready(now time.Time) Outcome {
	if m.state != Idle {
		return Ignored
	}
	m.transition(Ready, now, Event{})
	return Transitioned
}

// HandleEnter applies a stabilized gesture change.
func (m *Machine) HandleEnter(g gesture.Gesture, now time.Time) Outcome {
	if g != gesture.Open {
		m.spinning = false
	}

	switch m.state {
	case Ready:
		switch g {
		case gesture.Pinch:
			return m.grab(now)
		case gesture.Fist:
			if m.drawn >= m.cfg.MaxDraws {
				m.Reset(now)
				return SessionReset
			}
			return m.drop(g, ReasonState, now)
		}

	case Grabbing:
		if g == gesture.Pinch {
			m.active.released = false
			return Ignored
		}
		// Letting go sends the card to the preview anchor.
		m.active.released = true
		m.active.target = m.previewAnchor()
		return Ignored

	case Preview:
		switch g {
		case gesture.Fist:
			return m.confirm(now)
		case gesture.Pinch:
			return m.drop(g, ReasonState, now)
		}

	case Confirmed:
		switch g {
		case gesture.Fist:
			return m.disintegrate(now)
		case gesture.Pinch:
			return m.drop(g, ReasonState, now)
		}

	case Idle, Disintegrating:
		if g == gesture.Pinch || g == gesture.Fist {
			return m.drop(g, ReasonState, now)
		}
	}
	return Ignored
}

// HandleHold applies the current stabilized gesture for one input frame.
// Pinch in Grabbing drags the card; Open in Ready spins the ring.
func (m *Machine) HandleHold(g gesture.Gesture, now time.Time) {
	switch {
	case m.state == Grabbing && g == gesture.Pinch && !m.active.released:
		if m.hasPointer {
			m.active.target = m.viewer.Ray(m.pointerX, m.pointerY).At(m.cfg.DragDistance)
		}

	case m.state == Ready && g == gesture.Open && m.hasPointer:
		if m.spinning {
			m.ring.Nudge(m.pointerX - m.spinX)
		}
		m.spinX = m.pointerX
		m.spinning = true

	default:
		m.spinning = false
	}
}

// Tick advances time-driven behaviour: ring momentum, card motion, the
// capture check, per-frame placement and the disintegration timer.
func (m *Machine) Tick(now time.Time) {
	var dt time.Duration
	if !m.lastTick.IsZero() && now.After(m.lastTick) {
		dt = now.Sub(m.lastTick)
	}
	m.lastTick = now

	m.ring.Step(dt)

	switch m.state {
	case Preview:
		m.active.target = m.previewAnchor()
	case Confirmed:
		res := m.resolver.ResolveFor(m.viewer)
		m.placement = &res
		m.active.target = res.Position
	}

	if a := m.active; a != nil {
		a.position = geom.Approach(a.position, a.target, m.cfg.FollowSpeed, dt.Seconds())
		m.scene.SetPose(a.card.ID, m.activePose())
	}

	switch m.state {
	case Grabbing:
		if m.active.position.Dist(m.previewAnchor()) <= m.cfg.CaptureRadius {
			m.active.target = m.previewAnchor()
			m.transition(Preview, now, m.cardEvent())
		}

	case Disintegrating:
		if now.Sub(m.enteredAt) >= m.cfg.DisintegrateDelay {
			m.scene.ClearBurst()
			m.emit(Event{Kind: EventParticlesClear, From: Disintegrating, To: Disintegrating, At: now})
			m.transition(Ready, now, Event{})
		}
	}
}

// Reset reshuffles the deck, clears history and the quota, and returns to
// Ready. Idle stays Idle.
func (m *Machine) Reset(now time.Time) {
	from := m.state
	if from == Disintegrating {
		m.scene.ClearBurst()
	}

	m.deck.Reset()
	m.ring.Reset(m.deck.Cards())
	m.history.Clear()
	m.drawn = 0
	m.active = nil
	m.placement = nil
	m.spinning = false

	if m.state != Idle {
		m.state = Ready
		m.enteredAt = now
	}

	m.logger.Info("session reset", "from", from, "remaining", m.deck.Len())
	m.emit(Event{Kind: EventReset, From: from, To: m.state, At: now})
}

func (m *Machine) grab(now time.Time) Outcome {
	if m.drawn >= m.cfg.MaxDraws {
		return m.drop(gesture.Pinch, ReasonQuota, now)
	}
	if !m.hasPointer {
		return m.drop(gesture.Pinch, ReasonNoHand, now)
	}
	item, ok := m.ring.HitTest(m.viewer.Ray(m.pointerX, m.pointerY))
	if !ok {
		return m.drop(gesture.Pinch, ReasonNoTarget, now)
	}

	start := m.ring.Position(item)
	m.ring.Draw(item.Card.ID)
	card, _ := m.deck.Remove(item.Card.ID)

	m.active = &active{
		card:     card,
		reversed: deck.Flip(m.deck.RNG()),
		position: start,
		target:   start,
	}

	ev := m.cardEvent()
	ev.Gesture = gesture.Pinch
	m.transition(Grabbing, now, ev)
	return Transitioned
}

func (m *Machine) confirm(now time.Time) Outcome {
	m.drawn++
	m.history.Append(m.active.card, m.active.reversed, now)

	res := m.resolver.ResolveFor(m.viewer)
	m.placement = &res
	m.active.target = res.Position
	if res.Unsafe {
		m.logger.Debug("placement not converged", "distance", res.Distance, "iterations", res.Iterations)
	}

	ev := m.cardEvent()
	ev.Gesture = gesture.Fist
	ev.Placement = &res
	m.transition(Confirmed, now, ev)
	return Transitioned
}

func (m *Machine) disintegrate(now time.Time) Outcome {
	pose := m.activePose()
	ev := m.cardEvent()
	ev.Gesture = gesture.Fist
	m.active = nil
	m.placement = nil

	m.scene.SpawnBurst(pose)
	m.transition(Disintegrating, now, ev)
	m.emit(Event{Kind: EventParticlesSpawn, From: Disintegrating, To: Disintegrating, Pose: &pose, At: now})
	return Transitioned
}

func (m *Machine) drop(g gesture.Gesture, reason string, now time.Time) Outcome {
	m.logger.Debug("event dropped", "state", m.state, "gesture", g, "reason", reason)
	m.emit(Event{Kind: EventDropped, From: m.state, To: m.state, Gesture: g, Reason: reason, At: now})
	return Dropped
}

// transition switches state and then notifies observers. ev supplies the
// optional payload; kind and endpoints are filled in here.
func (m *Machine) transition(to State, now time.Time, ev Event) {
	from := m.state
	m.state = to
	m.enteredAt = now

	ev.Kind = EventTransition
	ev.From = from
	ev.To = to
	ev.At = now
	m.logger.Debug("transition", "from", from, "to", to)
	m.emit(ev)
}

func (m *Machine) emit(ev Event) {
	ev.Drawn = m.drawn
	for _, o := range m.observers {
		o.OnEvent(ev)
	}
}

func (m *Machine) cardEvent() Event {
	if m.active == nil {
		return Event{}
	}
	snap := m.active.card.Snapshot()
	return Event{Card: &snap, Reversed: m.active.reversed}
}

func (m *Machine) previewAnchor() geom.Vec3 {
	return m.viewer.Position.Add(m.viewer.Forward().Scale(m.cfg.PreviewDistance))
}

// activePose faces the active card toward the viewer, upside down when
// reversed.
func (m *Machine) activePose() geom.Pose {
	a := m.active
	to := m.viewer.Position.Sub(a.position)
	pose := geom.Pose{
		Position: a.position,
		Yaw:      yawToward(to),
		Scale:    1,
	}
	if a.reversed && m.state >= Preview {
		pose.Roll = math.Pi
	}
	return pose
}

// yawToward returns the rotation about Y that turns +Z toward dir.
func yawToward(dir geom.Vec3) float64 {
	if dir.X == 0 && dir.Z == 0 {
		return 0
	}
	return math.Atan2(dir.X, dir.Z)
}
