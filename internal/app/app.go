// Package app owns the interaction loop. Every input (camera frames, mouse
// events, art results, commands and animation ticks) is queued and applied on
// a single goroutine, so the session state machine never sees overlapping
// updates.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/mudra/internal/art"
	"github.com/ayusman/mudra/internal/audio"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/deck"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
)

var (
	// ErrStopped is returned by commands once Run has returned.
	ErrStopped = errors.New("app stopped")
	// ErrUnknownCard is returned for a card ID outside the deck.
	ErrUnknownCard = errors.New("unknown card")
	// ErrArtDisabled is returned when no art generator is configured.
	ErrArtDisabled = errors.New("art generation disabled")
)

// Config holds the collaborators of an App. Only Settings and Cards are
// required.
type Config struct {
	Settings config.Config
	Cards    []*deck.Card
	RNG      deck.RNG // defaults to deck.DefaultRNG()

	Store    *store.Store
	Art      art.Generator
	Audio    audio.Player
	Metrics  *metrics.Metrics
	Camera   capture.Camera
	Detector detector.Detector
	Frames   *capture.Latest
	Scene    session.Scene

	Clock  func() time.Time
	Logger *slog.Logger
}

// Snapshot is the session snapshot plus controller state.
type Snapshot struct {
	session.Snapshot
	Mode  Mode `json:"mode"`
	Audio bool `json:"audio"`
}

// App is the controller.
type App struct {
	settings config.Config
	clock    func() time.Time
	logger   *slog.Logger

	machine    *session.Machine
	stab       *gesture.Stabilizer
	classifier *gesture.Classifier

	store    *store.Store
	art      *art.Service
	audio    audio.Player
	metrics  *metrics.Metrics
	camera   capture.Camera
	detector detector.Detector
	frames   *capture.Latest

	mode  Mode
	mouse mouseInput
	// cameraOK is cleared when the camera fails to open.
	cameraOK atomic.Bool
	// latest maps a card ID to its newest art request. Older results for the
	// card are dropped.
	latest map[int]string

	obsMu     sync.RWMutex
	observers []session.Observer

	inbox   chan func()
	started atomic.Bool
	stopped chan struct{}
}

// New wires an App. It does not start any goroutine; call Run.
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	rng := cfg.RNG
	if rng == nil {
		rng = deck.DefaultRNG()
	}
	player := cfg.Audio
	if player == nil {
		player = &audio.Nop{}
	}

	s := cfg.Settings
	m, err := session.New(session.Config{
		Session:   s.Session,
		Ring:      s.Ring,
		Placement: s.Placement,
		Viewer:    s.Viewer,
		Cards:     cfg.Cards,
		RNG:       rng,
		Scene:     cfg.Scene,
		Logger:    logger.With("component", "session"),
	})
	if err != nil {
		return nil, err
	}

	a := &App{
		settings:   s,
		clock:      clock,
		logger:     logger,
		machine:    m,
		stab:       gesture.NewStabilizer(s.Stabilizer),
		classifier: gesture.NewClassifier(s.Gesture),
		store:      cfg.Store,
		audio:      player,
		metrics:    cfg.Metrics,
		camera:     cfg.Camera,
		detector:   cfg.Detector,
		frames:     cfg.Frames,
		mode:       ModeMouse,
		latest:     make(map[int]string),
		inbox:      make(chan func(), 64),
		stopped:    make(chan struct{}),
	}
	a.cameraOK.Store(a.camera != nil && a.detector != nil)
	if s.Capture.Enabled && a.cameraOK.Load() {
		a.mode = ModeCamera
	}
	a.loadMode()
	a.loadAudio()

	if cfg.Art != nil {
		svc := art.ServiceConfig{
			Generator:   cfg.Art,
			MaxInFlight: s.Art.MaxInFlight,
			Timeout:     s.Art.Timeout,
			Logger:      logger.With("component", "art"),
		}
		if cfg.Store != nil {
			svc.Cache = cfg.Store.Artworks()
		}
		if cfg.Metrics != nil {
			svc.OnRequest = cfg.Metrics.Art
		}
		a.art = art.NewService(svc)
	}

	a.stab.OnEnter = a.onEnter
	a.stab.OnHold = func(u gesture.Update) { a.machine.HandleHold(u.Current, u.At) }
	m.AddObserver(session.ObserverFunc(a.broadcast))
	m.AddObserver(session.ObserverFunc(a.onSessionEvent))
	if cfg.Metrics != nil {
		m.AddObserver(cfg.Metrics)
	}
	return a, nil
}

// loadMode restores a persisted input mode when the camera can honour it.
func (a *App) loadMode() {
	if a.store == nil {
		return
	}
	v, err := a.store.Settings().Get(context.Background(), store.SettingInputMode)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			a.logger.Warn("read input mode", "err", err)
		}
		return
	}
	mode, err := ParseMode(v)
	if err != nil {
		a.logger.Warn("ignoring stored input mode", "value", v)
		return
	}
	if mode == ModeCamera && !a.cameraOK.Load() {
		return
	}
	a.mode = mode
}

// loadAudio lets the last audio toggle override the configured autoplay.
func (a *App) loadAudio() {
	if a.store == nil {
		return
	}
	v, err := a.store.Settings().Get(context.Background(), store.SettingAudioEnabled)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			a.logger.Warn("read audio setting", "err", err)
		}
		return
	}
	on, err := strconv.ParseBool(v)
	if err != nil {
		a.logger.Warn("ignoring stored audio setting", "value", v)
		return
	}
	a.settings.Audio.Autoplay = on
}

// AddObserver registers o for session and art events. Observers run on the
// loop goroutine and must not block.
func (a *App) AddObserver(o session.Observer) {
	a.obsMu.Lock()
	defer a.obsMu.Unlock()
	a.observers = append(a.observers, o)
}

func (a *App) broadcast(e session.Event) {
	a.obsMu.RLock()
	defer a.obsMu.RUnlock()
	for _, o := range a.observers {
		o.OnEvent(e)
	}
}

// Run drives the loop until ctx is cancelled. It may be called once.
func (a *App) Run(ctx context.Context) error {
	if !a.started.CompareAndSwap(false, true) {
		return errors.New("app: Run called twice")
	}
	defer close(a.stopped)

	a.machine.Ready(a.clock())
	a.logger.Info("session ready", "mode", a.mode, "cards", a.machine.Deck().Size())

	if a.settings.Audio.Autoplay {
		go func() {
			if err := a.audio.Start(ctx); err != nil {
				a.logger.Warn("autoplay failed", "err", err)
			}
		}()
	}

	var tick <-chan time.Time
	if a.settings.TickInterval > 0 {
		t := time.NewTicker(a.settings.TickInterval)
		defer t.Stop()
		tick = t.C
	}

	var results <-chan art.Result
	if a.art != nil {
		results = a.art.Results()
	}

	pctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if a.cameraOK.Load() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.runPipeline(pctx)
		}()
	}

	defer func() {
		cancel()
		wg.Wait()
		if a.art != nil {
			a.art.Close()
		}
		a.logger.Info("session loop stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case job := <-a.inbox:
			job()
		case <-tick:
			a.tick(a.clock())
		case r := <-results:
			a.applyArt(r)
		}
	}
}

// do runs fn on the loop goroutine and waits for it. If ctx ends first the
// job may still run later, so fn must not write to the caller's variables;
// use call to get a value back.
func (a *App) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	job := func() {
		fn()
		close(done)
	}

	select {
	case a.inbox <- job:
	case <-a.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-a.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call runs fn on the loop goroutine and returns its result. The result is
// handed over on a buffered channel, so an abandoned call never touches the
// caller's memory.
func call[T any](ctx context.Context, a *App, fn func() T) (T, error) {
	out := make(chan T, 1)
	if err := a.do(ctx, func() { out <- fn() }); err != nil {
		var zero T
		return zero, err
	}
	return <-out, nil
}

func (a *App) tick(now time.Time) {
	if a.mode == ModeMouse {
		// Holds only elapse while the stabilizer keeps seeing the gesture.
		a.stab.Update(a.mouse.raw(), nil, now)
	}
	a.machine.Tick(now)
}

func (a *App) onEnter(u gesture.Update) {
	if a.metrics != nil {
		a.metrics.Gesture(u.Current)
	}
	a.logger.Debug("gesture", "current", u.Current, "previous", u.Previous, "raw", u.Raw)
	a.machine.HandleEnter(u.Current, u.At)
}

// onSessionEvent requests artwork when a card is grabbed.
func (a *App) onSessionEvent(e session.Event) {
	if e.Kind != session.EventTransition || e.To != session.Grabbing || e.Card == nil || a.art == nil {
		return
	}
	if c, ok := a.machine.Card(e.Card.ID); ok {
		c.ClearArtwork()
	}
	a.latest[e.Card.ID] = a.art.Submit(art.Request{Op: art.OpGenerate, Card: *e.Card, Reversed: e.Reversed})
}

func (a *App) applyArt(r art.Result) {
	if a.latest[r.CardID] != r.RequestID {
		a.logger.Info("dropping stale art result", "card", r.CardID, "request", r.RequestID, "op", r.Op)
		return
	}
	delete(a.latest, r.CardID)

	card, ok := a.machine.Card(r.CardID)
	if !ok {
		return
	}
	ev := session.Event{
		From:     a.machine.State(),
		To:       a.machine.State(),
		Reversed: r.Reversed,
		Drawn:    a.machine.Drawn(),
		At:       a.clock(),
	}
	if r.Err != nil {
		ev.Kind = session.EventArtFailed
		ev.Reason = r.Err.Error()
	} else {
		card.SetArtwork(r.Ref)
		ev.Kind = session.EventArtReady
	}
	snap := card.Snapshot()
	ev.Card = &snap
	a.broadcast(ev)
}

// HandleFrame queues one vision result. Frames are ignored in mouse mode.
func (a *App) HandleFrame(ctx context.Context, f detector.Frame) error {
	return a.do(ctx, func() {
		if a.mode != ModeCamera {
			return
		}
		if f.Hand != nil {
			x, y := f.Hand.Pointer()
			a.machine.SetPointer(x, y)
		} else {
			a.machine.ClearPointer()
		}
		a.stab.Update(a.classifier.Classify(f.Hand), f.Hand, f.At)
		if a.metrics != nil {
			a.metrics.Frame(string(ModeCamera))
		}
	})
}

// HandlePointer queues one mouse-mode event. Events are ignored in camera
// mode.
func (a *App) HandlePointer(ctx context.Context, ev PointerEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	toggle, err := call(ctx, a, func() bool {
		if a.mode != ModeMouse {
			return false
		}
		var flip bool
		switch ev.Kind {
		case PointerMove:
			a.machine.SetPointer(ev.X, ev.Y)
		case PointerDown:
			a.machine.SetPointer(ev.X, ev.Y)
			a.mouse.button = true
		case PointerUp:
			a.machine.SetPointer(ev.X, ev.Y)
			a.mouse.button = false
		case KeyDown, KeyUp:
			flip = a.mouse.key(ev.Key, ev.Kind == KeyDown)
		}
		a.stab.Update(a.mouse.raw(), nil, a.clock())
		if a.metrics != nil {
			a.metrics.Frame(string(ModeMouse))
		}
		return flip
	})
	if err != nil {
		return err
	}
	if toggle {
		_, err = a.ToggleAudio(ctx)
	}
	return err
}

// Tick runs one animation step at the current clock time. The loop ticks on
// its own when TickInterval is set.
func (a *App) Tick(ctx context.Context) error {
	return a.do(ctx, func() { a.tick(a.clock()) })
}

// Reset reshuffles the deck and clears the session.
func (a *App) Reset(ctx context.Context) error {
	return a.do(ctx, func() {
		a.stab.Reset()
		a.machine.Reset(a.clock())
		clear(a.latest)
	})
}

// Snapshot returns the current session state.
func (a *App) Snapshot(ctx context.Context) (Snapshot, error) {
	s, err := call(ctx, a, func() Snapshot {
		return Snapshot{Snapshot: a.machine.Snapshot(true), Mode: a.mode}
	})
	if err != nil {
		return Snapshot{}, err
	}
	s.Audio = a.audio.Playing()
	return s, nil
}

// SetMode switches the input source and remembers it.
func (a *App) SetMode(ctx context.Context, mode Mode) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}
	errNoCamera := fmt.Errorf("%w: no camera available", ErrInvalidInput)
	if mode == ModeCamera && !a.cameraOK.Load() {
		return errNoCamera
	}
	refused, err := call(ctx, a, func() bool {
		// The pipeline clears cameraOK before it queues the switch to mouse.
		if mode == ModeCamera && !a.cameraOK.Load() {
			return true
		}
		if a.mode == mode {
			return false
		}
		a.logger.Info("input mode changed", "from", a.mode, "to", mode)
		a.mode = mode
		a.mouse = mouseInput{}
		a.stab.Reset()
		a.machine.ClearPointer()
		return false
	})
	switch {
	case err != nil:
		return err
	case refused:
		return errNoCamera
	}
	if a.store != nil {
		if err := a.store.Settings().Set(ctx, store.SettingInputMode, string(mode)); err != nil {
			return fmt.Errorf("save input mode: %w", err)
		}
	}
	return nil
}

// ToggleAudio flips the ambient audio. The plugin runs on the caller's
// goroutine, never on the loop.
func (a *App) ToggleAudio(ctx context.Context) (bool, error) {
	select {
	case <-a.stopped:
		return false, ErrStopped
	default:
	}

	on, err := a.audio.Toggle(ctx)
	if err != nil {
		return on, err
	}
	if a.store != nil {
		v := "false"
		if on {
			v = "true"
		}
		if err := a.store.Settings().Set(ctx, store.SettingAudioEnabled, v); err != nil {
			a.logger.Warn("save audio setting", "err", err)
		}
	}
	return on, nil
}

// EditArt asks for the card's current artwork to be changed by instruction.
// The result arrives later as an art_ready or art_failed event.
func (a *App) EditArt(ctx context.Context, cardID int, instruction string) (string, error) {
	return a.submitArt(ctx, cardID, art.OpEdit, instruction)
}

// RetryArt regenerates the card's artwork, bypassing the cache.
func (a *App) RetryArt(ctx context.Context, cardID int) (string, error) {
	return a.submitArt(ctx, cardID, art.OpRetry, "")
}

func (a *App) submitArt(ctx context.Context, cardID int, op art.Op, instruction string) (string, error) {
	if a.art == nil {
		return "", ErrArtDisabled
	}

	type submitted struct {
		id  string
		err error
	}
	res, err := call(ctx, a, func() submitted {
		card, ok := a.machine.Card(cardID)
		if !ok {
			return submitted{err: fmt.Errorf("%w: %d", ErrUnknownCard, cardID)}
		}
		req := art.Request{Op: op, Card: card.Snapshot(), Instruction: instruction}
		if snap := a.machine.Snapshot(false); snap.Active != nil && snap.Active.Card.ID == cardID {
			req.Reversed = snap.Active.Reversed
		}
		if op == art.OpEdit {
			req.Source, _ = card.Generated()
		}
		id := a.art.Submit(req)
		a.latest[cardID] = id
		return submitted{id: id}
	})
	if err != nil {
		return "", err
	}
	return res.id, res.err
}
