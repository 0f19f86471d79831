// Package tray provides a system tray menu for the draw session.
package tray

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"
)

// Commands is the part of the app the tray drives.
type Commands interface {
	Reset(ctx context.Context) error
	ToggleAudio(ctx context.Context) (bool, error)
}

// commandTimeout bounds each menu action.
const commandTimeout = 10 * time.Second

// Tray represents the system tray application.
type Tray struct {
	cmds   Commands
	logger *slog.Logger

	onOpen func()
	onQuit func()
	mu     sync.RWMutex

	// Menu items stored for later updates
	menuAudio *systray.MenuItem
	menuState *systray.MenuItem
}

// New creates a Tray that sends menu commands to cmds.
func New(cmds Commands, logger *slog.Logger) *Tray {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tray{cmds: cmds, logger: logger}
}

// OnOpen sets the callback for the "Open in Browser" item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit closes the tray and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
func (t *Tray) onReady() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra card draw")

	t.mu.Lock()
	t.menuState = systray.AddMenuItem("State: ready", "Current session state")
	t.menuState.Disable()
	systray.AddSeparator()
	menuReset := systray.AddMenuItem("Shuffle New Deck", "Reset the session")
	t.menuAudio = systray.AddMenuItem("♪ Audio Off", "Toggle ambient audio")
	t.mu.Unlock()

	systray.AddSeparator()
	menuOpen := systray.AddMenuItem("Open in Browser", "Open the draw view")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit Mudra")

	go func() {
		for {
			select {
			case <-menuReset.ClickedCh:
				t.handleReset()
			case <-t.menuAudio.ClickedCh:
				t.handleAudio()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) handleReset() {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := t.cmds.Reset(ctx); err != nil {
		t.logger.Warn("tray reset", "err", err)
	}
}

func (t *Tray) handleAudio() {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	on, err := t.cmds.ToggleAudio(ctx)
	if err != nil {
		t.logger.Warn("tray audio toggle", "err", err)
		return
	}
	t.SetAudio(on)
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetAudio updates the audio item title.
func (t *Tray) SetAudio(on bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuAudio == nil {
		return
	}
	if on {
		t.menuAudio.SetTitle("♪ Audio On")
	} else {
		t.menuAudio.SetTitle("♪ Audio Off")
	}
}

// SetState updates the state line in the menu.
func (t *Tray) SetState(state string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuState != nil {
		t.menuState.SetTitle("State: " + state)
	}
}
