// Package audio plays the ambient soundtrack through the plugin system.
package audio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ayusman/mudra/internal/plugin"
)

// Player starts and stops background audio.
type Player interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	// Toggle flips playback and returns the new state.
	Toggle(ctx context.Context) (bool, error)
	Playing() bool
}

// Runner executes a plugin request. *plugin.Executor satisfies it.
type Runner interface {
	Execute(ctx context.Context, p *plugin.Plugin, req *plugin.Request) (*plugin.Response, error)
}

// Lookup finds a plugin by name. *plugin.Manager satisfies it.
type Lookup interface {
	Get(name string) (*plugin.Plugin, error)
}

// PluginPlayer drives the ambient audio plugin. When the plugin is missing
// the playing flag is still tracked so the UI stays consistent.
type PluginPlayer struct {
	plugins Lookup
	runner  Runner
	name    string
	track   string
	logger  *slog.Logger

	mu      sync.Mutex
	playing bool
}

// Config configures a PluginPlayer.
type Config struct {
	Plugins Lookup
	Runner  Runner
	Name    string
	Track   string // optional; the plugin picks its bundled track when empty
	Logger  *slog.Logger
}

// NewPluginPlayer creates a player backed by the named plugin.
func NewPluginPlayer(config Config) *PluginPlayer {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PluginPlayer{
		plugins: config.Plugins,
		runner:  config.Runner,
		name:    config.Name,
		track:   config.Track,
		logger:  logger,
	}
}

// Start begins playback.
func (p *PluginPlayer) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.set(ctx, true)
}

// Stop ends playback.
func (p *PluginPlayer) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.set(ctx, false)
}

// Toggle flips playback.
func (p *PluginPlayer) Toggle(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.set(ctx, !p.playing)
	return p.playing, err
}

// Playing reports whether audio is believed to be playing.
func (p *PluginPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *PluginPlayer) set(ctx context.Context, on bool) error {
	action := "stop"
	if on {
		action = "start"
	}

	plug, err := p.plugins.Get(p.name)
	if errors.Is(err, plugin.ErrPluginNotFound) {
		p.logger.Warn("audio plugin not installed", "plugin", p.name, "action", action)
		p.playing = on
		return nil
	}
	if err != nil {
		return err
	}

	req := &plugin.Request{Action: action}
	if on && p.track != "" {
		req.Params, _ = json.Marshal(map[string]string{"track": p.track})
	}

	resp, err := p.runner.Execute(ctx, plug, req)
	if err != nil {
		p.logger.Warn("audio plugin failed", "action", action, "err", err)
		return fmt.Errorf("audio %s: %w", action, err)
	}
	if !resp.Success {
		p.logger.Warn("audio plugin refused", "action", action, "error", resp.Error)
		return fmt.Errorf("audio %s: %s", action, resp.Error)
	}

	p.playing = on
	return nil
}

// Nop is a Player that only tracks the flag.
type Nop struct {
	mu      sync.Mutex
	playing bool
}

func (n *Nop) Start(context.Context) error { n.setPlaying(true); return nil }
func (n *Nop) Stop(context.Context) error  { n.setPlaying(false); return nil }

func (n *Nop) Toggle(context.Context) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.playing = !n.playing
	return n.playing, nil
}

func (n *Nop) Playing() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.playing
}

func (n *Nop) setPlaying(on bool) {
	n.mu.Lock()
	n.playing = on
	n.mu.Unlock()
}
