// Package config holds every tunable of the draw experience in one structure,
// loaded from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/mudra/internal/geom"
)

// ErrInvalid is returned by Validate for out-of-range settings.
var ErrInvalid = errors.New("invalid configuration")

// Gesture tunes the single-frame classifier.
type Gesture struct {
	// PinchThreshold is the max thumb-tip to index-tip distance, relative to
	// palm size, that counts as a pinch. Range (0, 1].
	PinchThreshold float64 `yaml:"pinch_threshold" env:"PINCH_THRESHOLD"`
	// ExtendMargin is the fraction by which a fingertip must be farther from
	// the wrist than its PIP joint to count as extended. Range [0, 1).
	ExtendMargin float64 `yaml:"extend_margin" env:"EXTEND_MARGIN"`
	// MinExtended is how many of the four fingers must be extended for OPEN.
	MinExtended int `yaml:"min_extended" env:"MIN_EXTENDED"`
	// MinFoldedOthers is how many of middle/ring/pinky must fold for FIST.
	MinFoldedOthers int `yaml:"min_folded_others" env:"MIN_FOLDED_OTHERS"`
	// DetectPoint enables the POINT label for an extended index with the
	// other fingers folded. Off by default; mouse mode produces POINT itself.
	DetectPoint bool `yaml:"detect_point" env:"DETECT_POINT"`
}

// Stabilizer tunes debouncing.
type Stabilizer struct {
	History   int           `yaml:"history" env:"HISTORY"`
	PinchHold time.Duration `yaml:"pinch_hold" env:"PINCH_HOLD"`
	FistHold  time.Duration `yaml:"fist_hold" env:"FIST_HOLD"`
	Cooldown  time.Duration `yaml:"cooldown" env:"COOLDOWN"`
}

// Ring describes the circle of undrawn cards.
type Ring struct {
	Pivot         geom.Vec3 `yaml:"pivot"`
	Radius        float64   `yaml:"radius" env:"RADIUS"`
	HitRadius     float64   `yaml:"hit_radius" env:"HIT_RADIUS"`
	SpinGain      float64   `yaml:"spin_gain" env:"SPIN_GAIN"`
	MomentumDecay float64   `yaml:"momentum_decay" env:"MOMENTUM_DECAY"` // fraction of velocity kept per second
	MaxVelocity   float64   `yaml:"max_velocity" env:"MAX_VELOCITY"`     // radians per second
}

// Session tunes the interaction state machine.
type Session struct {
	MaxDraws          int           `yaml:"max_draws" env:"MAX_DRAWS"`
	CaptureRadius     float64       `yaml:"capture_radius" env:"CAPTURE_RADIUS"`
	DisintegrateDelay time.Duration `yaml:"disintegrate_delay" env:"DISINTEGRATE_DELAY"`
	PreviewDistance   float64       `yaml:"preview_distance" env:"PREVIEW_DISTANCE"`
	DragDistance      float64       `yaml:"drag_distance" env:"DRAG_DISTANCE"`
	FollowSpeed       float64       `yaml:"follow_speed" env:"FOLLOW_SPEED"` // 1/s smoothing constant
	HistoryDisplay    int           `yaml:"history_display" env:"HISTORY_DISPLAY"`
}

// Placement tunes the safety resolver.
type Placement struct {
	BaseDistance  float64 `yaml:"base_distance" env:"BASE_DISTANCE"`
	Step          float64 `yaml:"step" env:"STEP"`
	MaxIterations int     `yaml:"max_iterations" env:"MAX_ITERATIONS"`
	FloorMargin   float64 `yaml:"floor_margin" env:"FLOOR_MARGIN"`
	SafetyMargin  float64 `yaml:"safety_margin" env:"SAFETY_MARGIN"`
	HorizonBand   float64 `yaml:"horizon_band" env:"HORIZON_BAND"`
	UpOffset      float64 `yaml:"up_offset" env:"UP_OFFSET"`
}

// Capture configures the webcam pipeline.
type Capture struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	CameraID     int     `yaml:"camera_id" env:"CAMERA_ID"`
	MotionThresh float64 `yaml:"motion_thresh" env:"MOTION_THRESH"`
	Mirror       bool    `yaml:"mirror" env:"MIRROR"`
}

// Art configures the remote image service.
type Art struct {
	BaseURL     string        `yaml:"base_url" env:"BASE_URL"`
	APIKey      string        `yaml:"-" env:"API_KEY"`
	Model       string        `yaml:"model" env:"MODEL"`
	Size        string        `yaml:"size" env:"SIZE"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxInFlight int           `yaml:"max_in_flight" env:"MAX_IN_FLIGHT"`
}

// Audio configures the ambient audio plugin.
type Audio struct {
	PluginDir string        `yaml:"plugin_dir" env:"PLUGIN_DIR"`
	Plugin    string        `yaml:"plugin" env:"PLUGIN"`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT"`
	Autoplay  bool          `yaml:"autoplay" env:"AUTOPLAY"`
}

// Server configures the HTTP surface.
type Server struct {
	Addr      string `yaml:"addr" env:"ADDR"`
	StaticDir string `yaml:"static_dir" env:"STATIC_DIR"`
}

// Config is the complete runtime configuration.
type Config struct {
	LogLevel     string        `yaml:"log_level" env:"LOG_LEVEL"`
	DataDir      string        `yaml:"data_dir" env:"DATA_DIR"`
	TickInterval time.Duration `yaml:"tick_interval" env:"TICK_INTERVAL"`

	Gesture    Gesture     `yaml:"gesture" envPrefix:"GESTURE_"`
	Stabilizer Stabilizer  `yaml:"stabilizer" envPrefix:"STABILIZER_"`
	Ring       Ring        `yaml:"ring" envPrefix:"RING_"`
	Session    Session     `yaml:"session" envPrefix:"SESSION_"`
	Placement  Placement   `yaml:"placement" envPrefix:"PLACEMENT_"`
	Viewer     geom.Camera `yaml:"viewer"`
	Capture    Capture     `yaml:"capture" envPrefix:"CAPTURE_"`
	Art        Art         `yaml:"art" envPrefix:"ART_"`
	Audio      Audio       `yaml:"audio" envPrefix:"AUDIO_"`
	Server     Server      `yaml:"server" envPrefix:"SERVER_"`
}

// Default returns the configuration with every tunable at its default.
func Default() Config {
	return Config{
		LogLevel:     "info",
		DataDir:      defaultDataDir(),
		TickInterval: 16 * time.Millisecond,
		Gesture: Gesture{
			PinchThreshold:  0.22,
			ExtendMargin:    0.05,
			MinExtended:     3,
			MinFoldedOthers: 2,
		},
		Stabilizer: Stabilizer{
			History:   4,
			PinchHold: 80 * time.Millisecond,
			FistHold:  40 * time.Millisecond,
			Cooldown:  50 * time.Millisecond,
		},
		Ring: Ring{
			Pivot:         geom.V(0, 0, 0),
			Radius:        9,
			HitRadius:     0.8,
			SpinGain:      6,
			MomentumDecay: 0.2,
			MaxVelocity:   2.5,
		},
		Session: Session{
			MaxDraws:          3,
			CaptureRadius:     3.5,
			DisintegrateDelay: 2500 * time.Millisecond,
			PreviewDistance:   2.5,
			DragDistance:      7,
			FollowSpeed:       8,
			HistoryDisplay:    5,
		},
		Placement: Placement{
			BaseDistance:  8.5,
			Step:          0.1,
			MaxIterations: 40,
			FloorMargin:   0.8,
			SafetyMargin:  1.6,
			HorizonBand:   2.0,
			UpOffset:      0.6,
		},
		Viewer: geom.Camera{
			Position: geom.V(0, 1.2, 18),
			Target:   geom.V(0, 0, 0),
			Up:       geom.V(0, 1, 0),
			FOVY:     50,
			Aspect:   16.0 / 9.0,
			Near:     0.1,
		},
		Capture: Capture{
			Enabled:      true,
			MotionThresh: 1.0,
			Mirror:       true,
		},
		Art: Art{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-image-1",
			Size:        "1024x1536",
			Timeout:     60 * time.Second,
			MaxInFlight: 2,
		},
		Audio: Audio{
			PluginDir: "plugins",
			Plugin:    "ambient-audio",
			Timeout:   5 * time.Second,
		},
		Server: Server{
			Addr: ":8080",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mudra"
	}
	return home + string(os.PathSeparator) + ".mudra"
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then MUDRA_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "MUDRA_"}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings outside their documented ranges.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	g := c.Gesture
	check(g.PinchThreshold > 0 && g.PinchThreshold <= 1, "gesture.pinch_threshold %v not in (0, 1]", g.PinchThreshold)
	check(g.ExtendMargin >= 0 && g.ExtendMargin < 1, "gesture.extend_margin %v not in [0, 1)", g.ExtendMargin)
	check(g.MinExtended >= 1 && g.MinExtended <= 4, "gesture.min_extended %d not in [1, 4]", g.MinExtended)
	check(g.MinFoldedOthers >= 1 && g.MinFoldedOthers <= 3, "gesture.min_folded_others %d not in [1, 3]", g.MinFoldedOthers)

	s := c.Stabilizer
	check(s.History >= 1, "stabilizer.history %d must be at least 1", s.History)
	check(s.PinchHold >= 0 && s.FistHold >= 0 && s.Cooldown >= 0, "stabilizer durations must not be negative")

	check(c.Ring.Radius > 0, "ring.radius %v must be positive", c.Ring.Radius)
	check(c.Ring.HitRadius > 0, "ring.hit_radius %v must be positive", c.Ring.HitRadius)
	check(c.Ring.MomentumDecay >= 0 && c.Ring.MomentumDecay <= 1, "ring.momentum_decay %v not in [0, 1]", c.Ring.MomentumDecay)

	check(c.Session.MaxDraws >= 1, "session.max_draws %d must be at least 1", c.Session.MaxDraws)
	check(c.Session.CaptureRadius > 0, "session.capture_radius %v must be positive", c.Session.CaptureRadius)
	check(c.Session.DisintegrateDelay >= 0, "session.disintegrate_delay must not be negative")
	check(c.Session.HistoryDisplay >= 1, "session.history_display %d must be at least 1", c.Session.HistoryDisplay)

	p := c.Placement
	check(p.Step > 0, "placement.step %v must be positive", p.Step)
	check(p.MaxIterations >= 0, "placement.max_iterations %d must not be negative", p.MaxIterations)
	check(p.BaseDistance > 0, "placement.base_distance %v must be positive", p.BaseDistance)
	check(p.FloorMargin >= 0, "placement.floor_margin %v must not be negative", p.FloorMargin)
	check(c.Viewer.Near > 0, "viewer.near %v must be positive", c.Viewer.Near)

	check(c.Art.MaxInFlight >= 1, "art.max_in_flight %d must be at least 1", c.Art.MaxInFlight)
	check(c.TickInterval >= 0, "tick_interval must not be negative")

	return errors.Join(errs...)
}
