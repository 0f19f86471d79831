package detector

import (
	"time"

	"gocv.io/x/gocv"
)

// Detector finds hand landmarks in a video frame.
type Detector interface {
	// Detect returns the hands found in frame, best first.
	// An empty slice means no hand was found, which is not an error.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Frame is what the vision pipeline delivers per callback: the single
// authoritative hand, or nil when none was detected.
type Frame struct {
	Hand *HandLandmarks
	At   time.Time
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect. Only the first is
	// used for interaction.
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// IdleShutdown stops the helper process after this long without frames.
	IdleShutdown time.Duration
}

// DefaultConfig returns a Config tuned for single-hand interaction.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		MinConfidence:   0.6,
		MinTrackingConf: 0.5,
		IdleShutdown:    30 * time.Second,
	}
}

// Primary picks the authoritative hand from a detection result: the one with
// the highest score. Returns nil for an empty result.
func Primary(hands []HandLandmarks) *HandLandmarks {
	if len(hands) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(hands); i++ {
		if hands[i].Score > hands[best].Score {
			best = i
		}
	}
	h := hands[best]
	return &h
}
