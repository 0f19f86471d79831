package gesture

import (
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
)

// Classifier maps a single landmark frame to a raw gesture.
//
// Landmarks are normalized first (wrist at the origin, palm size 1), so every
// threshold is in palm units and the result does not depend on hand size or
// how far the hand is from the camera.
type Classifier struct {
	cfg config.Gesture
}

// NewClassifier creates a Classifier with the given thresholds.
func NewClassifier(cfg config.Gesture) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify returns the gesture for one frame. Rules are tried in priority
// order and the first match wins:
//
//  1. Fist: index folded and at least MinFoldedOthers of middle/ring/pinky folded.
//  2. Pinch: thumb-tip to index-tip planar distance below PinchThreshold,
//     with the index not folded (a clenched fist also brings those tips close).
//  3. Open: at least MinExtended of the four fingers extended.
//  4. Point (only when enabled): index extended, middle/ring/pinky folded.
//
// A nil hand is None.
func (c *Classifier) Classify(hand *detector.HandLandmarks) Gesture {
	if hand == nil {
		return None
	}
	hand = hand.Normalize()

	indexFolded := folded(hand, detector.Fingers[0])
	foldedOthers := 0
	for _, f := range detector.Fingers[1:] {
		if folded(hand, f) {
			foldedOthers++
		}
	}

	if indexFolded && foldedOthers >= c.cfg.MinFoldedOthers {
		return Fist
	}

	// A degenerate palm is left unscaled by Normalize and cannot pinch.
	if !indexFolded && hand.PalmSize() > 1e-9 {
		if hand.PlanarDist(detector.ThumbTip, detector.IndexTip) < c.cfg.PinchThreshold {
			return Pinch
		}
	}

	extended := 0
	for _, f := range detector.Fingers {
		if c.extended(hand, f) {
			extended++
		}
	}
	if extended >= c.cfg.MinExtended {
		return Open
	}

	if c.cfg.DetectPoint && c.extended(hand, detector.Fingers[0]) && foldedOthers == 3 {
		return Point
	}

	return None
}

// folded reports whether the fingertip is closer to the wrist than the
// finger's base knuckle.
func folded(hand *detector.HandLandmarks, f detector.Finger) bool {
	return hand.Dist(f.Tip, detector.Wrist) < hand.Dist(f.MCP, detector.Wrist)
}

// extended reports whether the fingertip is farther from the wrist than the
// PIP joint by at least ExtendMargin.
func (c *Classifier) extended(hand *detector.HandLandmarks, f detector.Finger) bool {
	return hand.Dist(f.Tip, detector.Wrist) > hand.Dist(f.PIP, detector.Wrist)*(1+c.cfg.ExtendMargin)
}
