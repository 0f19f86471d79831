package app

import (
	"context"
	"errors"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
)

// runPipeline reads the camera until ctx is cancelled.
//
// Frames are polled at the throttle's rate: IdleFPS until motion is seen,
// then ActiveFPS until IdleTimeout passes without motion. Hand detection only
// runs while active. Every frame is published to the preview stream. Idle
// frames reach the loop as empty frames, so the stabilizer decays towards
// None instead of holding the last gesture.
//
// If the camera cannot be opened the app falls back to mouse input and
// refuses camera mode from then on.
func (a *App) runPipeline(ctx context.Context) {
	if err := a.camera.Open(); err != nil {
		a.logger.Warn("camera unavailable, falling back to mouse input", "err", err)
		a.cameraOK.Store(false)
		_ = a.do(ctx, func() { a.mode = ModeMouse })
		return
	}
	defer a.camera.Close()

	motion := capture.NewMotionDetector(a.settings.Capture.MotionThresh)
	defer motion.Close()
	throttle := capture.NewThrottle()
	a.camera.SetFPS(throttle.FPS())

	ticker := time.NewTicker(throttle.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, err := a.camera.ReadFrame()
		if err != nil {
			if !errors.Is(err, capture.ErrNoFrame) {
				a.logger.Warn("read frame", "err", err)
			}
			continue
		}

		if a.frames != nil {
			if err := a.frames.Encode(frame); err != nil {
				a.logger.Debug("encode preview frame", "err", err)
			}
		}

		now := a.clock()
		m := motion.Detect(frame)
		if throttle.Observe(m.Moving, now) {
			a.camera.SetFPS(throttle.FPS())
			ticker.Reset(throttle.Interval())
			a.logger.Debug("capture rate changed", "active", throttle.Active(), "fps", throttle.FPS())
		}

		if err := a.observe(ctx, frame, throttle.Active(), now); err != nil {
			return
		}
	}
}

// observe hands one camera frame to the loop and closes it. Hands are only
// detected while active; idle frames are sent empty. It returns an error only
// when the loop has stopped accepting frames.
func (a *App) observe(ctx context.Context, frame *gocv.Mat, active bool, now time.Time) error {
	defer frame.Close()

	f := detector.Frame{At: now}
	if active {
		hands, err := a.detector.Detect(frame)
		if err != nil {
			a.logger.Warn("detect hands", "err", err)
			return nil
		}
		f.Hand = detector.Primary(hands)
	}
	return a.HandleFrame(ctx, f)
}
