package capture

import (
	"context"
	"sync"

	"gocv.io/x/gocv"
)

// Latest holds the most recent frame as JPEG so previews never compete with
// the hand pipeline for the camera.
type Latest struct {
	mu   sync.Mutex
	jpeg []byte
	seq  uint64
	wake chan struct{}
}

// NewLatest creates an empty frame buffer.
func NewLatest() *Latest {
	return &Latest{wake: make(chan struct{})}
}

// Encode stores frame as JPEG. The caller keeps ownership of frame.
func (l *Latest) Encode(frame *gocv.Mat) error {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return err
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	l.Store(data)
	return nil
}

// Store replaces the current frame with an already-encoded JPEG.
func (l *Latest) Store(jpeg []byte) {
	l.mu.Lock()
	l.jpeg = jpeg
	l.seq++
	close(l.wake)
	l.wake = make(chan struct{})
	l.mu.Unlock()
}

// Get returns the current frame and its sequence number. Sequence 0 means no
// frame has been stored yet.
func (l *Latest) Get() ([]byte, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.jpeg, l.seq
}

// Next blocks until a frame newer than after is stored or ctx is done.
func (l *Latest) Next(ctx context.Context, after uint64) ([]byte, uint64, error) {
	for {
		l.mu.Lock()
		if l.seq > after {
			jpeg, seq := l.jpeg, l.seq
			l.mu.Unlock()
			return jpeg, seq, nil
		}
		wake := l.wake
		l.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return nil, after, ctx.Err()
		}
	}
}
