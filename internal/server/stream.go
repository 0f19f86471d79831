package server

import (
	"fmt"
	"net/http"

	"github.com/ayusman/mudra/internal/capture"
)

// StreamHandler serves the camera preview as MJPEG.
type StreamHandler struct {
	frames *capture.Latest
}

// NewStreamHandler creates a StreamHandler reading from frames.
func NewStreamHandler(frames *capture.Latest) *StreamHandler {
	return &StreamHandler{frames: frames}
}

// ServeHTTP streams every new frame until the client goes away.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var seq uint64
	for {
		jpeg, next, err := h.frames.Next(r.Context(), seq)
		if err != nil {
			return
		}
		seq = next

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(jpeg))
		if _, err := w.Write(jpeg); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}
