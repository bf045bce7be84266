package server

import (
	"fmt"
	"net/http"

	"github.com/ayusman/facetrack/internal/publish"
)

// StreamHandler serves the latest annotated frame as an MJPEG stream.
// It never touches the camera: frames come from the mailbox, so a slow
// viewer only drops frames and never slows acquisition.
type StreamHandler struct {
	frames *publish.Mailbox
}

// NewStreamHandler creates a new StreamHandler over the given mailbox.
func NewStreamHandler(frames *publish.Mailbox) *StreamHandler {
	return &StreamHandler{frames: frames}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	updates, unsubscribe := h.frames.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	var sent uint64
	if frame, ok := h.frames.Latest(); ok {
		if err := writePart(w, frame); err != nil {
			return
		}
		sent = frame.Seq
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-updates:
		}

		frame, ok := h.frames.Latest()
		if !ok || frame.Seq == sent {
			continue
		}

		if err := writePart(w, frame); err != nil {
			return
		}
		sent = frame.Seq
	}
}

func writePart(w http.ResponseWriter, frame publish.Frame) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame.JPEG)); err != nil {
		return err
	}
	if _, err := w.Write(frame.JPEG); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "\r\n"); err != nil {
		return err
	}

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
