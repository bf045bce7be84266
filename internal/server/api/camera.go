package api

import (
	"errors"
	"net/http"

	"github.com/ayusman/facetrack/internal/app"
)

// CameraHandler toggles acquisition on and off.
type CameraHandler struct {
	scheduler *app.Scheduler
}

// NewCameraHandler creates a new CameraHandler for the given scheduler.
func NewCameraHandler(s *app.Scheduler) *CameraHandler {
	return &CameraHandler{scheduler: s}
}

// ServeHTTP handles POST /api/camera. The response is the resulting state.
func (h *CameraHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if _, err := h.scheduler.Toggle(); err != nil {
		switch {
		case errors.Is(err, app.ErrModelNotReady):
			writeError(w, http.StatusConflict, "Select a classifier first")
		case errors.Is(err, app.ErrCaptureUnavailable):
			writeError(w, http.StatusServiceUnavailable, "Failed to open the camera connection")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to toggle camera")
		}
		return
	}

	writeJSON(w, http.StatusOK, snapshot(h.scheduler))
}
