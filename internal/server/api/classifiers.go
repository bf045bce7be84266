package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/facetrack/internal/app"
	"github.com/ayusman/facetrack/internal/classifier"
)

// ClassifierHandler lists and selects face models.
type ClassifierHandler struct {
	scheduler *app.Scheduler
}

// NewClassifierHandler creates a new ClassifierHandler for the given scheduler.
func NewClassifierHandler(s *app.Scheduler) *ClassifierHandler {
	return &ClassifierHandler{scheduler: s}
}

type selectClassifierRequest struct {
	Model string `json:"model"`
}

type listClassifiersResponse struct {
	Active string          `json:"active"`
	Models []modelResponse `json:"models"`
}

// ServeHTTP handles GET and POST /api/classifiers.
func (h *ClassifierHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.choose(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ClassifierHandler) list(w http.ResponseWriter, r *http.Request) {
	reg := h.scheduler.Registry()
	writeJSON(w, http.StatusOK, listClassifiersResponse{
		Active: string(reg.Active()),
		Models: models(reg, h.scheduler.State()),
	})
}

// choose handles POST /api/classifiers and makes the requested model active.
func (h *ClassifierHandler) choose(w http.ResponseWriter, r *http.Request) {
	var req selectClassifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "Model is required")
		return
	}

	err := h.scheduler.SelectModel(classifier.ModelID(req.Model))
	switch {
	case err == nil:
	case errors.Is(err, classifier.ErrUnknownModel):
		writeError(w, http.StatusBadRequest, "Unknown model")
		return
	case errors.Is(err, app.ErrSessionActive):
		writeError(w, http.StatusConflict, "Stop the camera before changing classifier")
		return
	case errors.Is(err, classifier.ErrModelLoad):
		writeError(w, http.StatusUnprocessableEntity, "Failed to load classifier")
		return
	default:
		writeError(w, http.StatusInternalServerError, "Failed to select classifier")
		return
	}

	h.list(w, r)
}
