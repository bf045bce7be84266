package api

import (
	"net/http"

	"github.com/ayusman/facetrack/internal/app"
	"github.com/ayusman/facetrack/internal/classifier"
)

// StateHandler reports the acquisition state and the control enablement
// derived from it.
type StateHandler struct {
	scheduler *app.Scheduler
}

// NewStateHandler creates a new StateHandler for the given scheduler.
func NewStateHandler(s *app.Scheduler) *StateHandler {
	return &StateHandler{scheduler: s}
}

type modelResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Selected bool   `json:"selected"`
	Enabled  bool   `json:"enabled"`
}

type stateResponse struct {
	State       string          `json:"state"`
	Label       string          `json:"label"`
	CanStart    bool            `json:"canStart"`
	ActiveModel string          `json:"activeModel"`
	Models      []modelResponse `json:"models"`
	Stats       app.Stats       `json:"stats"`
}

// ServeHTTP handles GET /api/state.
func (h *StateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, snapshot(h.scheduler))
}

func snapshot(s *app.Scheduler) stateResponse {
	state := s.State()
	return stateResponse{
		State:       state.String(),
		Label:       state.ToggleLabel(),
		CanStart:    s.CanStart(),
		ActiveModel: string(s.Registry().Active()),
		Models:      models(s.Registry(), state),
		Stats:       s.Stats(),
	}
}

// models lists the classifier choices. Every choice is disabled while running.
func models(r *classifier.Registry, state app.State) []modelResponse {
	active := r.Active()
	out := make([]modelResponse, 0, len(r.Models()))
	for _, m := range r.Models() {
		out = append(out, modelResponse{
			ID:       string(m.ID),
			Name:     m.Name,
			Selected: m.ID == active,
			Enabled:  state == app.Idle,
		})
	}
	return out
}
