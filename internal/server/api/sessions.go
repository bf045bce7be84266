package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/facetrack/internal/store"
)

// SessionsHandler serves the persisted acquisition session log.
type SessionsHandler struct {
	store *store.Store
}

// NewSessionsHandler creates a new SessionsHandler with the given store.
func NewSessionsHandler(s *store.Store) *SessionsHandler {
	return &SessionsHandler{store: s}
}

type sessionResponse struct {
	ID              string `json:"id"`
	Model           string `json:"model"`
	Device          int    `json:"device"`
	MinFaceSize     int    `json:"min_face_size"`
	Ticks           int64  `json:"ticks"`
	SkippedTicks    int64  `json:"skipped_ticks"`
	FramesPublished int64  `json:"frames_published"`
	FacesDetected   int64  `json:"faces_detected"`
	ReadFailures    int64  `json:"read_failures"`
	DetectFailures  int64  `json:"detect_failures"`
	StartedAt       string `json:"started_at"`
	StoppedAt       string `json:"stopped_at,omitempty"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

func toSessionResponse(s *store.Session) sessionResponse {
	resp := sessionResponse{
		ID:              s.ID,
		Model:           s.Model,
		Device:          s.Device,
		MinFaceSize:     s.MinFaceSize,
		Ticks:           s.Ticks,
		SkippedTicks:    s.SkippedTicks,
		FramesPublished: s.FramesPublished,
		FacesDetected:   s.FacesDetected,
		ReadFailures:    s.ReadFailures,
		DetectFailures:  s.DetectFailures,
		StartedAt:       s.StartedAt.Format(time.RFC3339),
	}
	if s.StoppedAt != nil {
		resp.StoppedAt = s.StoppedAt.Format(time.RFC3339)
	}
	return resp
}

// ServeHTTP handles GET /api/sessions and GET /api/sessions/{id}.
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	id = strings.TrimPrefix(id, "/")

	if id == "" {
		h.list(w, r)
		return
	}
	h.get(w, r, id)
}

// list returns the newest sessions first. ?limit=N caps the result.
func (h *SessionsHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	sessions, err := h.store.Sessions().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	response := listSessionsResponse{
		Sessions: make([]sessionResponse, 0, len(sessions)),
	}
	for _, s := range sessions {
		response.Sessions = append(response.Sessions, toSessionResponse(s))
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *SessionsHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}
