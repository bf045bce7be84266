// Package server provides the HTTP control and viewing surface for face tracking.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/facetrack/internal/app"
	"github.com/ayusman/facetrack/internal/publish"
	"github.com/ayusman/facetrack/internal/server/api"
	"github.com/ayusman/facetrack/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Scheduler *app.Scheduler
	Frames    *publish.Mailbox
	Store     *store.Store
}

// Server represents the HTTP server for the facetrack application.
type Server struct {
	config     Config
	mux        *http.ServeMux
	start      time.Time
	detections *DetectionsHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	// Control endpoints need a scheduler
	if s.config.Scheduler != nil {
		s.mux.Handle("/api/state", api.NewStateHandler(s.config.Scheduler))
		s.mux.Handle("/api/camera", api.NewCameraHandler(s.config.Scheduler))
		s.mux.Handle("/api/classifiers", api.NewClassifierHandler(s.config.Scheduler))
	}

	// Viewing endpoints read from the frame mailbox
	if s.config.Frames != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Frames))

		s.detections = NewDetectionsHandler(s.config.Frames)
		s.mux.Handle("/api/detections", s.detections)
	}

	if s.config.Store != nil {
		sessions := api.NewSessionsHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Close stops the detection broadcaster and disconnects its clients.
func (s *Server) Close() {
	if s.detections != nil {
		s.detections.Close()
	}
}
