package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/facetrack/internal/publish"
	"github.com/gorilla/websocket"
)

const writeWait = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// DetectionsHandler broadcasts each published frame's detections via WebSocket.
type DetectionsHandler struct {
	frames  *publish.Mailbox
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
	stop    chan struct{}
	once    sync.Once
}

// NewDetectionsHandler creates a DetectionsHandler and starts its broadcaster.
func NewDetectionsHandler(frames *publish.Mailbox) *DetectionsHandler {
	h := &DetectionsHandler{
		frames:  frames,
		clients: make(map[*websocket.Conn]bool),
		stop:    make(chan struct{}),
	}
	go h.broadcast()
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *DetectionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (h *DetectionsHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the broadcaster and closes every client connection.
func (h *DetectionsHandler) Close() {
	h.once.Do(func() {
		close(h.stop)

		h.mu.Lock()
		for conn := range h.clients {
			conn.Close()
		}
		h.mu.Unlock()
	})
}

// broadcast sends one message per published frame to all connected clients.
// It is the only writer on every connection.
func (h *DetectionsHandler) broadcast() {
	updates, unsubscribe := h.frames.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-h.stop:
			return
		case <-updates:
		}

		frame, ok := h.frames.Latest()
		if !ok {
			continue
		}

		msg, err := json.Marshal(frame)
		if err != nil {
			log.Printf("Error encoding detections: %v", err)
			continue
		}

		h.mu.RLock()
		for conn := range h.clients {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				conn.Close()
			}
		}
		h.mu.RUnlock()
	}
}
