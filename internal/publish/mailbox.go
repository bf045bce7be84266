// Package publish hands annotated frames from the acquisition worker to the display surface.
package publish

import (
	"sync"
	"time"

	"github.com/ayusman/facetrack/internal/detector"
)

// Frame is an annotated frame encoded for display. It is passed by value and
// never aliased by the worker after publication.
type Frame struct {
	Seq        uint64                   `json:"seq"`
	SessionID  string                   `json:"sessionId"`
	Timestamp  time.Time                `json:"timestamp"`
	Width      int                      `json:"width"`
	Height     int                      `json:"height"`
	Detections []detector.FaceDetection `json:"detections"`
	JPEG       []byte                   `json:"-"`
}

// Publisher receives annotated frames from the acquisition worker.
type Publisher interface {
	Publish(frame Frame)
}

// Mailbox is a single-slot Publisher: it keeps only the latest frame.
// Readers run on their own goroutines and wait on Updates.
type Mailbox struct {
	mu      sync.RWMutex
	latest  Frame
	has     bool
	seq     uint64
	waiters map[chan struct{}]struct{}
}

// NewMailbox creates an empty Mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{
		waiters: make(map[chan struct{}]struct{}),
	}
}

// Publish replaces the held frame and wakes every subscriber.
// It never blocks on slow readers.
func (m *Mailbox) Publish(frame Frame) {
	m.mu.Lock()
	m.seq++
	frame.Seq = m.seq
	m.latest = frame
	m.has = true
	for ch := range m.waiters {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	m.mu.Unlock()
}

// Latest returns the most recent frame, if any.
func (m *Mailbox) Latest() (Frame, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest, m.has
}

// Subscribe returns a channel that receives a signal after each Publish.
// Signals coalesce: a reader that falls behind sees one pending signal and
// then reads Latest. Call the returned func to unsubscribe.
func (m *Mailbox) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	m.mu.Lock()
	m.waiters[ch] = struct{}{}
	m.mu.Unlock()

	return ch, func() {
		m.mu.Lock()
		delete(m.waiters, ch)
		m.mu.Unlock()
	}
}

// Clear drops the held frame.
func (m *Mailbox) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = Frame{}
	m.has = false
}
