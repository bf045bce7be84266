package app

import (
	"sync/atomic"
	"time"

	"github.com/ayusman/facetrack/internal/classifier"
	"github.com/ayusman/facetrack/internal/detector"
	"github.com/google/uuid"
)

// Stats holds the counters of one acquisition session.
type Stats struct {
	SessionID       string    `json:"sessionId,omitempty"`
	Model           string    `json:"model,omitempty"`
	StartedAt       time.Time `json:"startedAt,omitzero"`
	MinFaceSize     int       `json:"minFaceSize"`
	Ticks           int64     `json:"ticks"`
	SkippedTicks    int64     `json:"skippedTicks"`
	FramesPublished int64     `json:"framesPublished"`
	FacesDetected   int64     `json:"facesDetected"`
	ReadFailures    int64     `json:"readFailures"`
	DetectFailures  int64     `json:"detectFailures"`
}

// Session is the state that lives from a successful Start to the following Stop.
// The detector and minFace are touched only by the session's worker goroutine;
// the counters are atomic so Stats can be read from elsewhere.
type Session struct {
	ID        string
	Model     classifier.ModelID
	StartedAt time.Time

	detector detector.Detector
	minFace  detector.MinFaceSize

	minFaceSize     atomic.Int64
	ticks           atomic.Int64
	skippedTicks    atomic.Int64
	framesPublished atomic.Int64
	facesDetected   atomic.Int64
	readFailures    atomic.Int64
	detectFailures  atomic.Int64
}

func newSession(model classifier.ModelID, d detector.Detector) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Model:     model,
		StartedAt: time.Now(),
		detector:  d,
	}
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		SessionID:       s.ID,
		Model:           string(s.Model),
		StartedAt:       s.StartedAt,
		MinFaceSize:     int(s.minFaceSize.Load()),
		Ticks:           s.ticks.Load(),
		SkippedTicks:    s.skippedTicks.Load(),
		FramesPublished: s.framesPublished.Load(),
		FacesDetected:   s.facesDetected.Load(),
		ReadFailures:    s.readFailures.Load(),
		DetectFailures:  s.detectFailures.Load(),
	}
}
