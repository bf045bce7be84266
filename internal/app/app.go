// Package app provides the acquisition scheduler that drives capture, detection and publication.
package app

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ayusman/facetrack/internal/capture"
	"github.com/ayusman/facetrack/internal/classifier"
	"github.com/ayusman/facetrack/internal/detector"
	"github.com/ayusman/facetrack/internal/publish"
	"github.com/ayusman/facetrack/internal/store"
)

// Pipeline timing constants.
const (
	// DefaultPeriod is the tick period (~30 Hz).
	DefaultPeriod = 33 * time.Millisecond
	// DefaultDrainTimeout bounds how long Stop waits for an in-flight tick.
	DefaultDrainTimeout = 33 * time.Millisecond
)

var (
	// ErrCaptureUnavailable is returned by Start when the capture device cannot be opened.
	ErrCaptureUnavailable = errors.New("capture unavailable")

	// ErrModelNotReady is returned by Start before a face model has been loaded.
	ErrModelNotReady = errors.New("no face model loaded")

	// ErrSessionActive is returned when the model selection is changed while running.
	ErrSessionActive = errors.New("acquisition is running")

	// ErrDetection wraps any fault raised while processing a single frame.
	ErrDetection = errors.New("detection failed")
)

// State is the acquisition state.
type State int

const (
	// Idle means no ticks fire and the capture device is released.
	Idle State = iota
	// Running means ticks fire on the worker goroutine.
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// ToggleLabel returns the label of the start/stop control for this state.
func (s State) ToggleLabel() string {
	if s == Running {
		return "Stop Camera"
	}
	return "Start Camera"
}

// DetectorFactory builds the detection stage for a new session.
type DetectorFactory func(face, eyes detector.Matcher, params detector.Params) detector.Detector

// Config holds configuration options for the scheduler.
type Config struct {
	Period       time.Duration
	DrainTimeout time.Duration
	DeviceID     int
	Params       detector.Params
	Store        *store.Store
	NewDetector  DetectorFactory
}

// DefaultConfig returns a Config with the 33ms period and drain bound.
func DefaultConfig() Config {
	return Config{
		Period:       DefaultPeriod,
		DrainTimeout: DefaultDrainTimeout,
		Params:       detector.DefaultParams(),
	}
}

func newStageDetector(face, eyes detector.Matcher, params detector.Params) detector.Detector {
	return detector.NewStage(face, eyes, params)
}

// Scheduler drives the acquisition loop: read frame, detect, annotate, publish.
// It owns the Idle/Running state machine and the single worker goroutine.
// Start, Stop, Toggle and SelectModel may be called from any goroutine.
type Scheduler struct {
	config    Config
	camera    capture.Camera
	registry  *classifier.Registry
	publisher publish.Publisher

	mu        sync.Mutex
	state     State
	stopCh    chan struct{}
	doneCh    chan struct{}
	session   *Session
	last      Stats
	listeners []func(State)
}

// New creates a Scheduler. Zero Period, DrainTimeout or Params fall back to defaults.
func New(config Config, camera capture.Camera, registry *classifier.Registry, publisher publish.Publisher) *Scheduler {
	if config.Period <= 0 {
		config.Period = DefaultPeriod
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = DefaultDrainTimeout
	}
	if config.Params == (detector.Params{}) {
		config.Params = detector.DefaultParams()
	}
	if config.NewDetector == nil {
		config.NewDetector = newStageDetector
	}

	return &Scheduler{
		config:    config,
		camera:    camera,
		registry:  registry,
		publisher: publisher,
	}
}

// OnChange registers fn to be called after every state or selection change.
// fn runs on the caller's goroutine, outside the scheduler lock.
func (s *Scheduler) OnChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Scheduler) notify(state State) {
	s.mu.Lock()
	listeners := make([]func(State), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}

// State returns the current acquisition state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CanStart reports whether the start control should be enabled.
func (s *Scheduler) CanStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Idle && s.registry.IsReady()
}

// Registry returns the classifier registry.
func (s *Scheduler) Registry() *classifier.Registry {
	return s.registry
}

// Start opens the capture device and begins firing ticks immediately.
// Starting while running is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()

	if s.state == Running {
		s.mu.Unlock()
		return nil
	}

	face, eyes, ok := s.registry.Matchers()
	if !ok {
		s.mu.Unlock()
		return ErrModelNotReady
	}

	// A tick from the previous session may still be running past the drain bound.
	s.awaitWorker()

	if err := s.camera.Open(); err != nil {
		s.mu.Unlock()
		log.Printf("Failed to open the camera connection: %v", err)
		return fmt.Errorf("%w: %w", ErrCaptureUnavailable, err)
	}

	sess := newSession(s.registry.Active(), s.config.NewDetector(face, eyes, s.config.Params))
	s.recordStart(sess)

	s.session = sess
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.state = Running
	go s.run(sess, s.stopCh, s.doneCh)

	s.mu.Unlock()

	log.Printf("Acquisition started (session %s, model %s)", sess.ID, sess.Model)
	s.notify(Running)
	return nil
}

// Stop halts further ticks, waits up to DrainTimeout for an in-flight tick,
// and then releases the capture device whether or not the wait completed.
func (s *Scheduler) Stop() {
	s.mu.Lock()

	if s.state == Idle {
		s.mu.Unlock()
		if err := s.camera.Close(); err != nil {
			log.Printf("Error closing camera: %v", err)
		}
		return
	}

	close(s.stopCh)
	s.stopCh = nil

	select {
	case <-s.doneCh:
	case <-time.After(s.config.DrainTimeout):
		log.Printf("Frame capture did not stop within %v, releasing the camera now", s.config.DrainTimeout)
	}

	if err := s.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}

	sess := s.session
	s.last = sess.Stats()
	s.recordFinish(sess)
	s.session = nil
	s.state = Idle

	s.mu.Unlock()

	log.Printf("Acquisition stopped (session %s, %d ticks)", sess.ID, s.last.Ticks)
	s.notify(Idle)
}

// Toggle starts when idle and stops when running, returning the new state.
func (s *Scheduler) Toggle() (State, error) {
	if s.State() == Running {
		s.Stop()
		return Idle, nil
	}
	if err := s.Start(); err != nil {
		return Idle, err
	}
	return Running, nil
}

// SelectModel loads and activates a face model. It is rejected while running.
func (s *Scheduler) SelectModel(id classifier.ModelID) error {
	s.mu.Lock()

	if s.state == Running {
		s.mu.Unlock()
		return ErrSessionActive
	}

	// The previous session's last tick may still hold the current matcher.
	s.awaitWorker()

	if err := s.registry.Select(id); err != nil {
		s.mu.Unlock()
		log.Printf("Error selecting classifier: %v", err)
		return err
	}

	if s.config.Store != nil {
		if err := s.config.Store.Settings().Set(store.SettingFaceModel, string(id)); err != nil {
			log.Printf("Error saving classifier selection: %v", err)
		}
	}
	state := s.state

	s.mu.Unlock()

	s.notify(state)
	return nil
}

// RestoreModel selects the model saved by a previous run, if any.
func (s *Scheduler) RestoreModel() error {
	if s.config.Store == nil {
		return nil
	}

	saved, err := s.config.Store.Settings().Get(store.SettingFaceModel)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	return s.SelectModel(classifier.ModelID(saved))
}

// Stats returns the counters of the running session, or of the last one when idle.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		return s.session.Stats()
	}
	return s.last
}

// Close stops acquisition and releases the loaded classifiers.
func (s *Scheduler) Close() error {
	s.Stop()

	s.mu.Lock()
	s.awaitWorker()
	s.mu.Unlock()

	return s.registry.Close()
}

// awaitWorker blocks until the last worker goroutine has exited. Caller holds s.mu.
func (s *Scheduler) awaitWorker() {
	if s.doneCh != nil {
		<-s.doneCh
	}
}

func (s *Scheduler) recordStart(sess *Session) {
	if s.config.Store == nil {
		return
	}

	err := s.config.Store.Sessions().Create(&store.Session{
		ID:        sess.ID,
		Model:     string(sess.Model),
		Device:    s.config.DeviceID,
		StartedAt: sess.StartedAt,
	})
	if err != nil {
		log.Printf("Error recording session start: %v", err)
	}
}

func (s *Scheduler) recordFinish(sess *Session) {
	if s.config.Store == nil {
		return
	}

	st := sess.Stats()
	err := s.config.Store.Sessions().Finish(&store.Session{
		ID:              sess.ID,
		MinFaceSize:     st.MinFaceSize,
		Ticks:           st.Ticks,
		SkippedTicks:    st.SkippedTicks,
		FramesPublished: st.FramesPublished,
		FacesDetected:   st.FacesDetected,
		ReadFailures:    st.ReadFailures,
		DetectFailures:  st.DetectFailures,
	})
	if err != nil {
		log.Printf("Error recording session stop: %v", err)
	}
}
