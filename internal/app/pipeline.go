package app

import (
	"fmt"
	"log"
	"time"

	"github.com/ayusman/facetrack/internal/detector"
	"github.com/ayusman/facetrack/internal/publish"
	"gocv.io/x/gocv"
)

// run is the tick loop of one session.
//
// Pipeline logic:
// 1. Fire the first tick immediately
// 2. Read a frame; on failure skip the tick
// 3. Detect faces and eyes, annotate the frame, publish it
// 4. Sleep until the next period boundary after the tick finished
//
// Ticks never overlap. A tick that overruns the period skips the boundaries it
// missed instead of queueing them.
func (s *Scheduler) run(sess *Session, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	period := s.config.Period
	timer := time.NewTimer(0)
	defer timer.Stop()

	next := time.Now()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
		}

		// Prefer stop when it raced with the timer.
		select {
		case <-stop:
			return
		default:
		}

		s.tick(sess)

		var missed int64
		next, missed = nextBoundary(next, period, time.Now())
		sess.skippedTicks.Add(missed)
		timer.Reset(time.Until(next))
	}
}

// nextBoundary returns the first period boundary after prev that has not yet
// passed at now, and how many boundaries were missed on the way.
func nextBoundary(prev time.Time, period time.Duration, now time.Time) (time.Time, int64) {
	next := prev.Add(period)
	if !now.After(next) {
		return next, 0
	}

	missed := int64(now.Sub(prev) / period)
	return prev.Add(time.Duration(missed+1) * period), missed
}

// tick runs one read-detect-annotate-publish pass. Failures are logged and
// counted but never stop the loop.
func (s *Scheduler) tick(sess *Session) {
	sess.ticks.Add(1)

	frame, err := s.camera.ReadFrame()
	if err != nil {
		sess.readFailures.Add(1)
		log.Printf("Error reading frame: %v", err)
		return
	}
	defer frame.Close()

	out, err := s.process(sess, frame)
	if err != nil {
		sess.detectFailures.Add(1)
		log.Printf("Error processing frame: %v", err)
		return
	}

	s.publisher.Publish(out)
	sess.framesPublished.Add(1)
}

// process detects, annotates and encodes a frame. Panics from the detection
// stage are recovered and reported as ErrDetection.
func (s *Scheduler) process(sess *Session, frame *gocv.Mat) (out publish.Frame, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrDetection, r)
		}
	}()

	faces, err := sess.detector.Detect(frame, &sess.minFace)
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrDetection, err)
	}
	sess.minFaceSize.Store(int64(sess.minFace.Value()))
	sess.facesDetected.Add(int64(len(faces)))

	detector.Annotate(frame, faces)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return out, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	return publish.Frame{
		SessionID:  sess.ID,
		Timestamp:  time.Now(),
		Width:      frame.Cols(),
		Height:     frame.Rows(),
		Detections: faces,
		JPEG:       data,
	}, nil
}
