package detector

import (
	"image"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"
)

// MatcherCall records the arguments of one matcher invocation.
type MatcherCall struct {
	Rows         int
	Cols         int
	Scale        float64
	MinNeighbors int
	Flags        int
	MinSize      image.Point
	MaxSize      image.Point
	WithParams   bool
}

// MockMatcher is a test implementation of the Matcher interface.
// It returns pre-configured rectangles and records every call.
type MockMatcher struct {
	mu       sync.Mutex
	rects    []image.Rectangle
	calls    []MatcherCall
	delay    time.Duration
	closed   bool
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

// NewMockMatcher creates a MockMatcher that returns rects on every call.
func NewMockMatcher(rects ...image.Rectangle) *MockMatcher {
	return &MockMatcher{rects: rects}
}

// SetRects sets the rectangles returned by later calls.
func (m *MockMatcher) SetRects(rects ...image.Rectangle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rects = rects
}

// SetDelay makes every call sleep for d before returning.
func (m *MockMatcher) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// DetectMultiScale records the call and returns the configured rectangles.
func (m *MockMatcher) DetectMultiScale(img gocv.Mat) []image.Rectangle {
	return m.record(MatcherCall{Rows: img.Rows(), Cols: img.Cols()})
}

// DetectMultiScaleWithParams records the call and returns the configured rectangles.
func (m *MockMatcher) DetectMultiScaleWithParams(img gocv.Mat, scale float64, minNeighbors, flags int, minSize, maxSize image.Point) []image.Rectangle {
	return m.record(MatcherCall{
		Rows:         img.Rows(),
		Cols:         img.Cols(),
		Scale:        scale,
		MinNeighbors: minNeighbors,
		Flags:        flags,
		MinSize:      minSize,
		MaxSize:      maxSize,
		WithParams:   true,
	})
}

func (m *MockMatcher) record(call MatcherCall) []image.Rectangle {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		seen := m.maxSeen.Load()
		if n <= seen || m.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	m.mu.Lock()
	m.calls = append(m.calls, call)
	delay := m.delay
	out := make([]image.Rectangle, len(m.rects))
	copy(out, m.rects)
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	return out
}

// Calls returns a copy of the recorded calls.
func (m *MockMatcher) Calls() []MatcherCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MatcherCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// MaxConcurrent returns the highest number of overlapping calls observed.
func (m *MockMatcher) MaxConcurrent() int {
	return int(m.maxSeen.Load())
}

// Close marks the matcher closed.
func (m *MockMatcher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockMatcher) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	faces []FaceDetection
	err   error
	panic any
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFaces sets the faces that will be returned by Detect.
func (m *MockDetector) SetFaces(faces []FaceDetection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faces = faces
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetPanic makes Detect panic with v.
func (m *MockDetector) SetPanic(v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panic = v
}

// Detect returns the pre-configured faces or error.
func (m *MockDetector) Detect(frame *gocv.Mat, minFace *MinFaceSize) ([]FaceDetection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panic != nil {
		panic(m.panic)
	}
	if m.err != nil {
		return nil, m.err
	}
	if frame != nil && minFace != nil {
		minFace.Resolve(frame.Rows(), DefaultParams().MinFaceRatio)
	}
	return m.faces, nil
}
