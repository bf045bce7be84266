package detector

import (
	"errors"
	"image"
	"testing"

	"gocv.io/x/gocv"
)

func newFrame(t *testing.T, rows, cols int) gocv.Mat {
	t.Helper()
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { frame.Close() })
	return frame
}

func TestComputeMinFaceSize(t *testing.T) {
	tests := []struct {
		name   string
		height int
		want   int
	}{
		{name: "zero height", height: 0, want: 0},
		{name: "negative height", height: -10, want: 0},
		{name: "rounds to zero clamps to one", height: 2, want: 1},
		{name: "one pixel", height: 1, want: 1},
		{name: "rounds half up", height: 3, want: 1},
		{name: "rounds down", height: 11, want: 2},
		{name: "vga", height: 480, want: 96},
		{name: "720p", height: 720, want: 144},
		{name: "odd height", height: 487, want: 97},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeMinFaceSize(tt.height, 0.2); got != tt.want {
				t.Errorf("ComputeMinFaceSize(%d) = %d, want %d", tt.height, got, tt.want)
			}
		})
	}
}

func TestMinFaceSize_ResolvesOnce(t *testing.T) {
	var m MinFaceSize

	if m.Resolved() || m.Value() != 0 {
		t.Fatal("zero MinFaceSize should be unset")
	}

	if got := m.Resolve(0, 0.2); got != 0 {
		t.Errorf("Resolve(0) = %d, want 0", got)
	}
	if m.Resolved() {
		t.Error("a zero height must leave the size unset")
	}

	if got := m.Resolve(480, 0.2); got != 96 {
		t.Errorf("Resolve(480) = %d, want 96", got)
	}

	// Later frames of a different size must not recompute.
	if got := m.Resolve(1080, 0.2); got != 96 {
		t.Errorf("Resolve(1080) after resolve = %d, want cached 96", got)
	}

	m.Reset()
	if m.Resolved() || m.Value() != 0 {
		t.Error("Reset should return the size to unset")
	}
	if got := m.Resolve(1080, 0.2); got != 216 {
		t.Errorf("Resolve(1080) after reset = %d, want 216", got)
	}
}

func TestToFrame_RoundTrip(t *testing.T) {
	faces := []image.Rectangle{
		image.Rect(0, 0, 100, 100),
		image.Rect(37, 52, 237, 252),
		image.Rect(400, 10, 520, 130),
	}
	locals := []image.Rectangle{
		image.Rect(0, 0, 10, 10),
		image.Rect(15, 20, 45, 40),
		image.Rect(60, 22, 90, 44),
	}

	for _, face := range faces {
		for _, local := range locals {
			framed := ToFrame(local, face)
			if framed.Min.X != local.Min.X+face.Min.X || framed.Min.Y != local.Min.Y+face.Min.Y {
				t.Errorf("ToFrame(%v, %v) = %v, origin not offset", local, face, framed)
			}
			if framed.Dx() != local.Dx() || framed.Dy() != local.Dy() {
				t.Errorf("ToFrame(%v, %v) = %v, size changed", local, face, framed)
			}
			if back := ToLocal(framed, face); back != local {
				t.Errorf("ToLocal(ToFrame(%v)) = %v, want %v", local, back, local)
			}
		}
	}
}

func TestStage_EmptyScene(t *testing.T) {
	face := NewMockMatcher()
	eyes := NewMockMatcher(image.Rect(1, 1, 5, 5))
	stage := NewStage(face, eyes, DefaultParams())

	frame := newFrame(t, 480, 640)
	var minFace MinFaceSize

	got, err := stage.Detect(&frame, &minFace)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Detect() returned %d faces, want 0", len(got))
	}
	if len(eyes.Calls()) != 0 {
		t.Error("eye matcher should not run without faces")
	}
}

func TestStage_FaceMatcherParams(t *testing.T) {
	face := NewMockMatcher()
	stage := NewStage(face, NewMockMatcher(), DefaultParams())

	frame := newFrame(t, 480, 640)
	var minFace MinFaceSize

	if _, err := stage.Detect(&frame, &minFace); err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	calls := face.Calls()
	if len(calls) != 1 {
		t.Fatalf("face matcher called %d times, want 1", len(calls))
	}
	call := calls[0]

	if !call.WithParams {
		t.Error("face matcher should be called with explicit params")
	}
	if call.Scale != 1.1 {
		t.Errorf("scale = %v, want 1.1", call.Scale)
	}
	if call.MinNeighbors != 2 {
		t.Errorf("minNeighbors = %d, want 2", call.MinNeighbors)
	}
	if call.Flags != CascadeScaleImage {
		t.Errorf("flags = %d, want CascadeScaleImage", call.Flags)
	}
	if call.MinSize != image.Pt(96, 96) {
		t.Errorf("minSize = %v, want (96,96)", call.MinSize)
	}
	if call.MaxSize != (image.Point{}) {
		t.Errorf("maxSize = %v, want unbounded", call.MaxSize)
	}
	if call.Rows != 480 || call.Cols != 640 {
		t.Errorf("matcher saw %dx%d, want full 640x480 gray frame", call.Cols, call.Rows)
	}
	if minFace.Value() != 96 {
		t.Errorf("minFace = %d, want 96", minFace.Value())
	}
}

func TestStage_OneFaceTwoEyes(t *testing.T) {
	faceRect := image.Rect(200, 100, 400, 300)
	face := NewMockMatcher(faceRect)
	eyes := NewMockMatcher(
		image.Rect(30, 40, 80, 80),
		image.Rect(120, 42, 170, 82),
	)
	stage := NewStage(face, eyes, DefaultParams())

	frame := newFrame(t, 480, 640)
	var minFace MinFaceSize

	got, err := stage.Detect(&frame, &minFace)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Detect() returned %d faces, want 1", len(got))
	}

	d := got[0]
	if d.Face.Rect() != faceRect {
		t.Errorf("face = %v, want %v", d.Face.Rect(), faceRect)
	}
	if d.Face.Label != "face200,100" {
		t.Errorf("face label = %q, want %q", d.Face.Label, "face200,100")
	}

	want := []image.Rectangle{
		image.Rect(230, 140, 280, 180),
		image.Rect(320, 142, 370, 182),
	}
	if len(d.Eyes) != len(want) {
		t.Fatalf("got %d eyes, want %d", len(d.Eyes), len(want))
	}
	for i, eye := range d.Eyes {
		if eye.Rect() != want[i] {
			t.Errorf("eye %d = %v, want %v", i, eye.Rect(), want[i])
		}
	}
	if d.Eyes[0].Label != "Eye230,140" {
		t.Errorf("eye label = %q, want %q", d.Eyes[0].Label, "Eye230,140")
	}

	calls := eyes.Calls()
	if len(calls) != 1 {
		t.Fatalf("eye matcher called %d times, want 1", len(calls))
	}
	if calls[0].WithParams {
		t.Error("eye matcher should use default params")
	}
	if calls[0].Rows != faceRect.Dy() || calls[0].Cols != faceRect.Dx() {
		t.Errorf("eye matcher saw %dx%d, want face sub-image %dx%d",
			calls[0].Cols, calls[0].Rows, faceRect.Dx(), faceRect.Dy())
	}
}

func TestStage_MinFaceNotRecomputed(t *testing.T) {
	face := NewMockMatcher()
	stage := NewStage(face, nil, DefaultParams())

	var minFace MinFaceSize
	first := newFrame(t, 480, 640)
	second := newFrame(t, 240, 320)

	stage.Detect(&first, &minFace)
	stage.Detect(&second, &minFace)

	calls := face.Calls()
	if len(calls) != 2 {
		t.Fatalf("face matcher called %d times, want 2", len(calls))
	}
	for i, c := range calls {
		if c.MinSize != image.Pt(96, 96) {
			t.Errorf("call %d minSize = %v, want (96,96)", i, c.MinSize)
		}
	}
}

func TestStage_EmptyFrame(t *testing.T) {
	stage := NewStage(NewMockMatcher(), NewMockMatcher(), DefaultParams())
	empty := gocv.NewMat()
	defer empty.Close()

	var minFace MinFaceSize
	if _, err := stage.Detect(&empty, &minFace); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("Detect(empty) error = %v, want ErrEmptyFrame", err)
	}
	if _, err := stage.Detect(nil, &minFace); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("Detect(nil) error = %v, want ErrEmptyFrame", err)
	}
}

func TestAnnotate_DrawsOnFrame(t *testing.T) {
	frame := newFrame(t, 480, 640)
	before := gocv.CountNonZero(grayOf(t, frame))

	Annotate(&frame, []FaceDetection{{
		Face: faceRegion(image.Rect(100, 100, 300, 300)),
		Eyes: []Region{eyeRegion(image.Rect(140, 150, 180, 180))},
	}})

	after := gocv.CountNonZero(grayOf(t, frame))
	if after <= before {
		t.Errorf("Annotate() left frame unchanged (%d -> %d non-zero pixels)", before, after)
	}
}

func TestAnnotate_NoDetectionsLeavesFrame(t *testing.T) {
	frame := newFrame(t, 120, 160)
	Annotate(&frame, nil)

	if n := gocv.CountNonZero(grayOf(t, frame)); n != 0 {
		t.Errorf("frame has %d non-zero pixels, want 0", n)
	}
}

func grayOf(t *testing.T, frame gocv.Mat) gocv.Mat {
	t.Helper()
	gray := gocv.NewMat()
	t.Cleanup(func() { gray.Close() })
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	return gray
}
