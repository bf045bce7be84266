package detector

import (
	"errors"
	"image"

	"gocv.io/x/gocv"
)

// ErrEmptyFrame is returned when Detect is handed a frame with no pixels.
var ErrEmptyFrame = errors.New("frame is empty")

// CascadeScaleImage mirrors OpenCV's CASCADE_SCALE_IMAGE flag.
const CascadeScaleImage = 2

// Matcher is the cascade capability used by the detection stage.
// *gocv.CascadeClassifier satisfies it.
type Matcher interface {
	// DetectMultiScale runs the matcher with OpenCV's default parameters.
	DetectMultiScale(img gocv.Mat) []image.Rectangle

	// DetectMultiScaleWithParams runs the matcher with explicit parameters.
	// A zero maxSize means no upper bound.
	DetectMultiScaleWithParams(img gocv.Mat, scale float64, minNeighbors, flags int, minSize, maxSize image.Point) []image.Rectangle

	// Close releases the loaded cascade.
	Close() error
}

// Detector defines the interface for face detection implementations.
type Detector interface {
	// Detect analyzes a color frame and returns one FaceDetection per face.
	// minFace is resolved from the frame height on first use and then reused.
	// Returns an empty slice if no faces are detected.
	Detect(frame *gocv.Mat, minFace *MinFaceSize) ([]FaceDetection, error)
}

// Params holds the face matcher parameters.
type Params struct {
	// ScaleFactor is the image pyramid step (default: 1.1).
	ScaleFactor float64

	// MinNeighbors is how many overlapping candidates a face needs (default: 2).
	MinNeighbors int

	// Flags is passed through to the matcher (default: CascadeScaleImage).
	Flags int

	// MinFaceRatio is the fraction of frame height used for the minimum face size (default: 0.2).
	MinFaceRatio float64
}

// DefaultParams returns the parameters used by the acquisition pipeline.
func DefaultParams() Params {
	return Params{
		ScaleFactor:  1.1,
		MinNeighbors: 2,
		Flags:        CascadeScaleImage,
		MinFaceRatio: 0.2,
	}
}
