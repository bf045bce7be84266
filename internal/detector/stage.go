package detector

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Annotation colors and font.
var (
	FaceColor = color.RGBA{G: 255}
	EyeColor  = color.RGBA{R: 255}
)

const (
	annotationThickness = 3
	labelFont           = gocv.FontHersheyDuplex
	labelScale          = 2
)

// Stage runs the two-pass face and eye detection.
//
// Algorithm:
// 1. Convert the frame to grayscale and equalize its histogram
// 2. Resolve the minimum face size from the gray frame height (once per session)
// 3. Run the face matcher with Params and minimum size (minFace, minFace)
// 4. For each face, run the eye matcher on the exact face sub-image
// 5. Translate eye rectangles back to frame coordinates
type Stage struct {
	face   Matcher
	eyes   Matcher
	params Params
}

// NewStage creates a Stage around loaded face and eye matchers.
// The Stage does not own the matchers and never closes them.
func NewStage(face, eyes Matcher, params Params) *Stage {
	return &Stage{
		face:   face,
		eyes:   eyes,
		params: params,
	}
}

// Detect implements Detector.
func (s *Stage) Detect(frame *gocv.Mat, minFace *MinFaceSize) ([]FaceDetection, error) {
	if frame == nil || frame.Empty() {
		return nil, ErrEmptyFrame
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}
	gocv.EqualizeHist(gray, &gray)

	size := minFace.Resolve(gray.Rows(), s.params.MinFaceRatio)

	faces := s.face.DetectMultiScaleWithParams(
		gray,
		s.params.ScaleFactor,
		s.params.MinNeighbors,
		s.params.Flags,
		image.Pt(size, size),
		image.Point{},
	)

	bounds := image.Rect(0, 0, gray.Cols(), gray.Rows())
	detections := make([]FaceDetection, 0, len(faces))

	for _, f := range faces {
		f = f.Intersect(bounds)
		if f.Empty() {
			continue
		}

		detection := FaceDetection{Face: faceRegion(f)}
		if s.eyes != nil {
			detection.Eyes = s.detectEyes(gray, f)
		}
		detections = append(detections, detection)
	}

	return detections, nil
}

func (s *Stage) detectEyes(gray gocv.Mat, face image.Rectangle) []Region {
	roi := gray.Region(face)
	defer roi.Close()

	found := s.eyes.DetectMultiScale(roi)
	eyes := make([]Region, 0, len(found))
	for _, e := range found {
		eyes = append(eyes, eyeRegion(ToFrame(e, face)))
	}
	return eyes
}

// Annotate draws each face and eye rectangle with its label onto frame.
func Annotate(frame *gocv.Mat, detections []FaceDetection) {
	for _, d := range detections {
		drawRegion(frame, d.Face, FaceColor)
		for _, eye := range d.Eyes {
			drawRegion(frame, eye, EyeColor)
		}
	}
}

func drawRegion(frame *gocv.Mat, r Region, c color.RGBA) {
	gocv.Rectangle(frame, r.Rect(), c, annotationThickness)
	gocv.PutText(frame, r.Label, r.Origin(), labelFont, labelScale, c, 1)
}
