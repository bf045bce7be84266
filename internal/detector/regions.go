// Package detector locates faces, and eyes within each face, using cascade matchers.
package detector

import (
	"fmt"
	"image"
	"math"
)

// Region is an axis-aligned rectangle with a label.
type Region struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Label  string `json:"label"`
}

// FaceDetection is a face and the eyes found inside it, all in full-frame coordinates.
type FaceDetection struct {
	Face Region   `json:"face"`
	Eyes []Region `json:"eyes"`
}

// Rect returns the region as an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Origin returns the top-left corner of the region.
func (r Region) Origin() image.Point {
	return image.Pt(r.X, r.Y)
}

func faceRegion(r image.Rectangle) Region {
	return newRegion(r, fmt.Sprintf("face%d,%d", r.Min.X, r.Min.Y))
}

func eyeRegion(r image.Rectangle) Region {
	return newRegion(r, fmt.Sprintf("Eye%d,%d", r.Min.X, r.Min.Y))
}

func newRegion(r image.Rectangle, label string) Region {
	return Region{
		X:      r.Min.X,
		Y:      r.Min.Y,
		Width:  r.Dx(),
		Height: r.Dy(),
		Label:  label,
	}
}

// ToFrame translates a rectangle local to the face sub-image into frame coordinates.
func ToFrame(local image.Rectangle, face image.Rectangle) image.Rectangle {
	return local.Add(face.Min)
}

// ToLocal is the inverse of ToFrame.
func ToLocal(framed image.Rectangle, face image.Rectangle) image.Rectangle {
	return framed.Sub(face.Min)
}

// MinFaceSize is the smallest face edge, in pixels, passed to the face matcher.
// Zero means unset. It is resolved once per session from the first frame.
type MinFaceSize struct {
	value    int
	resolved bool
}

// Value returns the resolved size, or 0 if unset.
func (m *MinFaceSize) Value() int {
	return m.value
}

// Resolved reports whether the size has been derived for this session.
func (m *MinFaceSize) Resolved() bool {
	return m.resolved
}

// Resolve derives the size from height on the first call and returns the cached
// value on every later call. A height of 0 leaves the size unset.
func (m *MinFaceSize) Resolve(height int, ratio float64) int {
	if m.resolved {
		return m.value
	}
	if height <= 0 {
		return 0
	}
	m.value = ComputeMinFaceSize(height, ratio)
	m.resolved = true
	return m.value
}

// Reset returns the size to unset. Called when a new capture session begins.
func (m *MinFaceSize) Reset() {
	m.value = 0
	m.resolved = false
}

// ComputeMinFaceSize returns round(height*ratio), clamped to 1 when that rounds
// to 0 for a positive height.
func ComputeMinFaceSize(height int, ratio float64) int {
	if height <= 0 {
		return 0
	}
	size := int(math.Round(float64(height) * ratio))
	if size < 1 {
		size = 1
	}
	return size
}
