// Package classifier manages the face-model variants available to the detection stage.
package classifier

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/ayusman/facetrack/internal/detector"
	"gocv.io/x/gocv"
)

var (
	// ErrUnknownModel is returned when selecting a model the registry does not hold.
	ErrUnknownModel = errors.New("unknown face model")

	// ErrModelLoad is returned when a cascade file cannot be loaded.
	ErrModelLoad = errors.New("failed to load model")
)

// ModelID identifies a face-model variant.
type ModelID string

// Known face-model variants.
const (
	None ModelID = ""
	Haar ModelID = "haar"
	LBP  ModelID = "lbp"
)

// Model describes a file-backed face cascade.
type Model struct {
	ID   ModelID `json:"id"`
	Name string  `json:"name"`
	Path string  `json:"path"`
}

// Loader loads the cascade stored at path.
type Loader func(path string) (detector.Matcher, error)

// DefaultModels returns the Haar and LBP frontal-face cascades under dir.
func DefaultModels(dir string) []Model {
	return []Model{
		{
			ID:   Haar,
			Name: "Haar Classifier",
			Path: filepath.Join(dir, "haarcascades", "haarcascade_frontalface_alt.xml"),
		},
		{
			ID:   LBP,
			Name: "LBP Classifier",
			Path: filepath.Join(dir, "lbpcascades", "lbpcascade_frontalface.xml"),
		},
	}
}

// EyeModelPath returns the eye cascade path under dir.
func EyeModelPath(dir string) string {
	return filepath.Join(dir, "haarcascades", "haarcascade_eye_tree_eyeglasses.xml")
}

// LoadCascade loads a gocv cascade classifier from path.
func LoadCascade(path string) (detector.Matcher, error) {
	c := gocv.NewCascadeClassifier()
	if !c.Load(path) {
		c.Close()
		return nil, fmt.Errorf("%w: %s", ErrModelLoad, path)
	}
	return &c, nil
}

// Registry holds the available face models and the one currently selected.
// At most one model is active. Selecting a model loads its cascade, and the
// eye cascade on first use; both stay loaded until replaced or closed.
type Registry struct {
	models  map[ModelID]Model
	order   []ModelID
	eyePath string
	load    Loader

	mu     sync.RWMutex
	active ModelID
	face   detector.Matcher
	eyes   detector.Matcher
}

// NewRegistry creates a Registry over models. A nil load uses LoadCascade.
func NewRegistry(models []Model, eyePath string, load Loader) *Registry {
	if load == nil {
		load = LoadCascade
	}

	r := &Registry{
		models:  make(map[ModelID]Model, len(models)),
		eyePath: eyePath,
		load:    load,
	}
	for _, m := range models {
		if _, dup := r.models[m.ID]; !dup {
			r.order = append(r.order, m.ID)
		}
		r.models[m.ID] = m
	}
	return r
}

// Select makes id the active model, deselecting any other.
// On failure the previous selection is left in place.
func (r *Registry) Select(id ModelID) error {
	model, ok := r.models[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModel, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == id && r.face != nil {
		return nil
	}

	face, err := r.load(model.Path)
	if err != nil {
		return fmt.Errorf("select %s: %w", id, err)
	}

	if r.eyes == nil && r.eyePath != "" {
		eyes, err := r.load(r.eyePath)
		if err != nil {
			face.Close()
			return fmt.Errorf("select %s: eye model: %w", id, err)
		}
		r.eyes = eyes
	}

	if r.face != nil {
		if err := r.face.Close(); err != nil {
			log.Printf("Error closing %s classifier: %v", r.active, err)
		}
	}

	r.active = id
	r.face = face

	log.Printf("Classifier selected: %s (%s)", model.Name, model.Path)
	return nil
}

// Active returns the selected model, or None.
func (r *Registry) Active() ModelID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// IsReady reports whether a model is selected and loaded.
func (r *Registry) IsReady() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active != None && r.face != nil
}

// Model returns the description of id.
func (r *Registry) Model(id ModelID) (Model, bool) {
	m, ok := r.models[id]
	return m, ok
}

// Models returns the available models in registration order.
func (r *Registry) Models() []Model {
	models := make([]Model, 0, len(r.order))
	for _, id := range r.order {
		models = append(models, r.models[id])
	}
	return models
}

// Matchers returns the loaded face and eye matchers. ok is false until a model
// has been selected. The eye matcher is nil when no eye model is configured.
func (r *Registry) Matchers() (face, eyes detector.Matcher, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.face == nil {
		return nil, nil, false
	}
	return r.face, r.eyes, true
}

// Close releases every loaded cascade and clears the selection.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	if r.face != nil {
		errs = append(errs, r.face.Close())
		r.face = nil
	}
	if r.eyes != nil {
		errs = append(errs, r.eyes.Close())
		r.eyes = nil
	}
	r.active = None

	return errors.Join(errs...)
}
