// Package tray provides the system tray control surface for facetrack.
package tray

import (
	"log"
	"sync"

	"github.com/ayusman/facetrack/internal/app"
	"github.com/ayusman/facetrack/internal/classifier"
	"github.com/getlantern/systray"
)

// Controller is the part of the scheduler the tray drives.
type Controller interface {
	Toggle() (app.State, error)
	SelectModel(id classifier.ModelID) error
	State() app.State
	CanStart() bool
	Registry() *classifier.Registry
	OnChange(fn func(app.State))
}

// menuView is the enablement and text of every menu item for one state.
type menuView struct {
	toggleTitle   string
	toggleEnabled bool
	models        []modelView
}

type modelView struct {
	id      classifier.ModelID
	title   string
	checked bool
	enabled bool
}

// viewOf derives the menu from the controller. The toggle is enabled only once a
// model is loaded, and the model choices only while idle.
func viewOf(c Controller) menuView {
	state := c.State()
	active := c.Registry().Active()

	v := menuView{
		toggleTitle:   state.ToggleLabel(),
		toggleEnabled: state == app.Running || c.CanStart(),
	}
	for _, m := range c.Registry().Models() {
		v.models = append(v.models, modelView{
			id:      m.ID,
			title:   m.Name,
			checked: m.ID == active,
			enabled: state == app.Idle,
		})
	}
	return v
}

// Tray represents the system tray application.
type Tray struct {
	controller Controller
	onViewer   func()
	onQuit     func()
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuModels map[classifier.ModelID]*systray.MenuItem
}

// New creates a new Tray driving c.
func New(c Controller) *Tray {
	return &Tray{
		controller: c,
		menuModels: make(map[classifier.ModelID]*systray.MenuItem),
	}
}

// OnViewer sets the callback function to be called when the viewer menu item is clicked.
func (t *Tray) OnViewer(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onViewer = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops the tray loop, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Facetrack")
	systray.SetTooltip("Facetrack Face Detection")

	v := viewOf(t.controller)

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(v.toggleTitle, "Start or stop the camera")
	systray.AddSeparator()

	clicks := make(chan classifier.ModelID)
	for _, m := range v.models {
		item := systray.AddMenuItemCheckbox(m.title, "Use the "+m.title, m.checked)
		t.menuModels[m.id] = item

		go func(id classifier.ModelID, item *systray.MenuItem) {
			for range item.ClickedCh {
				clicks <- id
			}
		}(m.id, item)
	}
	t.mu.Unlock()
	systray.AddSeparator()

	menuViewer := systray.AddMenuItem("Open Viewer...", "Open the live view in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Facetrack")

	t.controller.OnChange(func(app.State) { t.refresh() })
	t.refresh()

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case id := <-clicks:
				t.handleSelect(id)
			case <-menuViewer.ClickedCh:
				t.handleViewer()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// refresh applies the current view to the menu items.
func (t *Tray) refresh() {
	v := viewOf(t.controller)

	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuToggle == nil {
		return
	}

	t.menuToggle.SetTitle(v.toggleTitle)
	setEnabled(t.menuToggle, v.toggleEnabled)

	for _, m := range v.models {
		item, ok := t.menuModels[m.id]
		if !ok {
			continue
		}
		if m.checked {
			item.Check()
		} else {
			item.Uncheck()
		}
		setEnabled(item, m.enabled)
	}
}

func setEnabled(item *systray.MenuItem, enabled bool) {
	if enabled {
		item.Enable()
	} else {
		item.Disable()
	}
}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	if _, err := t.controller.Toggle(); err != nil {
		log.Printf("Camera toggle failed: %v", err)
	}
	t.refresh()
}

// handleSelect handles a click on a classifier checkbox. A failed load leaves
// the previous choice checked.
func (t *Tray) handleSelect(id classifier.ModelID) {
	if err := t.controller.SelectModel(id); err != nil {
		log.Printf("Classifier selection failed: %v", err)
	}
	t.refresh()
}

// handleViewer handles the viewer menu item click.
func (t *Tray) handleViewer() {
	t.mu.RLock()
	callback := t.onViewer
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}
