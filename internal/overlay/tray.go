package overlay

import (
	"sync"
	"time"

	"github.com/getlantern/systray"
)

// Tray shows the overlay state in the system tray.
type Tray struct {
	overlay  *Overlay
	onToggle func(enabled bool)
	onQuit   func()
	mu       sync.RWMutex

	menuHybrid  *systray.MenuItem
	menuUpdated *systray.MenuItem
}

// NewTray creates a tray bound to o.
func NewTray(o *Overlay) *Tray {
	t := &Tray{overlay: o}
	o.OnChange(t.render)
	return t
}

// OnToggle sets the callback run when the user flips hybrid mode from the
// menu. The callback receives the requested value.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the tray and blocks until Quit.
// It must be called from the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit stops the tray.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra gesture overlay")

	hybrid, updated := t.overlay.HybridMode()

	t.mu.Lock()
	t.menuHybrid = systray.AddMenuItem(hybridTitle(hybrid), "Toggle hybrid mode")
	t.menuUpdated = systray.AddMenuItem(updatedTitle(updated), "Last hybrid mode update")
	t.menuUpdated.Disable()
	t.mu.Unlock()

	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit the overlay")

	go func() {
		for {
			select {
			case <-t.menuHybrid.ClickedCh:
				t.handleToggle()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) handleToggle() {
	current, _ := t.overlay.HybridMode()

	t.mu.RLock()
	callback := t.onToggle
	t.mu.RUnlock()

	if callback != nil {
		callback(!current)
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
	systray.Quit()
}

// render refreshes the menu after an overlay update.
func (t *Tray) render(hybrid bool, at time.Time) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuHybrid != nil {
		t.menuHybrid.SetTitle(hybridTitle(hybrid))
	}
	if t.menuUpdated != nil {
		t.menuUpdated.SetTitle(updatedTitle(at))
	}
}

func hybridTitle(on bool) string {
	if on {
		return "● Hybrid mode: on"
	}
	return "○ Hybrid mode: off"
}

func updatedTitle(at time.Time) string {
	if at.IsZero() {
		return "Updated: never"
	}
	return "Updated: " + at.Format("15:04:05")
}
