// Package tray shows the live practice score in the system tray.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/mudra/internal/compare"
	"github.com/ayusman/mudra/internal/session"
)

// Tray is the system tray status display of camera practice mode.
type Tray struct {
	onToggle func(enabled bool)
	onOpen   func()
	onQuit   func()
	enabled  bool
	sign     string
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuScore  *systray.MenuItem
	menuBest   *systray.MenuItem
	menuHint   *systray.MenuItem
}

// New creates a Tray for practicing sign. Practice starts enabled.
func New(sign string) *Tray {
	return &Tray{
		enabled: true,
		sign:    sign,
	}
}

// OnToggle sets the callback called when practice is paused or resumed.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnOpen sets the callback called when the web UI item is clicked.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback called when the quit item is clicked.
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

// Quit closes the tray and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("mudra")
	systray.SetTooltip("mudra sign practice: " + t.sign)

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Pause or resume practice")
	systray.AddSeparator()

	t.menuScore = systray.AddMenuItem("Score: -", "Similarity to the target sign")
	t.menuScore.Disable()
	t.menuBest = systray.AddMenuItem("Best: -", "Best score this run")
	t.menuBest.Disable()
	t.menuHint = systray.AddMenuItem("Waiting for landmarks", "Largest deviation")
	t.menuHint.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open Web UI...", "Open the practice page in the browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit mudra")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle handles the pause menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
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

// Update shows the result of one practice tick.
func (t *Tray) Update(u session.Update) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuScore == nil {
		return
	}
	systray.SetTitle(fmt.Sprintf("%s %d", t.sign, u.Result.Score))
	t.menuScore.SetTitle(scoreTitle(u))
	t.menuBest.SetTitle(fmt.Sprintf("Best: %d", u.Stats.Best))
	t.menuHint.SetTitle(hintTitle(u))
}

// IsEnabled returns whether practice is running.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Practicing"
	}
	return "○ Paused"
}

func scoreTitle(u session.Update) string {
	if u.Result.PartsCompared == 0 {
		return "Score: -"
	}
	return fmt.Sprintf("Score: %d (avg %.0f)", u.Result.Score, u.Stats.Average)
}

func hintTitle(u session.Update) string {
	if u.Feedback != nil && u.Feedback.Text != "" {
		return u.Feedback.Text
	}
	switch code := u.Result.ErrorCode; code {
	case compare.CodeNone:
		return "Looks good"
	case compare.CodeNoData:
		return "No landmarks detected"
	case compare.CodeHandMissing:
		return "Show your hand to the camera"
	case compare.CodePoseMissing:
		return "Step back so your upper body is visible"
	default:
		if u.Result.WorstJoint != "" {
			return fmt.Sprintf("%s (%s off by %.0f°)", code, u.Result.WorstJoint, u.Result.WorstError)
		}
		return string(code)
	}
}
