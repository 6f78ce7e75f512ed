// Package tray puts the bot in the system tray: a live status line, a pause
// toggle, and quit. systray wants the main goroutine, so Run blocks and the
// control loop runs elsewhere.
package tray

import (
	"fmt"
	"time"

	"github.com/getlantern/systray"
	"go.uber.org/zap"

	"genshin-autobot/internal/pipeline"
)

const refreshInterval = time.Second

// App drives the tray menu for one bot session.
type App struct {
	pipe   *pipeline.Pipeline
	onQuit func()
	log    *zap.Logger

	statusItem *systray.MenuItem
	healthItem *systray.MenuItem
	pauseItem  *systray.MenuItem
	quitItem   *systray.MenuItem
}

// New builds the tray app. onQuit is called once when the user picks Quit,
// before the tray tears down; use it to cancel the run context.
func New(pipe *pipeline.Pipeline, onQuit func(), logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	if onQuit == nil {
		onQuit = func() {}
	}
	return &App{pipe: pipe, onQuit: onQuit, log: logger.Named("tray")}
}

// Run blocks until the tray exits.
func (a *App) Run() {
	a.log.Info("starting system tray")
	systray.Run(a.onReady, a.onExit)
}

// Quit tears the tray down from outside, unblocking Run. Safe to call more
// than once and safe to race with a user-initiated quit.
func (a *App) Quit() {
	systray.Quit()
}

func (a *App) onReady() {
	systray.SetTitle("Genshin Bot")
	systray.SetTooltip("Genshin Impact automation")

	a.statusItem = systray.AddMenuItem("Status: starting", "Loop state and session counters")
	a.statusItem.Disable()
	a.healthItem = systray.AddMenuItem("Health: unknown", "Last health reading")
	a.healthItem.Disable()

	systray.AddSeparator()
	a.pauseItem = systray.AddMenuItemCheckbox("Pause", "Skip cycles without quitting", false)

	systray.AddSeparator()
	a.quitItem = systray.AddMenuItem("Quit", "Stop the bot and exit")

	go a.handleEvents()
	go a.refreshLoop()
	a.log.Info("system tray ready")
}

func (a *App) onExit() {
	a.log.Info("system tray exited")
}

func (a *App) handleEvents() {
	for {
		select {
		case <-a.pauseItem.ClickedCh:
			if a.pipe.Paused() {
				a.pipe.Resume()
				a.pauseItem.Uncheck()
			} else {
				a.pipe.Pause()
				a.pauseItem.Check()
			}
		case <-a.quitItem.ClickedCh:
			a.log.Info("quit requested from tray")
			a.onQuit()
			systray.Quit()
			return
		}
	}
}

func (a *App) refreshLoop() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for range ticker.C {
		a.refresh()
	}
}

func (a *App) refresh() {
	status := a.pipe.Status().String()
	if a.pipe.Paused() {
		status = "paused"
	}
	snap := a.pipe.Stats()
	a.statusItem.SetTitle(statusLine(status, snap))
	a.healthItem.SetTitle("Health: " + healthLine(snap))
}

func statusLine(status string, snap pipeline.Snapshot) string {
	return fmt.Sprintf("Status: %s | %s | %d cycles | %s",
		status, snap.LastState, snap.Cycles, snap.Uptime.Truncate(time.Second))
}

func healthLine(snap pipeline.Snapshot) string {
	h := snap.LastHealth
	if h == nil {
		return "unknown"
	}
	line := fmt.Sprintf("%d/%d (%.0f%%)", h.Current, h.Maximum, h.Percentage()*100)
	if h.Critical() {
		line += " CRITICAL"
	}
	return line
}
