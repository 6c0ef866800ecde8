// Package ui is the optional system tray: it mirrors the active run and
// offers to stop it.
package ui

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"

	"github.com/heimdex/heimdex-flow/internal/logging"
	"github.com/heimdex/heimdex-flow/internal/run"
)

//go:embed icon.png
var iconBytes []byte

// RunController is the part of the run driver the tray needs.
type RunController interface {
	Status() run.Status
	Stop() error
	Subscribe() (<-chan run.Event, func())
}

type Tray struct {
	runs   RunController
	logger *slog.Logger

	statusItem *systray.MenuItem
	stepItem   *systray.MenuItem
	stopItem   *systray.MenuItem

	mu sync.Mutex

	onOpenEditor func() error
	onQuit       func()
}

type TrayConfig struct {
	Runs         RunController
	Logger       *slog.Logger
	OnOpenEditor func() error
	OnQuit       func()
}

func NewTray(cfg TrayConfig) *Tray {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Tray{
		runs:         cfg.Runs,
		logger:       logging.WithComponent(logger, "tray"),
		onOpenEditor: cfg.OnOpenEditor,
		onQuit:       cfg.OnQuit,
	}
}

// Run blocks on the tray's event loop.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Heimdex Flow")
	systray.SetTooltip("Heimdex Flow")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current run status")
	t.statusItem.Disable()

	t.stepItem = systray.AddMenuItem("No step running", "Step in progress")
	t.stepItem.Disable()

	systray.AddSeparator()

	t.stopItem = systray.AddMenuItem("Stop run", "Stop after the current step")
	t.stopItem.Disable()

	openItem := systray.AddMenuItem("Open editor", "Open the node editor")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Heimdex Flow")

	events, cancel := t.runs.Subscribe()
	t.refresh(t.runs.Status())

	go func() {
		defer cancel()
		for {
			select {
			case _, ok := <-events:
				if !ok {
					return
				}
				t.refresh(t.runs.Status())
			case <-t.stopItem.ClickedCh:
				t.handleStop()
			case <-openItem.ClickedCh:
				t.handleOpenEditor()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) handleStop() {
	if err := t.runs.Stop(); err != nil {
		t.logger.Warn("stop from tray ignored", "error", err)
		return
	}
	t.refresh(t.runs.Status())
}

func (t *Tray) handleOpenEditor() {
	if t.onOpenEditor != nil {
		if err := t.onOpenEditor(); err != nil {
			t.logger.Error("failed to open editor", "error", err)
		}
	}
}

func (t *Tray) refresh(st run.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.statusItem.SetTitle(StatusTitle(st))
	t.stepItem.SetTitle(StepTitle(st))
	if st.Running && st.State != run.StateStopped {
		t.stopItem.Enable()
	} else {
		t.stopItem.Disable()
	}
}

// StatusTitle is the tray's one-line summary of a driver status.
func StatusTitle(st run.Status) string {
	switch {
	case st.Running && st.State == run.StateStopped:
		return "Status: Stopping"
	case st.Running:
		return fmt.Sprintf("Status: Running (%d%%)", st.Percent)
	case st.State == "" || st.State == run.StateIdle:
		return "Status: Idle"
	}
	return "Status: Last run " + string(st.State)
}

// StepTitle names the step in flight.
func StepTitle(st run.Status) string {
	if !st.Running || st.CurrentStep == "" {
		return "No step running"
	}
	return fmt.Sprintf("Step %d/%d: %s", st.StepIndex+1, st.Total, st.CurrentStep)
}

func (t *Tray) Quit() {
	systray.Quit()
}
