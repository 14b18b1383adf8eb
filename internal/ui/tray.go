package ui

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"

	"github.com/cutpilot/cutpilot-agent/internal/agent"
	"github.com/cutpilot/cutpilot-agent/internal/review"
)

//go:embed icon.png
var iconBytes []byte

// Reviewer is the part of the agent the tray drives.
type Reviewer interface {
	ReviewState() agent.ReviewView
	Review(ctx context.Context, d review.Decision) (agent.ReviewView, error)
	OnReviewChange(fn func(agent.ReviewView))
}

type Tray struct {
	reviewer Reviewer
	logger   *slog.Logger
	addr     string

	statusItem  *systray.MenuItem
	rangeItem   *systray.MenuItem
	confirmItem *systray.MenuItem
	skipItem    *systray.MenuItem

	mu    sync.Mutex
	ready bool

	onQuit func()
}

type TrayConfig struct {
	Reviewer Reviewer
	Logger   *slog.Logger
	Addr     string
	OnQuit   func()
}

func NewTray(cfg TrayConfig) *Tray {
	t := &Tray{
		reviewer: cfg.Reviewer,
		logger:   cfg.Logger,
		addr:     cfg.Addr,
		onQuit:   cfg.OnQuit,
	}
	cfg.Reviewer.OnReviewChange(t.update)
	return t
}

// Run blocks until the tray exits.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("CutPilot")
	systray.SetTooltip("CutPilot agent on " + t.addr)

	t.mu.Lock()
	t.statusItem = systray.AddMenuItem("Review: idle", "Silence review status")
	t.statusItem.Disable()
	t.rangeItem = systray.AddMenuItem("", "Range under review")
	t.rangeItem.Disable()
	t.rangeItem.Hide()

	systray.AddSeparator()

	t.confirmItem = systray.AddMenuItem("Confirm", "Confirm this silence and go to the next")
	t.skipItem = systray.AddMenuItem("Skip", "Keep this silence and go to the next")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit CutPilot agent")
	t.ready = true
	t.mu.Unlock()

	t.update(t.reviewer.ReviewState())

	go func() {
		for {
			select {
			case <-t.confirmItem.ClickedCh:
				t.decide(review.Confirm)
			case <-t.skipItem.ClickedCh:
				t.decide(review.Skip)
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

func (t *Tray) decide(d review.Decision) {
	if _, err := t.reviewer.Review(context.Background(), d); err != nil {
		t.logger.Warn("review decision from tray failed", "decision", d, "error", err)
	}
}

// update mirrors the wizard state into the menu. It runs on the agent's
// goroutine after every transition.
func (t *Tray) update(v agent.ReviewView) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready {
		return
	}

	t.statusItem.SetTitle("Review: " + v.Progress)
	if v.Range != nil {
		t.rangeItem.SetTitle(fmt.Sprintf("%.2fs to %.2fs", v.Range.Start, v.Range.End))
		t.rangeItem.Show()
	} else {
		t.rangeItem.Hide()
	}
	if v.Warning != "" {
		t.statusItem.SetTooltip(v.Warning)
	}

	if v.Phase == review.PhaseReviewing {
		t.confirmItem.Enable()
		t.skipItem.Enable()
	} else {
		t.confirmItem.Disable()
		t.skipItem.Disable()
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}
