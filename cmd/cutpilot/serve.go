package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cutpilot/cutpilot-agent/internal/api"
	"github.com/cutpilot/cutpilot-agent/internal/config"
	"github.com/cutpilot/cutpilot-agent/internal/playback"
	"github.com/cutpilot/cutpilot-agent/internal/ui"
	"github.com/cutpilot/cutpilot-agent/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the panel API on localhost",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	startTime := time.Now()

	a, err := setup(false)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger
	logger.Info("starting cutpilot agent", "version", config.Version, "data_dir", a.cfg.DataDir())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	authToken, err := ensureAuthToken(ctx, a.repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Printf("  CutPilot agent %s\n", config.Version)
	fmt.Printf("  API URL:    http://127.0.0.1:%d\n", a.cfg.Port())
	fmt.Printf("  Auth Token: %s\n", authToken)
	fmt.Printf("  Inference:  %s\n", a.cfg.InferenceURL())
	fmt.Println()

	if path := a.host.File(); path != "" {
		w := watcher.New(path, watcher.DefaultDebounce, logger)
		w.OnChange(func(path string, event watcher.EventType) {
			if event == watcher.EventDelete {
				logger.Warn("timeline file removed; keeping the loaded copy")
				return
			}
			if err := a.host.Reload(); err != nil {
				logger.Error("failed to reload timeline", "error", err)
				return
			}
			logger.Info("timeline reloaded", "event", event.String())
		})
		if err := w.Start(ctx); err != nil {
			logger.Warn("timeline watcher unavailable", "error", err)
		} else {
			defer w.Stop()
		}
	}

	apiServer := api.NewServer(api.ServerConfig{
		Port:       a.cfg.Port(),
		Agent:      a.agent,
		Repository: a.repo,
		Evidence:   playback.NewServer(a.host, logger),
		Logger:     logger,
		StartTime:  startTime,
		Version:    config.Version,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	quitCh := make(chan struct{})
	var tray *ui.Tray

	if a.cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray = ui.NewTray(ui.TrayConfig{
			Reviewer: a.agent,
			Logger:   logger,
			Addr:     apiServer.Addr(),
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
	}

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		if tray != nil {
			tray.Quit()
		}
	case <-quitCh:
	}

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
