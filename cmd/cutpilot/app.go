package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cutpilot/cutpilot-agent/internal/agent"
	"github.com/cutpilot/cutpilot-agent/internal/config"
	"github.com/cutpilot/cutpilot-agent/internal/db"
	"github.com/cutpilot/cutpilot-agent/internal/edits"
	"github.com/cutpilot/cutpilot-agent/internal/host/sandbox"
	"github.com/cutpilot/cutpilot-agent/internal/inference"
	"github.com/cutpilot/cutpilot-agent/internal/journal"
	"github.com/cutpilot/cutpilot-agent/internal/logging"
	"github.com/cutpilot/cutpilot-agent/internal/timecode"
)

// app holds everything a command needs.
type app struct {
	cfg      *config.EnvConfig
	logger   *slog.Logger
	database *db.DB
	repo     *journal.SQLiteRepository
	host     *sandbox.Host
	agent    *agent.Agent
}

func setup(stderrLogs bool) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.LogLevel()
	if logLevel != "" {
		level = logLevel
	}
	logger := logging.NewLogger(level)
	if stderrLogs {
		logger = logging.NewLoggerTo(os.Stderr, level)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := ensurePreset(cfg.PresetDir(), cfg.AudioPreset()); err != nil {
		return nil, fmt.Errorf("failed to prepare export preset: %w", err)
	}

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	repo := journal.NewRepository(database)

	codec := timecode.New(cfg.TicksPerSecond())
	h, err := openHost(cfg, codec, logger)
	if err != nil {
		database.Close()
		return nil, err
	}

	client := inference.NewHTTPClient(cfg.InferenceURL(), cfg.InferenceTimeout(), logger)
	a := agent.New(h, client, repo, agent.Settings{
		Codec:             codec,
		Track:             cfg.TrackIndex(),
		GapThreshold:      cfg.GapThreshold(),
		TrimMode:          edits.TrimMode(cfg.TrimMode()),
		ExportConcurrency: cfg.ExportConcurrency(),
		AudioPreset:       cfg.AudioPreset(),
		AudioTimeout:      cfg.AudioExportTimeout(),
		BlockedIntents:    cfg.BlockedIntents(),
	}, logger)

	return &app{cfg: cfg, logger: logger, database: database, repo: repo, host: h, agent: a}, nil
}

func (a *app) Close() error {
	return a.database.Close()
}

// openHost opens the timeline named by the flag or the environment. Without
// one the host has no open document and edits fail with a clear error.
func openHost(cfg *config.EnvConfig, codec timecode.Codec, logger *slog.Logger) (*sandbox.Host, error) {
	tmp := filepath.Join(cfg.DataDir(), "tmp")
	if err := os.MkdirAll(tmp, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	// presets live in the data dir, not next to the timeline
	opts := []sandbox.Option{
		sandbox.WithTempDir(tmp),
		sandbox.WithResourceDir(cfg.PresetDir()),
		sandbox.WithLogger(logger),
	}

	path := timeline
	if path == "" {
		path = cfg.Timeline()
	}
	if path == "" {
		logger.Warn("no timeline configured; set " + config.EnvTimeline + " or pass --timeline")
		return sandbox.New(nil, codec, opts...), nil
	}

	h, err := sandbox.Open(path, codec, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open timeline: %w", err)
	}
	logger.Info("timeline opened", "path", logging.SanitizePath(path))
	return h, nil
}

// ensurePreset writes an empty audio export preset if none is installed.
// The sandbox host only checks that the preset exists.
func ensurePreset(dir, name string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte("<ExportPreset format=\"wav\"/>\n"), 0644)
}

func ensureAuthToken(ctx context.Context, repo journal.Repository) (string, error) {
	existing, err := repo.GetConfig(ctx, journal.KeyAuthToken)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, journal.KeyAuthToken, token); err != nil {
		return "", err
	}

	return token, nil
}
