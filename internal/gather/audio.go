package gather

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cutpilot/cutpilot-agent/internal/host"
	"github.com/cutpilot/cutpilot-agent/internal/logging"
)

const (
	// AudioFileName is the render written into the host temp directory.
	AudioFileName = "ai_analysis_audio.wav"

	DefaultAudioPreset  = "WAV.epr"
	DefaultAudioTimeout = 30 * time.Second

	settlePoll = 100 * time.Millisecond
)

// AudioGatherer renders the whole active session to a WAV file.
type AudioGatherer struct {
	host    host.Host
	probe   *host.CachedProbe
	preset  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewAudioGatherer creates an audio gatherer using the named export preset
// from the host resource directory.
func NewAudioGatherer(h host.Host, probe *host.CachedProbe, preset string, timeout time.Duration, logger *slog.Logger) *AudioGatherer {
	if preset == "" {
		preset = DefaultAudioPreset
	}
	if timeout <= 0 {
		timeout = DefaultAudioTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AudioGatherer{host: h, probe: probe, preset: preset, timeout: timeout, logger: logger}
}

func (g *AudioGatherer) Gather(ctx context.Context) (Evidence, error) {
	_, s, err := host.Resolve(ctx, g.host)
	if err != nil {
		return Evidence{}, err
	}
	if g.probe != nil {
		if err := g.probe.Get(ctx, s).Require(host.CapAudioExport); err != nil {
			return Evidence{}, err
		}
	}

	resDir, err := g.host.ResourceDir(ctx)
	if err != nil {
		return Evidence{}, fmt.Errorf("failed to resolve resource directory: %w", err)
	}
	presetPath := filepath.Join(resDir, g.preset)
	if _, err := os.Stat(presetPath); err != nil {
		return Evidence{}, fmt.Errorf("export preset %s not found: %w", g.preset, err)
	}

	tmp, err := g.host.TempDir(ctx)
	if err != nil {
		return Evidence{}, fmt.Errorf("failed to resolve temp directory: %w", err)
	}
	out := filepath.Join(tmp, AudioFileName)
	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		return Evidence{}, fmt.Errorf("failed to clear previous render: %w", err)
	}

	g.logger.InfoContext(ctx, "exporting session audio", "path", logging.SanitizePath(out), "preset", g.preset)
	if err := s.ExportAudio(ctx, out, presetPath); err != nil {
		return Evidence{}, fmt.Errorf("audio export failed: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if err := waitForFile(waitCtx, out); err != nil {
		return Evidence{}, fmt.Errorf("audio render did not complete: %w", err)
	}
	return Evidence{AudioPath: out}, nil
}

// waitForFile blocks until path exists and its size is unchanged across two
// polls. Hosts may return from an export before the encoder has flushed.
func waitForFile(ctx context.Context, path string) error {
	ticker := time.NewTicker(settlePoll)
	defer ticker.Stop()

	last := int64(-1)
	for {
		if info, err := os.Stat(path); err == nil {
			if info.Size() > 0 && info.Size() == last {
				return nil
			}
			last = info.Size()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
