package edits

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cutpilot/cutpilot-agent/internal/commands"
	"github.com/cutpilot/cutpilot-agent/internal/host"
	"github.com/cutpilot/cutpilot-agent/internal/timecode"
)

const defaultMarkerName = "Profanity"

// MarkerPlacer applies curseword_detect commands as timeline markers.
type MarkerPlacer struct {
	host   host.Host
	probe  *host.CachedProbe
	codec  timecode.Codec
	logger *slog.Logger
}

func NewMarkerPlacer(h host.Host, probe *host.CachedProbe, codec timecode.Codec, logger *slog.Logger) *MarkerPlacer {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarkerPlacer{host: h, probe: probe, codec: codec, logger: logger}
}

func (m *MarkerPlacer) Apply(ctx context.Context, cmd commands.Command) commands.Result {
	mp, ok := cmd.(commands.MarkProfanity)
	if !ok {
		return unexpected(cmd)
	}
	if len(mp.Markers) == 0 {
		return commands.Result{}
	}

	e, err := resolve(ctx, m.host, m.probe, m.logger)
	if err != nil {
		return failAll(len(mp.Markers), err)
	}
	if err := e.caps.Require(host.CapMarkers); err != nil {
		return failAll(len(mp.Markers), err)
	}

	var b batch
	for i, spec := range mp.Markers {
		marker := m.marker(spec, e.fps)
		action, err := e.sess.NewAddMarkerAction(marker)
		if err == nil {
			err = e.doc.ExecuteTransaction(ctx, action)
		}
		if err != nil {
			m.logger.WarnContext(ctx, "marker not placed", "index", i, "start", spec.StartSeconds, "error", err)
			b.fail(fmt.Errorf("marker %d: %w", i, err))
			continue
		}
		b.ok()
	}
	m.logger.InfoContext(ctx, "placed markers", "placed", b.applied, "failed", len(b.errs))
	return b.result()
}

func (m *MarkerPlacer) marker(spec commands.MarkerSpec, fps float64) host.Marker {
	start := spec.StartSeconds
	if start < 0 {
		start = 0
	}
	var dur timecode.Ticks
	if spec.DurationSeconds > 0 {
		dur = m.codec.SecondsToFrame(spec.DurationSeconds, fps)
	}
	name := spec.Name
	if name == "" {
		name = defaultMarkerName
	}
	return host.Marker{
		Start:      m.codec.SecondsToFrame(start, fps),
		Duration:   dur,
		Name:       name,
		Comment:    spec.Comment,
		ColorIndex: spec.ColorIndex,
	}
}
